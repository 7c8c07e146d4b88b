package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML overlay. Keys in the file are the
// lower-case variable names (api_base_url, poll_interval, ...); a set
// environment variable always wins over the file.
const FileEnv = "HYENA_CONFIG"

type Config struct {
	LogLevel  string
	LogFormat string

	APIBaseURL  string
	HTTPTimeout time.Duration

	StreamReadSize     int
	StreamStrictFrames bool

	PollInterval       time.Duration
	PollMaxAttempts    int
	PollSurfaceTimeout bool

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	BreakerEnabled      bool
	BreakerOpenTimeout  time.Duration

	PostgresDSN string

	NATSURL           string
	NATSSubjectPrefix string

	StoragePath string

	InboxDir            string
	InboxSettle         time.Duration
	InboxDefaultCompany string
	InboxDefaultYear    int

	ServeAddr        string
	ServeAPIKey      string
	ServeRateLimit   float64
	ServeRateBurst   int
	ServeMaxInFlight int

	WatcherMetricsPort string
}

// Load reads configuration from the environment, overlaid on the file named
// by HYENA_CONFIG when it is set.
func Load() (Config, error) {
	src, err := newSource(os.Getenv(FileEnv))
	if err != nil {
		return Config{}, err
	}
	return src.config(), nil
}

func (s source) config() Config {
	return Config{
		LogLevel:  s.mustEnv("LOG_LEVEL", "info"),
		LogFormat: s.mustEnv("LOG_FORMAT", "json"),

		APIBaseURL:  strings.TrimRight(s.mustEnv("API_BASE_URL", "http://localhost:8000/api/v1"), "/"),
		HTTPTimeout: s.mustEnvDuration("HTTP_TIMEOUT", 60*time.Second),

		StreamReadSize:     s.mustEnvInt("STREAM_READ_SIZE", 4096),
		StreamStrictFrames: s.mustEnvBool("STREAM_STRICT_FRAMES", false),

		PollInterval:       s.mustEnvDuration("POLL_INTERVAL", 5*time.Second),
		PollMaxAttempts:    s.mustEnvInt("POLL_MAX_ATTEMPTS", 120),
		PollSurfaceTimeout: s.mustEnvBool("POLL_SURFACE_TIMEOUT", false),

		RetryMaxAttempts:    s.mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: s.mustEnvDuration("RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
		BreakerEnabled:      s.mustEnvBool("BREAKER_ENABLED", true),
		BreakerOpenTimeout:  s.mustEnvDuration("BREAKER_OPEN_TIMEOUT", 15*time.Second),

		PostgresDSN: s.mustEnv("POSTGRES_DSN", ""),

		NATSURL:           s.mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: s.mustEnv("NATS_SUBJECT_PREFIX", "hyena.documents"),

		StoragePath: s.mustEnv("STORAGE_PATH", "./data/exports"),

		InboxDir:            s.mustEnv("INBOX_DIR", "./data/inbox"),
		InboxSettle:         s.mustEnvDuration("INBOX_SETTLE", 2*time.Second),
		InboxDefaultCompany: s.mustEnv("INBOX_DEFAULT_COMPANY", ""),
		InboxDefaultYear:    s.mustEnvInt("INBOX_DEFAULT_YEAR", 0),

		ServeAddr:        s.mustEnv("SERVE_ADDR", ":8090"),
		ServeAPIKey:      s.mustEnv("SERVE_API_KEY", ""),
		ServeRateLimit:   s.mustEnvFloat("SERVE_RATE_LIMIT", 5),
		ServeRateBurst:   s.mustEnvInt("SERVE_RATE_BURST", 10),
		ServeMaxInFlight: s.mustEnvInt("SERVE_MAX_IN_FLIGHT", 16),

		WatcherMetricsPort: s.mustEnv("WATCHER_METRICS_PORT", "9090"),
	}
}

type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return src, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return src, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for key, node := range values {
		if node.Kind != yaml.ScalarNode {
			return src, fmt.Errorf("parse config file %s: %s must be a scalar", path, key)
		}
		src.file[strings.ToLower(key)] = node.Value
	}
	return src, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[strings.ToLower(key)]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

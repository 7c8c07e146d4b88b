package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// ClientMetrics covers answer delivery, the poller and the backend breaker.
type ClientMetrics struct {
	service string

	streamTokens     prometheus.Counter
	answersTotal     *prometheus.CounterVec
	answerDuration   *prometheus.HistogramVec
	fallbacksTotal   prometheus.Counter
	evidenceFailures prometheus.Counter
	malformedFrames  prometheus.Counter
	pollsTotal       *prometheus.CounterVec
	pollExhausted    prometheus.Counter
	documentEvents   *prometheus.CounterVec
	activePolls      prometheus.Gauge
	breakerState     *prometheus.GaugeVec
}

func NewClientMetrics(service string, registry prometheus.Registerer) *ClientMetrics {
	constLabels := prometheus.Labels{"service": service}

	streamTokens := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "stream",
		Name:        "tokens_total",
		Help:        "Tokens received from streaming answers.",
		ConstLabels: constLabels,
	})
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "answer",
			Name:        "total",
			Help:        "Answers delivered by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "answer",
			Name:        "duration_seconds",
			Help:        "Time from question to final answer by outcome.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "stream",
		Name:        "fallbacks_total",
		Help:        "Streams that failed and were replaced by a non-streaming query.",
		ConstLabels: constLabels,
	})
	evidenceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "answer",
		Name:        "evidence_failures_total",
		Help:        "Evidence lookups that failed after a successful stream.",
		ConstLabels: constLabels,
	})
	malformedFrames := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "stream",
		Name:        "malformed_frames_total",
		Help:        "Data frames skipped because the payload did not decode.",
		ConstLabels: constLabels,
	})
	pollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "poller",
			Name:        "polls_total",
			Help:        "Status polls by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	pollExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "poller",
		Name:        "poll_exhausted_total",
		Help:        "Polls stopped after reaching the attempt limit.",
		ConstLabels: constLabels,
	})
	documentEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "poller",
			Name:        "document_events_total",
			Help:        "Terminal document notifications by kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	activePolls := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "poller",
		Name:        "active_polls",
		Help:        "Documents currently being polled.",
		ConstLabels: constLabels,
	})
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "backend",
			Name:        "circuit_breaker_state",
			Help:        "Breaker state per operation: 0 closed, 1 half-open, 2 open.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		streamTokens,
		answersTotal,
		answerDuration,
		fallbacksTotal,
		evidenceFailures,
		malformedFrames,
		pollsTotal,
		pollExhausted,
		documentEvents,
		activePolls,
		breakerState,
	)

	return &ClientMetrics{
		service:          service,
		streamTokens:     streamTokens,
		answersTotal:     answersTotal,
		answerDuration:   answerDuration,
		fallbacksTotal:   fallbacksTotal,
		evidenceFailures: evidenceFailures,
		malformedFrames:  malformedFrames,
		pollsTotal:       pollsTotal,
		pollExhausted:    pollExhausted,
		documentEvents:   documentEvents,
		activePolls:      activePolls,
		breakerState:     breakerState,
	}
}

func (m *ClientMetrics) ObserveToken() {
	m.streamTokens.Inc()
}

func (m *ClientMetrics) ObserveAnswer(outcome string, duration time.Duration) {
	m.answersTotal.WithLabelValues(outcome).Inc()
	m.answerDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObserveFallback() {
	m.fallbacksTotal.Inc()
}

func (m *ClientMetrics) ObserveEvidenceFailure() {
	m.evidenceFailures.Inc()
}

// ObserveMalformedFrame matches the stream consumer's OnMalformed hook.
func (m *ClientMetrics) ObserveMalformedFrame(string, error) {
	m.malformedFrames.Inc()
}

func (m *ClientMetrics) ObservePoll(outcome string) {
	m.pollsTotal.WithLabelValues(outcome).Inc()
	if outcome == "exhausted" {
		m.pollExhausted.Inc()
	}
}

func (m *ClientMetrics) ObserveDocumentEvent(kind domain.DocumentEventKind) {
	m.documentEvents.WithLabelValues(string(kind)).Inc()
}

func (m *ClientMetrics) SetActivePolls(n int) {
	m.activePolls.Set(float64(n))
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *ClientMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(to))
}

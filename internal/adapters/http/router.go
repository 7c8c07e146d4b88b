package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/ports"
	"github.com/kirillkom/hyena-client/internal/observability/metrics"
)

type pollStateReader interface {
	State(documentID string) (domain.PollState, bool)
}

type RouterOptions struct {
	Service string
	APIKey  string

	RateLimit    float64
	RateBurst    int
	MaxInFlight  int
	QueueTimeout time.Duration

	Metrics        *metrics.HTTPServerMetrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Router is the companion HTTP surface: it exposes the local document list
// and relays answers as server-sent render snapshots.
type Router struct {
	asker     ports.Asker
	documents ports.DocumentReader
	polls     pollStateReader
	health    ports.HealthProber
	opts      RouterOptions
}

func NewRouter(
	asker ports.Asker,
	documents ports.DocumentReader,
	polls pollStateReader,
	health ports.HealthProber,
	opts RouterOptions,
) *Router {
	if opts.Service == "" {
		opts.Service = "hyena-serve"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Router{
		asker:     asker,
		documents: documents,
		polls:     polls,
		health:    health,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/documents", rt.listDocuments)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("POST /v1/ask", rt.ask)

	var guarded http.Handler = api
	guarded = rt.authMiddleware(guarded)
	if rt.opts.MaxInFlight > 0 {
		guarded = backpressureMiddleware(guarded, rt.opts.MaxInFlight, rt.opts.QueueTimeout, rt.recordRejected)
	}
	if rt.opts.RateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(rt.opts.RateLimit), max(rt.opts.RateBurst, 1))
		guarded = rateLimitMiddleware(guarded, limiter, rt.recordRejected)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", rt.opts.MetricsHandler)
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) recordRejected(reason string) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRejected(rt.opts.Service, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	report := rt.health.Health(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter := domain.DocumentFilter{Company: strings.TrimSpace(r.URL.Query().Get("company"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "list documents", errors.New("year must be a positive integer")))
			return
		}
		filter.Year = year
	}
	docs := rt.documents.List(filter)
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

type documentResponse struct {
	domain.Document
	StatusLabel string            `json:"status_label"`
	Poll        *domain.PollState `json:"poll,omitempty"`
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	doc, ok := rt.documents.Get(id)
	if !ok {
		writeError(w, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id)))
		return
	}
	resp := documentResponse{Document: doc, StatusLabel: doc.Status.Label()}
	if rt.polls != nil {
		if state, ok := rt.polls.State(id); ok {
			resp.Poll = &state
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type askRequest struct {
	Question string `json:"question"`
	Company  string `json:"company"`
	Year     int    `json:"year"`
	Quarter  string `json:"quarter"`
	TopK     int    `json:"top_k"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	stream := newAnswerStream(w)
	answer, err := rt.asker.Ask(r.Context(), req.Question, domain.QueryFilters{
		Company: req.Company,
		Year:    req.Year,
		Quarter: req.Quarter,
		TopK:    req.TopK,
	}, stream)
	if err != nil && !stream.started {
		writeError(w, err)
		return
	}
	if err != nil {
		rt.opts.Logger.Warn("ask_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		stream.fail(answer, err)
	}
	stream.done()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

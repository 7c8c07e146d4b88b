package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/ports"
	"github.com/kirillkom/hyena-client/internal/core/usecase"
)

type healthFake struct {
	report domain.HealthReport
}

func (f healthFake) Health(context.Context) domain.HealthReport { return f.report }

type pollsFake map[string]domain.PollState

func (f pollsFake) State(id string) (domain.PollState, bool) {
	s, ok := f[id]
	return s, ok
}

func healthyReport() domain.HealthReport {
	return domain.HealthReport{
		API:         domain.ProbeResult{Name: "api", OK: true, Status: "healthy"},
		VectorStore: domain.ProbeResult{Name: "qdrant", OK: true, Status: "connected"},
		KeyValue:    domain.ProbeResult{Name: "redis", OK: true, Status: "connected"},
	}
}

func seededRegistry() *usecase.DocumentRegistry {
	registry := usecase.NewDocumentRegistry()
	registry.Put(domain.Document{ID: "d1", Filename: "acme.pdf", Company: "ACME", Year: 2023, Status: domain.StatusCompleted})
	registry.Put(domain.Document{ID: "d2", Filename: "globex.pdf", Company: "Globex", Year: 2022, Status: domain.StatusProcessing})
	return registry
}

func newTestHandler(asker ports.Asker, opts RouterOptions) http.Handler {
	return NewRouter(asker, seededRegistry(), pollsFake{"d2": {DocumentID: "d2", AttemptsMade: 3, Active: true}}, healthFake{report: healthyReport()}, opts).Handler()
}

func TestHealthzReportsBackendProbes(t *testing.T) {
	report := healthyReport()
	report.KeyValue = domain.ProbeResult{Name: "redis", Status: "unreachable"}
	handler := NewRouter(nil, seededRegistry(), nil, healthFake{report: report}, RouterOptions{}).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}

	var body domain.HealthReport
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !body.API.OK || body.KeyValue.Status != "unreachable" {
		t.Fatalf("unexpected report %+v", body)
	}
}

func TestListDocumentsAppliesFilter(t *testing.T) {
	handler := newTestHandler(nil, RouterOptions{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?company=ACME&year=2023", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Documents) != 1 || body.Documents[0].ID != "d1" {
		t.Fatalf("unexpected documents %+v", body.Documents)
	}
}

func TestListDocumentsRejectsBadYear(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(nil, RouterOptions{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?year=soon", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentIncludesPollState(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(nil, RouterOptions{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/d2", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		ID          string            `json:"doc_id"`
		StatusLabel string            `json:"status_label"`
		Poll        *domain.PollState `json:"poll"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if body.ID != "d2" || body.StatusLabel != "⏳⏳" {
		t.Fatalf("unexpected document %+v", body)
	}
	if body.Poll == nil || body.Poll.AttemptsMade != 3 || !body.Poll.Active {
		t.Fatalf("expected active poll state, got %+v", body.Poll)
	}
}

func TestGetDocumentReturns404ForUnknownID(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(nil, RouterOptions{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestAPIKeyGuardsV1Routes(t *testing.T) {
	handler := newTestHandler(nil, RouterOptions{APIKey: "secret"})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("healthz should stay public, got %d", res.Code)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	handler := newTestHandler(nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", context.Canceled), http.StatusBadRequest},
		{domain.WrapError(domain.ErrDocumentNotFound, "op", context.Canceled), http.StatusNotFound},
		{domain.WrapError(domain.ErrIllegalState, "op", context.Canceled), http.StatusConflict},
		{&domain.TransportError{Operation: "query", StatusCode: 502}, http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

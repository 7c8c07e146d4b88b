package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

type streamOpenerFake struct {
	body string
	err  error
	reqs []domain.QueryRequest
}

func (f *streamOpenerFake) OpenStream(_ context.Context, req domain.QueryRequest) (io.ReadCloser, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type querierFake struct {
	result *domain.QueryResult
	err    error
	calls  int
}

func (f *querierFake) Query(context.Context, domain.QueryRequest) (*domain.QueryResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type observerRecorder struct {
	renders   []string
	replaces  []string
	completes int
}

func (o *observerRecorder) OnRender(_ *domain.Answer, markup string) {
	o.renders = append(o.renders, markup)
}
func (o *observerRecorder) OnReplace(_ *domain.Answer, markup string) {
	o.replaces = append(o.replaces, markup)
}
func (o *observerRecorder) OnComplete(*domain.Answer) { o.completes++ }

type askMetricsFake struct {
	mu        sync.Mutex
	tokens    int
	outcomes  []string
	fallbacks int
	evidence  int
}

func (m *askMetricsFake) ObserveToken() {
	m.mu.Lock()
	m.tokens++
	m.mu.Unlock()
}
func (m *askMetricsFake) ObserveAnswer(outcome string, _ time.Duration) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
}
func (m *askMetricsFake) ObserveFallback() {
	m.mu.Lock()
	m.fallbacks++
	m.mu.Unlock()
}
func (m *askMetricsFake) ObserveEvidenceFailure() {
	m.mu.Lock()
	m.evidence++
	m.mu.Unlock()
}

var askSources = []domain.Evidence{
	{Index: 0, Kind: domain.EvidenceText, Page: 2, Score: 0.9, Company: "ACME"},
	{Index: 1, Kind: domain.EvidenceTable, Page: 5, Score: 0.7, Company: "ACME"},
}

func TestAskStreamsThenResolvesEvidence(t *testing.T) {
	opener := &streamOpenerFake{body: "data: {\"token\":\"Hel\"}\n\ndata: {\"token\":\"lo **x**\"}\n\ndata: [DONE]\n\n"}
	querier := &querierFake{result: &domain.QueryResult{Answer: "ignored", Sources: askSources}}
	metrics := &askMetricsFake{}
	observer := &observerRecorder{}
	uc := NewAskUseCase(opener, querier, nil, metrics, nil)

	answer, err := uc.Ask(context.Background(), "  revenue?  ", domain.QueryFilters{Company: "ACME"}, observer)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.State != domain.AnswerComplete || answer.FellBack {
		t.Fatalf("expected complete streamed answer, got state=%s fellBack=%v", answer.State, answer.FellBack)
	}
	if answer.RawText() != "Hello **x**" {
		t.Fatalf("unexpected text %q", answer.RawText())
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("expected evidence attached, got %d", len(answer.Sources))
	}
	if querier.calls != 1 {
		t.Fatalf("expected exactly one evidence request, got %d", querier.calls)
	}
	if len(observer.renders) != 2 || observer.renders[1] != "<p>Hello <strong>x</strong></p>" {
		t.Fatalf("unexpected render snapshots %q", observer.renders)
	}
	if len(observer.replaces) != 0 || observer.completes != 1 {
		t.Fatalf("unexpected observer calls replaces=%d completes=%d", len(observer.replaces), observer.completes)
	}
	req := opener.reqs[0]
	if req.Question != "revenue?" || req.TopK != domain.DefaultTopK || req.Company == nil || *req.Company != "ACME" || req.Year != nil {
		t.Fatalf("unexpected query request %+v", req)
	}
	if metrics.tokens != 2 || metrics.outcomes[0] != outcomeStreamed {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestAskEvidenceFailureCompletesWithoutSources(t *testing.T) {
	opener := &streamOpenerFake{body: "data: {\"token\":\"ok\"}\n\n"}
	querier := &querierFake{err: &domain.TransportError{Operation: "query", StatusCode: 502}}
	metrics := &askMetricsFake{}
	uc := NewAskUseCase(opener, querier, nil, metrics, nil)

	answer, err := uc.Ask(context.Background(), "q", domain.QueryFilters{}, nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.State != domain.AnswerComplete || len(answer.Sources) != 0 {
		t.Fatalf("expected complete answer without sources, got %s/%d", answer.State, len(answer.Sources))
	}
	if answer.RawText() != "ok" {
		t.Fatalf("streamed text must survive evidence failure, got %q", answer.RawText())
	}
	if querier.calls != 1 || metrics.evidence != 1 || metrics.fallbacks != 0 {
		t.Fatalf("unexpected calls=%d evidence=%d fallbacks=%d", querier.calls, metrics.evidence, metrics.fallbacks)
	}
}

func TestAskFallsBackWhenStreamCannotOpen(t *testing.T) {
	opener := &streamOpenerFake{err: &domain.TransportError{Operation: "open stream", StatusCode: 500}}
	querier := &querierFake{result: &domain.QueryResult{Answer: "Fallback *answer*", Sources: askSources[:1]}}
	observer := &observerRecorder{}
	metrics := &askMetricsFake{}
	uc := NewAskUseCase(opener, querier, nil, metrics, nil)

	answer, err := uc.Ask(context.Background(), "q", domain.QueryFilters{}, observer)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.FellBack || answer.State != domain.AnswerComplete {
		t.Fatalf("expected fallback answer, got %+v", answer.State)
	}
	if querier.calls != 1 {
		t.Fatalf("fallback must issue one query, got %d", querier.calls)
	}
	if len(observer.replaces) != 1 || observer.replaces[0] != "<p>Fallback <em>answer</em></p>" {
		t.Fatalf("unexpected replace notifications %q", observer.replaces)
	}
	if len(answer.Sources) != 1 || metrics.fallbacks != 1 || metrics.outcomes[0] != outcomeFallback {
		t.Fatalf("unexpected sources=%d metrics=%+v", len(answer.Sources), metrics)
	}
}

func TestAskMidStreamErrorReplacesPartialText(t *testing.T) {
	opener := &streamOpenerFake{body: "data: {\"token\":\"Rev\"}\n\ndata: {\"token\":\"enue up\"}\n\ndata: {\"error\":\"model crashed\"}\n\ndata: {\"token\":\"never\"}\n\n"}
	querier := &querierFake{result: &domain.QueryResult{Answer: "whole answer", Sources: askSources}}
	observer := &observerRecorder{}
	uc := NewAskUseCase(opener, querier, nil, nil, nil)

	answer, err := uc.Ask(context.Background(), "q", domain.QueryFilters{}, observer)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.RawText() != "whole answer" {
		t.Fatalf("fallback must replace streamed text wholesale, got %q", answer.RawText())
	}
	if strings.Contains(answer.RawText(), "Rev") {
		t.Fatalf("streamed tokens must not be concatenated with the fallback, got %q", answer.RawText())
	}
	if len(observer.renders) != 2 || len(observer.replaces) != 1 {
		t.Fatalf("expected two renders then one replace, got %d/%d", len(observer.renders), len(observer.replaces))
	}
	if !strings.Contains(observer.renders[1], "Revenue up") {
		t.Fatalf("second render should hold both tokens, got %q", observer.renders[1])
	}
	if querier.calls != 1 {
		t.Fatalf("expected one query, got %d", querier.calls)
	}
}

func TestAskWrapsPlainOpenErrorsAsTransport(t *testing.T) {
	opener := &streamOpenerFake{err: errors.New("dial tcp: connection refused")}
	querier := &querierFake{result: &domain.QueryResult{Answer: "fine"}}
	uc := NewAskUseCase(opener, querier, nil, nil, nil)

	answer, err := uc.Ask(context.Background(), "q", domain.QueryFilters{}, nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.FellBack {
		t.Fatalf("expected fallback after dial error")
	}
}

func TestAskFallbackFailureFailsAnswer(t *testing.T) {
	opener := &streamOpenerFake{err: &domain.TransportError{Operation: "open stream", StatusCode: 503}}
	querier := &querierFake{err: errors.New("backend down")}
	observer := &observerRecorder{}
	metrics := &askMetricsFake{}
	uc := NewAskUseCase(opener, querier, nil, metrics, nil)

	answer, err := uc.Ask(context.Background(), "q", domain.QueryFilters{}, observer)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "fallback query") || !strings.Contains(err.Error(), "backend down") {
		t.Fatalf("unexpected error %v", err)
	}
	if answer.State != domain.AnswerFailed || answer.Err == nil {
		t.Fatalf("expected failed answer, got %s", answer.State)
	}
	if observer.completes != 1 || metrics.outcomes[0] != outcomeFailed {
		t.Fatalf("failed answers still complete the observer: %d %v", observer.completes, metrics.outcomes)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	opener := &streamOpenerFake{}
	querier := &querierFake{}
	uc := NewAskUseCase(opener, querier, nil, nil, nil)

	_, err := uc.Ask(context.Background(), "   ", domain.QueryFilters{}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(opener.reqs) != 0 || querier.calls != 0 {
		t.Fatalf("no network call expected")
	}
}

func TestAskCancelledContextDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opener := &streamOpenerFake{body: "data: {\"token\":\"x\"}\n\n"}
	querier := &querierFake{result: &domain.QueryResult{Answer: "fallback"}}
	uc := NewAskUseCase(opener, querier, nil, nil, nil)

	answer, err := uc.Ask(ctx, "q", domain.QueryFilters{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if answer.State != domain.AnswerFailed || querier.calls != 0 {
		t.Fatalf("cancellation must not trigger fallback: state=%s calls=%d", answer.State, querier.calls)
	}
}

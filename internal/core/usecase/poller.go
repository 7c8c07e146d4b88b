package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/ports"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 120

	defaultFailureMessage = "unknown error"
)

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// SurfaceTimeout emits an EventTimedOut when attempts run out. The
	// document itself is left untouched either way.
	SurfaceTimeout bool
}

func (c PollerConfig) normalize() PollerConfig {
	out := c
	if out.Interval <= 0 {
		out.Interval = DefaultPollInterval
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultPollMaxAttempts
	}
	return out
}

// Refresher reloads the full document list after a terminal transition.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type pollHandle struct {
	state  domain.PollState
	ticker ports.Ticker
	stop   chan struct{}
}

// Poller drives one status-polling loop per registered document until the
// document reaches a terminal status or the attempt budget runs out.
type Poller struct {
	docs      ports.DocumentService
	registry  *DocumentRegistry
	clock     ports.Clock
	cfg       PollerConfig
	notifiers []ports.DocumentNotifier
	refresher Refresher
	metrics   PollMetrics
	logger    *slog.Logger

	mu    sync.Mutex
	polls map[string]*pollHandle
	wg    sync.WaitGroup
}

func NewPoller(
	docs ports.DocumentService,
	registry *DocumentRegistry,
	clock ports.Clock,
	cfg PollerConfig,
	metrics PollMetrics,
	logger *slog.Logger,
) *Poller {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		docs:     docs,
		registry: registry,
		clock:    clock,
		cfg:      cfg.normalize(),
		metrics:  metrics,
		logger:   logger,
		polls:    make(map[string]*pollHandle),
	}
}

// AddNotifier subscribes n to terminal events. Call before Register.
func (p *Poller) AddNotifier(n ports.DocumentNotifier) {
	if n == nil {
		return
	}
	p.mu.Lock()
	p.notifiers = append(p.notifiers, n)
	p.mu.Unlock()
}

// SetRefresher sets the full-list refresh run after each terminal event.
func (p *Poller) SetRefresher(r Refresher) {
	p.mu.Lock()
	p.refresher = r
	p.mu.Unlock()
}

// Register starts polling documentID. It reports false when the document is
// already being polled.
func (p *Poller) Register(ctx context.Context, documentID string) bool {
	p.mu.Lock()
	if h, ok := p.polls[documentID]; ok && h.state.Active {
		p.mu.Unlock()
		return false
	}
	h := &pollHandle{
		state:  domain.PollState{DocumentID: documentID, Active: true},
		ticker: p.clock.NewTicker(p.cfg.Interval),
		stop:   make(chan struct{}),
	}
	p.polls[documentID] = h
	p.wg.Add(1)
	active := p.activeLocked()
	p.mu.Unlock()

	p.metrics.SetActivePolls(active)
	p.logger.Debug("poll_registered", "doc_id", documentID, "interval", p.cfg.Interval.String())

	go p.run(ctx, h)
	return true
}

// Cancel stops polling documentID. It reports whether a poll was active.
func (p *Poller) Cancel(documentID string) bool {
	p.mu.Lock()
	h, ok := p.polls[documentID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	return p.deactivate(h)
}

func (p *Poller) CancelAll() {
	p.mu.Lock()
	handles := make([]*pollHandle, 0, len(p.polls))
	for _, h := range p.polls {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		p.deactivate(h)
	}
}

// State returns the poll state of documentID, if it was ever registered.
func (p *Poller) State(documentID string) (domain.PollState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.polls[documentID]
	if !ok {
		return domain.PollState{}, false
	}
	return h.state, true
}

// Active returns the number of documents currently being polled.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLocked()
}

// Wait blocks until every polling goroutine has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, h *pollHandle) {
	defer p.wg.Done()
	defer h.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.deactivate(h)
			return
		case <-h.stop:
			return
		case <-h.ticker.C():
			if done := p.tick(ctx, h); done {
				return
			}
		}
	}
}

// tick runs one polling attempt and reports whether polling is over.
func (p *Poller) tick(ctx context.Context, h *pollHandle) bool {
	p.mu.Lock()
	if !h.state.Active {
		p.mu.Unlock()
		return true
	}
	h.state.AttemptsMade++
	attempts := h.state.AttemptsMade
	documentID := h.state.DocumentID
	p.mu.Unlock()

	if attempts > p.cfg.MaxAttempts {
		p.deactivate(h)
		p.metrics.ObservePoll(pollExhausted)
		p.logger.Debug("poll_exhausted", "doc_id", documentID, "attempts", attempts-1)
		if p.cfg.SurfaceTimeout {
			doc, _ := p.registry.Get(documentID)
			if doc.ID == "" {
				doc.ID = documentID
			}
			p.emit(ctx, domain.DocumentEvent{
				Kind:     domain.EventTimedOut,
				Document: doc,
				Message:  "status polling gave up",
				At:       p.clock.Now(),
			})
		}
		return true
	}

	report, err := p.docs.Status(ctx, documentID)
	if err != nil {
		p.metrics.ObservePoll(pollError)
		p.logger.Debug("poll_status_failed", "doc_id", documentID, "attempt", attempts, "error", err)
		return false
	}

	// A cancel that raced the status call wins; the stale report is dropped.
	if !p.isActive(h) {
		return true
	}

	doc := p.registry.Merge(documentID, *report)
	if !report.Status.IsTerminal() {
		p.metrics.ObservePoll(pollOK)
		return false
	}

	p.deactivate(h)
	p.metrics.ObservePoll(pollTerminal)

	event := domain.DocumentEvent{
		Kind:     domain.EventCompleted,
		Document: doc,
		At:       p.clock.Now(),
	}
	if report.Status == domain.StatusFailed {
		event.Kind = domain.EventFailed
		event.Message = defaultFailureMessage
		if report.Error != nil && *report.Error != "" {
			event.Message = *report.Error
		}
	}
	p.logger.Info("document_terminal", "doc_id", documentID, "status", string(report.Status), "attempts", attempts)
	p.emit(ctx, event)

	p.mu.Lock()
	refresher := p.refresher
	p.mu.Unlock()
	if refresher != nil {
		if err := refresher.Refresh(ctx); err != nil {
			p.logger.Warn("document_refresh_failed", "doc_id", documentID, "error", err)
		}
	}
	return true
}

func (p *Poller) emit(ctx context.Context, event domain.DocumentEvent) {
	p.mu.Lock()
	notifiers := append([]ports.DocumentNotifier(nil), p.notifiers...)
	p.mu.Unlock()

	p.metrics.ObserveDocumentEvent(event.Kind)
	for _, n := range notifiers {
		if err := n.NotifyDocument(ctx, event); err != nil {
			p.logger.Warn("document_notify_failed", "doc_id", event.Document.ID, "kind", string(event.Kind), "error", err)
		}
	}
}

func (p *Poller) isActive(h *pollHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.state.Active
}

func (p *Poller) deactivate(h *pollHandle) bool {
	p.mu.Lock()
	if !h.state.Active {
		p.mu.Unlock()
		return false
	}
	h.state.Active = false
	close(h.stop)
	active := p.activeLocked()
	p.mu.Unlock()

	p.metrics.SetActivePolls(active)
	return true
}

func (p *Poller) activeLocked() int {
	n := 0
	for _, h := range p.polls {
		if h.state.Active {
			n++
		}
	}
	return n
}

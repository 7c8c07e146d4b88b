package usecase

import (
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// AskMetrics records answer delivery outcomes.
type AskMetrics interface {
	ObserveToken()
	ObserveAnswer(outcome string, duration time.Duration)
	ObserveFallback()
	ObserveEvidenceFailure()
}

// PollMetrics records poller activity.
type PollMetrics interface {
	ObservePoll(outcome string)
	ObserveDocumentEvent(kind domain.DocumentEventKind)
	SetActivePolls(n int)
}

const (
	outcomeStreamed = "streamed"
	outcomeFallback = "fallback"
	outcomeFailed   = "failed"

	pollOK        = "ok"
	pollError     = "error"
	pollTerminal  = "terminal"
	pollExhausted = "exhausted"
)

type nopMetrics struct{}

func (nopMetrics) ObserveToken()                                 {}
func (nopMetrics) ObserveAnswer(string, time.Duration)           {}
func (nopMetrics) ObserveFallback()                              {}
func (nopMetrics) ObserveEvidenceFailure()                       {}
func (nopMetrics) ObservePoll(string)                            {}
func (nopMetrics) ObserveDocumentEvent(domain.DocumentEventKind) {}
func (nopMetrics) SetActivePolls(int)                            {}

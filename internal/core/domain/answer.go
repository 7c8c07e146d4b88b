package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type EvidenceKind string

const (
	EvidenceText  EvidenceKind = "text"
	EvidenceTable EvidenceKind = "table"
	EvidenceImage EvidenceKind = "image"
)

// Evidence is one citation record backing an answer.
type Evidence struct {
	Index   int          `json:"index"`
	Kind    EvidenceKind `json:"type"`
	Page    Page         `json:"page"`
	Company string       `json:"company"`
	Score   float64      `json:"score"`
	Preview string       `json:"preview"`
}

// Page is a 1-based page number. The backend sends "?" when the page is
// unknown; that decodes to zero.
type Page int

func (p *Page) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*p = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			*p = 0
			return nil
		}
		*p = Page(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode page: %w", err)
	}
	*p = Page(int(n))
	return nil
}

func (p Page) String() string {
	if p <= 0 {
		return "?"
	}
	return strconv.Itoa(int(p))
}

type AnswerState string

const (
	AnswerStreaming        AnswerState = "streaming"
	AnswerAwaitingEvidence AnswerState = "awaiting_evidence"
	AnswerComplete         AnswerState = "complete"
	AnswerFailed           AnswerState = "failed"
)

// Answer accumulates one question's reply. State changes only through its
// methods so that an illegal transition is reported instead of silently applied.
type Answer struct {
	ID       string
	Question string
	Filters  QueryFilters
	State    AnswerState
	Sources  []Evidence
	Err      error

	// FellBack is set when the text came from the non-streaming fallback.
	FellBack bool

	raw strings.Builder
}

func NewAnswer(id, question string, filters QueryFilters) *Answer {
	return &Answer{
		ID:       id,
		Question: question,
		Filters:  filters,
		State:    AnswerStreaming,
	}
}

func (a *Answer) RawText() string {
	return a.raw.String()
}

func (a *Answer) AppendToken(token string) error {
	if a.State != AnswerStreaming {
		return a.illegal("append token")
	}
	a.raw.WriteString(token)
	return nil
}

func (a *Answer) AwaitEvidence() error {
	if a.State != AnswerStreaming {
		return a.illegal("await evidence")
	}
	a.State = AnswerAwaitingEvidence
	return nil
}

// Complete attaches the resolved evidence. A nil slice is a valid outcome of
// a failed evidence lookup.
func (a *Answer) Complete(sources []Evidence) error {
	if a.State != AnswerAwaitingEvidence {
		return a.illegal("complete")
	}
	a.Sources = append([]Evidence(nil), sources...)
	a.State = AnswerComplete
	return nil
}

// ReplaceWithFallback discards any streamed text and installs the fallback
// result wholesale.
func (a *Answer) ReplaceWithFallback(text string, sources []Evidence) error {
	if a.State != AnswerStreaming {
		return a.illegal("replace with fallback")
	}
	a.raw.Reset()
	a.raw.WriteString(text)
	a.Sources = append([]Evidence(nil), sources...)
	a.FellBack = true
	a.State = AnswerComplete
	return nil
}

func (a *Answer) Fail(err error) error {
	if a.State != AnswerStreaming {
		return a.illegal("fail")
	}
	a.Err = err
	a.State = AnswerFailed
	return nil
}

func (a *Answer) illegal(op string) error {
	return WrapError(ErrIllegalState, op, fmt.Errorf("answer %s is %s", a.ID, a.State))
}

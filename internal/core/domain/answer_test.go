package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAnswerStreamingLifecycle(t *testing.T) {
	a := NewAnswer("a1", "q", QueryFilters{})
	if err := a.AppendToken("Hel"); err != nil {
		t.Fatalf("AppendToken() error = %v", err)
	}
	if err := a.AppendToken("lo"); err != nil {
		t.Fatalf("AppendToken() error = %v", err)
	}
	if err := a.AwaitEvidence(); err != nil {
		t.Fatalf("AwaitEvidence() error = %v", err)
	}
	if err := a.AppendToken("late"); !IsKind(err, ErrIllegalState) {
		t.Fatalf("tokens after the stream ends must be rejected, got %v", err)
	}
	if err := a.Complete([]Evidence{{Index: 0}}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if a.RawText() != "Hello" || a.State != AnswerComplete || len(a.Sources) != 1 {
		t.Fatalf("unexpected answer %q %s %d", a.RawText(), a.State, len(a.Sources))
	}
	if err := a.Fail(errors.New("x")); !IsKind(err, ErrIllegalState) {
		t.Fatalf("complete answers cannot fail, got %v", err)
	}
}

func TestAnswerFallbackReplacesText(t *testing.T) {
	a := NewAnswer("a1", "q", QueryFilters{})
	_ = a.AppendToken("partial")
	if err := a.ReplaceWithFallback("full", []Evidence{{Index: 3}}); err != nil {
		t.Fatalf("ReplaceWithFallback() error = %v", err)
	}
	if a.RawText() != "full" || !a.FellBack || a.State != AnswerComplete {
		t.Fatalf("unexpected answer %q fellBack=%v state=%s", a.RawText(), a.FellBack, a.State)
	}
	if err := a.ReplaceWithFallback("again", nil); !IsKind(err, ErrIllegalState) {
		t.Fatalf("only one fallback per answer, got %v", err)
	}
}

func TestAnswerCompleteRequiresEvidencePhase(t *testing.T) {
	a := NewAnswer("a1", "q", QueryFilters{})
	if err := a.Complete(nil); !IsKind(err, ErrIllegalState) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestEvidencePageDecoding(t *testing.T) {
	raw := `[{"index":0,"type":"text","page":4,"score":0.5},
	         {"index":1,"type":"image","page":"?","score":0.25},
	         {"index":2,"type":"table","page":"7"},
	         {"index":3,"type":"text","page":null}]`
	var got []Evidence
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Page{4, 0, 7, 0}
	for i, ev := range got {
		if ev.Page != want[i] {
			t.Fatalf("evidence %d: page %d, want %d", i, ev.Page, want[i])
		}
	}
	if got[1].Page.String() != "?" || got[0].Page.String() != "4" {
		t.Fatalf("unexpected page labels %s %s", got[1].Page, got[0].Page)
	}
	if got[1].Kind != EvidenceImage {
		t.Fatalf("type maps to kind, got %s", got[1].Kind)
	}
}

func TestPageRejectsGarbage(t *testing.T) {
	var p Page
	if err := json.Unmarshal([]byte(`{}`), &p); err == nil {
		t.Fatalf("expected error for object page")
	}
}

func TestStreamFailureClassification(t *testing.T) {
	if !IsStreamFailure(&TransportError{Operation: "open stream", StatusCode: 500}) {
		t.Fatalf("transport errors trigger fallback")
	}
	if !IsStreamFailure(&StreamProtocolError{Message: "x"}) {
		t.Fatalf("protocol errors trigger fallback")
	}
	if IsStreamFailure(errors.New("sink failed")) {
		t.Fatalf("plain errors do not trigger fallback")
	}
}

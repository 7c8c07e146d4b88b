package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

func TestEventSubjectUsesKind(t *testing.T) {
	prefix := normalizePrefix(" .hyena.docs. ")
	if got := eventSubject(prefix, domain.EventFailed); got != "hyena.docs.failed" {
		t.Fatalf("unexpected subject %s", got)
	}
	if normalizePrefix("") != "hyena.documents" {
		t.Fatalf("expected default prefix")
	}
}

func TestEventCodecRoundTrip(t *testing.T) {
	event := domain.DocumentEvent{
		Kind:     domain.EventCompleted,
		Document: domain.Document{ID: "d-1", Status: domain.StatusCompleted, TotalChunks: 12},
		At:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	payload, err := encodeEvent(event)
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	got, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if got.Document.ID != "d-1" || got.Document.TotalChunks != 12 || !got.At.Equal(event.At) {
		t.Fatalf("unexpected event %+v", got)
	}

	if _, err := decodeEvent([]byte(`{"kind":"completed"}`)); err == nil {
		t.Fatalf("events without a document id are rejected")
	}
}

func TestClassifyPublishError(t *testing.T) {
	if !classifyPublishError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)).Retryable {
		t.Fatalf("closed connections are retryable")
	}
	if classifyPublishError(context.Canceled).RecordFailure {
		t.Fatalf("cancellation is not a breaker failure")
	}
	if !domain.IsKind(asTemporaryPublishError(nats.ErrTimeout), domain.ErrTemporary) {
		t.Fatalf("timeouts are temporary")
	}
	if domain.IsKind(asTemporaryPublishError(errors.New("bad subject")), domain.ErrTemporary) {
		t.Fatalf("unknown errors are not temporary")
	}
	if !classifyPublishError(nats.ErrConnectionReconnecting).Retryable {
		t.Fatalf("publishing while reconnecting is retryable")
	}
	if classifyPublishError(nats.ErrBadSubject).Retryable {
		t.Fatalf("a malformed subject is never retried")
	}
}

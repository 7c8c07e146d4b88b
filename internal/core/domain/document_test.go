package domain

import "testing"

func TestApplyStatusKeepsErrorWhenAbsent(t *testing.T) {
	doc := Document{ID: "d", Filename: "f.pdf", Error: "earlier"}
	doc.ApplyStatus(StatusReport{Status: StatusProcessing, TotalChunks: 3})
	if doc.Error != "earlier" || doc.TotalChunks != 3 || doc.Filename != "f.pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}

	msg := "boom"
	doc.ApplyStatus(StatusReport{Status: StatusFailed, Error: &msg})
	if doc.Error != "boom" || !doc.Status.IsTerminal() {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestStatusLabels(t *testing.T) {
	cases := map[DocumentStatus]string{
		StatusPending:    "⏳",
		StatusProcessing: "⏳⏳",
		StatusCompleted:  "✓",
		StatusFailed:     "✗",
	}
	for status, label := range cases {
		if got := status.Label(); got != label {
			t.Fatalf("%s: got %q want %q", status, got, label)
		}
	}
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Fatalf("pending and processing are not terminal")
	}
}

func TestDocumentFilterMatch(t *testing.T) {
	doc := Document{Company: "ACME", Year: 2024}
	if !(DocumentFilter{}).Match(doc) || !(DocumentFilter{Company: "ACME", Year: 2024}).Match(doc) {
		t.Fatalf("expected match")
	}
	if (DocumentFilter{Year: 2023}).Match(doc) || (DocumentFilter{Company: "Globex"}).Match(doc) {
		t.Fatalf("expected mismatch")
	}
}

func TestDocumentEventSummary(t *testing.T) {
	doc := Document{ID: "d1", Filename: "acme.pdf", TotalChunks: 12}
	cases := []struct {
		event DocumentEvent
		want  string
	}{
		{DocumentEvent{Kind: EventCompleted, Document: doc}, "✅ acme.pdf processed: 12 chunks"},
		{DocumentEvent{Kind: EventFailed, Document: doc, Message: "unknown error"}, "❌ acme.pdf failed: unknown error"},
		{DocumentEvent{Kind: EventTimedOut, Document: Document{ID: "d2"}, Message: "status polling gave up"}, "⌛ d2: status polling gave up"},
	}
	for _, tc := range cases {
		if got := tc.event.Summary(); got != tc.want {
			t.Fatalf("Summary() = %q, want %q", got, tc.want)
		}
	}
}

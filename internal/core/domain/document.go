package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Label is the compact glyph shown next to a document in the list.
func (s DocumentStatus) Label() string {
	switch s {
	case StatusPending:
		return "⏳"
	case StatusProcessing:
		return "⏳⏳"
	case StatusCompleted:
		return "✓"
	case StatusFailed:
		return "✗"
	default:
		return string(s)
	}
}

type Document struct {
	ID          string         `json:"doc_id"`
	Filename    string         `json:"filename"`
	Company     string         `json:"company"`
	Year        int            `json:"year"`
	Quarter     string         `json:"quarter,omitempty"`
	Status      DocumentStatus `json:"status"`
	TotalChunks int            `json:"total_chunks"`
	TextChunks  int            `json:"text_chunks"`
	TableChunks int            `json:"table_chunks"`
	ImageChunks int            `json:"image_chunks"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// StatusReport is the server view returned by a one-shot status query.
type StatusReport struct {
	DocumentID  string         `json:"doc_id"`
	Status      DocumentStatus `json:"status"`
	TotalChunks int            `json:"total_chunks"`
	TextChunks  int            `json:"text_chunks"`
	TableChunks int            `json:"table_chunks"`
	ImageChunks int            `json:"image_chunks"`
	Error       *string        `json:"error,omitempty"`
}

// ApplyStatus overwrites the document fields with the latest server view.
func (d *Document) ApplyStatus(report StatusReport) {
	d.Status = report.Status
	d.TotalChunks = report.TotalChunks
	d.TextChunks = report.TextChunks
	d.TableChunks = report.TableChunks
	d.ImageChunks = report.ImageChunks
	if report.Error != nil {
		d.Error = *report.Error
	}
}

// UploadRequest describes a file submission and its metadata.
type UploadRequest struct {
	Path     string
	Filename string
	Company  string
	Year     int
	Quarter  string
}

// UploadReceipt is what the ingestion service returns for an accepted upload.
type UploadReceipt struct {
	DocumentID string `json:"doc_id"`
	Filename   string `json:"filename"`
	Company    string `json:"company"`
	Year       int    `json:"year"`
	Quarter    string `json:"quarter,omitempty"`
}

type DocumentFilter struct {
	Company string
	Year    int
}

func (f DocumentFilter) Match(doc Document) bool {
	if f.Company != "" && doc.Company != f.Company {
		return false
	}
	if f.Year != 0 && doc.Year != f.Year {
		return false
	}
	return true
}

// PollState tracks one document's status polling.
type PollState struct {
	DocumentID   string `json:"doc_id"`
	AttemptsMade int    `json:"attempts_made"`
	Active       bool   `json:"active"`
}

type DocumentEventKind string

const (
	EventCompleted DocumentEventKind = "completed"
	EventFailed    DocumentEventKind = "failed"
	EventTimedOut  DocumentEventKind = "timed_out"
)

// DocumentEvent is emitted when polling observes a terminal status.
type DocumentEvent struct {
	Kind     DocumentEventKind `json:"kind"`
	Document Document          `json:"document"`
	Message  string            `json:"message"`
	At       time.Time         `json:"at"`
}

// Summary is the one-line notification text for the event.
func (e DocumentEvent) Summary() string {
	name := e.Document.Filename
	if name == "" {
		name = e.Document.ID
	}
	switch e.Kind {
	case EventCompleted:
		return fmt.Sprintf("✅ %s processed: %d chunks", name, e.Document.TotalChunks)
	case EventFailed:
		return fmt.Sprintf("❌ %s failed: %s", name, e.Message)
	case EventTimedOut:
		return fmt.Sprintf("⌛ %s: %s", name, e.Message)
	default:
		return fmt.Sprintf("%s: %s", name, e.Kind)
	}
}

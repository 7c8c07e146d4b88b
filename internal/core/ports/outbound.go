package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// QueryService issues non-streaming queries.
type QueryService interface {
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}

// StreamOpener opens a streaming query and returns its raw body. A failure
// to open is reported as *domain.TransportError.
type StreamOpener interface {
	OpenStream(ctx context.Context, req domain.QueryRequest) (io.ReadCloser, error)
}

// DocumentService is the backend's document surface.
type DocumentService interface {
	Upload(ctx context.Context, req domain.UploadRequest, file io.Reader) (*domain.UploadReceipt, error)
	Status(ctx context.Context, documentID string) (*domain.StatusReport, error)
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// HealthProber runs the backend health probes.
type HealthProber interface {
	Health(ctx context.Context) domain.HealthReport
}

// DocumentNotifier receives terminal polling events.
type DocumentNotifier interface {
	NotifyDocument(ctx context.Context, event domain.DocumentEvent) error
}

// DocumentLedger persists the last known view of each document.
type DocumentLedger interface {
	Upsert(ctx context.Context, doc domain.Document) error
	ListByStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores exported artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// PDFInspector validates a local file before upload.
type PDFInspector interface {
	PageCount(path string) (int, error)
}

// Ticker is the subset of time.Ticker the poller depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers; tests inject a manual clock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// SpreadsheetWriter renders tabular exports.
type SpreadsheetWriter interface {
	WriteDocuments(w io.Writer, docs []domain.Document) error
	WriteEvidence(w io.Writer, answer *domain.Answer) error
}

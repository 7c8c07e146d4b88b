package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/ports"
)

const ledgerWriteTimeout = 5 * time.Second

// IngestUseCase validates and submits a PDF, then hands the accepted
// document to the poller.
type IngestUseCase struct {
	docs      ports.DocumentService
	inspector ports.PDFInspector
	registry  *DocumentRegistry
	poller    *Poller
	clock     ports.Clock
	ledger    ports.DocumentLedger
}

func NewIngestUseCase(
	docs ports.DocumentService,
	inspector ports.PDFInspector,
	registry *DocumentRegistry,
	poller *Poller,
	clock ports.Clock,
	ledger ports.DocumentLedger,
) *IngestUseCase {
	return &IngestUseCase{
		docs:      docs,
		inspector: inspector,
		registry:  registry,
		poller:    poller,
		clock:     clock,
		ledger:    ledger,
	}
}

func (uc *IngestUseCase) Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, error) {
	req, err := uc.validate(req)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(req.Path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open upload file", err)
	}
	defer file.Close()

	receipt, err := uc.docs.Upload(ctx, req, file)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	doc := domain.Document{
		ID:        receipt.DocumentID,
		Filename:  firstNonEmpty(receipt.Filename, req.Filename),
		Company:   firstNonEmpty(receipt.Company, req.Company),
		Year:      receipt.Year,
		Quarter:   firstNonEmpty(receipt.Quarter, req.Quarter),
		Status:    domain.StatusProcessing,
		CreatedAt: uc.clock.Now().UTC(),
	}
	if doc.Year == 0 {
		doc.Year = req.Year
	}
	uc.registry.Put(doc)
	uc.poller.Register(ctx, doc.ID)
	return &doc, nil
}

// Resume restarts polling for every document the ledger still holds as
// non-terminal. It returns the number of polls started.
func (uc *IngestUseCase) Resume(ctx context.Context) (int, error) {
	if uc.ledger == nil {
		return 0, nil
	}
	docs, err := uc.ledger.ListByStatus(ctx, domain.StatusPending, domain.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("load pending documents: %w", err)
	}
	started := 0
	for _, doc := range docs {
		uc.registry.Put(doc)
		if uc.poller.Register(ctx, doc.ID) {
			started++
		}
	}
	return started, nil
}

func (uc *IngestUseCase) validate(req domain.UploadRequest) (domain.UploadRequest, error) {
	req.Path = strings.TrimSpace(req.Path)
	req.Company = strings.TrimSpace(req.Company)
	req.Quarter = strings.TrimSpace(req.Quarter)

	switch {
	case req.Path == "":
		return req, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file is required"))
	case req.Company == "":
		return req, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("company is required"))
	case req.Year <= 0:
		return req, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("year is required"))
	case !strings.EqualFold(filepath.Ext(req.Path), ".pdf"):
		return req, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("only PDF files are supported: %s", filepath.Base(req.Path)))
	}
	if strings.TrimSpace(req.Filename) == "" {
		req.Filename = filepath.Base(req.Path)
	}

	if uc.inspector != nil {
		pages, err := uc.inspector.PageCount(req.Path)
		if err != nil {
			return req, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", err)
		}
		if pages == 0 {
			return req, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("pdf has no pages"))
		}
	}
	return req, nil
}

// LedgerSync mirrors registry changes into the ledger. Write failures are
// logged and otherwise ignored.
func LedgerSync(ledger ports.DocumentLedger, logger *slog.Logger) DocumentListener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(doc domain.Document, removed bool) {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
		defer cancel()

		var err error
		if removed {
			err = ledger.Delete(ctx, doc.ID)
		} else {
			err = ledger.Upsert(ctx, doc)
		}
		if err != nil {
			logger.Warn("ledger_write_failed", "doc_id", doc.ID, "removed", removed, "error", err)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

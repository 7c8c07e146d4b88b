package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/hyena-client/internal/core/citation"
	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/ports"
	"github.com/kirillkom/hyena-client/internal/core/render"
)

type ExportUseCase struct {
	registry *DocumentRegistry
	sheets   ports.SpreadsheetWriter
	storage  ports.ObjectStorage
	clock    ports.Clock
}

func NewExportUseCase(
	registry *DocumentRegistry,
	sheets ports.SpreadsheetWriter,
	storage ports.ObjectStorage,
	clock ports.Clock,
) *ExportUseCase {
	return &ExportUseCase{
		registry: registry,
		sheets:   sheets,
		storage:  storage,
		clock:    clock,
	}
}

// ExportDocuments writes the filtered document list as a workbook and returns
// its storage key.
func (uc *ExportUseCase) ExportDocuments(ctx context.Context, filter domain.DocumentFilter) (string, error) {
	var buf bytes.Buffer
	if err := uc.sheets.WriteDocuments(&buf, uc.registry.List(filter)); err != nil {
		return "", fmt.Errorf("build documents workbook: %w", err)
	}
	key := fmt.Sprintf("documents_%s.xlsx", uc.clock.Now().UTC().Format("20060102T150405Z"))
	if err := uc.storage.Save(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("save documents workbook: %w", err)
	}
	return key, nil
}

// ExportAnswer stores the rendered answer page and, when it has sources, an
// evidence workbook. It returns the keys written.
func (uc *ExportUseCase) ExportAnswer(ctx context.Context, answer *domain.Answer) ([]string, error) {
	if answer == nil || answer.State != domain.AnswerComplete {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export answer", errors.New("answer is not complete"))
	}
	idx, err := citation.New(answer.Sources)
	if err != nil {
		return nil, err
	}

	base := sanitizeFilename(answer.ID)
	page := AnswerPage(answer, idx)
	pageKey := base + ".html"
	if err := uc.storage.Save(ctx, pageKey, strings.NewReader(page)); err != nil {
		return nil, fmt.Errorf("save answer page: %w", err)
	}
	keys := []string{pageKey}

	if idx.Len() == 0 {
		return keys, nil
	}
	var buf bytes.Buffer
	if err := uc.sheets.WriteEvidence(&buf, answer); err != nil {
		return keys, fmt.Errorf("build evidence workbook: %w", err)
	}
	sheetKey := base + "_evidence.xlsx"
	if err := uc.storage.Save(ctx, sheetKey, &buf); err != nil {
		return keys, fmt.Errorf("save evidence workbook: %w", err)
	}
	return append(keys, sheetKey), nil
}

// AnswerPage is the answer bubble markup followed by its citation strip and
// one source card per evidence record.
func AnswerPage(answer *domain.Answer, idx *citation.Index) string {
	var b strings.Builder
	b.WriteString(`<div class="msg-bubble">`)
	b.WriteString(render.Render(answer.RawText()))
	b.WriteString(`</div>`)
	b.WriteString(citation.RenderMarkersHTML(idx.Markers()))
	for _, ev := range idx.Sources() {
		b.WriteString(citation.RenderSourceCard(ev))
	}
	return b.String()
}

// sanitizeFilename maps an answer id onto a safe storage key stem.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "export"
	}
	return base
}

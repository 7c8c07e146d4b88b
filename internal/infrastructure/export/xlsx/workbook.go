package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

const (
	DocumentsSheet = "Documents"
	EvidenceSheet  = "Evidence"
	AnswerSheet    = "Answer"
)

var (
	documentHeader = []any{"ID", "Filename", "Company", "Year", "Quarter", "Status", "Total chunks", "Text", "Tables", "Images", "Error", "Created at"}
	evidenceHeader = []any{"Index", "Type", "Page", "Company", "Score", "Preview"}
)

// Writer renders document lists and answer evidence as XLSX workbooks.
type Writer struct{}

func New() *Writer {
	return &Writer{}
}

func (w *Writer) WriteDocuments(out io.Writer, docs []domain.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DocumentsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		created := ""
		if !d.CreatedAt.IsZero() {
			created = d.CreatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []any{
			d.ID, d.Filename, d.Company, d.Year, d.Quarter, string(d.Status),
			d.TotalChunks, d.TextChunks, d.TableChunks, d.ImageChunks, d.Error, created,
		})
	}
	if err := writeTable(f, DocumentsSheet, documentHeader, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(DocumentsSheet, "A", "C", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return write(f, out)
}

func (w *Writer) WriteEvidence(out io.Writer, answer *domain.Answer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AnswerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{
		{"Question", answer.Question},
		{"Answer", answer.RawText()},
		{"Fallback", answer.FellBack},
	}
	for i, row := range summary {
		if err := setRow(f, AnswerSheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(EvidenceSheet); err != nil {
		return fmt.Errorf("create evidence sheet: %w", err)
	}
	rows := make([][]any, 0, len(answer.Sources))
	for _, ev := range answer.Sources {
		rows = append(rows, []any{ev.Index, string(ev.Kind), ev.Page.String(), ev.Company, ev.Score, ev.Preview})
	}
	if err := writeTable(f, EvidenceSheet, evidenceHeader, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(EvidenceSheet, "F", "F", 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return write(f, out)
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func write(f *excelize.File, out io.Writer) error {
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

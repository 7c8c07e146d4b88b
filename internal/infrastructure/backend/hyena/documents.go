package hyena

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/infrastructure/resilience"
)

const (
	opUpload = "upload_document"
	opStatus = "document_status"
	opList   = "list_documents"
	opGet    = "get_document"
	opDelete = "delete_document"
)

// Upload sends the file as multipart form data. It is never retried since the
// body is consumed once and every accepted upload starts server-side work.
func (c *Client) Upload(ctx context.Context, req domain.UploadRequest, file io.Reader) (*domain.UploadReceipt, error) {
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}

	var receipt domain.UploadReceipt
	err := c.exec.Execute(ctx, opUpload, func(callCtx context.Context) error {
		pr, pw := io.Pipe()
		form := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeUploadForm(form, filename, req, file))
		}()

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/documents/upload", pr)
		if err != nil {
			_ = pr.CloseWithError(err)
			return fmt.Errorf("create %s request: %w", opUpload, err)
		}
		httpReq.Header.Set("Content-Type", form.FormDataContentType())
		err = c.do(httpReq, &receipt, opUpload)
		_ = pr.Close()
		return err
	}, resilience.Once(resilience.ClassifyTransport))
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func writeUploadForm(form *multipart.Writer, filename string, req domain.UploadRequest, file io.Reader) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy upload body: %w", err)
	}
	if err := form.WriteField("company", req.Company); err != nil {
		return err
	}
	if err := form.WriteField("year", strconv.Itoa(req.Year)); err != nil {
		return err
	}
	if req.Quarter != "" {
		if err := form.WriteField("quarter", req.Quarter); err != nil {
			return err
		}
	}
	return form.Close()
}

func (c *Client) Status(ctx context.Context, documentID string) (*domain.StatusReport, error) {
	var report domain.StatusReport
	err := c.exec.Execute(ctx, opStatus, func(callCtx context.Context) error {
		return c.getJSON(callCtx, "/documents/"+url.PathEscape(documentID)+"/status", &report, opStatus)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.WrapTemporary(opStatus, err)
	}
	if report.DocumentID == "" {
		report.DocumentID = documentID
	}
	return &report, nil
}

func (c *Client) List(ctx context.Context) ([]domain.Document, error) {
	var items []documentItem
	err := c.exec.Execute(ctx, opList, func(callCtx context.Context) error {
		return c.getJSON(callCtx, "/documents/", &items, opList)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.WrapTemporary(opList, err)
	}
	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, item.toDomain())
	}
	return docs, nil
}

func (c *Client) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	var item documentItem
	err := c.exec.Execute(ctx, opGet, func(callCtx context.Context) error {
		return c.getJSON(callCtx, "/documents/"+url.PathEscape(documentID), &item, opGet)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.WrapTemporary(opGet, err)
	}
	doc := item.toDomain()
	return &doc, nil
}

func (c *Client) Delete(ctx context.Context, documentID string) error {
	err := c.exec.Execute(ctx, opDelete, func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodDelete, c.baseURL+"/documents/"+url.PathEscape(documentID), nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", opDelete, err)
		}
		return c.do(req, nil, opDelete)
	}, resilience.ClassifyTransport)
	return resilience.WrapTemporary(opDelete, err)
}

type documentItem struct {
	ID          string     `json:"doc_id"`
	Filename    string     `json:"filename"`
	Company     string     `json:"company"`
	Year        int        `json:"year"`
	Quarter     *string    `json:"quarter"`
	Status      string     `json:"status"`
	TotalChunks int        `json:"total_chunks"`
	TextChunks  int        `json:"text_chunks"`
	TableChunks int        `json:"table_chunks"`
	ImageChunks int        `json:"image_chunks"`
	Error       *string    `json:"error"`
	CreatedAt   serverTime `json:"created_at"`
}

func (d documentItem) toDomain() domain.Document {
	doc := domain.Document{
		ID:          d.ID,
		Filename:    d.Filename,
		Company:     d.Company,
		Year:        d.Year,
		Status:      domain.DocumentStatus(strings.ToLower(strings.TrimSpace(d.Status))),
		TotalChunks: d.TotalChunks,
		TextChunks:  d.TextChunks,
		TableChunks: d.TableChunks,
		ImageChunks: d.ImageChunks,
		CreatedAt:   time.Time(d.CreatedAt),
	}
	if d.Quarter != nil {
		doc.Quarter = *d.Quarter
	}
	if d.Error != nil {
		doc.Error = *d.Error
	}
	return doc
}

// serverTime accepts RFC 3339 as well as the zone-less timestamps the
// backend emits for UTC values.
type serverTime time.Time

var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *serverTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range serverTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = serverTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("decode timestamp %q: unsupported layout", raw)
}

package hyena

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/infrastructure/resilience"
)

const (
	opQuery  = "query"
	opStream = "query_stream"
)

// Client talks to the question-answering backend under a versioned base URL
// such as http://localhost:8000/api/v1.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	exec         *resilience.Executor
}

func New(baseURL string, timeout time.Duration, exec *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), nil, nil)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		// Streams are bounded by the caller's context only.
		streamClient: &http.Client{},
		exec:         exec,
	}
}

// Query runs a non-streaming query. It is never retried.
func (c *Client) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	var result domain.QueryResult
	err := c.exec.Execute(ctx, opQuery, func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/query/", req, &result, opQuery)
	}, resilience.Once(resilience.ClassifyTransport))
	if err != nil {
		return nil, asTransportError(opQuery, err)
	}
	return &result, nil
}

// OpenStream starts a streaming query and hands back the open body. A
// non-success status is reported before any token is read.
func (c *Client) OpenStream(ctx context.Context, req domain.QueryRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", opStream, err)
	}

	var stream io.ReadCloser
	err = c.exec.Execute(ctx, opStream, func(callCtx context.Context) error {
		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/query/stream", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", opStream, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.streamClient.Do(httpReq)
		if err != nil {
			return &domain.TransportError{Operation: opStream, Err: err}
		}
		if resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return newStatusError(opStream, resp)
		}
		stream = resp.Body
		return nil
	}, resilience.Once(resilience.ClassifyTransport))
	if err != nil {
		return nil, asTransportError(opStream, err)
	}
	return stream, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, operation)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	return c.do(req, out, operation)
}

func (c *Client) do(req *http.Request, out any, operation string) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(operation, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// newStatusError builds a TransportError from a non-success response,
// preferring the backend's {"detail": ...} message.
func newStatusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := extractDetail(raw)
	if detail == "" {
		detail = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	}
	err := &domain.TransportError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Detail:     detail,
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.WrapError(domain.ErrDocumentNotFound, operation, err)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	return err
}

func extractDetail(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &body); err != nil || len(body.Detail) == 0 {
		return string(trimmed)
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}
	// Validation errors arrive as a list of objects.
	return string(body.Detail)
}

// asTransportError makes sure failures that must trigger a fallback carry a
// *domain.TransportError, including open breakers.
func asTransportError(operation string, err error) error {
	if domain.IsStreamFailure(err) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return &domain.TransportError{Operation: operation, Err: domain.WrapError(domain.ErrTemporary, operation, err)}
	}
	return err
}

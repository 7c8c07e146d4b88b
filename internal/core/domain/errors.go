package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")
	ErrIllegalState     = errors.New("illegal answer state transition")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// TransportError reports a request that could not be completed or returned a
// non-success status.
type TransportError struct {
	Operation  string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: http %d: %s", e.Operation, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http %d", e.Operation, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	default:
		return e.Operation + ": transport error"
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StreamProtocolError is raised when the stream carries an explicit error payload.
type StreamProtocolError struct {
	Message string
}

func (e *StreamProtocolError) Error() string {
	if e == nil {
		return "stream protocol error"
	}
	return "stream error: " + e.Message
}

// IsStreamFailure reports whether err should trigger the non-streaming fallback.
func IsStreamFailure(err error) bool {
	var transportErr *TransportError
	var protocolErr *StreamProtocolError
	return errors.As(err, &transportErr) || errors.As(err, &protocolErr)
}

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

const (
	dataPrefix = "data: "
	sentinel   = "[DONE]"

	defaultReadSize = 4096
)

// Sink receives tokens in arrival order. Returning an error aborts the stream.
type Sink func(token string) error

// MalformedFramePolicy decides what happens to a data line whose payload is
// not a decodable JSON object.
type MalformedFramePolicy int

const (
	// SkipMalformed drops the frame and keeps reading.
	SkipMalformed MalformedFramePolicy = iota
	// FailOnMalformed raises a StreamProtocolError.
	FailOnMalformed
)

type Options struct {
	ReadSize int
	Policy   MalformedFramePolicy
	// OnMalformed is called for every malformed frame regardless of policy.
	OnMalformed func(payload string, err error)
	// OnDiscard is called with unterminated trailing data at end of body.
	OnDiscard func(rest string)
}

// Consumer parses the line protocol of the streaming query endpoint:
//
//	data: {"token":"Hel"}
//	data: {"token":"lo"}
//	data: [DONE]
//
// Lines without the data prefix are ignored. A body that ends without the
// sentinel still counts as a successful stream.
type Consumer struct {
	opts Options
}

func NewConsumer(opts Options) *Consumer {
	if opts.ReadSize <= 0 {
		opts.ReadSize = defaultReadSize
	}
	return &Consumer{opts: opts}
}

type frame struct {
	Token *string `json:"token"`
	Error *string `json:"error"`
}

// Consume reads body until the sentinel or end of body. Read failures are
// returned as *domain.TransportError, error payloads as
// *domain.StreamProtocolError.
func (c *Consumer) Consume(ctx context.Context, body io.Reader, sink Sink) error {
	framer := NewFramer()
	buf := make([]byte, c.opts.ReadSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				done, err := c.handleLine(line, sink)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			if rest := framer.Close(); rest != "" && c.opts.OnDiscard != nil {
				c.opts.OnDiscard(rest)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.TransportError{Operation: "read stream", Err: readErr}
	}
}

func (c *Consumer) handleLine(line string, sink Sink) (bool, error) {
	if !strings.HasPrefix(line, dataPrefix) {
		return false, nil
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == sentinel {
		return true, nil
	}

	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		if c.opts.OnMalformed != nil {
			c.opts.OnMalformed(payload, err)
		}
		if c.opts.Policy == FailOnMalformed {
			return false, &domain.StreamProtocolError{Message: "malformed frame: " + err.Error()}
		}
		return false, nil
	}

	if f.Token != nil && *f.Token != "" {
		if err := sink(*f.Token); err != nil {
			return false, err
		}
	}
	if f.Error != nil && *f.Error != "" {
		return false, &domain.StreamProtocolError{Message: *f.Error}
	}
	return false, nil
}

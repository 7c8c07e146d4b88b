// Package stream turns a chunked streaming-query body into ordered answer tokens.
package stream

import (
	"bytes"
	"strings"
)

// Framer splits successive body chunks into complete lines.
//
// Splitting happens on raw bytes: 0x0A never occurs inside a multi-byte UTF-8
// sequence, so a rune cut by a chunk boundary simply stays in the buffer until
// the rest of its line arrives. Lines are only decoded once complete, which
// makes the output independent of where the chunk boundaries fall.
type Framer struct {
	buf []byte
}

func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk and returns the lines it completed, in order. A trailing
// carriage return is stripped from every line.
func (f *Framer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	f.buf = append(f.buf, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, decodeLine(f.buf[:idx]))
		f.buf = f.buf[idx+1:]
	}

	if len(f.buf) == 0 {
		f.buf = nil
	} else if len(lines) > 0 {
		// Compact so the retained segment does not pin the consumed prefix.
		f.buf = append([]byte(nil), f.buf...)
	}
	return lines
}

// Close ends the stream. The unterminated remainder is discarded and returned
// only so the caller can log it; it is never treated as a line.
func (f *Framer) Close() string {
	rest := string(f.buf)
	f.buf = nil
	return rest
}

// Pending reports how many bytes are buffered without a terminator.
func (f *Framer) Pending() int {
	return len(f.buf)
}

func decodeLine(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

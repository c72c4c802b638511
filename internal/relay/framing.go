// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relay

import (
	"bytes"
	"encoding/json"
)

// DefaultMaxLineBytes bounds a buffered output line when no limit is set.
// It sits above the upstream client's response cap so any answer the
// worker can build fits on one line.
const DefaultMaxLineBytes = 80 << 20

// maxRawBytes bounds the raw output kept for diagnostics.
const maxRawBytes = 64 << 10

// Framer is an io.Writer that splits worker output into lines as it
// arrives and remembers the last non-empty line that parses as JSON.
// A line longer than the limit is discarded and also clears any earlier
// candidate, since the answer it displaced cannot be recovered. A bounded
// tail of the raw output is kept for diagnostics.
type Framer struct {
	maxLine   int
	line      []byte
	overflow  bool
	oversized bool
	last      json.RawMessage
	raw       *tailBuffer
	n         int64
}

// NewFramer returns a Framer that buffers at most maxLine bytes per line.
func NewFramer(maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &Framer{maxLine: maxLine, raw: newTailBuffer(min(maxLine, maxRawBytes))}
}

// Write consumes p. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	n := len(p)
	f.n += int64(n)
	f.raw.Write(p)

	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			f.appendLine(p)
			break
		}
		f.appendLine(p[:i])
		f.endLine()
		p = p[i+1:]
	}
	return n, nil
}

// Close frames a trailing line that had no newline.
func (f *Framer) Close() error {
	if len(f.line) > 0 || f.overflow {
		f.endLine()
	}
	return nil
}

// Last returns the last JSON line seen, or nil.
func (f *Framer) Last() json.RawMessage { return f.last }

// Len is the total number of bytes written.
func (f *Framer) Len() int64 { return f.n }

// Oversized reports whether a line after the last JSON line exceeded the
// limit.
func (f *Framer) Oversized() bool { return f.oversized }

// MaxLine is the per-line limit.
func (f *Framer) MaxLine() int { return f.maxLine }

// Raw returns the retained tail of the output.
func (f *Framer) Raw() string { return f.raw.String() }

func (f *Framer) appendLine(b []byte) {
	if f.overflow {
		return
	}
	if len(f.line)+len(b) > f.maxLine {
		f.overflow = true
		f.line = f.line[:0]
		return
	}
	f.line = append(f.line, b...)
}

func (f *Framer) endLine() {
	if f.overflow {
		f.last = nil
		f.oversized = true
	} else if line := bytes.TrimSpace(f.line); len(line) > 0 && json.Valid(line) {
		f.last = bytes.Clone(line)
		f.oversized = false
	}
	f.line = f.line[:0]
	f.overflow = false
}

// LastJSONLine frames a complete output buffer.
func LastJSONLine(out []byte) json.RawMessage {
	f := NewFramer(len(out) + 1)
	f.Write(out)
	f.Close()
	return f.Last()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max  int
	buf  []byte
	lost bool
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.max {
		t.lost = t.lost || len(t.buf) > 0 || len(p) > t.max
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return n, nil
	}
	if over := len(t.buf) + len(p) - t.max; over > 0 {
		t.buf = t.buf[over:]
		t.lost = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	if t.lost {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}

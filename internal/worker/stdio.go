// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pdiddy/seo-relay/internal/catalog"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// MaxLineBytes is the default bound on a single input line.
const MaxLineBytes = 16 << 20

// Serve reads newline-delimited request envelopes from in and writes one
// response envelope line to out per request, strictly in input order.
// When announce is set, an initialize envelope is written before any input
// is read. A line over the size limit is consumed to its end and answered
// with an error envelope. Serve returns nil on EOF.
func (p *Processor) Serve(ctx context.Context, in io.Reader, out io.Writer, announce bool) error {
	w := bufio.NewWriter(out)

	if announce {
		if err := writeEnvelope(w, catalog.Announcement("")); err != nil {
			return err
		}
	}

	r := bufio.NewReaderSize(in, 64*1024)
	for {
		raw, tooLong, readErr := readLine(r, p.maxLine)
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("reading requests: %w", readErr)
		}

		var resp types.Response
		line := bytes.TrimSpace(raw)
		switch {
		case tooLong:
			p.log.Warnw("request line too long", "limit", p.maxLine)
			resp = types.ErrorResponse("", fmt.Sprintf("request line exceeds %d bytes", p.maxLine), nil)
		case len(line) == 0:
			if readErr == io.EOF {
				return nil
			}
			continue
		default:
			resp = p.Handle(ctx, line)
		}

		if err := writeEnvelope(w, resp); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// readLine reads through the next newline. A line longer than limit is
// drained and reported as too long with no content.
func readLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			content := chunk
			if err == nil {
				content = bytes.TrimSuffix(bytes.TrimSuffix(chunk, []byte("\n")), []byte("\r"))
			}
			if len(line)+len(content) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, tooLong, err
	}
}

// writeEnvelope encodes resp as one line and flushes it immediately so the
// reader sees every answer as soon as it is ready.
func writeEnvelope(w *bufio.Writer, resp types.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		// Only a RawMessage the upstream returned invalid could fail here.
		data, _ = json.Marshal(types.ErrorResponse(resp.ID, fmt.Sprintf("encoding response: %v", err), nil))
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

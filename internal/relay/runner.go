// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relay forwards request bodies to a worker and returns its
// response envelope. A Runner executes one request; Relay adds admission
// control, a deadline and the exchange log on top.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/seo-relay/pkg/types"
)

// Result is one framed worker answer.
type Result struct {
	// Body is the response envelope line.
	Body json.RawMessage

	// ExitCode is the worker exit status; always 0 in-process.
	ExitCode int

	// Stderr is the retained tail of the worker's diagnostics.
	Stderr string
}

// Runner executes one request body against a worker.
type Runner interface {
	Name() string
	Run(ctx context.Context, body []byte) (Result, error)
}

// ExitError reports a worker that exited non-zero without any output.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("worker exited with code %d", e.Code)
}

// FramingError reports worker output with no parsable JSON line.
type FramingError struct {
	Raw string

	// Reason overrides the default explanation.
	Reason string
}

func (e *FramingError) Error() string {
	return "Failed to parse worker response"
}

// Details explains why no answer was found.
func (e *FramingError) Details() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "no line of worker output parsed as JSON"
}

// Handler answers one request line with an envelope.
type Handler interface {
	Handle(ctx context.Context, line []byte) types.Response
}

// InProcess runs requests on the calling goroutine through a Handler.
type InProcess struct {
	handler Handler
}

// NewInProcess returns a runner calling h directly.
func NewInProcess(h Handler) *InProcess {
	return &InProcess{handler: h}
}

// Name implements Runner.
func (r *InProcess) Name() string { return string(types.RunnerInProcess) }

// Run implements Runner.
func (r *InProcess) Run(ctx context.Context, body []byte) (Result, error) {
	resp := r.handler.Handle(ctx, body)
	data, err := json.Marshal(resp)
	if err != nil {
		return Result{}, fmt.Errorf("encoding response: %w", err)
	}
	return Result{Body: data}, nil
}

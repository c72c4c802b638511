// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/seo-relay/internal/history"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// Recorder persists relayed exchanges.
type Recorder interface {
	Record(ctx context.Context, e history.Exchange) error
}

// Relay bounds and times every request it forwards to its runner.
type Relay struct {
	runner  Runner
	sem     *semaphore.Weighted
	timeout time.Duration
	history Recorder
	log     *zap.SugaredLogger
}

// Option configures a Relay.
type Option func(*Relay)

// WithRecorder logs every exchange to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Relay) { r.history = rec }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Relay) { r.log = l }
}

// New returns a Relay over runner.
func New(runner Runner, cfg types.RelayConfig, opts ...Option) *Relay {
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	r := &Relay{
		runner:  runner,
		sem:     semaphore.NewWeighted(int64(limit)),
		timeout: cfg.RequestTimeout,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Runner returns the underlying runner.
func (r *Relay) Runner() Runner { return r.runner }

// Forward relays one request body and returns the worker's envelope.
// Errors are *ExitError, *FramingError, or context and spawn failures.
func (r *Relay) Forward(ctx context.Context, body []byte) (json.RawMessage, error) {
	start := time.Now()
	reqType := peekString(body, "type")

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a worker slot: %w", err)
	}
	defer r.sem.Release(1)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.runner.Run(ctx, body)

	ex := history.Exchange{
		At:          start,
		Runner:      r.runner.Name(),
		RequestType: reqType,
		ExitCode:    res.ExitCode,
		Duration:    time.Since(start),
	}
	var (
		exitErr    *ExitError
		framingErr *FramingError
	)
	switch {
	case errors.As(err, &exitErr):
		ex.Outcome, ex.Error = history.OutcomeExitError, err.Error()
		r.log.Warnw("worker failed", "type", reqType, "code", exitErr.Code, "stderr", exitErr.Stderr)
	case errors.As(err, &framingErr):
		ex.Outcome, ex.Error = history.OutcomeFramingError, err.Error()
		r.log.Warnw("worker output not parsable", "type", reqType, "raw", framingErr.Raw)
	case err != nil:
		ex.Outcome, ex.Error = history.OutcomeFailed, err.Error()
		r.log.Errorw("relay failed", "type", reqType, "error", err)
	default:
		ex.ResponseID = peekString(res.Body, "id")
		ex.Outcome = peekString(res.Body, "status")
		ex.Error = peekString(res.Body, "error")
		if res.ExitCode != 0 {
			r.log.Warnw("worker exited non-zero but answered", "type", reqType, "code", res.ExitCode, "stderr", res.Stderr)
		}
		r.log.Debugw("relayed", "type", reqType, "id", ex.ResponseID, "status", ex.Outcome, "elapsed", ex.Duration)
	}

	if r.history != nil {
		// The exchange is logged even when the caller has gone away.
		if recErr := r.history.Record(context.WithoutCancel(ctx), ex); recErr != nil {
			r.log.Warnw("recording exchange failed", "error", recErr)
		}
	}

	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// peekString reads a top-level string field from a JSON object, or "".
func peekString(data []byte, key string) string {
	var m map[string]json.RawMessage
	if json.Unmarshal(data, &m) != nil {
		return ""
	}
	var s string
	if json.Unmarshal(m[key], &s) != nil {
		return ""
	}
	return s
}

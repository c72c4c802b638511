// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worker implements the request processor: one request envelope in,
// one upstream call, one response envelope out. Handle is the typed call
// used in-process; Serve wraps it in a newline-delimited stdio loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/seo-relay/internal/cache"
	"github.com/pdiddy/seo-relay/internal/catalog"
	"github.com/pdiddy/seo-relay/internal/upstream"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// Upstream is the provider API as seen by the processor.
type Upstream interface {
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	PostTask(ctx context.Context, path string, body any) (string, error)
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// ResultCache stores upstream results by key.
type ResultCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, result json.RawMessage) error
}

// Processor dispatches request envelopes onto upstream calls. It holds no
// per-request state and is safe for concurrent use.
type Processor struct {
	upstream  Upstream
	cache     ResultCache
	log       *zap.SugaredLogger
	taskDelay time.Duration
	newID     func() string
	maxLine   int
}

// Option configures a Processor.
type Option func(*Processor)

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(p *Processor) { p.cache = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Processor) { p.log = l }
}

// WithTaskDelay sets the wait between posting an asynchronous task and
// fetching its summary.
func WithTaskDelay(d time.Duration) Option {
	return func(p *Processor) { p.taskDelay = d }
}

// WithIDGenerator replaces the UUID generator. Tests use it for stable IDs.
func WithIDGenerator(fn func() string) Option {
	return func(p *Processor) { p.newID = fn }
}

// WithMaxLineBytes bounds a single stdio input line.
func WithMaxLineBytes(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxLine = n
		}
	}
}

// New returns a Processor calling up.
func New(up Upstream, opts ...Option) *Processor {
	p := &Processor{
		upstream:  up,
		log:       zap.NewNop().Sugar(),
		taskDelay: 5 * time.Second,
		newID:     func() string { return uuid.NewString() },
		maxLine:   MaxLineBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes one raw request line and always returns an envelope.
// Malformed input yields an error envelope without an id.
func (p *Processor) Handle(ctx context.Context, line []byte) (resp types.Response) {
	req, err := types.DecodeRequest(line)
	if err != nil {
		p.log.Warnw("malformed request", "error", err)
		return types.ErrorResponse("", err.Error(), nil)
	}
	return p.Dispatch(ctx, req)
}

// Dispatch processes a decoded request and always returns an envelope.
func (p *Processor) Dispatch(ctx context.Context, req types.Request) (resp types.Response) {
	id := p.newID()
	typ := req.Type()

	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("request handler panicked", "type", typ, "id", id, "panic", r)
			resp = types.ErrorResponse(id, fmt.Sprintf("internal error: %v", r), nil)
		}
	}()

	if typ == types.TypeInitialize {
		return catalog.Announcement(id)
	}

	entry, ok := catalog.Lookup(typ)
	if !ok {
		p.log.Infow("unsupported request type", "type", typ, "id", id)
		return types.ErrorResponse(id, types.MsgUnsupportedType, nil)
	}

	start := time.Now()
	results, err := p.call(ctx, entry, req)
	if err != nil {
		p.log.Warnw("upstream call failed", "type", typ, "id", id, "error", err, "elapsed", time.Since(start))
		return types.ErrorResponse(id, err.Error(), upstream.DetailsOf(err))
	}
	p.log.Debugw("upstream call succeeded", "type", typ, "id", id, "elapsed", time.Since(start))

	return types.Response{
		Type:    typ,
		ID:      id,
		Results: results,
		Status:  types.StatusSuccess,
	}
}

func (p *Processor) call(ctx context.Context, entry catalog.Entry, req types.Request) (json.RawMessage, error) {
	body := entry.Build(req)

	var key string
	if p.cache != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		key = cache.Key(entry.Path, encoded)
		if hit, ok, err := p.cache.Get(ctx, key); err != nil {
			p.log.Warnw("cache read failed", "error", err)
		} else if ok {
			p.log.Debugw("cache hit", "type", entry.Type)
			return hit, nil
		}
	}

	var (
		results json.RawMessage
		err     error
	)
	if entry.Async() {
		results, err = p.runTask(ctx, entry, body)
	} else {
		results, err = p.upstream.Post(ctx, entry.Path, body)
	}
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, results); err != nil {
			p.log.Warnw("cache write failed", "error", err)
		}
	}
	return results, nil
}

// runTask posts an asynchronous task, waits the fixed delay, and fetches
// the summary. There is no polling: a task still running after the delay
// returns whatever the summary reports at that moment.
func (p *Processor) runTask(ctx context.Context, entry catalog.Entry, body map[string]any) (json.RawMessage, error) {
	taskID, err := p.upstream.PostTask(ctx, entry.Path, body)
	if err != nil {
		return nil, err
	}

	p.log.Debugw("task posted", "type", entry.Type, "task", taskID, "delay", p.taskDelay)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.taskDelay):
	}

	return p.upstream.Get(ctx, entry.SummaryPath+taskID)
}

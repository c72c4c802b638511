// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/seo-relay/internal/history"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// echoHandler answers with the request's own "tag" so callers can verify
// they got their own result back.
type echoHandler struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (h *echoHandler) Handle(_ context.Context, line []byte) types.Response {
	n := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(h.delay)

	req, err := types.DecodeRequest(line)
	if err != nil {
		return types.ErrorResponse("", err.Error(), nil)
	}
	results, _ := json.Marshal([]string{req.String("tag")})
	return types.Response{Type: req.Type(), ID: "id-" + req.String("tag"), Results: results, Status: types.StatusSuccess}
}

type memRecorder struct {
	mu   sync.Mutex
	seen []history.Exchange
}

func (m *memRecorder) Record(_ context.Context, e history.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, e)
	return nil
}

func relayConfig(limit int) types.RelayConfig {
	cfg := types.DefaultConfig().Relay
	cfg.MaxConcurrent = limit
	return cfg
}

func TestForwardInProcess(t *testing.T) {
	rec := &memRecorder{}
	r := New(NewInProcess(&echoHandler{}), relayConfig(4), WithRecorder(rec))

	body, err := r.Forward(context.Background(), []byte(`{"type":"dataforseo_serp","tag":"a"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"dataforseo_serp","id":"id-a","results":["a"],"status":"success"}`, string(body))

	require.Len(t, rec.seen, 1)
	assert.Equal(t, "inprocess", rec.seen[0].Runner)
	assert.Equal(t, "dataforseo_serp", rec.seen[0].RequestType)
	assert.Equal(t, "id-a", rec.seen[0].ResponseID)
	assert.Equal(t, types.StatusSuccess, rec.seen[0].Outcome)
}

func TestForwardConcurrentRequestsGetOwnResults(t *testing.T) {
	h := &echoHandler{delay: 5 * time.Millisecond}
	const limit = 3
	r := New(NewInProcess(h), relayConfig(limit))

	const n = 24
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag := fmt.Sprintf("req-%d", i)
			body, err := r.Forward(context.Background(), []byte(`{"type":"dataforseo_serp","tag":"`+tag+`"}`))
			if err != nil {
				errs <- err
				return
			}
			var resp types.Response
			if err := json.Unmarshal(body, &resp); err != nil {
				errs <- err
				return
			}
			if resp.ID != "id-"+tag {
				errs <- fmt.Errorf("request %s got response %s", tag, resp.ID)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.LessOrEqual(t, h.peak.Load(), int32(limit))
}

type scriptedRunner struct {
	res Result
	err error
}

func (s scriptedRunner) Name() string { return "process" }
func (s scriptedRunner) Run(context.Context, []byte) (Result, error) {
	return s.res, s.err
}

func TestForwardRecordsFailures(t *testing.T) {
	tests := []struct {
		name    string
		runner  scriptedRunner
		outcome string
	}{
		{"exit", scriptedRunner{res: Result{ExitCode: 2}, err: &ExitError{Code: 2, Stderr: "bad"}}, history.OutcomeExitError},
		{"framing", scriptedRunner{err: &FramingError{Raw: "junk"}}, history.OutcomeFramingError},
		{"spawn", scriptedRunner{err: errors.New("no such file")}, history.OutcomeFailed},
		{"envelope error", scriptedRunner{res: Result{Body: json.RawMessage(`{"type":"error","error":"Unsupported request type","status":"error"}`)}}, types.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			r := New(tt.runner, relayConfig(1), WithRecorder(rec))

			_, err := r.Forward(context.Background(), []byte(`{"type":"dataforseo_app_data"}`))
			if tt.runner.err != nil {
				assert.ErrorIs(t, err, tt.runner.err)
			} else {
				assert.NoError(t, err)
			}

			require.Len(t, rec.seen, 1)
			assert.Equal(t, tt.outcome, rec.seen[0].Outcome)
			assert.Equal(t, "dataforseo_app_data", rec.seen[0].RequestType)
			assert.Equal(t, tt.runner.res.ExitCode, rec.seen[0].ExitCode)
		})
	}
}

type blockingRunner struct{ started chan struct{} }

func (b blockingRunner) Name() string { return "process" }
func (b blockingRunner) Run(ctx context.Context, _ []byte) (Result, error) {
	close(b.started)
	<-ctx.Done()
	return Result{}, ctx.Err()
}

func TestForwardHonoursTimeout(t *testing.T) {
	cfg := relayConfig(1)
	cfg.RequestTimeout = 20 * time.Millisecond
	r := New(blockingRunner{started: make(chan struct{})}, cfg)

	_, err := r.Forward(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForwardWaitsForSlot(t *testing.T) {
	br := blockingRunner{started: make(chan struct{})}
	r := New(br, relayConfig(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Forward(ctx, []byte(`{}`))
	<-br.started

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	_, err := r.Forward(waitCtx, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waiting for a worker slot")
}

func TestOSExecutor(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	p, err := NewProcess([]string{sh, "-c", `echo booting; cat; echo oops >&2; exit 2`}, types.Credentials{}, 1024)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), []byte(`{"status":"success"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"status":"success"}`, string(res.Body))
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)

	p, err = NewProcess([]string{sh, "-c", `echo missing credentials >&2; exit 1`}, types.Credentials{}, 1024)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), []byte(`{}`))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, "missing credentials\n", exitErr.Stderr)
}

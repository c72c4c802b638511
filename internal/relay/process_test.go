// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/seo-relay/pkg/types"
)

// mockExecutor records the last invocation and plays a scripted worker.
type mockExecutor struct {
	stdout string
	stderr string
	code   int
	err    error
	block  bool

	gotArgv  []string
	gotEnv   []string
	gotStdin string
}

func (m *mockExecutor) Run(ctx context.Context, argv, env []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	m.gotArgv, m.gotEnv = argv, env
	data, _ := io.ReadAll(stdin)
	m.gotStdin = string(data)

	if m.block {
		<-ctx.Done()
		return -1, nil
	}
	if m.err != nil {
		return -1, m.err
	}
	io.WriteString(stdout, m.stdout)
	io.WriteString(stderr, m.stderr)
	return m.code, nil
}

func newTestProcess(t *testing.T, m *mockExecutor) *Process {
	t.Helper()
	p, err := NewProcess([]string{"/bin/seo-relay", "worker"}, types.Credentials{Username: "u", Password: "p"}, 1024)
	require.NoError(t, err)
	p.exec = m
	return p
}

func TestProcessRun(t *testing.T) {
	tests := []struct {
		name      string
		exec      *mockExecutor
		wantBody  string
		wantCode  int
		wantExit  bool
		wantFrame bool
	}{
		{
			name:     "clean answer",
			exec:     &mockExecutor{stdout: `{"type":"dataforseo_backlinks","status":"success"}` + "\n"},
			wantBody: `{"type":"dataforseo_backlinks","status":"success"}`,
		},
		{
			name:     "noise json noise",
			exec:     &mockExecutor{stdout: "starting\n{\"status\":\"success\"}\ndone\n"},
			wantBody: `{"status":"success"}`,
		},
		{
			name:     "non-zero exit with answer is trusted",
			exec:     &mockExecutor{stdout: `{"status":"error"}`, code: 3, stderr: "warn"},
			wantBody: `{"status":"error"}`,
			wantCode: 3,
		},
		{
			name:     "non-zero exit without output",
			exec:     &mockExecutor{code: 1, stderr: "DataForSEO username and password are required"},
			wantCode: 1,
			wantExit: true,
		},
		{
			name:      "no parsable line",
			exec:      &mockExecutor{stdout: "panic: oops\n"},
			wantFrame: true,
		},
		{
			name:      "empty output with zero exit",
			exec:      &mockExecutor{},
			wantFrame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcess(t, tt.exec)
			res, err := p.Run(context.Background(), []byte(`{"type":"dataforseo_backlinks"}`))

			assert.Equal(t, "{\"type\":\"dataforseo_backlinks\"}\n", tt.exec.gotStdin)
			assert.Equal(t, []string{"/bin/seo-relay", "worker"}, tt.exec.gotArgv)
			assert.Equal(t, tt.wantCode, res.ExitCode)

			var exitErr *ExitError
			var frameErr *FramingError
			switch {
			case tt.wantExit:
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tt.exec.code, exitErr.Code)
				assert.Equal(t, tt.exec.stderr, exitErr.Stderr)
				assert.Equal(t, fmt.Sprintf("worker exited with code %d", tt.exec.code), err.Error())
			case tt.wantFrame:
				require.ErrorAs(t, err, &frameErr)
				assert.Equal(t, tt.exec.stdout, frameErr.Raw)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(res.Body))
			}
		})
	}
}

func TestProcessPassesCredentials(t *testing.T) {
	m := &mockExecutor{stdout: "{}"}
	_, err := newTestProcess(t, m).Run(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	env := strings.Join(m.gotEnv, "\n")
	assert.Contains(t, env, "DATAFORSEO_USERNAME=u")
	assert.Contains(t, env, "DATAFORSEO_PASSWORD=p")
}

func TestWorkerEnvOverridesLast(t *testing.T) {
	env := workerEnv([]string{"PATH=/bin", "DATAFORSEO_USERNAME=old"}, types.Credentials{Username: "new"})
	assert.Equal(t, []string{"PATH=/bin", "DATAFORSEO_USERNAME=old", "DATAFORSEO_USERNAME=new"}, env)
}

func TestProcessSpawnFailure(t *testing.T) {
	p := newTestProcess(t, &mockExecutor{err: errors.New("exec: not found")})
	_, err := p.Run(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running worker /bin/seo-relay")
}

func TestProcessContextCancelled(t *testing.T) {
	p := newTestProcess(t, &mockExecutor{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProcessRejectsEmptyCommand(t *testing.T) {
	_, err := NewProcess(nil, types.Credentials{}, 0)
	assert.Error(t, err)
}

func TestProcessOversizedAnswer(t *testing.T) {
	big := `{"type":"dataforseo_serp","results":"` + strings.Repeat("r", 2048) + `","status":"success"}`
	m := &mockExecutor{stdout: `{"type":"initialize","status":"success"}` + "\n" + big + "\n"}

	_, err := newTestProcess(t, m).Run(context.Background(), []byte(`{"type":"dataforseo_serp"}`))

	var frameErr *FramingError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, "worker output line exceeds 1024 bytes", frameErr.Details())
	assert.True(t, strings.HasPrefix(frameErr.Raw, "..."))
	assert.LessOrEqual(t, len(frameErr.Raw), 1024+len("..."))
}

func TestProcessLargeAnswerWithinDefaultLimit(t *testing.T) {
	big := `{"type":"dataforseo_serp","results":["` + strings.Repeat("r", 5<<20) + `"],"status":"success"}`
	m := &mockExecutor{stdout: big + "\n"}

	p, err := NewProcess([]string{"seo-relay", "worker"}, types.Credentials{}, types.DefaultConfig().Relay.MaxLineBytes)
	require.NoError(t, err)
	p.exec = m

	res, err := p.Run(context.Background(), []byte(`{"type":"dataforseo_serp"}`))
	require.NoError(t, err)
	assert.Len(t, res.Body, len(big))
}

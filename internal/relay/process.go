// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pdiddy/seo-relay/internal/secrets"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// maxStderrBytes bounds the retained worker diagnostics.
const maxStderrBytes = 64 << 10

// executor abstracts command execution for testing.
type executor interface {
	// Run starts argv, wires the streams, and waits. A process that ran and
	// exited reports its code with a nil error.
	Run(ctx context.Context, argv, env []string, stdin io.Reader, stdout, stderr io.Writer) (int, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, argv, env []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// Process spawns one worker per request.
type Process struct {
	argv    []string
	env     []string
	maxLine int
	exec    executor
}

// NewProcess returns a runner spawning argv with the parent environment
// plus the credential pair, when set.
func NewProcess(argv []string, creds types.Credentials, maxLine int) (*Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("worker command is empty")
	}
	return &Process{
		argv:    append([]string(nil), argv...),
		env:     workerEnv(os.Environ(), creds),
		maxLine: maxLine,
		exec:    osExecutor{},
	}, nil
}

func workerEnv(base []string, creds types.Credentials) []string {
	env := append([]string(nil), base...)
	if creds.Username != "" {
		env = append(env, secrets.EnvUsername+"="+creds.Username)
	}
	if creds.Password != "" {
		env = append(env, secrets.EnvPassword+"="+creds.Password)
	}
	return env
}

// Name implements Runner.
func (p *Process) Name() string { return string(types.RunnerProcess) }

// Run writes body and a newline to the worker's stdin, closes it, and
// frames stdout once the worker exits.
func (p *Process) Run(ctx context.Context, body []byte) (Result, error) {
	stdin := bytes.NewReader(append(bytes.Clone(body), '\n'))
	stdout := NewFramer(p.maxLine)
	stderr := newTailBuffer(maxStderrBytes)

	code, err := p.exec.Run(ctx, p.argv, p.env, stdin, stdout, stderr)
	stdout.Close()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("running worker %s: %w", p.argv[0], ctxErr)
	}
	if err != nil {
		return Result{}, fmt.Errorf("running worker %s: %w", p.argv[0], err)
	}

	res := Result{ExitCode: code, Stderr: stderr.String()}
	if code != 0 && stdout.Len() == 0 {
		return res, &ExitError{Code: code, Stderr: res.Stderr}
	}
	if res.Body = stdout.Last(); res.Body == nil {
		fe := &FramingError{Raw: stdout.Raw()}
		if stdout.Oversized() {
			fe.Reason = fmt.Sprintf("worker output line exceeds %d bytes", stdout.MaxLine())
		}
		return res, fe
	}
	return res, nil
}

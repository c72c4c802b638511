// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/seo-relay/pkg/types"
)

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var envs []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		envs = append(envs, m)
	}
	return envs
}

func TestServeAnswersInOrder(t *testing.T) {
	ts, _ := newStubProvider(t, map[string]string{
		"/backlinks/summary/live":      `{"tasks":[{"result":["b"]}]}`,
		"/domain_analytics/whois/live": `{"tasks":[{"result":["w"]}]}`,
	})
	p := New(clientFor(ts))

	in := strings.Join([]string{
		`{"type":"dataforseo_backlinks","target":"a.com"}`,
		``,
		`{broken`,
		`   `,
		`{"type":"dataforseo_unknown"}`,
		`{"type":"dataforseo_domain_analytics","domain":"a.com"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, p.Serve(context.Background(), strings.NewReader(in), &out, false))

	envs := decodeLines(t, out.String())
	require.Len(t, envs, 4)

	assert.Equal(t, "dataforseo_backlinks", envs[0]["type"])
	assert.Equal(t, types.StatusSuccess, envs[0]["status"])

	assert.Equal(t, types.TypeError, envs[1]["type"])
	assert.NotContains(t, envs[1], "id")

	assert.Equal(t, types.MsgUnsupportedType, envs[2]["error"])
	assert.Contains(t, envs[2], "id")

	assert.Equal(t, "dataforseo_domain_analytics", envs[3]["type"])
	assert.Equal(t, []any{"w"}, envs[3]["results"])
}

func TestServeAnnounce(t *testing.T) {
	p := New(nil)

	var out bytes.Buffer
	require.NoError(t, p.Serve(context.Background(), strings.NewReader(""), &out, true))

	envs := decodeLines(t, out.String())
	require.Len(t, envs, 1)
	assert.Equal(t, types.TypeInitialize, envs[0]["type"])
	assert.Equal(t, types.StatusSuccess, envs[0]["status"])
	assert.NotContains(t, envs[0], "id")
	assert.NotEmpty(t, envs[0]["tools"])
}

func TestServeWithoutAnnounceIsSilentOnEmptyInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, New(nil).Serve(context.Background(), strings.NewReader("\n\n"), &out, false))
	assert.Empty(t, out.String())
}

func TestServeStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := "{\"type\":\"x\"}\n{\"type\":\"y\"}\n"
	var out bytes.Buffer
	err := New(nil).Serve(ctx, strings.NewReader(in), &out, false)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, decodeLines(t, out.String()), 1)
}

func TestServeAnswersOverlongLineAndContinues(t *testing.T) {
	p := New(nil, WithMaxLineBytes(32), fixedID("req-1"))

	in := strings.Join([]string{
		`{"type":"` + strings.Repeat("a", 64) + `"}`,
		`{"type":"` + strings.Repeat("b", 24) + `"}`,
		`{"type":"mystery"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, p.Serve(context.Background(), strings.NewReader(in), &out, false))

	envs := decodeLines(t, out.String())
	require.Len(t, envs, 3)

	assert.Equal(t, types.TypeError, envs[0]["type"])
	assert.Equal(t, "request line exceeds 32 bytes", envs[0]["error"])
	assert.NotContains(t, envs[0], "id")

	assert.Equal(t, "request line exceeds 32 bytes", envs[1]["error"])

	assert.Equal(t, types.MsgUnsupportedType, envs[2]["error"])
	assert.Equal(t, "req-1", envs[2]["id"])
}

func TestServeLineAtLimitIsAccepted(t *testing.T) {
	line := `{"type":"mystery"}`
	p := New(nil, WithMaxLineBytes(len(line)))

	var out bytes.Buffer
	require.NoError(t, p.Serve(context.Background(), strings.NewReader(line+"\r\n"+line), &out, false))

	envs := decodeLines(t, out.String())
	require.Len(t, envs, 2)
	for _, env := range envs {
		assert.Equal(t, types.MsgUnsupportedType, env["error"])
	}
}

func TestServeOverlongLineAtDefaultLimit(t *testing.T) {
	ts, _ := newStubProvider(t, map[string]string{
		"/backlinks/summary/live": `{"tasks":[{"result":["b"]}]}`,
	})
	p := New(clientFor(ts))

	in := `{"type":"dataforseo_backlinks","target":"` + strings.Repeat("a", MaxLineBytes) + `"}` + "\n" +
		`{"type":"dataforseo_backlinks","target":"a.com"}` + "\n"

	var out bytes.Buffer
	require.NoError(t, p.Serve(context.Background(), strings.NewReader(in), &out, false))

	envs := decodeLines(t, out.String())
	require.Len(t, envs, 2)
	assert.Equal(t, fmt.Sprintf("request line exceeds %d bytes", MaxLineBytes), envs[0]["error"])
	assert.Equal(t, types.StatusSuccess, envs[1]["status"])
	assert.Equal(t, []any{"b"}, envs[1]["results"])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestServeWriteFailure(t *testing.T) {
	err := New(nil).Serve(context.Background(), strings.NewReader(`{"type":"x"}`), failingWriter{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing response")
}

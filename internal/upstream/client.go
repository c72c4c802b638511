// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upstream is the client for the SEO data provider's REST API.
// Every call is authenticated with HTTP Basic credentials, carries a JSON
// array with one task object, and answers with a task list whose first
// element holds the payload of interest.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/seo-relay/internal/httputil"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 64 << 20

// Error is an upstream call failure. Details holds the provider's error
// payload verbatim when one was returned.
type Error struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *Error) Error() string {
	return e.Message
}

// DetailsOf returns the upstream error payload carried by err, if any.
func DetailsOf(err error) json.RawMessage {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Details
	}
	return nil
}

// Client calls the provider API. It is safe for concurrent use; the
// underlying http.Client pools connections across calls.
type Client struct {
	HTTP       *http.Client
	BaseURL    string
	Creds      types.Credentials
	UserAgent  string
	MaxRetries int
}

// NewClient returns a client configured from cfg.
func NewClient(cfg types.UpstreamConfig, creds types.Credentials) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Creds:      creds,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
	}
}

// apiResponse is the provider's top-level envelope.
type apiResponse struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []apiTask `json:"tasks"`
}

type apiTask struct {
	ID            string          `json:"id"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message"`
	Result        json.RawMessage `json:"result"`
}

// Post sends body as a one-element task array to path and returns
// tasks[0].result.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	task, err := c.firstTask(ctx, http.MethodPost, path, []any{body})
	if err != nil {
		return nil, err
	}
	return task.Result, nil
}

// PostTask creates an asynchronous task at path and returns its ID.
func (c *Client) PostTask(ctx context.Context, path string, body any) (string, error) {
	task, err := c.firstTask(ctx, http.MethodPost, path, []any{body})
	if err != nil {
		return "", err
	}
	if task.ID == "" {
		return "", &Error{Message: fmt.Sprintf("task creation at %s returned no task id: %s", path, task.StatusMessage)}
	}
	return task.ID, nil
}

// Get fetches path and returns tasks[0].result.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	task, err := c.firstTask(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return task.Result, nil
}

func (c *Client) firstTask(ctx context.Context, method, path string, payload any) (apiTask, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apiTask{}, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return apiTask{}, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.Creds.Username, c.Creds.Password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		return apiTask{}, fmt.Errorf("upstream request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apiTask{}, fmt.Errorf("reading upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiTask{}, &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("request failed with status code %d", resp.StatusCode),
			Details:    rawDetails(data),
		}
	}

	var ar apiResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return apiTask{}, fmt.Errorf("decoding upstream response: %w", err)
	}
	if len(ar.Tasks) == 0 {
		return apiTask{}, &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("upstream response has no tasks (status %d: %s)", ar.StatusCode, ar.StatusMessage),
		}
	}
	return ar.Tasks[0], nil
}

// rawDetails returns data verbatim when it is JSON, or as a JSON string
// otherwise. Empty bodies carry no details.
func rawDetails(data []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil
	}
	return quoted
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the request/response envelopes and configuration
// shared by the worker, the relay, and the CLI.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Reserved envelope types that are not upstream capabilities.
const (
	TypeError      = "error"
	TypeInitialize = "initialize"
)

// MsgUnsupportedType is the error text for a request type outside the catalogue.
const MsgUnsupportedType = "Unsupported request type"

// Request is one decoded request envelope. Only "type" has meaning to the
// dispatcher; every other field is passed to the catalogue's body builder.
type Request map[string]any

// DecodeRequest parses a single JSON line into a Request. Numbers are kept
// as json.Number so integer codes survive the round trip untouched. Valid
// JSON that is not an object decodes to an empty Request, which has no type.
func DecodeRequest(line []byte) (Request, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	if m, ok := v.(map[string]any); ok {
		return Request(m), nil
	}
	return Request{}, nil
}

// Type returns the request type, or "" when absent or not a string.
func (r Request) Type() string {
	s, _ := r["type"].(string)
	return s
}

// String returns the string field key, or "" when absent or not a string.
func (r Request) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Truthy reports whether v would count as set under loose JSON semantics:
// nil, false, zero numbers and empty strings are not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// Response is one response envelope. Field order matches the wire format:
// type, id, results or error/details, tools, status.
type Response struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	Tools   []Tool          `json:"tools,omitempty"`
	Status  string          `json:"status"`
}

// IsError reports whether the envelope carries a failure.
func (r Response) IsError() bool {
	return r.Status == StatusError
}

// ErrorResponse builds an error envelope. id may be empty.
func ErrorResponse(id, msg string, details json.RawMessage) Response {
	return Response{
		Type:    TypeError,
		ID:      id,
		Error:   msg,
		Details: details,
		Status:  StatusError,
	}
}

// Tool describes one request type for discovery endpoints.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Schema is the JSON-schema subset used to describe tool parameters.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is a single parameter in a Schema.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Items       *Property `json:"items,omitempty"`
	Default     any       `json:"default,omitempty"`
}

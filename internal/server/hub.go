// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"sync"
)

// hubBuffer is the per-client queue depth. Messages beyond it are dropped.
const hubBuffer = 8

// Hub tracks connected notification-stream clients.
type Hub struct {
	mu      sync.Mutex
	clients map[chan json.RawMessage]struct{}
	closed  bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan json.RawMessage]struct{})}
}

// Subscribe registers a client. The returned func removes it and must be
// called on disconnect. On a closed hub the channel is already closed.
func (h *Hub) Subscribe() (<-chan json.RawMessage, func()) {
	ch := make(chan json.RawMessage, hubBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.clients[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		})
	}
}

// Broadcast queues msg for every client without blocking and returns how
// many clients accepted it.
func (h *Hub) Broadcast(msg json.RawMessage) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for ch := range h.clients {
		select {
		case ch <- msg:
			n++
		default:
		}
	}
	return n
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/seo-relay/internal/catalog"
	"github.com/pdiddy/seo-relay/internal/relay"
)

// maxBodyBytes bounds a relayed request body.
const maxBodyBytes = 1 << 20

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) metadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":            catalog.ServerName,
		"version":         catalog.ServerVersion,
		"catalog_version": catalog.Version,
		"description":     "DataForSEO relay: SERP, keyword, backlink, on-page, domain, app, merchant and business data",
		"tools":           catalog.Tools(),
	})
}

func (s *Server) initialize(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"serverInfo": gin.H{
			"name":    catalog.ServerName,
			"version": catalog.ServerVersion,
		},
		"capabilities": gin.H{
			"tools": gin.H{"listChanged": false},
		},
		"catalog_version": catalog.Version,
	})
}

func (s *Server) toolsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": catalog.Tools()})
}

func (s *Server) available(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"name":    catalog.ServerName,
		"version": catalog.ServerVersion,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"endpoints": []string{
			"GET /health", "GET /ping", "GET /metadata", "GET /sse",
			"POST /", "POST /mcp", "POST /initialize", "POST /tools/list",
		},
	})
}

// forward relays the body to a worker. Envelope-level errors still answer
// 200; only relay failures map to 500.
func (s *Server) forward(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body", "details": err.Error()})
		return
	}
	if len(body) > maxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}

	// The worker protocol is one line per request.
	var line bytes.Buffer
	if len(bytes.TrimSpace(body)) == 0 {
		line.WriteString("{}")
	} else if err := json.Compact(&line, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return
	}

	out, err := s.relay.Forward(c.Request.Context(), line.Bytes())
	if err != nil {
		var (
			exitErr    *relay.ExitError
			framingErr *relay.FramingError
		)
		switch {
		case errors.As(err, &exitErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": exitErr.Error(), "details": exitErr.Stderr})
		case errors.As(err, &framingErr):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   framingErr.Error(),
				"details": framingErr.Details(),
				"raw":     framingErr.Raw,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Relay failed", "details": err.Error()})
		}
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

// events serves the notification stream: a connected event, then
// heartbeats until the client disconnects or the hub closes.
func (s *Server) events(c *gin.Context) {
	messages, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("connected", gin.H{"status": "ready", "time": time.Now().UTC().Format(time.RFC3339)})
	c.Writer.Flush()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"time": t.UTC().Format(time.RFC3339)})
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.SSEvent("message", msg)
		}
		c.Writer.Flush()
	}
}

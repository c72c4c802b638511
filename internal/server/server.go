// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the HTTP front end of the relay: the forwarding
// endpoints, constant discovery endpoints and the heartbeat stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/seo-relay/pkg/types"
)

// Forwarder relays one request body to a worker.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (json.RawMessage, error)
}

// Server is the relay's HTTP server.
type Server struct {
	cfg        types.ServerConfig
	engine     *gin.Engine
	httpServer *http.Server
	relay      Forwarder
	hub        *Hub
	log        *zap.SugaredLogger
	startTime  time.Time
}

// New builds the server and its routes.
func New(cfg types.ServerConfig, fwd Forwarder, log *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = types.DefaultConfig().Server.HeartbeatInterval
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(corsMiddleware(cfg.AllowOrigins))

	s := &Server{
		cfg:    cfg,
		engine: engine,
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           engine,
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       cfg.IdleTimeout,
		},
		relay:     fwd,
		hub:       NewHub(),
		log:       log,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	e := s.engine

	e.GET("/health", s.health)
	e.GET("/ping", s.ping)

	for _, p := range []string{"/metadata", "/api/metadata"} {
		e.GET(p, s.metadata)
	}
	for _, p := range []string{"/sse", "/api/sse"} {
		e.GET(p, s.events)
	}
	for _, p := range []string{"/", "/mcp", "/api/mcp"} {
		e.POST(p, s.forward)
	}
	e.POST("/initialize", s.initialize)
	e.POST("/tools/list", s.toolsList)

	e.NoRoute(s.available)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the notification hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.log.Infow("relay listening", "addr", s.cfg.Addr())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown tells stream clients the server is going away, disconnects
// them and waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if data, err := json.Marshal(gin.H{"type": "shutdown", "time": time.Now().UTC().Format(time.RFC3339)}); err == nil {
		s.hub.Broadcast(data)
	}
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/seo-relay/internal/history"
	"github.com/pdiddy/seo-relay/internal/relay"
	"github.com/pdiddy/seo-relay/internal/secrets"
	"github.com/pdiddy/seo-relay/internal/server"
	"github.com/pdiddy/seo-relay/pkg/types"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP relay",
	Long: `Serve accepts request envelopes over HTTP (POST /, /mcp, /api/mcp) and
returns the worker's response envelope. It also serves /health, /ping,
/metadata, /tools/list and a heartbeat event stream on /sse.

The default inprocess runner dispatches each request on its own goroutine
with one shared upstream connection pool. The process runner spawns a
"seo-relay worker" child per request instead.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps := &components{}
	defer comps.Close()

	runner, err := buildRunner(ctx, cmd, cfg, comps)
	if err != nil {
		return err
	}

	relayOpts := []relay.Option{relay.WithLogger(logger)}
	if cfg.History.DBPath != "" {
		store, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return err
		}
		comps.history = store
		relayOpts = append(relayOpts, relay.WithRecorder(store))
		logger.Infow("exchange history enabled", "db", cfg.History.DBPath)
	}

	r := relay.New(runner, cfg.Relay, relayOpts...)
	srv := server.New(cfg.Server, r, logger)
	logger.Infow("relay configured", "runner", runner.Name(), "max_concurrent", cfg.Relay.MaxConcurrent)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", cfg.Server.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}

// buildRunner selects the relay runner. The inprocess runner needs
// credentials up front; the process runner passes whatever it resolved to
// the child and lets the child fail fast.
func buildRunner(ctx context.Context, cmd *cobra.Command, cfg types.Config, comps *components) (relay.Runner, error) {
	creds, credErr := resolveCredentials(cmd)

	switch cfg.Relay.Runner {
	case types.RunnerProcess:
		if credErr != nil && !errors.Is(credErr, secrets.ErrMissingCredentials) {
			return nil, credErr
		}
		argv := cfg.Relay.WorkerCommand
		if len(argv) == 0 {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("locating worker executable: %w", err)
			}
			argv = []string{exe, "worker"}
			if f := viper.ConfigFileUsed(); f != "" {
				argv = append(argv, "--config", f)
			}
		}
		return relay.NewProcess(argv, creds, cfg.Relay.MaxLineBytes)

	default:
		if credErr != nil {
			return nil, credErr
		}
		proc, err := newProcessor(ctx, cfg, creds, comps)
		if err != nil {
			return nil, err
		}
		return relay.NewInProcess(proc), nil
	}
}

func init() {
	f := serveCmd.Flags()
	f.String("host", "", "listen host (default 0.0.0.0)")
	f.Int("port", 0, "listen port (default 3000, or $PORT)")
	f.String("runner", "", "relay runner: inprocess or process")
	f.Int("max-concurrent", 0, "maximum in-flight relayed requests")
	f.Duration("heartbeat", 0, "event stream heartbeat interval")
	f.String("history-db", "", "SQLite file recording every relayed exchange")
	f.String("redis", "", "Redis address for the result cache")

	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	_ = viper.BindPFlag("relay.runner", f.Lookup("runner"))
	_ = viper.BindPFlag("relay.max_concurrent", f.Lookup("max-concurrent"))
	_ = viper.BindPFlag("server.heartbeat_interval", f.Lookup("heartbeat"))
	_ = viper.BindPFlag("history.db_path", f.Lookup("history-db"))
	_ = viper.BindPFlag("cache.redis_addr", f.Lookup("redis"))

	rootCmd.AddCommand(serveCmd)
}

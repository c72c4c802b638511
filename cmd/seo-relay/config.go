// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/seo-relay/internal/cache"
	"github.com/pdiddy/seo-relay/internal/history"
	"github.com/pdiddy/seo-relay/internal/secrets"
	"github.com/pdiddy/seo-relay/internal/upstream"
	"github.com/pdiddy/seo-relay/internal/worker"
	"github.com/pdiddy/seo-relay/pkg/types"
)

// setDefaults registers every config key so file, env and flag values all
// reach Unmarshal.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("upstream.timeout", d.Upstream.Timeout)
	v.SetDefault("upstream.user_agent", d.Upstream.UserAgent)
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.max_retries", d.Upstream.MaxRetries)
	v.SetDefault("upstream.task_delay", d.Upstream.TaskDelay)

	v.SetDefault("relay.runner", string(d.Relay.Runner))
	v.SetDefault("relay.worker_command", d.Relay.WorkerCommand)
	v.SetDefault("relay.max_concurrent", d.Relay.MaxConcurrent)
	v.SetDefault("relay.max_line_bytes", d.Relay.MaxLineBytes)
	v.SetDefault("relay.request_timeout", d.Relay.RequestTimeout)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.heartbeat_interval", d.Server.HeartbeatInterval)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)

	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("history.db_path", d.History.DBPath)

	// Conventional names used by container platforms and the provider docs.
	_ = v.BindEnv("server.port", "SEO_RELAY_SERVER_PORT", "PORT")
	_ = v.BindEnv("dataforseo.username", secrets.EnvUsername)
	_ = v.BindEnv("dataforseo.password", secrets.EnvPassword)
}

// loadConfig decodes the merged viper state into a validated Config.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveCredentials applies the credential precedence: inline flag,
// credentials file, environment, secrets directory.
func resolveCredentials(cmd *cobra.Command) (types.Credentials, error) {
	inline, _ := cmd.Flags().GetString("credentials")
	file, _ := cmd.Flags().GetString("credentials-file")
	return secrets.Resolve(secrets.Sources{
		Inline:      inline,
		File:        file,
		EnvUsername: viper.GetString("dataforseo.username"),
		EnvPassword: viper.GetString("dataforseo.password"),
		Dir:         loadedSecrets,
	})
}

// components holds the optional stores a command opened. Close releases them.
type components struct {
	cache   *cache.RedisCache
	history *history.Store
}

func (c *components) Close() {
	if err := c.cache.Close(); err != nil {
		logger.Warnw("closing cache", "error", err)
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			logger.Warnw("closing history", "error", err)
		}
	}
}

func openCache(ctx context.Context, cfg types.CacheConfig) (*cache.RedisCache, error) {
	password := secretDefault(secrets.RedisPasswordKey, os.Getenv("REDIS_PASSWORD"))
	rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, password, cfg.TTL)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		logger.Infow("result cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
	}
	return rc, nil
}

// newProcessor wires the upstream client and the optional result cache.
func newProcessor(ctx context.Context, cfg types.Config, creds types.Credentials, comps *components) (*worker.Processor, error) {
	rc, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	comps.cache = rc

	opts := []worker.Option{
		worker.WithLogger(logger),
		worker.WithTaskDelay(cfg.Upstream.TaskDelay),
	}
	if rc != nil {
		opts = append(opts, worker.WithCache(rc))
	}
	return worker.New(upstream.NewClient(cfg.Upstream, creds), opts...), nil
}

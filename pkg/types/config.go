package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "seo-relay/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Credentials is the HTTP Basic username/password pair for the upstream provider.
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Complete reports whether both halves of the pair are present.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// UpstreamConfig holds settings for the SEO data provider client.
type UpstreamConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the API root, e.g. "https://api.dataforseo.com/v3".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// MaxRetries is the number of retries on HTTP 429. Zero disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// TaskDelay is the fixed wait between posting an asynchronous task and
	// fetching its summary (default 5s).
	TaskDelay time.Duration `json:"task_delay" yaml:"task_delay" mapstructure:"task_delay"`
}

// RunnerKind selects how the relay executes a request.
type RunnerKind string

const (
	// RunnerInProcess dispatches each request on the serving goroutine.
	RunnerInProcess RunnerKind = "inprocess"

	// RunnerProcess spawns one worker process per request.
	RunnerProcess RunnerKind = "process"
)

// RelayConfig holds settings for the HTTP-to-worker relay.
type RelayConfig struct {
	// Runner selects inprocess or process execution.
	Runner RunnerKind `json:"runner" yaml:"runner" mapstructure:"runner"`

	// WorkerCommand is the argv used to spawn a worker. Empty means
	// "<this executable> worker".
	WorkerCommand []string `json:"worker_command,omitempty" yaml:"worker_command,omitempty" mapstructure:"worker_command"`

	// MaxConcurrent bounds in-flight relayed requests (default 16).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxLineBytes bounds a single buffered worker output line (default 80 MiB).
	MaxLineBytes int `json:"max_line_bytes" yaml:"max_line_bytes" mapstructure:"max_line_bytes"`

	// RequestTimeout bounds one relayed request end to end (default 10m).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ServerConfig holds settings for the HTTP front end.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	// HeartbeatInterval is the gap between notification-stream heartbeats (default 30s).
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`

	// IdleTimeout is the keep-alive idle timeout on HTTP connections (default 30m).
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`

	// AllowOrigins lists CORS origins; empty allows all.
	AllowOrigins []string `json:"allow_origins,omitempty" yaml:"allow_origins,omitempty" mapstructure:"allow_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig holds settings for the optional Redis result cache.
type CacheConfig struct {
	// RedisAddr enables the cache when set (e.g. "localhost:6379").
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`

	// TTL is how long a cached upstream result stays valid (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// HistoryConfig holds settings for the optional exchange log.
type HistoryConfig struct {
	// DBPath enables the SQLite exchange log when set.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" mapstructure:"db_path"`
}

// Config groups all component configurations.
type Config struct {
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream" mapstructure:"upstream"`
	Relay    RelayConfig    `json:"relay" yaml:"relay" mapstructure:"relay"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
	History  HistoryConfig  `json:"history" yaml:"history" mapstructure:"history"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   5 * time.Minute,
				UserAgent: "seo-relay/0.1",
			},
			BaseURL:   "https://api.dataforseo.com/v3",
			TaskDelay: 5 * time.Second,
		},
		Relay: RelayConfig{
			Runner:         RunnerInProcess,
			MaxConcurrent:  16,
			MaxLineBytes:   80 << 20,
			RequestTimeout: 10 * time.Minute,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3000,
			HeartbeatInterval: 30 * time.Second,
			IdleTimeout:       30 * time.Minute,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
	}
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	switch c.Relay.Runner {
	case RunnerInProcess, RunnerProcess:
	default:
		return fmt.Errorf("unknown relay runner %q (want %q or %q)", c.Relay.Runner, RunnerInProcess, RunnerProcess)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Relay.MaxConcurrent <= 0 {
		return fmt.Errorf("relay.max_concurrent must be positive, got %d", c.Relay.MaxConcurrent)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	return nil
}

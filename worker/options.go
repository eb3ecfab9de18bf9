package worker

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/council/component"
	"github.com/zero-day-ai/council/registry"
)

// Defaults applied by New.
const (
	DefaultPollInterval      = 5 * time.Second
	DefaultHeartbeatInterval = 20 * time.Second
	DefaultHeartbeatTTL      = 60 * time.Second
	DefaultResultTTL         = 300 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second

	// HeartbeatTTLFactor is the TTL-to-interval ratio of the defaults; a
	// live worker may miss two beats before it looks dead.
	HeartbeatTTLFactor = 3
)

// Options configures the worker behavior.
type Options struct {
	// ID overrides the generated worker identity. It must be unique across
	// every worker sharing the namespace.
	ID string

	// RedisURL is the Redis connection string (e.g., "redis://localhost:6379").
	// Used by Run only; New takes a connected client.
	RedisURL string

	// Namespace prefixes every broker key. Used by Run only.
	Namespace string

	// PollInterval bounds each blocking claim. Default: 5s
	// Claims block in whole seconds: the interval is rounded up to the next
	// second, so sub-second values poll once a second.
	PollInterval time.Duration

	// HeartbeatInterval is the time between heartbeats. Default: 20s
	HeartbeatInterval time.Duration

	// HeartbeatTTL is the expiry set on each heartbeat. Default: 60s
	// A TTL not above HeartbeatInterval is raised to
	// HeartbeatTTLFactor × HeartbeatInterval.
	HeartbeatTTL time.Duration

	// ResultTTL is the expiry of published result lists. Default: 300s
	ResultTTL time.Duration

	// RecoveryInterval repeats stale-task recovery while running.
	// If 0, recovery only runs at start-up.
	RecoveryInterval time.Duration

	// ShutdownTimeout is the time Run waits for the loop to finish after a
	// signal. Default: 30s
	ShutdownTimeout time.Duration

	// HealthAddr enables a gRPC health server on this address (e.g., ":8081").
	HealthAddr string

	// Registry, when set, receives this worker's registration.
	Registry registry.Registry

	// Version and Endpoint are advertised in the registry entry.
	Version  string
	Endpoint string

	// Models lists the locally loaded model ids for logging and registration.
	Models []string

	// Logger is the structured logger for worker operations.
	// If nil, a default JSON logger to stdout is created.
	Logger *slog.Logger

	// Tracer records a span per processed task. Default: no-op tracer
	Tracer trace.Tracer

	// Meter records worker counters. Default: no-op meter
	Meter metric.Meter

	// Config is the parsed council.yaml used by Run.
	// If nil, Run loads it from ConfigPath or the current directory.
	Config *component.Config

	// ConfigPath is the path to council.yaml.
	ConfigPath string
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.HeartbeatTTL <= 0 {
		o.HeartbeatTTL = DefaultHeartbeatTTL
	}
	if o.HeartbeatTTL <= o.HeartbeatInterval {
		o.HeartbeatTTL = HeartbeatTTLFactor * o.HeartbeatInterval
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = DefaultResultTTL
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.RecoveryInterval < 0 {
		o.RecoveryInterval = 0
	}
	return o
}

// applyConfig applies council.yaml settings to Options.
// Explicit Options values take priority over council.yaml values.
func applyConfig(opts Options, cfg *component.Config) Options {
	if opts.RedisURL == "" {
		opts.RedisURL = cfg.GetRedisURL()
	}
	if opts.Namespace == "" {
		opts.Namespace = cfg.GetNamespace()
	}

	var w *component.WorkerConfig
	if cfg != nil {
		w = cfg.Worker
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = w.GetPollInterval()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = w.GetHeartbeatInterval()
	}
	if opts.HeartbeatTTL == 0 {
		opts.HeartbeatTTL = w.GetHeartbeatTTL()
	}
	if opts.ResultTTL == 0 {
		opts.ResultTTL = w.GetResultTTL()
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = w.GetShutdownTimeout()
	}
	if opts.RecoveryInterval == 0 {
		opts.RecoveryInterval = w.GetRecoveryInterval()
	}
	if opts.HealthAddr == "" {
		opts.HealthAddr = w.GetHealthAddr()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = w.GetEndpoint()
	}
	if opts.Version == "" && cfg != nil {
		opts.Version = cfg.Version
	}
	return opts
}

package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/component"
	"github.com/zero-day-ai/council/llm"
	"github.com/zero-day-ai/council/queue"
	"github.com/zero-day-ai/council/registry"
)

// Run starts a worker process for executor with the given local models.
// It connects to Redis (and etcd when a registry is configured), runs the
// worker loop, and handles graceful shutdown on SIGTERM/SIGINT.
//
// Configuration priority (highest to lowest):
//  1. Explicit Options values (if non-zero)
//  2. COUNCIL_* environment variables
//  3. council.yaml
//  4. Default values
//
// Model ids are resolved against models first and then against the shared
// registry, if one is configured.
//
// The function blocks until a shutdown signal is received. Returns an error
// if the broker cannot be reached or if graceful shutdown times out.
func Run(executor llm.Executor, models []llm.Model, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = component.LoadOrDefault(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	opts = applyConfig(opts, cfg)
	if opts.Logger == nil {
		opts.Logger = cfg.Logging.NewLogger(os.Stdout)
	}
	if opts.ID == "" {
		opts.ID = generateWorkerID()
	}
	logger := opts.Logger.With("worker_id", opts.ID)

	logger.Info("worker starting",
		"redis_url", queue.SanitizeURL(opts.RedisURL),
		"namespace", opts.Namespace,
	)

	tlsConfig, err := cfg.GetRedisTLS().ClientConfig()
	if err != nil {
		return council.NewConfigurationError("worker.Run", fmt.Errorf("redis tls: %w", err))
	}

	client, err := queue.NewRedisClient(queue.RedisOptions{
		URL:       opts.RedisURL,
		Namespace: opts.Namespace,
		TLS:       tlsConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer council.CloseWithLog(client, logger, "redis client")

	local := llm.NewLocalModels(models...)
	lookups := []llm.Lookup{local}

	if opts.Registry == nil && cfg.RegistryEnabled() {
		reg, err := registry.NewClient(*cfg.Registry)
		if err != nil {
			// The registry only widens model resolution; local models still work.
			logger.Warn("registry unavailable, continuing with local models", "error", err)
		} else {
			defer council.CloseWithLog(reg, logger, "registry client")
			opts.Registry = reg
		}
	}
	if mr, ok := opts.Registry.(llm.ModelRegistry); ok {
		lookups = append(lookups, llm.RegistryLookup{Registry: mr})
	}

	if len(opts.Models) == 0 {
		opts.Models = local.IDs()
	}

	w := New(client, executor, llm.NewResolver(lookups...), opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	logger.Info("received signal, initiating graceful shutdown")

	select {
	case err := <-done:
		if err == nil {
			logger.Info("worker shutdown complete")
		}
		return err
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout.String())
		return fmt.Errorf("worker shutdown timeout of %s exceeded", opts.ShutdownTimeout)
	}
}

// Package infrastructure assembles the systems every entry point shares:
// logging, lifecycle coordination, metrics and the optional external stores
// (PostgreSQL, blob storage, Redis).
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/pkg/database"
	"github.com/JaimeStill/geogov/pkg/lifecycle"
	"github.com/JaimeStill/geogov/pkg/storage"
)

// Infrastructure holds the core systems. Database, Storage and Redis are nil
// when their configuration does not enable them.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Database  database.System
	Storage   storage.System
	Redis     *redis.Client
}

// New creates the infrastructure from cfg, logging to stderr. Nothing
// connects until Start.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit log destination.
func NewWithWriter(cfg *config.Config, w io.Writer) (*Infrastructure, error) {
	logger := NewLogger(&cfg.Logging, w)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	infra := &Infrastructure{
		Lifecycle: lifecycle.New(logger),
		Logger:    logger,
		Registry:  registry,
	}

	if cfg.Receipts.Backend == config.BackendPostgres {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.Storage.Enabled() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		infra.Redis = redis.NewClient(opts)
	}

	return infra, nil
}

// NewLogger builds the root logger for the configured level and format.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Start registers lifecycle hooks for every enabled system.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	if i.Redis != nil {
		i.startRedis()
	}
	return nil
}

// The cache is an optimization, so an unreachable Redis only warns at startup.
func (i *Infrastructure) startRedis() {
	logger := i.Logger.With("system", "redis")

	i.Lifecycle.OnStartup("redis", func(ctx context.Context) error {
		if err := i.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, retrieval cache will be bypassed", "error", err)
			return nil
		}
		logger.Info("redis connection established")
		return nil
	})

	i.Lifecycle.Probe("redis", func(ctx context.Context) error {
		return i.Redis.Ping(ctx).Err()
	})

	i.Lifecycle.OnShutdown("redis", func(context.Context) error {
		return i.Redis.Close()
	})
}

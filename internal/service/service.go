// Package service wires the decision and evidence domain onto the shared
// infrastructure. The HTTP server and the CLI both run through a Service.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/internal/evidence"
	"github.com/JaimeStill/geogov/internal/infrastructure"
	"github.com/JaimeStill/geogov/internal/judgment"
	"github.com/JaimeStill/geogov/internal/pipeline"
	"github.com/JaimeStill/geogov/internal/policy"
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/internal/retrieval"
)

// Service owns the domain systems built from configuration.
type Service struct {
	Policy   *policy.Store
	Index    *retrieval.Index
	Log      receipts.Log
	Writer   *receipts.Writer
	Judge    judgment.Judge
	Pipeline *pipeline.Orchestrator
	Evidence *evidence.Exporter

	version string
	logger  *slog.Logger
}

// New loads the policy and corpus, opens the receipt log and assembles the
// pipeline and exporter. The caller registers shutdown through Start.
func New(cfg *config.Config, infra *infrastructure.Infrastructure) (*Service, error) {
	logger := infra.Logger.With("module", "service")

	store, err := policy.Load(cfg.Policy.Path, cfg.Policy.Version)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	logger.Info("policy loaded",
		"path", cfg.Policy.Path,
		"version", store.Version(),
		"hash", store.Hash(),
		"rules", store.Len(),
	)

	docs, err := retrieval.LoadCorpus(cfg.Retrieval.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	index, err := retrieval.NewIndex(docs)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	logger.Info("corpus indexed", "documents", len(docs), "chunks", index.Len(), "digest", index.Digest())

	log, err := openLog(cfg, infra, logger)
	if err != nil {
		index.Close()
		return nil, err
	}

	var retriever retrieval.Retriever = index
	if infra.Redis != nil {
		retriever = retrieval.NewCached(index, infra.Redis, cfg.Redis.Namespace+":"+index.Digest()[:12], cfg.Retrieval.CacheTTLDuration(), logger)
	}

	var judge judgment.Judge = judgment.Disabled{}
	if cfg.Judgment.Enabled {
		judge = judgment.NewEnsemble(judgment.NewAgentModel(cfg.Agent), logger)
		logger.Info("judgment ensemble enabled", "provider", cfg.Agent.Provider.Name, "model", cfg.Agent.Model.Name)
	}

	writer := receipts.NewWriter(log, logger)

	orchestrator := pipeline.New(pipeline.Runtime{
		Policy:    store,
		Retriever: retriever,
		Judge:     judge,
		Writer:    writer,
		Metrics:   pipeline.NewMetrics(infra.Registry),
		Logger:    logger,
		Options:   cfg.Options(),
	})

	return &Service{
		Policy:   store,
		Index:    index,
		Log:      log,
		Writer:   writer,
		Judge:    judge,
		Pipeline: orchestrator,
		Evidence: evidence.New(log, store, infra.Storage, logger),
		version:  cfg.Version,
		logger:   logger,
	}, nil
}

func openLog(cfg *config.Config, infra *infrastructure.Infrastructure, logger *slog.Logger) (receipts.Log, error) {
	switch cfg.Receipts.Backend {
	case config.BackendPostgres:
		return receipts.NewPostgresLog(infra.Database.Connection(), logger), nil
	default:
		log, err := receipts.OpenFileLog(cfg.Receipts.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open receipt log: %w", err)
		}
		return log, nil
	}
}

// Start registers the receipt log probe and shutdown with the infrastructure lifecycle.
func (s *Service) Start(infra *infrastructure.Infrastructure) {
	infra.Lifecycle.Probe("receipts", func(ctx context.Context) error {
		_, err := s.Log.Head(ctx)
		return err
	})
	infra.Lifecycle.OnShutdown("receipts", func(context.Context) error {
		return s.Log.Close()
	})
	infra.Lifecycle.OnShutdown("index", func(context.Context) error {
		return s.Index.Close()
	})
}

// Close releases the receipt log. Used by short-lived commands that never start a lifecycle.
func (s *Service) Close() error {
	return s.Log.Close()
}

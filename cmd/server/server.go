package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/geogov/internal/api"
	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/internal/infrastructure"
	"github.com/JaimeStill/geogov/internal/service"
)

// Server owns the infrastructure, the domain service and the HTTP listener.
type Server struct {
	infra   *infrastructure.Infrastructure
	svc     *service.Service
	http    *httpServer
	logger  *slog.Logger
	startup chan error
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(cfg, infra)
	if err != nil {
		return nil, fmt.Errorf("service init failed: %w", err)
	}

	apiModule, err := api.NewModule(cfg, svc, infra.Logger)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("api init failed: %w", err)
	}

	router := buildRouter(infra)
	router.Mount(apiModule)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"receipts", cfg.Receipts.Backend,
		"judgment", cfg.Judgment.Enabled,
	)

	return &Server{
		infra:   infra,
		svc:     svc,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
		logger:  infra.Logger,
		startup: make(chan error, 1),
	}, nil
}

// Start registers every lifecycle hook and starts listening. The outcome of
// the startup hooks is delivered on s.startup.
func (s *Server) Start() error {
	s.logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}
	s.svc.Start(s.infra)

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		err := s.infra.Lifecycle.WaitForStartup()
		if err == nil {
			s.logger.Info("all subsystems ready")
		}
		s.startup <- err
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}

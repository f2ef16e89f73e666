package main

import (
	"fmt"
	"io"

	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/internal/infrastructure"
	"github.com/JaimeStill/geogov/internal/service"
)

// session is a started service for the duration of one command.
type session struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
	svc   *service.Service
}

// open loads configuration, builds the service and runs the startup hooks.
// Logs go to logs so stdout stays machine-readable.
func (a *app) open(logs io.Writer) (*session, error) {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	infra, err := infrastructure.NewWithWriter(cfg, logs)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(cfg, infra)
	if err != nil {
		return nil, err
	}

	if err := infra.Start(); err != nil {
		svc.Close()
		return nil, err
	}
	svc.Start(infra)

	s := &session{cfg: cfg, infra: infra, svc: svc}
	if err := infra.Lifecycle.WaitForStartup(); err != nil {
		s.close()
		return nil, fmt.Errorf("startup: %w", err)
	}
	return s, nil
}

func (s *session) close() error {
	return s.infra.Lifecycle.Shutdown(s.cfg.ShutdownTimeoutDuration())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/pkg/lifecycle"
)

type httpServer struct {
	srv    *http.Server
	addr   string
	logger *slog.Logger
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *httpServer {
	read, header, write, idle := cfg.Timeouts()
	return &httpServer{
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       read,
			ReadHeaderTimeout: header,
			WriteTimeout:      write,
			IdleTimeout:       idle,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		addr:   cfg.Addr(),
		logger: logger.With("system", "http"),
	}
}

// Start binds the listener before returning so an address in use fails
// startup. Serving begins right away; /healthz answers while other systems
// are still starting and /readyz reports when they are done.
func (s *httpServer) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", "error", err)
		}
	}()

	lc.OnShutdown("http", func(ctx context.Context) error {
		if err := s.srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("drain http: %w", err)
		}
		s.logger.Info("server drained")
		return nil
	})

	return nil
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaimeStill/geogov/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatal("server init failed: ", err)
	}

	if err := srv.Start(); err != nil {
		srv.logger.Error("server start failed", "error", err)
		if err := srv.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
			srv.logger.Error("shutdown failed", "error", err)
		}
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	code := 0
	select {
	case sig := <-sigChan:
		srv.logger.Info("signal received", "signal", sig.String())
	case err := <-srv.startup:
		if err != nil {
			srv.logger.Error("startup failed", "error", err)
			code = 1
		} else {
			sig := <-sigChan
			srv.logger.Info("signal received", "signal", sig.String())
		}
	}

	if err := srv.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		srv.logger.Error("shutdown failed", "error", err)
		code = 1
	}

	srv.logger.Info("geogov stopped")
	os.Exit(code)
}

// Package api exposes the decision pipeline and evidence exporter over HTTP.
package api

import (
	"fmt"
	"log/slog"

	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/internal/service"
	"github.com/JaimeStill/geogov/pkg/middleware"
	"github.com/JaimeStill/geogov/pkg/module"
)

// NewModule creates the API module with its routes, middleware and the
// OpenAPI document served at /openapi.json.
func NewModule(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*module.Module, error) {
	logger = logger.With("module", "api")

	doc, err := Spec(cfg).Handler()
	if err != nil {
		return nil, fmt.Errorf("render openapi: %w", err)
	}

	m := module.New(cfg.API.BasePath)
	m.Register(
		newAnalyzeHandler(svc.Pipeline, logger).routes(),
		newEvidenceHandler(svc.Evidence, logger).routes(),
		newDecisionsHandler(svc.Evidence, cfg.API.Pagination, logger).routes(),
		newHealthHandler(svc).routes(),
		(&specHandler{doc: doc}).routes(),
	)

	m.Use(middleware.Logger(logger))
	m.Use(middleware.Recover(logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.MaxBytes(cfg.API.MaxBodySizeBytes()))

	return m, nil
}

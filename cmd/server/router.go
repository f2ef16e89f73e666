package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/geogov/internal/infrastructure"
	"github.com/JaimeStill/geogov/pkg/handlers"
	"github.com/JaimeStill/geogov/pkg/module"
)

const probeTimeout = 3 * time.Second

type readiness struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, readiness{Status: "ok"})
	})

	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, readiness{Status: "not ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		if failures := infra.Lifecycle.Check(ctx); len(failures) > 0 {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, readiness{Status: "degraded", Failures: failures})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, readiness{Status: "ready"})
	})

	router.Handle("GET /metrics", promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{
		Registry: infra.Registry,
	}))

	return router
}

package api

import (
	"net/http"

	"github.com/JaimeStill/geogov/internal/service"
	"github.com/JaimeStill/geogov/pkg/handlers"
	"github.com/JaimeStill/geogov/pkg/routes"
)

type healthHandler struct {
	svc *service.Service
}

func newHealthHandler(svc *service.Service) *healthHandler {
	return &healthHandler{svc: svc}
}

func (h *healthHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/health",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.health},
		},
	}
}

func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	health := h.svc.Health(r.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	handlers.RespondJSON(w, status, health)
}

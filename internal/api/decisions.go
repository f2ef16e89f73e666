package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/geogov/internal/evidence"
	"github.com/JaimeStill/geogov/pkg/handlers"
	"github.com/JaimeStill/geogov/pkg/pagination"
	"github.com/JaimeStill/geogov/pkg/routes"
)

// Lister pages through logged decisions.
type Lister interface {
	List(ctx context.Context, f evidence.Filter, req pagination.PageRequest) (pagination.PageResult[evidence.DecisionRecord], error)
}

type decisionsHandler struct {
	lister Lister
	paging pagination.Config
	logger *slog.Logger
}

func newDecisionsHandler(lister Lister, paging pagination.Config, logger *slog.Logger) *decisionsHandler {
	return &decisionsHandler{
		lister: lister,
		paging: paging,
		logger: logger.With("handler", "decisions"),
	}
}

func (h *decisionsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/decisions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
		},
	}
}

func (h *decisionsHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	f, err := evidence.FilterFromQuery(query)
	if err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	page, err := h.lister.List(r.Context(), f, pagination.PageRequestFromQuery(query, h.paging))
	if err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, page)
}

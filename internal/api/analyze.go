package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/pipeline"
	"github.com/JaimeStill/geogov/pkg/handlers"
	"github.com/JaimeStill/geogov/pkg/routes"
)

// MaxBatchItems bounds a single batch request.
const MaxBatchItems = 500

// Analyzer runs artifacts through the decision pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, a artifacts.Artifact) (*pipeline.Outcome, error)
	Batch(ctx context.Context, items []artifacts.Artifact) (*pipeline.BatchResult, error)
}

type batchRequest struct {
	Items []artifacts.Artifact `json:"items"`
}

type analyzeHandler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

func newAnalyzeHandler(analyzer Analyzer, logger *slog.Logger) *analyzeHandler {
	return &analyzeHandler{
		analyzer: analyzer,
		logger:   logger.With("handler", "analyze"),
	}
}

func (h *analyzeHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/analyze",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.analyze},
			{Method: "POST", Pattern: "/batch", Handler: h.batch},
		},
	}
}

func (h *analyzeHandler) analyze(w http.ResponseWriter, r *http.Request) {
	var a artifacts.Artifact
	if err := handlers.DecodeJSON(r.Body, &a); err != nil {
		handlers.RespondError(w, h.logger, decodeStatus(err), err)
		return
	}

	out, err := h.analyzer.Analyze(r.Context(), a)
	if err != nil {
		status := pipeline.MapHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("analysis failed", "feature_id", a.FeatureID, "error", err)
		}
		handlers.RespondJSON(w, status, failureBody(out, err))
		return
	}

	handlers.RespondJSON(w, http.StatusOK, out)
}

// Per-item failures travel inside the result, so a batch always answers 200
// once the request itself is well formed.
func (h *analyzeHandler) batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := handlers.DecodeJSON(r.Body, &req); err != nil {
		handlers.RespondError(w, h.logger, decodeStatus(err), err)
		return
	}
	if len(req.Items) > MaxBatchItems {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
			fmt.Errorf("batch of %d items exceeds limit of %d", len(req.Items), MaxBatchItems))
		return
	}

	res, err := h.analyzer.Batch(r.Context(), req.Items)
	if err != nil {
		h.logger.Error("batch had internal failures", "batch_id", res.ID, "error", err)
	}

	handlers.RespondJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Error   string            `json:"error"`
	Failure *pipeline.Failure `json:"failure,omitempty"`
}

func failureBody(out *pipeline.Outcome, err error) errorBody {
	body := errorBody{Error: err.Error()}
	if out != nil {
		body.Failure = out.Failure
	}
	return body
}

func decodeStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/geogov/internal/evidence"
	"github.com/JaimeStill/geogov/pkg/handlers"
	"github.com/JaimeStill/geogov/pkg/routes"
)

// Exporter builds, publishes and re-verifies evidence bundles.
type Exporter interface {
	Export(ctx context.Context, f evidence.Filter) (*evidence.Bundle, error)
	Publish(ctx context.Context, b *evidence.Bundle) (string, error)
	VerifyPublished(ctx context.Context, id uuid.UUID) (evidence.Verification, error)
}

type publishResponse struct {
	*evidence.Bundle
	Key string `json:"key"`
}

type evidenceHandler struct {
	exporter Exporter
	logger   *slog.Logger
}

func newEvidenceHandler(exporter Exporter, logger *slog.Logger) *evidenceHandler {
	return &evidenceHandler{
		exporter: exporter,
		logger:   logger.With("handler", "evidence"),
	}
}

func (h *evidenceHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/evidence",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.download},
			{Method: "POST", Pattern: "", Handler: h.publish},
			{Method: "GET", Pattern: "/{id}", Handler: h.verifyPublished},
		},
	}
}

func (h *evidenceHandler) download(w http.ResponseWriter, r *http.Request) {
	f, err := evidence.FilterFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	b, err := h.exporter.Export(r.Context(), f)
	if err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	// Buffer the archive so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := b.WriteArchive(&buf); err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/zip")
	hdr.Set("Content-Length", strconv.Itoa(buf.Len()))
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename()))
	hdr.Set("X-Merkle-Root", b.Root)
	hdr.Set("X-Receipt-Head", strconv.FormatUint(b.Head, 10))
	hdr.Set("X-Receipt-Count", strconv.Itoa(b.Count))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}

// The body is an optional JSON filter; an empty body exports everything.
func (h *evidenceHandler) publish(w http.ResponseWriter, r *http.Request) {
	var f evidence.Filter
	if err := handlers.DecodeJSON(r.Body, &f); err != nil && !isEmptyBody(err) {
		handlers.RespondError(w, h.logger, decodeStatus(err), err)
		return
	}
	if err := f.Validate(); err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	b, err := h.exporter.Export(r.Context(), f)
	if err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	key, err := h.exporter.Publish(r.Context(), b)
	if err != nil {
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, publishResponse{Bundle: b, Key: key})
}

// verifyPublished re-checks a stored bundle. A bundle whose contents no
// longer verify is reported as 422 since the request itself was fine.
func (h *evidenceHandler) verifyPublished(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid bundle id: %w", err))
		return
	}

	v, err := h.exporter.VerifyPublished(r.Context(), id)
	switch {
	case errors.Is(err, evidence.ErrBundleInvalid):
		handlers.RespondError(w, h.logger, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		handlers.RespondError(w, h.logger, evidence.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}

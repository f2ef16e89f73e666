package evidence

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/geogov/pkg/storage"
)

var (
	// ErrExport indicates the snapshot could not be read, decoded or hashed.
	ErrExport = errors.New("evidence export failed")
	// ErrInvalidFilter indicates a malformed export filter.
	ErrInvalidFilter = errors.New("invalid evidence filter")
	// ErrBundleInvalid indicates an archive whose contents disagree with its manifest.
	ErrBundleInvalid = errors.New("evidence bundle invalid")
	// ErrPublishUnavailable indicates no blob storage is configured for publishing.
	ErrPublishUnavailable = errors.New("evidence publishing not configured")
)

// MapHTTPStatus maps evidence errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrBundleInvalid):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, ErrPublishUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

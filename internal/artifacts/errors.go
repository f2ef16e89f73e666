package artifacts

import (
	"errors"
	"net/http"
)

// ErrInvalid indicates an artifact with missing or malformed required fields.
var ErrInvalid = errors.New("invalid artifact")

// MapHTTPStatus maps artifact errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalid) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an artifact's pipeline failed.
type Kind string

const (
	// KindValidation is a malformed or incomplete artifact.
	KindValidation Kind = "validation"
	// KindCollaborator is a retrieval or judgment call that failed after retries.
	KindCollaborator Kind = "collaborator"
	// KindInternal is a serialization, hashing or log-write failure.
	KindInternal Kind = "internal"
)

// Failure is the explicit failure record of one artifact.
type Failure struct {
	Kind      Kind   `json:"kind"`
	Stage     Stage  `json:"stage"`
	FeatureID string `json:"feature_id,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

func newFailure(kind Kind, stage Stage, featureID string, err error) *Failure {
	return &Failure{
		Kind:      kind,
		Stage:     stage,
		FeatureID: featureID,
		Message:   err.Error(),
		Err:       err,
	}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure at %s: %s", f.Kind, f.Stage, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind of err, treating unclassified errors as internal.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// MapHTTPStatus maps pipeline failures to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

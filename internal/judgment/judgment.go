// Package judgment is the advisory collaborator: an ensemble of proposer,
// rebuttal and arbiter roles that reads the artifact with its retrieved
// context and reports signals, notes and a confidence. It never decides the
// final verdict; that belongs to the rules engine.
package judgment

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/retrieval"
)

// ErrJudgmentFailed is returned when a role call fails or its reply cannot be parsed.
var ErrJudgmentFailed = errors.New("judgment failed")

// Judgment is the ensemble's advisory output.
type Judgment struct {
	Signals    []string `json:"signals"`
	Notes      string   `json:"notes"`
	Confidence float64  `json:"confidence"`
	// References are the chunk IDs or sources the roles cited.
	References []string `json:"references,omitempty"`
}

// Judge produces a Judgment for an artifact and its retrieved chunks.
type Judge interface {
	Judge(ctx context.Context, a artifacts.Artifact, chunks []retrieval.Chunk) (Judgment, error)
}

// Model is a single prompt/response exchange with a language model.
type Model interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Disabled is the Judge used when no model is configured. It contributes no
// signals and zero confidence, leaving the verdict entirely to the rules.
type Disabled struct{}

func (Disabled) Judge(context.Context, artifacts.Artifact, []retrieval.Chunk) (Judgment, error) {
	return Judgment{
		Signals: []string{},
		Notes:   "judgment disabled; decision derived from rules only",
	}, nil
}

// MapHTTPStatus maps judgment errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrJudgmentFailed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func clamp(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return min(max(c, 0), 1)
}

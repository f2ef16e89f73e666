// Package artifacts defines the feature description submitted for compliance analysis.
package artifacts

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxFeatureIDLength bounds feature identifiers so they stay usable as storage and CSV keys.
const MaxFeatureIDLength = 128

var featureIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Artifact describes a product feature. It is treated as immutable once submitted.
type Artifact struct {
	FeatureID   string   `json:"feature_id" yaml:"feature_id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Docs        []string `json:"docs,omitempty" yaml:"docs"`
	CodeHints   []string `json:"code_hints,omitempty" yaml:"code_hints"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

// Validate reports missing or malformed required fields.
// The returned error wraps ErrInvalid.
func (a Artifact) Validate() error {
	var problems []string

	// The ID is stored and filtered on verbatim, so surrounding whitespace
	// is rejected rather than trimmed.
	switch id := a.FeatureID; {
	case strings.TrimSpace(id) == "":
		problems = append(problems, "feature_id required")
	case len(id) > MaxFeatureIDLength:
		problems = append(problems, fmt.Sprintf("feature_id exceeds %d characters", MaxFeatureIDLength))
	case !featureIDPattern.MatchString(id):
		problems = append(problems, "feature_id contains invalid characters")
	}

	if strings.TrimSpace(a.Title) == "" {
		problems = append(problems, "title required")
	}
	if strings.TrimSpace(a.Description) == "" {
		problems = append(problems, "description required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Text returns the title and description joined by a space: the text rules match against.
func (a Artifact) Text() string {
	return a.Title + " " + a.Description
}

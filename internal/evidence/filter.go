package evidence

import (
	"fmt"
	"net/url"
	"time"

	"github.com/JaimeStill/geogov/internal/receipts"
)

// Filter selects decisions by feature and time window. Zero values are
// unbounded; From is inclusive and To is exclusive.
type Filter struct {
	FeatureID string    `json:"feature_id,omitempty"`
	From      time.Time `json:"from,omitzero"`
	To        time.Time `json:"to,omitzero"`
}

// FilterFromQuery reads feature_id, from and to (RFC 3339) from query values.
func FilterFromQuery(values url.Values) (Filter, error) {
	f := Filter{FeatureID: values.Get("feature_id")}

	var err error
	if f.From, err = parseTime(values.Get("from")); err != nil {
		return Filter{}, fmt.Errorf("%w: from: %w", ErrInvalidFilter, err)
	}
	if f.To, err = parseTime(values.Get("to")); err != nil {
		return Filter{}, fmt.Errorf("%w: to: %w", ErrInvalidFilter, err)
	}

	return f, f.Validate()
}

// Validate rejects windows that end before they start.
func (f Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return fmt.Errorf("%w: from must precede to", ErrInvalidFilter)
	}
	return nil
}

// Match reports whether d falls inside the filter.
func (f Filter) Match(d receipts.Decision) bool {
	if f.FeatureID != "" && d.FeatureID != f.FeatureID {
		return false
	}
	if !f.From.IsZero() && d.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.Timestamp.Before(f.To) {
		return false
	}
	return true
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

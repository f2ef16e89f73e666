// Package receipts persists decisions as hashed, sequenced entries of an append-only log.
package receipts

import "time"

// Citation is a source reference attached to a decision.
type Citation struct {
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

// Decision is the outcome of one analysis run. It is created once and never
// updated in place; Hash is set when the decision is written. Signals and
// Hints together record the signal set the run used, so the retrieval query
// can be rebuilt from a receipt.
type Decision struct {
	FeatureID       string     `json:"feature_id"`
	Title           string     `json:"title"`
	NeedsCompliance bool       `json:"needs_geo_compliance"`
	Reason          string     `json:"reasoning"`
	Regulations     []string   `json:"regulations"`
	MatchedRules    []string   `json:"matched_rules"`
	Signals         []string   `json:"signals"`
	Hints           []string   `json:"hints"`
	Citations       []Citation `json:"citations"`
	Confidence      float64    `json:"confidence"`
	Notes           string     `json:"notes,omitempty"`
	PolicyVersion   string     `json:"policy_version"`
	PolicyHash      string     `json:"policy_hash"`
	Timestamp       time.Time  `json:"ts"`
	Hash            string     `json:"hash,omitempty"`
}

package receipts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimeLayout is the canonical timestamp format: UTC with microsecond precision.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// ConfidencePrecision is the number of decimals confidence is rendered with.
const ConfidencePrecision = 6

// canonicalDecision fixes the key order of the hashed form. encoding/json
// emits struct fields in declaration order.
type canonicalDecision struct {
	FeatureID       string              `json:"feature_id"`
	Title           string              `json:"title"`
	NeedsCompliance bool                `json:"needs_geo_compliance"`
	Reason          string              `json:"reasoning"`
	Regulations     []string            `json:"regulations"`
	MatchedRules    []string            `json:"matched_rules"`
	Signals         []string            `json:"signals"`
	Hints           []string            `json:"hints"`
	Citations       []canonicalCitation `json:"citations"`
	Confidence      json.Number         `json:"confidence"`
	Notes           string              `json:"notes"`
	PolicyVersion   string              `json:"policy_version"`
	PolicyHash      string              `json:"policy_hash"`
	Timestamp       string              `json:"ts"`
}

type canonicalCitation struct {
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

// Canonical returns the byte-stable serialization of d used for hashing.
// The Hash field is not part of it.
func Canonical(d Decision) ([]byte, error) {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidDecision, d.Confidence)
	}
	if d.FeatureID == "" {
		return nil, fmt.Errorf("%w: feature_id required", ErrInvalidDecision)
	}
	if d.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp required", ErrInvalidDecision)
	}

	c := canonicalDecision{
		FeatureID:       d.FeatureID,
		Title:           d.Title,
		NeedsCompliance: d.NeedsCompliance,
		Reason:          d.Reason,
		Regulations:     orEmpty(d.Regulations),
		MatchedRules:    orEmpty(d.MatchedRules),
		Signals:         orEmpty(d.Signals),
		Hints:           orEmpty(d.Hints),
		Citations:       make([]canonicalCitation, len(d.Citations)),
		Confidence:      json.Number(strconv.FormatFloat(d.Confidence, 'f', ConfidencePrecision, 64)),
		Notes:           d.Notes,
		PolicyVersion:   d.PolicyVersion,
		PolicyHash:      d.PolicyHash,
		Timestamp:       d.Timestamp.UTC().Format(TimeLayout),
	}
	for i, cit := range d.Citations {
		c.Citations[i] = canonicalCitation(cit)
	}

	return encode(c)
}

// Hash returns the hex SHA-256 digest of canonical bytes.
func Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// DecodeDecision parses canonical bytes back into a Decision.
// The returned decision carries no Hash; callers take it from the receipt.
func DecodeDecision(canonical []byte) (Decision, error) {
	var c canonicalDecision
	if err := json.Unmarshal(canonical, &c); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}

	confidence, err := c.Confidence.Float64()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: confidence: %w", ErrInvalidDecision, err)
	}

	ts, err := time.Parse(TimeLayout, c.Timestamp)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: ts: %w", ErrInvalidDecision, err)
	}

	d := Decision{
		FeatureID:       c.FeatureID,
		Title:           c.Title,
		NeedsCompliance: c.NeedsCompliance,
		Reason:          c.Reason,
		Regulations:     c.Regulations,
		MatchedRules:    c.MatchedRules,
		Signals:         c.Signals,
		Hints:           c.Hints,
		Citations:       make([]Citation, len(c.Citations)),
		Confidence:      confidence,
		Notes:           c.Notes,
		PolicyVersion:   c.PolicyVersion,
		PolicyHash:      c.PolicyHash,
		Timestamp:       ts,
	}
	for i, cit := range c.Citations {
		d.Citations[i] = Citation(cit)
	}
	return d, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package policy

import (
	"slices"

	"github.com/JaimeStill/geogov/internal/signals"
)

// DefaultReason is reported when no rule matches.
const DefaultReason = "No applicable rule matched; no geo-specific compliance requirement detected"

// Input is everything a rule can observe. Signals are normalized tags: the
// extracted set merged with any externally supplied judgment signals.
// Text is the artifact title and description.
type Input struct {
	Signals []string
	Text    string
}

// Verdict is the combined outcome of evaluating every rule.
type Verdict struct {
	NeedsCompliance bool     `json:"needs_geo_compliance"`
	MatchedRules    []string `json:"matched_rules"`
	Regulations     []string `json:"regulations"`
	Reason          string   `json:"reasoning"`
}

// Evaluate runs every rule in declaration order and combines the matches.
// Any matching true-verdict rule makes the outcome true; false-verdict rules
// only supply the reason when nothing positive matched.
func (s *Store) Evaluate(in Input) Verdict {
	subj := subject{
		tags:   make(map[string]struct{}, len(in.Signals)),
		tokens: tokenize(in.Text),
	}
	for _, t := range in.Signals {
		subj.tags[signals.Normalize(t)] = struct{}{}
	}

	v := Verdict{
		MatchedRules: []string{},
		Regulations:  []string{},
	}

	var firstTrue, firstFalse *Rule

	for i := range s.rules {
		rule := &s.rules[i]
		if !rule.matches(subj) {
			continue
		}

		v.MatchedRules = append(v.MatchedRules, rule.ID)

		if !rule.Verdict {
			if firstFalse == nil {
				firstFalse = rule
			}
			continue
		}

		v.NeedsCompliance = true
		if firstTrue == nil {
			firstTrue = rule
		}
		for _, reg := range rule.Regulations {
			if !slices.Contains(v.Regulations, reg) {
				v.Regulations = append(v.Regulations, reg)
			}
		}
	}

	switch {
	case firstTrue != nil:
		v.Reason = firstTrue.reason()
	case firstFalse != nil:
		v.Reason = firstFalse.reason()
	default:
		v.Reason = DefaultReason
	}

	return v
}

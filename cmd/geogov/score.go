package main

import (
	"slices"
	"strings"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/pipeline"
)

// score compares batch outcomes with the expectations carried by the cases.
// An item that failed counts as a miss for every expectation it carries.
type score struct {
	ComplianceChecked  int      `json:"compliance_checked"`
	ComplianceCorrect  int      `json:"compliance_correct"`
	Accuracy           float64  `json:"accuracy"`
	RegulationsChecked int      `json:"regulations_checked"`
	RegulationsMatched int      `json:"regulations_matched"`
	Misses             []string `json:"misses,omitempty"`
}

// check is the per-item verdict: nil when the case carries no expectation.
type check struct {
	compliance  *bool
	regulations *bool
}

func (c check) String() string {
	var parts []string
	if c.compliance != nil {
		parts = append(parts, mark("compliance", *c.compliance))
	}
	if c.regulations != nil {
		parts = append(parts, mark("regulations", *c.regulations))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func mark(name string, ok bool) string {
	if ok {
		return name + " ok"
	}
	return name + " MISS"
}

func checkOutcome(c artifacts.Case, out *pipeline.Outcome) check {
	var res check
	decided := out != nil && out.Decision != nil

	if c.ExpectedCompliance != nil {
		ok := decided && out.Decision.NeedsCompliance == *c.ExpectedCompliance
		res.compliance = &ok
	}
	// Regulations match when the decision names at least one expected regulation.
	if len(c.ExpectedRegulations) > 0 {
		ok := decided && slices.ContainsFunc(out.Decision.Regulations, func(r string) bool {
			return slices.Contains(c.ExpectedRegulations, r)
		})
		res.regulations = &ok
	}
	return res
}

func scoreBatch(cases []artifacts.Case, res *pipeline.BatchResult) (score, []check) {
	var s score
	checks := make([]check, len(cases))

	for i, c := range cases {
		var out *pipeline.Outcome
		if i < len(res.Outcomes) {
			out = res.Outcomes[i]
		}
		ch := checkOutcome(c, out)
		checks[i] = ch

		missed := false
		if ch.compliance != nil {
			s.ComplianceChecked++
			if *ch.compliance {
				s.ComplianceCorrect++
			} else {
				missed = true
			}
		}
		if ch.regulations != nil {
			s.RegulationsChecked++
			if *ch.regulations {
				s.RegulationsMatched++
			} else {
				missed = true
			}
		}
		if missed {
			s.Misses = append(s.Misses, c.FeatureID)
		}
	}

	if s.ComplianceChecked > 0 {
		s.Accuracy = float64(s.ComplianceCorrect) / float64(s.ComplianceChecked)
	}
	return s, checks
}

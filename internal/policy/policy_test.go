package policy_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/geogov/internal/policy"
)

const scenarioPolicy = `
version: v0.1.0
rules:
  - id: R1
    when_any:
      tags: [recommender]
    and_text: [EU]
    verdict: true
    regulations: [EU-DSA]
    reason: Personalized recommendations for EU users require DSA transparency
  - id: R2
    when_all_text: [geofence, market test, US]
    verdict: false
    reason: Geofenced market test is a business decision, not a legal requirement
`

func mustParse(t *testing.T, doc string) *policy.Store {
	t.Helper()
	store, err := policy.Parse([]byte(doc), "")
	require.NoError(t, err)
	return store
}

func TestScenarioTrueVerdict(t *testing.T) {
	store := mustParse(t, scenarioPolicy)

	v := store.Evaluate(policy.Input{
		Signals: []string{"recommender", "personalization"},
		Text:    "Personalized feed ranking for EU users",
	})

	assert.True(t, v.NeedsCompliance)
	assert.Equal(t, []string{"R1"}, v.MatchedRules)
	assert.Equal(t, []string{"EU-DSA"}, v.Regulations)
	assert.Equal(t, "Personalized recommendations for EU users require DSA transparency", v.Reason)
}

func TestScenarioFalseOnly(t *testing.T) {
	store := mustParse(t, scenarioPolicy)

	v := store.Evaluate(policy.Input{
		Text: "Geofence the checkout redesign to a US market test",
	})

	assert.False(t, v.NeedsCompliance)
	assert.Equal(t, []string{"R2"}, v.MatchedRules)
	assert.Empty(t, v.Regulations)
	assert.Equal(t, "Geofenced market test is a business decision, not a legal requirement", v.Reason)
}

func TestScenarioNoMatch(t *testing.T) {
	store := mustParse(t, scenarioPolicy)

	v := store.Evaluate(policy.Input{Text: "Dark mode for settings"})

	assert.False(t, v.NeedsCompliance)
	assert.Empty(t, v.MatchedRules)
	assert.Empty(t, v.Regulations)
	assert.Equal(t, policy.DefaultReason, v.Reason)
}

func TestTrueMatchWinsOverFalseMatch(t *testing.T) {
	store := mustParse(t, scenarioPolicy)

	v := store.Evaluate(policy.Input{
		Signals: []string{"recommender"},
		Text:    "EU recommender with a geofence market test in the US",
	})

	assert.True(t, v.NeedsCompliance)
	assert.Equal(t, []string{"R1", "R2"}, v.MatchedRules)
	assert.Equal(t, []string{"EU-DSA"}, v.Regulations)
	assert.Contains(t, v.Reason, "DSA transparency")
}

func TestEvaluateIsRepeatable(t *testing.T) {
	store := mustParse(t, scenarioPolicy)
	in := policy.Input{Signals: []string{"recommender"}, Text: "EU feed"}

	first := store.Evaluate(in)
	for range 20 {
		assert.Equal(t, first, store.Evaluate(in))
	}
}

func TestWordBoundaryMatching(t *testing.T) {
	store := mustParse(t, scenarioPolicy)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"term embedded in a word", "A neutral feed", false},
		{"upper case term", "Rolling out in the EU", true},
		{"lower case text", "rolling out in the eu", true},
		{"punctuation boundary", "Launch (EU/EEA) only", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := store.Evaluate(policy.Input{Signals: []string{"recommender"}, Text: tt.text})
			assert.Equal(t, tt.want, v.NeedsCompliance)
		})
	}
}

func TestConditionGroups(t *testing.T) {
	doc := `
version: v2
rules:
  - id: minors-us
    when_any:
      tags: [minors]
      text: [teen, under 18]
    when_any_text: [kids]
    and_text: [california]
    and_not_text: [internal tool]
    verdict: true
    regulations: [CA-SB976, US-COPPA]
    reason: "{rule_id} applies: {regulations}"
  - id: catch-all-ads
    and_text: [targeted ads]
    verdict: true
    regulations: [US-COPPA, EU-DSA]
`
	store := mustParse(t, doc)

	tests := []struct {
		name     string
		in       policy.Input
		matched  []string
		regs     []string
		reason   string
		positive bool
	}{
		{
			name:     "tag satisfies any group",
			in:       policy.Input{Signals: []string{"Minors"}, Text: "Launch in California"},
			matched:  []string{"minors-us"},
			regs:     []string{"CA-SB976", "US-COPPA"},
			reason:   "minors-us applies: CA-SB976, US-COPPA",
			positive: true,
		},
		{
			name:     "multi word text term",
			in:       policy.Input{Text: "Users under 18 in California"},
			matched:  []string{"minors-us"},
			regs:     []string{"CA-SB976", "US-COPPA"},
			reason:   "minors-us applies: CA-SB976, US-COPPA",
			positive: true,
		},
		{
			name:    "exclusion blocks the rule",
			in:      policy.Input{Text: "Teen dashboard in California, internal tool only"},
			matched: []string{},
			regs:    []string{},
			reason:  policy.DefaultReason,
		},
		{
			name:    "any group unsatisfied",
			in:      policy.Input{Text: "Adult dashboard in California"},
			matched: []string{},
			regs:    []string{},
			reason:  policy.DefaultReason,
		},
		{
			name:     "regulations union keeps first-seen order",
			in:       policy.Input{Text: "Kids in California see targeted ads"},
			matched:  []string{"minors-us", "catch-all-ads"},
			regs:     []string{"CA-SB976", "US-COPPA", "EU-DSA"},
			reason:   "minors-us applies: CA-SB976, US-COPPA",
			positive: true,
		},
		{
			name:     "empty reason renders default template",
			in:       policy.Input{Text: "Targeted ads everywhere"},
			matched:  []string{"catch-all-ads"},
			regs:     []string{"US-COPPA", "EU-DSA"},
			reason:   "Rule catch-all-ads triggered",
			positive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := store.Evaluate(tt.in)
			assert.Equal(t, tt.positive, v.NeedsCompliance)
			assert.Equal(t, tt.matched, v.MatchedRules)
			assert.Equal(t, tt.regs, v.Regulations)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestRuleVariants(t *testing.T) {
	store := mustParse(t, `
version: v1
rules:
  - id: r
    when_any:
      tags: [ads]
    when_any_text: [marketing]
    when_all_text: [profile, consent]
    and_not_text: [opt out]
    verdict: true
`)
	rules := store.Rules()
	require.Len(t, rules, 1)

	var anyKinds, allKinds []policy.Kind
	for _, c := range rules[0].Any {
		anyKinds = append(anyKinds, c.Kind)
	}
	for _, c := range rules[0].All {
		allKinds = append(allKinds, c.Kind)
	}

	assert.Equal(t, []policy.Kind{policy.TagsAny, policy.TextAny}, anyKinds)
	assert.Equal(t, []policy.Kind{policy.TextAll, policy.TextNone}, allKinds)

	rules[0].Regulations = append(rules[0].Regulations, "mutated")
	rules[0].Any[0].Values[0] = "mutated"
	again := store.Rules()
	assert.Empty(t, again[0].Regulations)
	assert.Equal(t, "ads", again[0].Any[0].Values[0])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing version", "rules: []"},
		{"blank id", "version: v1\nrules:\n  - id: ' '\n    verdict: true"},
		{"duplicate id", "version: v1\nrules:\n  - id: a\n  - id: a"},
		{"unknown key", "version: v1\nrules:\n  - id: a\n    when_some_text: [x]"},
		{"empty list", "version: v1\nrules:\n  - id: a\n    and_text: []"},
		{"wordless term", "version: v1\nrules:\n  - id: a\n    and_text: ['!!']"},
		{"malformed yaml", "version: [v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Parse([]byte(tt.doc), "")
			assert.ErrorIs(t, err, policy.ErrInvalidPolicy)
		})
	}
}

func TestLoadHashAndVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := []byte("rules:\n  - id: a\n    and_text: [eu]\n    verdict: true\n")
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	store, err := policy.Load(path, "v0.1.0")
	require.NoError(t, err)

	sum := sha256.Sum256(doc)
	assert.Equal(t, hex.EncodeToString(sum[:]), store.Hash())
	assert.Equal(t, "v0.1.0", store.Version())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, doc, store.Snapshot())

	snap := store.Snapshot()
	snap[0] = 'X'
	assert.Equal(t, doc, store.Snapshot(), "snapshot must be a copy")

	_, err = policy.Load(filepath.Join(dir, "missing.yaml"), "v1")
	assert.Error(t, err)
}

func TestEmptyPolicy(t *testing.T) {
	store, err := policy.Parse(nil, "v0")
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	v := store.Evaluate(policy.Input{Text: "anything"})
	assert.False(t, v.NeedsCompliance)
	assert.Equal(t, policy.DefaultReason, v.Reason)
}

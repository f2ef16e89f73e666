package judgment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/retrieval"
)

const (
	maxContextChunks = 5
	maxChunkRunes    = 500
)

const proposerInstructions = `You are a legal compliance analyst. Identify the compliance signals in this
software feature that suggest geography-specific regulatory requirements,
the regulations that may apply and why, and the context chunks that support
each claim.`

const proposerSpec = `Respond with a JSON object matching this exact structure:

{
  "signals": ["<signal>"],
  "claims": [{"regulation": "<name>", "why": "<explanation>", "citations": ["<chunk id>"]}],
  "citations": ["<chunk id>"]
}

Constraints:
- Always respond with valid JSON, no markdown fencing
- signals are short lowercase concepts such as "minors" or "personalization"
- cite chunks by the id shown in the legal context`

const rebuttalInstructions = `You are a legal compliance reviewer looking for reasons this software feature
does NOT require geography-specific compliance logic. Identify counter-points,
compliance signals that are notably absent, and the context chunks that
support your counter-analysis.`

const rebuttalSpec = `Respond with a JSON object matching this exact structure:

{
  "counter_points": ["<argument>"],
  "missing_signals": ["<signal>"],
  "citations": ["<chunk id>"]
}

Constraints:
- Always respond with valid JSON, no markdown fencing
- cite chunks by the id shown in the legal context`

const arbiterInstructions = `You are a senior compliance expert. Merge the findings for and against.
Normalize the signals and rate the quality of the analysis. Do NOT decide
whether compliance logic is required; a separate rules engine makes that call.`

const arbiterSpec = `Respond with a JSON object matching this exact structure:

{
  "signals": ["<signal>"],
  "notes": "<reasoning>",
  "confidence": 0.85
}

Constraints:
- Always respond with valid JSON, no markdown fencing
- confidence is a number between 0.0 and 1.0`

func composeArtifact(sb *strings.Builder, a artifacts.Artifact) {
	fmt.Fprintf(sb, "Feature: %s\n", a.Title)
	fmt.Fprintf(sb, "Description: %s\n", a.Description)
	if len(a.Docs) > 0 {
		fmt.Fprintf(sb, "Documentation: %s\n", strings.Join(a.Docs, " "))
	}
	if len(a.CodeHints) > 0 {
		fmt.Fprintf(sb, "Code hints: %s\n", strings.Join(a.CodeHints, " "))
	}
	if len(a.Tags) > 0 {
		fmt.Fprintf(sb, "Tags: %s\n", strings.Join(a.Tags, ", "))
	}
}

func composeContext(sb *strings.Builder, chunks []retrieval.Chunk) {
	sb.WriteString("\nLegal context:\n")
	if len(chunks) == 0 {
		sb.WriteString("(none retrieved)\n")
		return
	}
	for _, c := range chunks[:min(len(chunks), maxContextChunks)] {
		fmt.Fprintf(sb, "\n[%s] %s\nSource: %s\n%s\n", c.ID, c.Title, c.Source, truncate(c.Content, maxChunkRunes))
	}
}

// ComposePrompt builds the prompt for the proposer or rebuttal role.
func ComposePrompt(role Role, a artifacts.Artifact, chunks []retrieval.Chunk) string {
	var sb strings.Builder

	switch role {
	case RoleRebuttal:
		sb.WriteString(rebuttalInstructions)
	default:
		sb.WriteString(proposerInstructions)
	}
	sb.WriteString("\n\n")
	composeArtifact(&sb, a)
	composeContext(&sb, chunks)
	sb.WriteString("\n")

	switch role {
	case RoleRebuttal:
		sb.WriteString(rebuttalSpec)
	default:
		sb.WriteString(proposerSpec)
	}

	return sb.String()
}

func composeArbiter(a artifacts.Artifact, p proposal, r rebuttal) (string, error) {
	claims, err := json.MarshalIndent(p.Claims, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize claims: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(arbiterInstructions)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Feature: %s\nDescription: %s\n\n", a.Title, a.Description)

	sb.WriteString("Evidence for compliance:\n")
	fmt.Fprintf(&sb, "- Signals: %s\n", strings.Join(p.Signals, ", "))
	fmt.Fprintf(&sb, "- Claims: %s\n\n", claims)

	sb.WriteString("Evidence against compliance:\n")
	fmt.Fprintf(&sb, "- Counter-points: %s\n", strings.Join(r.CounterPoints, "; "))
	fmt.Fprintf(&sb, "- Missing signals: %s\n\n", strings.Join(r.MissingSignals, ", "))

	sb.WriteString(arbiterSpec)
	return sb.String(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

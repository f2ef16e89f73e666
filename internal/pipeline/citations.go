package pipeline

import (
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/internal/retrieval"
)

const (
	maxCitations   = 3
	maxSnippetRune = 200
)

// hydrate turns the judge's references into citations. A reference may name a
// chunk by ID or by source. When nothing cited resolves, the top chunk stands in.
func hydrate(refs []string, chunks []retrieval.Chunk) []receipts.Citation {
	out := make([]receipts.Citation, 0, maxCitations)
	used := make(map[int]bool)

	for _, ref := range refs {
		if len(out) == maxCitations {
			break
		}
		for i, c := range chunks {
			if used[i] || (c.ID != ref && c.Source != ref) {
				continue
			}
			used[i] = true
			out = append(out, citation(c))
			break
		}
	}

	if len(out) == 0 && len(chunks) > 0 {
		out = append(out, citation(chunks[0]))
	}
	return out
}

func citation(c retrieval.Chunk) receipts.Citation {
	source := c.Source
	if source == "" {
		source = c.ID
	}
	return receipts.Citation{Source: source, Snippet: snippet(c.Content)}
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= maxSnippetRune {
		return s
	}
	return string(r[:maxSnippetRune]) + "..."
}

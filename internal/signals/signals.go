// Package signals derives normalized compliance signals from a feature artifact.
//
// Extraction is total and deterministic: the same artifact always yields the same
// Set regardless of the order its tags were supplied in.
package signals

import (
	"slices"
	"strings"
	"unicode"

	"github.com/JaimeStill/geogov/internal/artifacts"
)

// Set is the normalized signal set for one artifact.
// Tags are sorted and unique. Hints keep first-seen order.
type Set struct {
	Tags  []string `json:"tags"`
	Hints []string `json:"hints"`
}

// Has reports whether tag is present after normalization.
func (s Set) Has(tag string) bool {
	_, found := slices.BinarySearch(s.Tags, Normalize(tag))
	return found
}

// Equal reports order-independent equality of tags and ordered equality of hints.
func (s Set) Equal(o Set) bool {
	return slices.Equal(s.Tags, o.Tags) && slices.Equal(s.Hints, o.Hints)
}

// Extract derives the signal set of an artifact. It never fails; an artifact
// that matches nothing yields an empty set.
func Extract(a artifacts.Artifact) Set {
	tags := make(map[string]struct{})

	for _, t := range a.Tags {
		if n := Normalize(t); n != "" {
			tags[n] = struct{}{}
		}
	}

	scan := make([]string, 0, len(a.CodeHints)+2)
	scan = append(scan, a.Title, a.Description)
	scan = append(scan, a.CodeHints...)
	for _, tag := range matchPhrases(strings.Join(scan, "\n")) {
		tags[tag] = struct{}{}
	}

	for _, hint := range a.CodeHints {
		for _, tag := range matchCode(hint) {
			tags[tag] = struct{}{}
		}
	}

	return Set{
		Tags:  sortedKeys(tags),
		Hints: hints(a.CodeHints),
	}
}

// Normalize lower-cases a tag, trims it and collapses runs of spaces,
// hyphens and underscores into a single underscore.
func Normalize(tag string) string {
	fields := strings.FieldsFunc(strings.ToLower(tag), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}

// Union normalizes and merges tag lists into a sorted, de-duplicated slice.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, t := range list {
			if n := Normalize(t); n != "" {
				seen[n] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// Query composes the retrieval query for an artifact: title, description and
// extracted hints separated by single spaces.
func Query(a artifacts.Artifact, s Set) string {
	parts := make([]string, 0, len(s.Hints)+2)
	for _, p := range append([]string{a.Title, a.Description}, s.Hints...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func hints(codeHints []string) []string {
	out := make([]string, 0, len(codeHints))
	for _, h := range codeHints {
		h = strings.TrimSpace(h)
		if h == "" || slices.Contains(out, h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

package policy

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind identifies a condition variant.
type Kind int

const (
	// TagsAny holds when the signal set intersects Values.
	TagsAny Kind = iota
	// TextAny holds when the text contains at least one term.
	TextAny
	// TextAll holds when the text contains every term.
	TextAll
	// TextNone holds when the text contains none of the terms.
	TextNone
)

func (k Kind) String() string {
	switch k {
	case TagsAny:
		return "tags_any"
	case TextAny:
		return "text_any"
	case TextAll:
		return "text_all"
	case TextNone:
		return "text_none"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Condition is one tagged predicate of a rule.
type Condition struct {
	Kind   Kind
	Values []string
	terms  [][]string
}

// Rule maps a predicate to a verdict. A rule matches when its Any group is
// empty or has a holding condition, and every condition in All holds.
type Rule struct {
	ID          string
	Any         []Condition
	All         []Condition
	Verdict     bool
	Regulations []string
	Reason      string
}

// subject is the pre-tokenized input a rule is matched against.
type subject struct {
	tags   map[string]struct{}
	tokens []string
}

func (c Condition) holds(s subject) bool {
	switch c.Kind {
	case TagsAny:
		for _, v := range c.Values {
			if _, ok := s.tags[v]; ok {
				return true
			}
		}
		return false
	case TextAny:
		for _, t := range c.terms {
			if containsTerm(s.tokens, t) {
				return true
			}
		}
		return false
	case TextAll:
		for _, t := range c.terms {
			if !containsTerm(s.tokens, t) {
				return false
			}
		}
		return true
	case TextNone:
		for _, t := range c.terms {
			if containsTerm(s.tokens, t) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (r Rule) matches(s subject) bool {
	if len(r.Any) > 0 {
		hit := false
		for _, c := range r.Any {
			if c.holds(s) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, c := range r.All {
		if !c.holds(s) {
			return false
		}
	}
	return true
}

func (r Rule) reason() string {
	if r.Reason == "" {
		return fmt.Sprintf("Rule %s triggered", r.ID)
	}
	return strings.NewReplacer(
		"{rule_id}", r.ID,
		"{regulations}", strings.Join(r.Regulations, ", "),
	).Replace(r.Reason)
}

// tokenize lower-cases text and splits it on every rune that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsTerm reports whether term appears as a contiguous token run in tokens.
func containsTerm(tokens, term []string) bool {
	if len(term) == 0 || len(term) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(term) <= len(tokens); i++ {
		for j := range term {
			if tokens[i+j] != term[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

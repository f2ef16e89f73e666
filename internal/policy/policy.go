// Package policy loads the immutable, versioned rule set and evaluates artifacts against it.
package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/geogov/internal/signals"
)

// Store is a loaded policy. It is never mutated after construction; a policy
// change means loading a new Store with a new version and hash.
type Store struct {
	version string
	hash    string
	raw     []byte
	rules   []Rule
}

type document struct {
	Version string    `yaml:"version"`
	Rules   []ruleDoc `yaml:"rules"`
}

type whenAnyDoc struct {
	Tags []string `yaml:"tags"`
	Text []string `yaml:"text"`
}

type ruleDoc struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	WhenAny     *whenAnyDoc `yaml:"when_any"`
	WhenAnyText []string    `yaml:"when_any_text"`
	WhenAllText []string    `yaml:"when_all_text"`
	AndText     []string    `yaml:"and_text"`
	AndNotText  []string    `yaml:"and_not_text"`
	Verdict     bool        `yaml:"verdict"`
	Regulations []string    `yaml:"regulations"`
	Reason      string      `yaml:"reason"`
}

// Load reads and parses the policy file at path.
func Load(path, fallbackVersion string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data, fallbackVersion)
}

// Parse builds a Store from raw YAML. The document's version field wins over
// fallbackVersion. Unknown keys are rejected.
func Parse(data []byte, fallbackVersion string) (*Store, error) {
	var doc document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	version := strings.TrimSpace(doc.Version)
	if version == "" {
		version = strings.TrimSpace(fallbackVersion)
	}
	if version == "" {
		return nil, fmt.Errorf("%w: version required", ErrInvalidPolicy)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	seen := make(map[string]struct{}, len(doc.Rules))

	for i, rd := range doc.Rules {
		rule, err := rd.compile()
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %w", ErrInvalidPolicy, i, err)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidPolicy, rule.ID)
		}
		seen[rule.ID] = struct{}{}
		rules = append(rules, rule)
	}

	sum := sha256.Sum256(data)

	return &Store{
		version: version,
		hash:    hex.EncodeToString(sum[:]),
		raw:     bytes.Clone(data),
		rules:   rules,
	}, nil
}

// Version returns the policy version.
func (s *Store) Version() string { return s.version }

// Hash returns the hex SHA-256 of the raw policy document.
func (s *Store) Hash() string { return s.hash }

// Snapshot returns a copy of the raw policy document.
func (s *Store) Snapshot() []byte { return bytes.Clone(s.raw) }

// Len returns the number of rules.
func (s *Store) Len() int { return len(s.rules) }

// Rules returns a copy of the rules in declaration order.
func (s *Store) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r
		out[i].Any = cloneConditions(r.Any)
		out[i].All = cloneConditions(r.All)
		out[i].Regulations = slices.Clone(r.Regulations)
	}
	return out
}

func cloneConditions(cs []Condition) []Condition {
	out := make([]Condition, len(cs))
	for i, c := range cs {
		out[i] = Condition{Kind: c.Kind, Values: slices.Clone(c.Values), terms: c.terms}
	}
	return out
}

func (rd ruleDoc) compile() (Rule, error) {
	id := strings.TrimSpace(rd.ID)
	if id == "" {
		return Rule{}, fmt.Errorf("id required")
	}

	rule := Rule{
		ID:          id,
		Verdict:     rd.Verdict,
		Regulations: slices.Clone(rd.Regulations),
		Reason:      strings.TrimSpace(rd.Reason),
	}

	add := func(group *[]Condition, kind Kind, key string, values []string) error {
		if values == nil {
			return nil
		}
		c, err := newCondition(kind, values)
		if err != nil {
			return fmt.Errorf("%s %s: %w", id, key, err)
		}
		*group = append(*group, c)
		return nil
	}

	var err error
	if rd.WhenAny != nil {
		err = errors.Join(err,
			add(&rule.Any, TagsAny, "when_any.tags", rd.WhenAny.Tags),
			add(&rule.Any, TextAny, "when_any.text", rd.WhenAny.Text),
		)
	}
	err = errors.Join(err,
		add(&rule.Any, TextAny, "when_any_text", rd.WhenAnyText),
		add(&rule.All, TextAll, "when_all_text", rd.WhenAllText),
		add(&rule.All, TextAll, "and_text", rd.AndText),
		add(&rule.All, TextNone, "and_not_text", rd.AndNotText),
	)
	if err != nil {
		return Rule{}, err
	}

	return rule, nil
}

func newCondition(kind Kind, values []string) (Condition, error) {
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("empty list")
	}

	c := Condition{Kind: kind, Values: make([]string, 0, len(values))}
	for _, v := range values {
		if kind == TagsAny {
			n := signals.Normalize(v)
			if n == "" {
				return Condition{}, fmt.Errorf("blank tag")
			}
			c.Values = append(c.Values, n)
			continue
		}

		terms := tokenize(v)
		if len(terms) == 0 {
			return Condition{}, fmt.Errorf("term %q has no words", v)
		}
		c.Values = append(c.Values, strings.TrimSpace(v))
		c.terms = append(c.terms, terms)
	}
	return c, nil
}

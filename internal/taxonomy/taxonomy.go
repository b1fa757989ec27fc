// Package taxonomy holds the registry of known dark-pattern rules and the
// regulatory metadata attached to each of them.
//
// A Taxonomy is built once and never mutated afterwards, so a single value can
// be shared by any number of concurrent audits without locking.
package taxonomy

import (
	"errors"
	"fmt"
)

// Category is the dark-pattern grouping a rule belongs to.
type Category string

const (
	CategorySkipping    Category = "Skipping"
	CategoryStirring    Category = "Stirring"
	CategoryHindering   Category = "Hindering"
	CategoryOverloading Category = "Overloading"
	CategoryLeftInDark  Category = "Left in the Dark"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySkipping, CategoryStirring, CategoryHindering, CategoryOverloading, CategoryLeftInDark:
		return true
	}
	return false
}

// Severity is informational; scoring only uses PenaltyWeight.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// PatternRule maps one pattern identifier to its legal and semantic metadata.
type PatternRule struct {
	ID                 string   `json:"id"`
	Category           Category `json:"category"`
	DisplayName        string   `json:"pattern_name"`
	RegulationCitation string   `json:"regulation"`
	Description        string   `json:"description"`
	Severity           Severity `json:"severity"`
	PenaltyWeight      int      `json:"penalty"`
	Remedy             string   `json:"remedy"`
}

var (
	ErrDuplicateRule = errors.New("taxonomy: duplicate rule identifier")
	ErrInvalidRule   = errors.New("taxonomy: invalid rule")
)

// Taxonomy is an immutable identifier -> PatternRule registry.
type Taxonomy struct {
	rules map[string]PatternRule
	order []string
}

// New builds a Taxonomy from literal rules. Rules keep their declaration order
// for listing purposes.
func New(rules ...PatternRule) (*Taxonomy, error) {
	t := &Taxonomy{
		rules: make(map[string]PatternRule, len(rules)),
		order: make([]string, 0, len(rules)),
	}
	for i, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, r.ID, err)
		}
		if _, exists := t.rules[r.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID)
		}
		t.rules[r.ID] = r
		t.order = append(t.order, r.ID)
	}
	return t, nil
}

func validateRule(r PatternRule) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: empty identifier", ErrInvalidRule)
	case !r.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRule, r.Category)
	case !r.Severity.Valid():
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, r.Severity)
	case r.PenaltyWeight < 0:
		return fmt.Errorf("%w: negative penalty %d", ErrInvalidRule, r.PenaltyWeight)
	}
	return nil
}

// Lookup returns the rule registered under id.
func (t *Taxonomy) Lookup(id string) (PatternRule, bool) {
	if t == nil {
		return PatternRule{}, false
	}
	r, ok := t.rules[id]
	return r, ok
}

// Has reports whether id is a known pattern identifier.
func (t *Taxonomy) Has(id string) bool {
	_, ok := t.Lookup(id)
	return ok
}

// Len returns the number of rules.
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Rules returns a copy of all rules in declaration order.
func (t *Taxonomy) Rules() []PatternRule {
	if t == nil {
		return nil
	}
	out := make([]PatternRule, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rules[id])
	}
	return out
}

// Categories returns the distinct categories used by the rules, in first-seen order.
func (t *Taxonomy) Categories() []Category {
	if t == nil {
		return nil
	}
	seen := make(map[Category]bool)
	var out []Category
	for _, id := range t.order {
		c := t.rules[id].Category
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

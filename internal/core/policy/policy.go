// Package policy maps attendance symbols to signup categories and categories
// to the directory roles permitted to claim them. It is pure lookup: it holds
// no state beyond the configuration it was built from.
package policy

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DeclinedKey is the reserved category key for members who will not attend.
// It is never role-restricted and always renders last.
const DeclinedKey = "declined"

// variationSelector16 is appended by some clients to emoji reactions.
const variationSelector16 = "\uFE0F"

// Category is one attendance classification.
type Category struct {
	Key    string
	Label  string
	Symbol string
	// Roles lists the directory roles allowed to claim this category.
	// Empty means anyone may claim it.
	Roles []string
	// Capacity is parsed and exposed but not enforced.
	Capacity *int
}

// Restricted reports whether claiming the category requires a role.
func (c Category) Restricted() bool {
	return len(c.Roles) > 0
}

// Policy is an immutable, validated category configuration.
type Policy struct {
	ordered  []Category
	byKey    map[string]int
	bySymbol map[string]int
}

// New validates the configured categories plus the declined category and
// builds a Policy. The declined category's key and roles are forced to
// DeclinedKey and empty respectively.
func New(categories []Category, declined Category) (*Policy, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one signup category is required")
	}

	declined.Key = DeclinedKey
	declined.Roles = nil
	if declined.Label == "" {
		declined.Label = "Declined"
	}

	p := &Policy{
		ordered:  make([]Category, 0, len(categories)+1),
		byKey:    make(map[string]int, len(categories)+1),
		bySymbol: make(map[string]int, len(categories)+1),
	}

	all := append(append([]Category{}, categories...), declined)
	for i, c := range all {
		c.Key = strings.TrimSpace(c.Key)
		if c.Key == "" {
			return nil, fmt.Errorf("category %d: key is required", i+1)
		}
		if c.Key == DeclinedKey && i < len(categories) {
			return nil, fmt.Errorf("category %d: key %q is reserved", i+1, DeclinedKey)
		}
		if strings.TrimSpace(c.Label) == "" {
			return nil, fmt.Errorf("category %s: label is required", c.Key)
		}
		symbol := NormalizeSymbol(c.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("category %s: symbol is required", c.Key)
		}
		if _, dup := p.byKey[c.Key]; dup {
			return nil, fmt.Errorf("category %s: duplicate key", c.Key)
		}
		if other, dup := p.bySymbol[symbol]; dup {
			return nil, fmt.Errorf("category %s: symbol %s already used by %s", c.Key, c.Symbol, p.ordered[other].Key)
		}
		if c.Capacity != nil && *c.Capacity < 0 {
			return nil, fmt.Errorf("category %s: capacity must not be negative", c.Key)
		}
		c.Roles = compactRoles(c.Roles)

		p.byKey[c.Key] = len(p.ordered)
		p.bySymbol[symbol] = len(p.ordered)
		p.ordered = append(p.ordered, c)
	}

	return p, nil
}

// NormalizeSymbol canonicalizes a reaction symbol for comparison: NFC form,
// surrounding whitespace removed, emoji presentation selectors dropped.
func NormalizeSymbol(symbol string) string {
	s := norm.NFC.String(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, variationSelector16, "")
}

// ResolveCategory maps a symbol to its category key. Unknown symbols never
// resolve to a default.
func (p *Policy) ResolveCategory(symbol string) (string, bool) {
	i, ok := p.bySymbol[NormalizeSymbol(symbol)]
	if !ok {
		return "", false
	}
	return p.ordered[i].Key, true
}

// PermittedRoles returns the roles allowed to claim key. An empty result means
// unrestricted; unknown keys also return nil.
func (p *Policy) PermittedRoles(key string) []string {
	i, ok := p.byKey[key]
	if !ok {
		return nil
	}
	return append([]string(nil), p.ordered[i].Roles...)
}

// Category returns the category for key.
func (p *Policy) Category(key string) (Category, bool) {
	i, ok := p.byKey[key]
	if !ok {
		return Category{}, false
	}
	return p.ordered[i], true
}

// Symbol returns the configured symbol for key.
func (p *Policy) Symbol(key string) (string, bool) {
	c, ok := p.Category(key)
	return c.Symbol, ok
}

// OrderedCategories returns all categories in display order, declined last.
func (p *Policy) OrderedCategories() []Category {
	return append([]Category(nil), p.ordered...)
}

// SeedSymbols returns one symbol per category in display order, ending with
// the declined symbol.
func (p *Policy) SeedSymbols() []string {
	symbols := make([]string, len(p.ordered))
	for i, c := range p.ordered {
		symbols[i] = c.Symbol
	}
	return symbols
}

func compactRoles(roles []string) []string {
	var out []string
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

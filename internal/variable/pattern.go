package variable

import "strings"

// Pattern is a variable-name or target-type pattern over dot-separated
// components (spec.md §4.2): "*", "**", or either with a literal
// dot-prefix/suffix, e.g. "config.*", "*.options", "config.**.options".
//
// Specificity order (spec.md §4.2): prefix_len + suffix_len (larger wins),
// "*" more specific than "**" at equal length, and reverse insertion order
// as the final tie-break.
type Pattern struct {
	Raw           string
	components    []string
	wildcardIndex int // index of the single wildcard component
	isDouble      bool
	MatchRequired bool
	Fallback      bool
	Order         int // insertion order, for the reverse-order tie-break
}

// NewPattern parses raw into a Pattern. raw must contain exactly one
// wildcard component ("*" or "**"); a plain literal name is also accepted
// and treated as a zero-wildcard exact pattern.
func NewPattern(raw string, order int) *Pattern {
	comps := strings.Split(raw, ".")
	p := &Pattern{Raw: raw, components: comps, wildcardIndex: -1, Order: order}
	for i, c := range comps {
		if c == "*" || c == "**" {
			p.wildcardIndex = i
			p.isDouble = c == "**"
			break
		}
	}
	return p
}

// Specificity is prefix_len + suffix_len, or len(components) for an exact
// (wildcard-free) pattern.
func (p *Pattern) Specificity() int {
	if p.wildcardIndex < 0 {
		return len(p.components)
	}
	return len(p.components) - 1
}

// Match reports whether name (dot-split) satisfies p.
func (p *Pattern) Match(name string) bool {
	nc := strings.Split(name, ".")
	if p.wildcardIndex < 0 {
		return equalComponents(p.components, nc)
	}
	prefix := p.components[:p.wildcardIndex]
	suffix := p.components[p.wildcardIndex+1:]
	if len(nc) < len(prefix)+len(suffix) {
		return false
	}
	if !equalComponents(prefix, nc[:len(prefix)]) {
		return false
	}
	if !equalComponents(suffix, nc[len(nc)-len(suffix):]) {
		return false
	}
	middleLen := len(nc) - len(prefix) - len(suffix)
	if !p.isDouble && middleLen != 1 {
		return false
	}
	return true
}

func equalComponents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Less implements the full specificity ordering between p and o for a
// shared matching candidate name: larger specificity wins, '*' beats '**'
// at equal specificity, and higher Order (later insertion) wins the final
// tie-break ("reverse insertion order").
func (p *Pattern) Less(o *Pattern) bool {
	ps, os := p.Specificity(), o.Specificity()
	if ps != os {
		return ps < os
	}
	if p.isDouble != o.isDouble {
		return p.isDouble // '**' (isDouble) is less specific than '*'
	}
	return p.Order < o.Order
}

// PatternSet is an insertion-ordered collection of Patterns supporting
// best-match lookup; used both by Pool for name-pattern variable defaults
// and by the scope package for target-type/pattern variables (§4.3).
type PatternSet struct {
	patterns []*Pattern
	next     int
}

func (ps *PatternSet) Add(raw string, matchRequired, fallback bool) *Pattern {
	p := NewPattern(raw, ps.next)
	ps.next++
	p.MatchRequired = matchRequired
	p.Fallback = fallback
	ps.patterns = append(ps.patterns, p)
	return p
}

// Best returns the most specific pattern matching name, or nil.
func (ps *PatternSet) Best(name string) *Pattern {
	var best *Pattern
	for _, p := range ps.patterns {
		if !p.Match(name) {
			continue
		}
		if best == nil || best.Less(p) {
			best = p
		}
	}
	return best
}

// All returns every pattern matching name, most specific first.
func (ps *PatternSet) All(name string) []*Pattern {
	var out []*Pattern
	for _, p := range ps.patterns {
		if p.Match(name) {
			out = append(out, p)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Less(out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

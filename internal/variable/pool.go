package variable

import (
	"fmt"
	"sync"

	"github.com/b2go/b2go/internal/value"
)

// Pool interns Variables by name (spec.md §4.2). It is mutated only during
// the load phase (spec.md §5) and is safe to read concurrently thereafter
// without further locking by its callers, though Insert itself remains
// internally synchronized for defence in depth.
type Pool struct {
	mu   sync.Mutex
	vars map[string]*Variable

	patterns     []*Pattern
	patternOrder int
}

func NewPool() *Pool {
	return &Pool{vars: make(map[string]*Variable)}
}

// InsertOptions configures Insert; all fields are optional and a zero
// value means "don't change/require anything on this axis".
type InsertOptions struct {
	Type        *value.Type
	Overridable *bool
	Visibility  *Visibility
}

// Insert idempotently interns name, applying the tightening rule: a
// visibility may only narrow (Global -> Project -> Scope -> Target ->
// Prereq) across repeated inserts, a null type may be narrowed to a
// concrete one but a concrete type can never change, and overridability
// cannot be withdrawn once enabled (false may become true, never the
// reverse).
func (p *Pool) Insert(name string, opts InsertOptions) (*Variable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, existed := p.vars[name]
	if !existed {
		v = &Variable{name: name, visibility: Global}
		p.vars[name] = v
	}

	if opts.Type != nil {
		if v.typ != nil && v.typ != opts.Type {
			return nil, fmt.Errorf("variable %q: type conflict, already %s, cannot retype to %s", name, v.typ.Name, opts.Type.Name)
		}
		v.typ = opts.Type
	}

	if opts.Visibility != nil {
		if existed && *opts.Visibility < v.visibility {
			return nil, fmt.Errorf("variable %q: cannot widen visibility from %s to %s", name, v.visibility, *opts.Visibility)
		}
		v.visibility = *opts.Visibility
	}

	if opts.Overridable != nil {
		if existed && v.overridable && !*opts.Overridable {
			return nil, fmt.Errorf("variable %q: cannot disable overridability once enabled", name)
		}
		v.overridable = v.overridable || *opts.Overridable
	}

	return v, nil
}

// NextPatternOrder returns a fresh, ascending order value for a new
// Pattern, giving later-declared patterns priority in the reverse-
// insertion-order tie-break (spec.md §4.2).
func (p *Pool) NextPatternOrder() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.patternOrder
	p.patternOrder++
	return o
}

// Lookup returns the interned Variable for name, if any.
func (p *Pool) Lookup(name string) (*Variable, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.vars[name]
	return v, ok
}

// Names returns every interned variable name, for diag.Suggest candidate
// lists on an undefined-variable lookup.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.vars))
	for name := range p.vars {
		out = append(out, name)
	}
	return out
}

// Alias links a and b into the same alias ring.
func (p *Pool) Alias(a, b *Variable) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return a.addAlias(b)
}

// AddOverride registers a new override for v, returning the synthetic
// Override with the next ascending index (spec.md §4.2: overrides are
// ordered by insertion, exposed via a monotonically increasing index).
func (p *Pool) AddOverride(v *Variable, op OverrideOp, scope uintptr, val *value.Value) *Override {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := &Override{Index: v.nextOverrideIdx, Op: op, Scope: scope, Value: val}
	v.nextOverrideIdx++
	v.overrides = append(v.overrides, o)
	return o
}

// Overrides returns v's overrides visible from a scope chain identified by
// scopeChain (ordered inner-to-outer, as returned while walking up from a
// leaf scope): global overrides (Scope==0) plus any override registered by
// a scope appearing in scopeChain, ordered per spec.md §4.3 ("by override
// scope depth, inner overrides last, and within the same scope by
// ascending override index").
func (v *Variable) Overrides(scopeChain []uintptr) []*Override {
	// scopeChain is ordered innermost-to-outermost (index 0 is the query
	// scope itself, the last index is the outermost scope reached), so a
	// raw index into it is an "outerness" count, the opposite of tree
	// depth. Invert it here so depth[s] grows with actual nesting depth:
	// the outermost scope gets 0, the innermost gets len-1.
	depth := make(map[uintptr]int, len(scopeChain))
	for i, s := range scopeChain {
		depth[s] = len(scopeChain) - 1 - i
	}
	var active []*Override
	for _, o := range v.overrides {
		if o.Scope == 0 {
			active = append(active, o)
			continue
		}
		if _, ok := depth[o.Scope]; ok {
			active = append(active, o)
		}
	}
	// Stable sort by (depth ascending so inner-most is last, then index).
	depthOf := func(o *Override) int {
		if o.Scope == 0 {
			return -1
		}
		return depth[o.Scope]
	}
	for i := 1; i < len(active); i++ {
		for j := i; j > 0; j-- {
			a, b := active[j-1], active[j]
			da, db := depthOf(a), depthOf(b)
			if da < db || (da == db && a.Index <= b.Index) {
				break
			}
			active[j-1], active[j] = active[j], active[j-1]
		}
	}
	return active
}

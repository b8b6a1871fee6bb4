package core

import "github.com/b2go/b2go/internal/variable"

// TargetType is the registry entry of spec.md §2 item 6: typed,
// inheritable, with pattern amenders. Inheritance is single (a TargetType
// has at most one Base), mirroring value.Type's single-inheritance cast
// model in internal/value.
type TargetType struct {
	Name string
	Base *TargetType

	// Group reports whether this type resolves to member targets (e.g.
	// obj{} -> obje{}|obja{}|objs{}, spec.md GLOSSARY "Group").
	Group bool

	// Amenders adjust a default wildcard match for this type, e.g. a
	// language-specific extension filter consulted when the parser
	// expands "*" into files of this target type (spec.md §4.4).
	Amenders []PatternAmender

	// DefaultVars seeds target_vars entries applied to every target of
	// this type when first matched (e.g. a default extension).
	DefaultVars *variable.Map
}

// PatternAmender narrows or rewrites a wildcard match for a specific
// target type, e.g. restricting "*" to files with the cxx{} extension.
type PatternAmender func(candidate string) (accept bool, rewritten string)

// Is reports whether t is base or inherits (directly or transitively)
// from base.
func (t *TargetType) Is(base *TargetType) bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur == base {
			return true
		}
	}
	return false
}

// Chain returns t and every ancestor, most-derived first — the order
// spec.md §4.5 requires rule selection to try ("the target type and its
// bases in order").
func (t *TargetType) Chain() []*TargetType {
	var out []*TargetType
	for cur := t; cur != nil; cur = cur.Base {
		out = append(out, cur)
	}
	return out
}

// TargetTypeRegistry is a scope's target_types map (spec.md §3 Scope).
type TargetTypeRegistry struct {
	byName map[string]*TargetType
}

func NewTargetTypeRegistry() *TargetTypeRegistry {
	return &TargetTypeRegistry{byName: make(map[string]*TargetType)}
}

func (r *TargetTypeRegistry) Register(t *TargetType) { r.byName[t.Name] = t }

func (r *TargetTypeRegistry) Lookup(name string) (*TargetType, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names lists every registered type name, for diag.Suggest candidate
// lists on an undefined-target-type lookup.
func (r *TargetTypeRegistry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Derive implements the `define` directive (spec.md §4.4): a new target
// type N derived from base B, inheriting B's amenders unless overridden.
func (r *TargetTypeRegistry) Derive(name string, base *TargetType) *TargetType {
	t := &TargetType{Name: name, Base: base, Group: base.Group}
	r.Register(t)
	return t
}

package core

import (
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// targetVarEntry is one `type{pattern}: var = value` assignment recorded
// against a scope's target_vars (spec.md §3 Scope, §4.2 pattern
// specificity).
type targetVarEntry struct {
	Type    *TargetType // nil matches any type
	Pattern *variable.Pattern
	Vars    *variable.Map
}

// TargetVarMap is a scope's target_vars: a VariableTypeMap keyed by target
// type and name pattern rather than by plain variable name (spec.md §3).
// Entries are consulted in specificity order so `hello*: x = 1` loses to
// `hello.o: x = 2` for a target literally named hello.o.
type TargetVarMap struct {
	entries []*targetVarEntry
}

func NewTargetVarMap() *TargetVarMap { return &TargetVarMap{} }

// Assign records pat: v = val for targets of type t (nil for any type),
// returning the per-entry Map it was stored in so later assignments to the
// same (type, pattern) share storage.
func (m *TargetVarMap) Assign(t *TargetType, pat *variable.Pattern, v *variable.Variable, val *value.Value) {
	for _, e := range m.entries {
		if e.Type == t && e.Pattern.Raw == pat.Raw {
			e.Vars.Assign(v, val)
			return
		}
	}
	vars := variable.NewMap()
	vars.Assign(v, val)
	m.entries = append(m.entries, &targetVarEntry{Type: t, Pattern: pat, Vars: vars})
}

// Lookup finds the most specific pattern-matching entry applicable to
// (targetType, targetName) that carries variable v, per spec.md §4.2's
// specificity ordering.
func (m *TargetVarMap) Lookup(targetType *TargetType, targetName string, v *variable.Variable) (*value.Value, *variable.Map, bool) {
	var best *targetVarEntry
	for _, e := range m.entries {
		if e.Type != nil && (targetType == nil || !targetType.Is(e.Type)) {
			continue
		}
		if !e.Pattern.Match(targetName) {
			continue
		}
		if _, _, ok := e.Vars.Lookup(v); !ok {
			continue
		}
		if best == nil || best.Pattern.Less(e.Pattern) {
			best = e
		}
	}
	if best == nil {
		return nil, nil, false
	}
	val, _, _ := best.Vars.Lookup(v)
	return val, best.Vars, true
}

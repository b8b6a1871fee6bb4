// Package variable implements spec.md §4.2: interned Variable descriptors,
// the variable_pool that interns them, the prefix-ordered VariableMap that
// stores their values, per-value override chains, and the variable_cache
// that memoizes override application.
package variable

import (
	"fmt"

	"github.com/b2go/b2go/internal/value"
)

// Visibility orders from widest to narrowest, matching spec.md §4.2's
// tightening rule: "subsequent inserts may narrow visibility (global ->
// project -> scope -> target -> prereq) and must not disagree on type".
type Visibility int

const (
	Global Visibility = iota
	Project
	Scope
	Target
	Prereq
)

func (v Visibility) String() string {
	switch v {
	case Global:
		return "global"
	case Project:
		return "project"
	case Scope:
		return "scope"
	case Target:
		return "target"
	case Prereq:
		return "prereq"
	default:
		return "unknown"
	}
}

// Variable is the interned descriptor described in spec.md §4.2. Two
// Variables are equal iff their Name values match, which in Go translates
// to pointer identity once interned through a Pool (the pool never hands
// out two distinct *Variable for the same name).
type Variable struct {
	name        string
	typ         *value.Type
	overridable bool
	visibility  Visibility

	aliasNext *Variable // circular ring; self if no aliases

	overrides []*Override // ordered by ascending Index
	nextOverrideIdx int
}

// VarName implements value.VarRef.
func (v *Variable) VarName() string { return v.name }

func (v *Variable) Name() string          { return v.name }
func (v *Variable) Type() *value.Type     { return v.typ }
func (v *Variable) Overridable() bool     { return v.overridable }
func (v *Variable) Visibility() Visibility { return v.visibility }

// OverrideVersion counts v's registered overrides, letting a cache
// invalidate itself when a new override is added after it memoized a
// result (spec.md §4.3).
func (v *Variable) OverrideVersion() uint64 { return uint64(len(v.overrides)) }

// Aliases returns every variable in v's alias ring, including v itself, in
// ring order.
func (v *Variable) Aliases() []*Variable {
	out := []*Variable{v}
	for cur := v.aliasNext; cur != nil && cur != v; cur = cur.aliasNext {
		out = append(out, cur)
	}
	return out
}

// addAlias links other into v's ring. Aliased variables must not be
// overridable (spec.md §4.2).
func (v *Variable) addAlias(other *Variable) error {
	if v.overridable || other.overridable {
		return fmt.Errorf("variable.alias: aliased variables %q, %q must not be overridable", v.name, other.name)
	}
	if v.aliasNext == nil {
		v.aliasNext = v
	}
	if other.aliasNext == nil {
		other.aliasNext = other
	}
	// Splice other's ring into v's ring.
	vNext, oNext := v.aliasNext, other.aliasNext
	v.aliasNext = oNext
	other.aliasNext = vNext
	return nil
}

// Override describes one synthetic override variable: its encoded name is
// "<name>.<Index>.__override" (or __prefix/__suffix), per spec.md §4.2.
type Override struct {
	Index    int
	Op       OverrideOp
	Scope    uintptr // identity of the scope.Scope that registered it; 0 = global
	Value    *value.Value
}

type OverrideOp int

const (
	OpOverride OverrideOp = iota // '='
	OpPrefix                     // '=+' (prepend)
	OpSuffix                     // '+=' (append)
)

func (o OverrideOp) EncodedSuffix() string {
	switch o {
	case OpPrefix:
		return "__prefix"
	case OpSuffix:
		return "__suffix"
	default:
		return "__override"
	}
}

// EncodedOverrideName returns the synthetic variable name spec.md §4.2 describes.
func (v *Variable) EncodedOverrideName(o *Override) string {
	return fmt.Sprintf("%s.%d.%s", v.name, o.Index, o.Op.EncodedSuffix())
}

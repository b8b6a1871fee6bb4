// Package value implements the typed value system of spec.md §4.1: a
// registry of ValueType descriptors (the Go analogue of build2's
// value_type vtable of callbacks) plus the Value container itself and
// lazy typification.
//
// Re-architecture note (spec.md §9): build2's value_type is a struct of
// function pointers dispatched virtually. Go has no multiple inheritance
// and no use for raw vtables here, so each ValueType instance carries its
// behavior as ordinary struct-held func fields — a tagged-sum-with-
// registry, exactly as §9 prescribes.
package value

import "github.com/b2go/b2go/internal/name"

// VarRef is the minimal view of a variable a ValueType callback needs for
// diagnostics; internal/variable.Variable satisfies it without an import
// cycle back into this package.
type VarRef interface {
	VarName() string
}

// Type bundles the operations spec.md §4.1 assigns to a value_type: assign
// replaces the contents from an untyped names sequence, append/prepend
// extend it (nil if the operation is unsupported), reverse projects back
// to names, compare orders two instances of the type, and empty reports
// whether an instance is the type's "empty" value.
type Type struct {
	Name        string
	Base        *Type // single-inheritance cast target, or nil
	Element     *Type // element type, for container types
	Key         *Type // key type, for map container types
	EmptyValue  bool  // whether an instance typified from empty names is well-defined

	Assign  func(v *Value, names []name.Name, forVar VarRef) error
	Append  func(v *Value, names []name.Name, forVar VarRef) error
	Prepend func(v *Value, names []name.Name, forVar VarRef) error

	Reverse func(v *Value) []name.Name
	Compare func(a, b *Value) int
	Empty   func(v *Value) bool
}

// CanCast reports whether a value of type t can be cast to target,
// i.e. target is t itself or (recursively) t's base type.
func (t *Type) CanCast(target *Type) bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur == target {
			return true
		}
	}
	return false
}

// Registry interns ValueTypes by name; it is populated once during load
// and read-only thereafter (spec.md §5's "Variable pool ... read-only
// during match/execute" applies equally to the type registry it anchors).
type Registry struct {
	byName map[string]*Type
}

func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Type)}
	registerBuiltins(r)
	return r
}

func (r *Registry) Register(t *Type) { r.byName[t.Name] = t }

func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Vector returns (creating and caching if necessary) the vector<elem>
// container type, e.g. "vector<string>".
func (r *Registry) Vector(elem *Type) *Type {
	n := "vector<" + elem.Name + ">"
	if t, ok := r.byName[n]; ok {
		return t
	}
	t := newVectorType(n, elem)
	r.Register(t)
	return t
}

// Map returns (creating and caching if necessary) the map<key,elem>
// container type, e.g. "map<string,string>".
func (r *Registry) Map(key, elem *Type) *Type {
	n := "map<" + key.Name + "," + elem.Name + ">"
	if t, ok := r.byName[n]; ok {
		return t
	}
	t := newMapType(n, key, elem)
	r.Register(t)
	return t
}

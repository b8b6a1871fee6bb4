package value

import (
	"fmt"

	"github.com/b2go/b2go/internal/name"
)

// Value is the runtime container described in spec.md §4.1. An untyped
// value holds a raw Names sequence; once typified, Type is non-nil and
// Data holds the concrete Go representation (bool, uint64, string,
// name.Path, name.DirPath, name.Name, NamePair, TargetTriplet,
// name.ProjectName, or a []*Value / *mapData built by Vector/Map).
//
// Extra carries per-value flags opaque to this package (spec.md §9 Open
// Questions #3): internal/loader sets it as the target-type-pattern
// append (1) / prepend (2) marker, and this package only copies it.
type Value struct {
	Type  *Type
	Null  bool
	Extra uint16
	Data  any
	Names []name.Name
}

// NewNull returns an untyped, null value (the default state of a freshly
// declared variable with no initializer).
func NewNull() *Value { return &Value{Null: true} }

// NewNames returns an untyped value holding ns (the form every RHS of a
// buildfile assignment starts in, before typification).
func NewNames(ns []name.Name) *Value {
	return &Value{Names: ns}
}

// IsUntyped reports whether v has not yet been typified.
func (v *Value) IsUntyped() bool { return v.Type == nil }

// Empty reports whether v is empty: null values and values whose type's
// Empty callback agrees are empty; an untyped value is empty iff it holds
// no names.
func (v *Value) Empty() bool {
	if v.Null {
		return true
	}
	if v.Type == nil {
		return len(v.Names) == 0
	}
	if v.Type.Empty != nil {
		return v.Type.Empty(v)
	}
	return v.Data == nil
}

// Typify lazily converts an untyped value to type t, invoking t.Assign.
// Concurrent typification is serialized through a value-identity mutex
// shard (spec.md §4.1, §9: "publish the type via a relaxed-atomic
// pointer; acquire a per-value mutex before typifying").
func (v *Value) Typify(t *Type, forVar VarRef) error {
	shard := lockFor(v)
	shard.Lock()
	defer shard.Unlock()

	if v.Type == t {
		return nil
	}
	if v.Type != nil {
		return fmt.Errorf("value already typed as %s, cannot retypify as %s", v.Type.Name, t.Name)
	}
	ns := v.Names
	v.Names = nil
	if err := t.Assign(v, ns, forVar); err != nil {
		v.Names = ns
		return err
	}
	v.Type = t
	return nil
}

// Assign replaces v's contents with ns, typifying to t first if v is
// currently untyped. Assignment to a value of a different concrete type
// is an error unless the LHS is untyped or null (spec.md §4.1).
func (v *Value) Assign(t *Type, ns []name.Name, forVar VarRef) error {
	if v.Type == nil {
		v.Type = t
	} else if v.Type != t && !v.Null {
		return fmt.Errorf("cannot assign %s value to %s-typed variable", t.Name, v.Type.Name)
	} else {
		v.Type = t
	}
	v.Null = false
	return t.Assign(v, ns, forVar)
}

// Append extends v in place. If v is untyped and null, it adopts t, the
// type of the appended data (spec.md §4.1: "Append on an untyped NULL
// value adopts the appended type").
func (v *Value) Append(t *Type, ns []name.Name, forVar VarRef) error {
	if v.Type == nil {
		if !v.Null {
			return fmt.Errorf("cannot append typed names to untyped non-null value")
		}
		v.Type = t
		v.Null = false
		return t.Assign(v, ns, forVar)
	}
	if v.Type != t {
		return fmt.Errorf("cannot append %s names to %s-typed value", t.Name, v.Type.Name)
	}
	if t.Append == nil {
		return fmt.Errorf("type %s does not support append", t.Name)
	}
	v.Null = false
	return t.Append(v, ns, forVar)
}

// Prepend is Append's mirror image.
func (v *Value) Prepend(t *Type, ns []name.Name, forVar VarRef) error {
	if v.Type == nil {
		if !v.Null {
			return fmt.Errorf("cannot prepend typed names to untyped non-null value")
		}
		v.Type = t
		v.Null = false
		return t.Assign(v, ns, forVar)
	}
	if v.Type != t {
		return fmt.Errorf("cannot prepend %s names to %s-typed value", t.Name, v.Type.Name)
	}
	if t.Prepend == nil {
		return fmt.Errorf("type %s does not support prepend", t.Name)
	}
	v.Null = false
	return t.Prepend(v, ns, forVar)
}

// Reverse projects v back to a names sequence. For an untyped value this
// is simply its Names field.
func (v *Value) Reverse() []name.Name {
	if v.Type == nil {
		return v.Names
	}
	return v.Type.Reverse(v)
}

// Compare orders two values of the same type; untyped values compare by
// their reversed names lexically via Cast-free string comparison of the
// rendered name.
func Compare(a, b *Value) int {
	if a.Type != nil && b.Type != nil && a.Type == b.Type {
		return a.Type.Compare(a, b)
	}
	an, bn := a.Reverse(), b.Reverse()
	return compareNameSlices(an, bn)
}

func compareNameSlices(a, b []name.Name) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		as, bs := a[i].String(), b[i].String()
		if as != bs {
			if as < bs {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Clone returns a deep-enough copy of v suitable for storing in a
// separate variable_map entry (container Data slices/maps are copied;
// scalar Data is immutable Go data already).
func (v *Value) Clone() *Value {
	c := &Value{Type: v.Type, Null: v.Null, Extra: v.Extra}
	switch d := v.Data.(type) {
	case []*Value:
		nd := make([]*Value, len(d))
		for i, e := range d {
			nd[i] = e.Clone()
		}
		c.Data = nd
	case *mapData:
		nd := &mapData{entries: make(map[string]*Value, len(d.entries)), order: append([]string(nil), d.order...)}
		for k, e := range d.entries {
			nd.entries[k] = e.Clone()
		}
		c.Data = nd
	default:
		c.Data = v.Data
	}
	if v.Names != nil {
		c.Names = append([]name.Name(nil), v.Names...)
	}
	return c
}

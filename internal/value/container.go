package value

import (
	"fmt"
	"sort"

	"github.com/b2go/b2go/internal/name"
)

// convertOne typifies a single name through elem's Assign callback,
// without mutating a real variable's value — used to build container
// elements one name (or map entry) at a time.
func convertOne(elem *Type, n name.Name, forVar VarRef) (*Value, error) {
	tmp := &Value{}
	if err := elem.Assign(tmp, []name.Name{n}, forVar); err != nil {
		return nil, err
	}
	tmp.Type = elem
	return tmp, nil
}

// newVectorType builds the homogeneous vector<elem> container described in
// spec.md §2 item 2. Each source name becomes one element via elem.Assign.
func newVectorType(typeName string, elem *Type) *Type {
	return &Type{
		Name:       typeName,
		Element:    elem,
		EmptyValue: true,
		Assign: func(v *Value, names []name.Name, forVar VarRef) error {
			elems := make([]*Value, 0, len(names))
			for _, n := range names {
				e, err := convertOne(elem, n, forVar)
				if err != nil {
					return fmt.Errorf("%s: %w", typeName, err)
				}
				elems = append(elems, e)
			}
			v.Data = elems
			return nil
		},
		Append: func(v *Value, names []name.Name, forVar VarRef) error {
			cur := v.Data.([]*Value)
			for _, n := range names {
				e, err := convertOne(elem, n, forVar)
				if err != nil {
					return fmt.Errorf("%s: %w", typeName, err)
				}
				cur = append(cur, e)
			}
			v.Data = cur
			return nil
		},
		Prepend: func(v *Value, names []name.Name, forVar VarRef) error {
			cur := v.Data.([]*Value)
			add := make([]*Value, 0, len(names))
			for _, n := range names {
				e, err := convertOne(elem, n, forVar)
				if err != nil {
					return fmt.Errorf("%s: %w", typeName, err)
				}
				add = append(add, e)
			}
			v.Data = append(add, cur...)
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			cur := v.Data.([]*Value)
			out := make([]name.Name, 0, len(cur))
			for _, e := range cur {
				out = append(out, elem.Reverse(e)...)
			}
			return out
		},
		Compare: func(a, b *Value) int {
			av, bv := a.Data.([]*Value), b.Data.([]*Value)
			for i := 0; i < len(av) && i < len(bv); i++ {
				if c := elem.Compare(av[i], bv[i]); c != 0 {
					return c
				}
			}
			switch {
			case len(av) < len(bv):
				return -1
			case len(av) > len(bv):
				return 1
			default:
				return 0
			}
		},
		Empty: func(v *Value) bool { return len(v.Data.([]*Value)) == 0 },
	}
}

// mapData is a map-typed value's Data representation: the entries
// themselves plus their first-insertion key order, so Reverse can produce
// a deterministic names sequence (spec.md §8's "dump names, re-parse,
// same AST" round-trip would otherwise depend on Go's randomized map
// iteration order).
type mapData struct {
	entries map[string]*Value
	order   []string
}

func newMapData() *mapData {
	return &mapData{entries: make(map[string]*Value)}
}

// set inserts or overwrites k, appending k to order only the first time
// it is seen so a later Append that touches an existing key doesn't
// change its position.
func (m *mapData) set(k string, v *Value) {
	if _, ok := m.entries[k]; !ok {
		m.order = append(m.order, k)
	}
	m.entries[k] = v
}

// newMapType builds the homogeneous map<key,elem> container. Entries are
// sourced from pair-linked names (key@value, per §4.4's pair separator).
func newMapType(typeName string, key, elem *Type) *Type {
	buildEntries := func(names []name.Name, forVar VarRef) (*mapData, error) {
		md := newMapData()
		rest := names
		for len(rest) > 0 {
			if !rest[0].IsPair() {
				return nil, fmt.Errorf("%s entry must be a pair-linked key@value name", typeName)
			}
			k, v2, r, ok := name.PairPartner(rest)
			if !ok {
				return nil, fmt.Errorf("%s entry missing pair partner", typeName)
			}
			kv, err := convertOne(key, k, forVar)
			if err != nil {
				return nil, fmt.Errorf("%s key: %w", typeName, err)
			}
			vv, err := convertOne(elem, v2, forVar)
			if err != nil {
				return nil, fmt.Errorf("%s value: %w", typeName, err)
			}
			ks := key.Reverse(kv)[0].String()
			md.set(ks, vv)
			rest = r
		}
		return md, nil
	}

	return &Type{
		Name:       typeName,
		Element:    elem,
		Key:        key,
		EmptyValue: true,
		Assign: func(v *Value, names []name.Name, forVar VarRef) error {
			md, err := buildEntries(names, forVar)
			if err != nil {
				return err
			}
			v.Data = md
			return nil
		},
		Append: func(v *Value, names []name.Name, forVar VarRef) error {
			md, err := buildEntries(names, forVar)
			if err != nil {
				return err
			}
			cur := v.Data.(*mapData)
			for _, k := range md.order {
				cur.set(k, md.entries[k])
			}
			v.Data = cur
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			cur := v.Data.(*mapData)
			out := make([]name.Name, 0, len(cur.order)*2)
			for _, k := range cur.order {
				kn := name.Simple(k)
				kn.Pair = '@'
				out = append(out, kn)
				out = append(out, elem.Reverse(cur.entries[k])...)
			}
			return out
		},
		Compare: func(a, b *Value) int {
			av, bv := a.Data.(*mapData), b.Data.(*mapData)
			switch {
			case len(av.entries) < len(bv.entries):
				return -1
			case len(av.entries) > len(bv.entries):
				return 1
			}
			// Equal length: compare by sorted key so two maps built in a
			// different insertion order but with identical content compare
			// equal, instead of only ever comparing lengths.
			keys := make([]string, 0, len(av.entries))
			for k := range av.entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				bev, ok := bv.entries[k]
				if !ok {
					return 1
				}
				if c := elem.Compare(av.entries[k], bev); c != 0 {
					return c
				}
			}
			for k := range bv.entries {
				if _, ok := av.entries[k]; !ok {
					return -1
				}
			}
			return 0
		},
		Empty: func(v *Value) bool { return len(v.Data.(*mapData).entries) == 0 },
	}
}

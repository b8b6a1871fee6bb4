package value

import (
	"fmt"
	"strconv"

	"github.com/b2go/b2go/internal/name"
)

// NamePair is the Go representation of the name_pair value type: two names
// joined by the buildfile '@' pair separator (§4.4).
type NamePair struct {
	First  name.Name
	Second name.Name
}

// TargetTriplet identifies a target by (project, type, value) without the
// directory components carried by a full name.Name; used for variables
// that reference "some target of some type", e.g. recipe hints.
type TargetTriplet struct {
	Project name.ProjectName
	Type    string
	Value   string
}

func registerBuiltins(r *Registry) {
	r.Register(boolType())
	r.Register(uint64Type())
	r.Register(stringType())
	r.Register(pathType())
	r.Register(dirPathType())
	r.Register(nameType())
	r.Register(namePairType())
	r.Register(targetTripletType())
	r.Register(projectNameType())
}

func exactlyOne(names []name.Name, typeName string) (name.Name, error) {
	if len(names) != 1 {
		return name.Name{}, fmt.Errorf("%s value must consist of exactly one name, got %d", typeName, len(names))
	}
	return names[0], nil
}

func boolType() *Type {
	return &Type{
		Name:       "bool",
		EmptyValue: false,
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "bool")
			if err != nil {
				return err
			}
			b, err := strconv.ParseBool(n.Value)
			if err != nil {
				return fmt.Errorf("invalid bool %q: %w", n.Value, err)
			}
			v.Data = b
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			return []name.Name{name.Simple(strconv.FormatBool(v.Data.(bool)))}
		},
		Compare: func(a, b *Value) int {
			av, bv := a.Data.(bool), b.Data.(bool)
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		},
		Empty: func(v *Value) bool { return !v.Data.(bool) },
	}
}

func uint64Type() *Type {
	return &Type{
		Name: "uint64",
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "uint64")
			if err != nil {
				return err
			}
			u, err := strconv.ParseUint(n.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid uint64 %q: %w", n.Value, err)
			}
			v.Data = u
			return nil
		},
		Append: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "uint64")
			if err != nil {
				return err
			}
			u, err := strconv.ParseUint(n.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid uint64 %q: %w", n.Value, err)
			}
			v.Data = v.Data.(uint64) + u
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			return []name.Name{name.Simple(strconv.FormatUint(v.Data.(uint64), 10))}
		},
		Compare: func(a, b *Value) int {
			av, bv := a.Data.(uint64), b.Data.(uint64)
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		},
		Empty: func(v *Value) bool { return v.Data.(uint64) == 0 },
	}
}

func stringType() *Type {
	return &Type{
		Name:       "string",
		EmptyValue: true,
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "string")
			if err != nil {
				return err
			}
			v.Data = n.Value
			return nil
		},
		Append: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "string")
			if err != nil {
				return err
			}
			v.Data = v.Data.(string) + n.Value
			return nil
		},
		Prepend: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "string")
			if err != nil {
				return err
			}
			v.Data = n.Value + v.Data.(string)
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			return []name.Name{name.Simple(v.Data.(string))}
		},
		Compare: func(a, b *Value) int {
			as, bs := a.Data.(string), b.Data.(string)
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		},
		Empty: func(v *Value) bool { return v.Data.(string) == "" },
	}
}

func pathType() *Type {
	return &Type{
		Name:       "path",
		EmptyValue: true,
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "path")
			if err != nil {
				return err
			}
			v.Data = name.NewPath(n.Dir.String() + n.Value)
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			return []name.Name{name.Simple(v.Data.(name.Path).String())}
		},
		Compare: func(a, b *Value) int {
			as, bs := a.Data.(name.Path).String(), b.Data.(name.Path).String()
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		},
		Empty: func(v *Value) bool { return v.Data.(name.Path).Empty() },
	}
}

func dirPathType() *Type {
	return &Type{
		Name:       "dir_path",
		EmptyValue: true,
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "dir_path")
			if err != nil {
				return err
			}
			v.Data = name.NewDirPath(n.Dir.String() + n.Value)
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			return []name.Name{{Dir: v.Data.(name.DirPath)}}
		},
		Compare: func(a, b *Value) int {
			as, bs := a.Data.(name.DirPath).String(), b.Data.(name.DirPath).String()
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		},
		Empty: func(v *Value) bool { return v.Data.(name.DirPath).Empty() },
	}
}

func nameType() *Type {
	return &Type{
		Name: "name",
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "name")
			if err != nil {
				return err
			}
			v.Data = n
			return nil
		},
		Reverse: func(v *Value) []name.Name { return []name.Name{v.Data.(name.Name)} },
		Compare: func(a, b *Value) int {
			if a.Data.(name.Name).Equal(b.Data.(name.Name)) {
				return 0
			}
			return compareNameSlices([]name.Name{a.Data.(name.Name)}, []name.Name{b.Data.(name.Name)})
		},
		Empty: func(v *Value) bool { return v.Data.(name.Name).Value == "" },
	}
}

func namePairType() *Type {
	return &Type{
		Name: "name_pair",
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			first, second, rest, ok := name.PairPartner(names)
			if !ok || len(rest) != 0 {
				return fmt.Errorf("name_pair value must be exactly two pair-linked names")
			}
			v.Data = NamePair{First: first, Second: second}
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			p := v.Data.(NamePair)
			first := p.First
			first.Pair = '@'
			return []name.Name{first, p.Second}
		},
		Compare: func(a, b *Value) int {
			ap, bp := a.Data.(NamePair), b.Data.(NamePair)
			if c := compareNameSlices([]name.Name{ap.First}, []name.Name{bp.First}); c != 0 {
				return c
			}
			return compareNameSlices([]name.Name{ap.Second}, []name.Name{bp.Second})
		},
	}
}

func targetTripletType() *Type {
	return &Type{
		Name: "target_triplet",
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "target_triplet")
			if err != nil {
				return err
			}
			v.Data = TargetTriplet{Project: n.ProjectOrEmpty(), Type: n.Type, Value: n.Value}
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			t := v.Data.(TargetTriplet)
			proj := t.Project
			return []name.Name{{Project: &proj, Type: t.Type, Value: t.Value}}
		},
		Compare: func(a, b *Value) int {
			av, bv := a.Data.(TargetTriplet), b.Data.(TargetTriplet)
			as := string(av.Project) + "/" + av.Type + "/" + av.Value
			bs := string(bv.Project) + "/" + bv.Type + "/" + bv.Value
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		},
	}
}

func projectNameType() *Type {
	return &Type{
		Name: "project_name",
		Assign: func(v *Value, names []name.Name, _ VarRef) error {
			n, err := exactlyOne(names, "project_name")
			if err != nil {
				return err
			}
			v.Data = name.ProjectName(n.Value)
			return nil
		},
		Reverse: func(v *Value) []name.Name {
			return []name.Name{name.Simple(string(v.Data.(name.ProjectName)))}
		},
		Compare: func(a, b *Value) int {
			as, bs := string(a.Data.(name.ProjectName)), string(b.Data.(name.ProjectName))
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		},
		Empty: func(v *Value) bool { return v.Data.(name.ProjectName) == "" },
	}
}

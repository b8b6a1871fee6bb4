package name

import "strings"

// ProjectName identifies a project within a src/out root tree.
type ProjectName string

// Name is the tuple described in spec.md §3: a project-qualified,
// directory-relative, optionally typed value, with optional pair linkage
// to the name that immediately follows it in a names sequence.
//
// Invariants:
//   - simple:    Type == "" and Project == nil
//   - typed:     Type != ""
//   - qualified: Project != nil (an empty string means "explicitly no
//     project", as opposed to nil meaning "unspecified")
//   - pair:      Pair != 0, in which case the following Name in the
//     enclosing slice is this name's pair partner
//   - directory-only: Value == "" && Type == "" && !Dir.Empty()
type Name struct {
	Project *ProjectName
	Dir     DirPath
	Type    string
	Value   string
	Pair    byte
}

// Simple constructs an unqualified, untyped value name.
func Simple(value string) Name { return Name{Value: value} }

// Typed constructs an untyped-project typed name.
func Typed(typ, value string) Name { return Name{Type: typ, Value: value} }

// InDir returns a copy of n rooted under dir.
func (n Name) InDir(dir DirPath) Name {
	n.Dir = dir
	return n
}

// Qualify returns a copy of n qualified with project p.
func (n Name) Qualify(p ProjectName) Name {
	n.Project = &p
	return n
}

func (n Name) IsSimple() bool     { return n.Type == "" && n.Project == nil }
func (n Name) IsTyped() bool      { return n.Type != "" }
func (n Name) IsQualified() bool  { return n.Project != nil }
func (n Name) IsPair() bool       { return n.Pair != 0 }
func (n Name) IsDirectory() bool  { return n.Value == "" && n.Type == "" && !n.Dir.Empty() }
func (n Name) ProjectOrEmpty() ProjectName {
	if n.Project == nil {
		return ""
	}
	return *n.Project
}

// String renders n using the buildfile surface syntax, e.g.
// "foo%obj{bar}" for a qualified, typed name, or "bar/" for a directory.
func (n Name) String() string {
	var b strings.Builder
	if n.Project != nil {
		b.WriteString(string(*n.Project))
		b.WriteByte('%')
	}
	if n.Type != "" {
		b.WriteString(n.Type)
		b.WriteByte('{')
		b.WriteString(n.Dir.String())
		b.WriteString(n.Value)
		b.WriteByte('}')
	} else {
		b.WriteString(n.Dir.String())
		b.WriteString(n.Value)
	}
	if n.Pair != 0 {
		b.WriteByte(n.Pair)
	}
	return b.String()
}

// Key is the lookup-oriented projection of a name used by target and
// prerequisite sets: project, directory, type and value, ignoring pair
// linkage (which is a parse-time-only concept).
type Key struct {
	Project ProjectName
	Dir     string
	Type    string
	Value   string
}

func (n Name) Key() Key {
	return Key{Project: n.ProjectOrEmpty(), Dir: n.Dir.String(), Type: n.Type, Value: n.Value}
}

// Equal compares two names field-by-field, including pair markers.
func (n Name) Equal(o Name) bool {
	if n.ProjectOrEmpty() != o.ProjectOrEmpty() || n.IsQualified() != o.IsQualified() {
		return false
	}
	return n.Dir == o.Dir && n.Type == o.Type && n.Value == o.Value && n.Pair == o.Pair
}

// PairPartner splits names into (first, second, rest) when names[0] is
// pair-marked; ok is false otherwise (or if no partner follows).
func PairPartner(names []Name) (first, second Name, rest []Name, ok bool) {
	if len(names) == 0 || !names[0].IsPair() {
		return Name{}, Name{}, names, false
	}
	if len(names) < 2 {
		return names[0], Name{}, nil, false
	}
	return names[0], names[1], names[2:], true
}

// Cross implements group-brace crossing: a{b c}{d e} -> a/b/d, a/b/e,
// a/c/d, a/c/e (§4.4). Each group is a set of value suffixes appended in
// turn to every name accumulated so far.
func Cross(base Name, groups [][]string) []Name {
	acc := []Name{base}
	for _, g := range groups {
		var next []Name
		for _, n := range acc {
			for _, suffix := range g {
				c := n
				c.Value = joinPath(n.Value, suffix)
				next = append(next, c)
			}
		}
		acc = next
	}
	return acc
}

func joinPath(a, b string) string {
	if a == "" {
		return b
	}
	if strings.HasSuffix(a, "/") {
		return a + b
	}
	return a + "/" + b
}

package core

import (
	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/variable"
)

// RootExtra holds the project-level invariants of spec.md §3, set once at
// bootstrap and never mutated thereafter.
type RootExtra struct {
	Project      name.ProjectName
	Amalgamation *Scope // outer project containing this one, if any
	Subprojects  map[string]*Scope
	NamingScheme string
	Modules      []string
	Targets      *TargetSet

	// Exports records the names an export.build declared (spec.md §4.9/
	// §6): the surface an importing project's `import` directive
	// resolves against, keyed by the plain target name.
	Exports map[string]name.Name
}

// Scope is the directory-keyed container of spec.md §3: a nested scope
// keyed by absolute out-directory, with project roots carrying RootExtra.
type Scope struct {
	OutPath name.DirPath
	SrcPath name.DirPath // zero value means "same as OutPath" (not forwarded)

	Vars       *variable.Map
	TargetVars *TargetVarMap
	TargetTypes *TargetTypeRegistry
	Rules      *RuleMap

	Parent *Scope
	Root   *Scope // the project root scope this scope belongs to (self if this is one)
	Strong bool    // true iff this scope is itself a project root
	Extra  *RootExtra

	id uintptr
}

var scopeIDSeq = newIDSequence()

// NewRootScope creates a fresh project root scope (Strong, owning Extra
// and a TargetSet).
func NewRootScope(outPath name.DirPath, parent *Scope) *Scope {
	s := &Scope{
		OutPath:     outPath,
		Vars:        variable.NewMap(),
		TargetVars:  NewTargetVarMap(),
		TargetTypes: NewTargetTypeRegistry(),
		Rules:       NewRuleMap(),
		Parent:      parent,
		Strong:      true,
		id:          scopeIDSeq.next(),
	}
	s.Root = s
	s.Extra = &RootExtra{Subprojects: make(map[string]*Scope), Targets: NewTargetSet()}
	return s
}

// NewSubScope creates a nested (non-root) scope under parent, inheriting
// its Root.
func NewSubScope(outPath name.DirPath, parent *Scope) *Scope {
	root := parent.Root
	return &Scope{
		OutPath:     outPath,
		Vars:        variable.NewMap(),
		TargetVars:  NewTargetVarMap(),
		TargetTypes: NewTargetTypeRegistry(),
		Rules:       NewRuleMap(),
		Parent:      parent,
		Root:        root,
		id:          scopeIDSeq.next(),
	}
}

// ID is the scope's identity used for override scoping (variable.Override.
// Scope) and variable_override_cache keys (spec.md §4.3).
func (s *Scope) ID() uintptr { return s.id }

// Targets returns the TargetSet owned by this scope's project root.
func (s *Scope) Targets() *TargetSet { return s.Root.Extra.Targets }

// ResolveTargetType walks this scope and its ancestors for a target type
// named name.
func (s *Scope) ResolveTargetType(typeName string) (*TargetType, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if t, ok := cur.TargetTypes.Lookup(typeName); ok {
			return t, true
		}
	}
	return nil, false
}

// FindRule selects a rule for (a, targetType, hint) by walking the scope
// chain outward, then the target type's base chain, preferring a more
// specific hint at each step (spec.md §4.5).
func (s *Scope) FindRule(a Action, t *TargetType, hint string) (Rule, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		for _, tt := range t.Chain() {
			if hint != "" {
				if r, ok := cur.Rules.lookup(RuleKey{MetaOp: a.MetaOp, Op: a.Op, TargetType: tt.Name, Hint: hint}); ok {
					return r, true
				}
			}
			if r, ok := cur.Rules.lookup(RuleKey{MetaOp: a.MetaOp, Op: a.Op, TargetType: tt.Name}); ok {
				return r, true
			}
		}
		// Failing all, try the outer-operation rule (spec.md §4.5).
		if a.OuterOp != 0 {
			outer := Action{MetaOp: a.MetaOp, Op: a.OuterOp}
			for _, tt := range t.Chain() {
				if r, ok := cur.Rules.lookup(RuleKey{MetaOp: outer.MetaOp, Op: outer.Op, TargetType: tt.Name}); ok {
					return r, true
				}
			}
		}
	}
	return nil, false
}

type idSequence struct{ ch chan uintptr }

func newIDSequence() *idSequence {
	seq := &idSequence{ch: make(chan uintptr, 1)}
	seq.ch <- 1
	return seq
}

func (s *idSequence) next() uintptr {
	v := <-s.ch
	s.ch <- v + 1
	return v
}

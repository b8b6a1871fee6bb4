package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

func TestScopeFindWalksToParent(t *testing.T) {
	pool := variable.NewPool()
	v, err := pool.Insert("config.verbose", variable.InsertOptions{})
	require.NoError(t, err)

	root := NewRootScope(name.NewDirPath("/out/proj/"), nil)
	sub := NewSubScope(name.NewDirPath("/out/proj/sub/"), root)

	root.Vars.Assign(v, value.NewNames([]name.Name{name.Simple("true")}))

	res := sub.Find(v, nil)
	require.True(t, res.Found)
	assert.Same(t, root.Vars, res.StorageMap)
}

func TestScopeFindStopsAtProjectBoundaryForProjectVisibility(t *testing.T) {
	pool := variable.NewPool()
	projVis := variable.Project
	v, err := pool.Insert("x", variable.InsertOptions{Visibility: &projVis})
	require.NoError(t, err)

	outer := NewRootScope(name.NewDirPath("/out/"), nil)
	root := NewRootScope(name.NewDirPath("/out/proj/"), outer)
	root.Extra.Amalgamation = outer
	sub := NewSubScope(name.NewDirPath("/out/proj/sub/"), root)

	outer.Vars.Assign(v, value.NewNames([]name.Name{name.Simple("only-in-outer")}))

	res := sub.Find(v, nil)
	assert.False(t, res.Found, "project-visibility variable must not cross the project root boundary")
}

func TestScopeFindReachesGlobalAcrossAmalgamation(t *testing.T) {
	pool := variable.NewPool()
	v, err := pool.Insert("y", variable.InsertOptions{})
	require.NoError(t, err)

	outer := NewRootScope(name.NewDirPath("/out/"), nil)
	root := NewRootScope(name.NewDirPath("/out/proj/"), outer)
	root.Extra.Amalgamation = outer

	outer.Vars.Assign(v, value.NewNames([]name.Name{name.Simple("global-value")}))

	res := root.Find(v, nil)
	require.True(t, res.Found)
	assert.Same(t, outer.Vars, res.StorageMap)
}

func TestScopeFindOverridesAppliedAtLookup(t *testing.T) {
	pool := variable.NewPool()
	overridable := true
	v, err := pool.Insert("z", variable.InsertOptions{Overridable: &overridable})
	require.NoError(t, err)

	root := NewRootScope(name.NewDirPath("/out/proj/"), nil)
	sub := NewSubScope(name.NewDirPath("/out/proj/sub/"), root)

	root.Vars.Assign(v, value.NewNames([]name.Name{name.Simple("base")}))
	pool.AddOverride(v, variable.OpOverride, sub.ID(), value.NewNames([]name.Name{name.Simple("overridden")}))

	cache := variable.NewCache()
	res := sub.Find(v, cache)
	require.True(t, res.Found)
	require.Len(t, res.Value.Names, 1)
	assert.Equal(t, "overridden", res.Value.Names[0].Value)

	// Found from the root scope directly, the override (scoped to sub)
	// must not apply.
	res = root.Find(v, cache)
	require.True(t, res.Found)
	assert.Equal(t, "base", res.Value.Names[0].Value)
}

func TestFindRulePrefersMoreDerivedTargetType(t *testing.T) {
	base := &TargetType{Name: "file"}
	derived := &TargetType{Name: "cxx", Base: base}

	root := NewRootScope(name.NewDirPath("/out/proj/"), nil)
	baseRule := RuleFuncs{
		MatchFn: func(Action, *Target, string) bool { return true },
		ApplyFn: func(a Action, t *Target) (Recipe, error) { return NoopRecipe, nil },
	}
	derivedRule := RuleFuncs{
		MatchFn: func(Action, *Target, string) bool { return true },
		ApplyFn: func(a Action, t *Target) (Recipe, error) { return NoopRecipe, nil },
	}
	a := Action{MetaOp: 1, Op: 1}
	root.Rules.Register(RuleKey{MetaOp: 1, Op: 1, TargetType: "file"}, baseRule)
	root.Rules.Register(RuleKey{MetaOp: 1, Op: 1, TargetType: "cxx"}, derivedRule)

	r, ok := root.FindRule(a, derived, "")
	require.True(t, ok)
	assert.Equal(t, derivedRule, r)
}

func TestFindRuleFallsBackToOuterOp(t *testing.T) {
	typ := &TargetType{Name: "exe"}
	root := NewRootScope(name.NewDirPath("/out/proj/"), nil)
	outerRule := RuleFuncs{
		MatchFn: func(Action, *Target, string) bool { return true },
		ApplyFn: func(a Action, t *Target) (Recipe, error) { return NoopRecipe, nil },
	}
	root.Rules.Register(RuleKey{MetaOp: 1, Op: 2, TargetType: "exe"}, outerRule)

	a := Action{MetaOp: 1, Op: 3, OuterOp: 2}
	r, ok := root.FindRule(a, typ, "")
	require.True(t, ok)
	assert.Equal(t, outerRule, r)
}

func TestTargetSetInsertIsIdempotent(t *testing.T) {
	ts := NewTargetSet()
	typ := &TargetType{Name: "file"}
	key := TargetKey{Type: typ, Dir: name.NewDirPath("/src/"), Name: "a.txt"}
	scope := NewRootScope(name.NewDirPath("/out/"), nil)

	t1, fresh1 := ts.Insert(key, scope)
	t2, fresh2 := ts.Insert(key, scope)
	assert.True(t, fresh1)
	assert.False(t, fresh2)
	assert.Same(t, t1, t2)
}

func TestTargetGroupRecipeAggregatesMembers(t *testing.T) {
	groupType := &TargetType{Name: "obj", Group: true}
	scope := NewRootScope(name.NewDirPath("/out/"), nil)
	group := NewTarget(TargetKey{Type: groupType, Name: "main"}, scope)

	memberType := &TargetType{Name: "obje"}
	a := Action{MetaOp: 1, Op: 1}
	m1 := group.AddAdhocMember(memberType, scope)
	m2 := group.AddAdhocMember(memberType, scope)
	m1.SetState(a, StateUnchanged)
	m2.SetState(a, StateChanged)

	st, err := GroupRecipe(a, group)
	require.NoError(t, err)
	assert.Equal(t, StateChanged, st)
}

func TestDefaultRecipeFailsOnFailedPrerequisite(t *testing.T) {
	scope := NewRootScope(name.NewDirPath("/out/"), nil)
	typ := &TargetType{Name: "exe"}
	tgt := NewTarget(TargetKey{Type: typ, Name: "main"}, scope)
	dep := NewTarget(TargetKey{Type: typ, Name: "dep"}, scope)

	a := Action{MetaOp: 1, Op: 1}
	dep.SetState(a, StateFailed)
	tgt.SetPrereqTargets(a, []*PrereqTarget{{Target: dep}})

	_, err := DefaultRecipe(a, tgt)
	assert.Error(t, err)
}

package variable

import (
	"testing"

	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/value"
)

func overridable(b bool) *bool { return &b }
func vis(v Visibility) *Visibility { return &v }

func TestPoolInsertTightening(t *testing.T) {
	p := NewPool()
	v, err := p.Insert("config.x", InsertOptions{Visibility: vis(Global)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Insert("config.x", InsertOptions{Visibility: vis(Project)}); err != nil {
		t.Fatalf("narrowing visibility should succeed: %v", err)
	}
	if _, err := p.Insert("config.x", InsertOptions{Visibility: vis(Global)}); err == nil {
		t.Fatal("expected widening visibility to fail")
	}
	if v.Visibility() != Project {
		t.Fatalf("got %v, want Project", v.Visibility())
	}
}

func TestPoolOverridabilityCannotRelax(t *testing.T) {
	p := NewPool()
	if _, err := p.Insert("config.y", InsertOptions{Overridable: overridable(false)}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Insert("config.y", InsertOptions{Overridable: overridable(true)}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, err := p.Insert("config.y", InsertOptions{Overridable: overridable(false)}); err == nil {
		t.Fatal("expected relaxation-prevention error")
	}
}

func TestOverrideOrdering(t *testing.T) {
	p := NewPool()
	v, _ := p.Insert("config.x", InsertOptions{})
	reg := value.NewRegistry()
	u64, _ := reg.Lookup("uint64")
	val1 := &value.Value{}
	val1.Assign(u64, []name.Name{name.Simple("1")}, v)
	val2 := &value.Value{}
	val2.Assign(u64, []name.Name{name.Simple("2")}, v)

	oGlobal := p.AddOverride(v, OpOverride, 0, val1)
	oScoped := p.AddOverride(v, OpSuffix, 7, val2)

	active := v.Overrides([]uintptr{7})
	if len(active) != 2 || active[0] != oGlobal || active[1] != oScoped {
		t.Fatalf("unexpected override order: %+v", active)
	}

	// Outside scope 7, the scoped override is not visible (spec.md §8:
	// "Overrides registered with scope S do not affect lookups in S's
	// siblings").
	onlyGlobal := v.Overrides([]uintptr{99})
	if len(onlyGlobal) != 1 || onlyGlobal[0] != oGlobal {
		t.Fatalf("expected only the global override, got %+v", onlyGlobal)
	}
}

func TestOverrideOrderingThreeLevelScopes(t *testing.T) {
	p := NewPool()
	v, _ := p.Insert("config.x", InsertOptions{})
	reg := value.NewRegistry()
	u64, _ := reg.Lookup("uint64")
	mk := func(s string) *value.Value {
		val := &value.Value{}
		val.Assign(u64, []name.Name{name.Simple(s)}, v)
		return val
	}

	const leafID, midID, rootID uintptr = 1, 2, 3

	oRoot := p.AddOverride(v, OpOverride, rootID, mk("1"))
	oMid := p.AddOverride(v, OpSuffix, midID, mk("2"))
	oLeaf := p.AddOverride(v, OpSuffix, leafID, mk("3"))

	// scopeChain as produced by core.Scope.find: innermost (leaf) first,
	// outermost (root) last (see internal/core/lookup.go). spec.md §4.3:
	// "Application order is by override scope depth (inner overrides
	// last)" — so the root's override must come first and the leaf's
	// last, regardless of scopeChain's leaf-first traversal order.
	active := v.Overrides([]uintptr{leafID, midID, rootID})
	if len(active) != 3 || active[0] != oRoot || active[1] != oMid || active[2] != oLeaf {
		t.Fatalf("expected root, mid, leaf order (inner overrides last); got %+v", active)
	}
}

func TestPatternSpecificity(t *testing.T) {
	ps := &PatternSet{}
	star := ps.Add("cxx.*", false, false)
	doubleStar := ps.Add("cxx.**", false, false)
	exact := ps.Add("cxx.poptions", false, false)

	if !star.Match("cxx.poptions") || !doubleStar.Match("cxx.poptions") || !exact.Match("cxx.poptions") {
		t.Fatal("expected all three to match cxx.poptions")
	}
	best := ps.Best("cxx.poptions")
	if best != exact {
		t.Fatalf("expected exact match to win, got %q", best.Raw)
	}

	best2 := ps.Best("cxx.coptions")
	if best2 != star {
		t.Fatalf("expected '*' to beat '**' at equal specificity, got %q", best2.Raw)
	}
}

func TestAliasLookup(t *testing.T) {
	p := NewPool()
	a, _ := p.Insert("cxx.std", InsertOptions{})
	b, _ := p.Insert("c.std", InsertOptions{})
	if err := p.Alias(a, b); err != nil {
		t.Fatal(err)
	}
	ring := a.Aliases()
	if len(ring) != 2 {
		t.Fatalf("expected 2-member ring, got %d", len(ring))
	}
}

func TestApplyOverridesSuffix(t *testing.T) {
	reg := value.NewRegistry()
	str, _ := reg.Lookup("string")
	vec := reg.Vector(str)

	p := NewPool()
	v, _ := p.Insert("config.x", InsertOptions{Type: vec})

	stem := &value.Value{}
	stem.Assign(vec, []name.Name{name.Simple("1")}, v)

	add := &value.Value{}
	add.Assign(vec, []name.Name{name.Simple("2")}, v)

	o := p.AddOverride(v, OpSuffix, 0, add)
	result, err := ApplyOverrides(v, stem, []*Override{o})
	if err != nil {
		t.Fatal(err)
	}
	got := result.Reverse()
	if len(got) != 2 || got[0].Value != "1" || got[1].Value != "2" {
		t.Fatalf("unexpected override result: %+v", got)
	}
}

// TestApplyOverridesTypeConflict is spec.md §9 Open Question #2: a type
// mismatch between an override and the typed stem it folds onto must fail
// hard, never silently coerce or drop the override.
func TestApplyOverridesTypeConflict(t *testing.T) {
	reg := value.NewRegistry()
	u64, _ := reg.Lookup("uint64")
	vec := reg.Vector(u64)

	p := NewPool()
	v, _ := p.Insert("config.x", InsertOptions{Type: vec})

	stem := &value.Value{}
	if err := stem.Assign(vec, []name.Name{name.Simple("1")}, v); err != nil {
		t.Fatal(err)
	}

	add := value.NewNames([]name.Name{name.Simple("abc")})
	o := p.AddOverride(v, OpSuffix, 0, add)

	if _, err := ApplyOverrides(v, stem, []*Override{o}); err == nil {
		t.Fatal("expected a type-mismatch error, got nil")
	}
}

package core

import (
	"unsafe"

	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// Result is the outcome of a scope-chain variable lookup (spec.md §4.3):
// the resolved value (after override application), plus the map it was
// physically stored in should the caller need to assign back to it
// (e.g. `+=` against an inherited value). Err is set when override
// application failed (spec.md §9 Open Question #2's hard type-conflict
// error); callers that care about override correctness must check it
// rather than trust a non-nil Value.
type Result struct {
	Value      *value.Value
	StorageMap *variable.Map
	Found      bool
	Err        error
}

// TargetContext narrows a lookup to a specific target's type and simple
// name, enabling the target_vars probe at each scope (spec.md §3, §4.2).
type TargetContext struct {
	Type *TargetType
	Name string
}

// Find implements spec.md §4.3's lookup algorithm without target-specific
// pattern variables: direct lookup, alias probe, parent walk, and global
// fallback, honoring the variable's visibility boundary.
func (s *Scope) Find(v *variable.Variable, cache *variable.Cache) Result {
	return s.find(v, nil, cache)
}

// FindForTarget is Find extended with the target-type/pattern lookup step
// (spec.md §4.3 step 2) against tc at each scope in the chain.
func (s *Scope) FindForTarget(v *variable.Variable, tc TargetContext, cache *variable.Cache) Result {
	return s.find(v, &tc, cache)
}

func (s *Scope) find(v *variable.Variable, tc *TargetContext, cache *variable.Cache) Result {
	var scopeChain []uintptr
	var stem *value.Value
	var storage *variable.Map
	var stemVersion uint64
	found := false

	for cur := s; cur != nil; cur = cur.Parent {
		// Step 1: direct lookup, probing every alias in the ring.
		for _, alias := range v.Aliases() {
			if val, ver, ok := cur.Vars.Lookup(alias); ok {
				stem, storage, stemVersion, found = val, cur.Vars, ver, true
				break
			}
		}
		if found {
			break
		}

		// Step 2: target-type/pattern-specific lookup.
		if tc != nil && cur.TargetVars != nil {
			if val, m, ok := cur.TargetVars.Lookup(tc.Type, tc.Name, v); ok {
				stem, storage, found = val, m, true
				break
			}
		}

		scopeChain = append(scopeChain, cur.id)

		// A project root is a visibility boundary: project-visible
		// variables stop here unless this root is itself the start of
		// an outer amalgamation that global visibility must still
		// reach (spec.md §4.2: "exclusive for project visibility,
		// inclusive for global").
		if cur.Strong && v.Visibility() != variable.Global {
			break
		}
	}

	if !found {
		return Result{Found: false}
	}

	overrides := v.Overrides(scopeChain)
	if len(overrides) == 0 || cache == nil {
		return Result{Value: stem, StorageMap: storage, Found: true}
	}

	key := variable.CacheKey{Var: v, Stem: uintptr(unsafe.Pointer(storage))}
	baseVersion := v.OverrideVersion()
	if cached, ok := cache.Get(key, stemVersion, baseVersion); ok {
		return Result{Value: cached, StorageMap: storage, Found: true}
	}
	result, err := variable.ApplyOverrides(v, stem, overrides)
	if err != nil {
		return Result{StorageMap: storage, Found: true, Err: err}
	}
	cache.Put(key, result, stemVersion, baseVersion)
	return Result{Value: result, StorageMap: storage, Found: true}
}

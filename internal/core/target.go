package core

import (
	"sync"
	"sync/atomic"

	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/variable"
)

// TargetKey is the addressable identity of a target (spec.md §3): the
// (dir, out) pair distinguishes out-of-tree variants of the same source
// target, with Out empty for out-tree targets.
type TargetKey struct {
	Type *TargetType
	Dir  name.DirPath
	Out  name.DirPath
	Name string
	Ext  string // "" means unspecified/default extension
}

// IncludeType classifies a PrereqTarget's participation in out-of-date
// determination (spec.md §3, §4.7).
type IncludeType int

const (
	IncludeNormal IncludeType = iota
	IncludeAdhoc
	IncludeExcluded
	// IncludePosthoc marks a prerequisite that must itself be updated but
	// only after its dependent, not before (spec.md's operation-driver
	// summary: "pass-through of ad hoc, unmatched, and posthoc
	// prerequisites"). internal/operation schedules it but never waits on
	// it ahead of the dependent's own recipe.
	IncludePosthoc
)

// PrereqTarget is one resolved, matched prerequisite as recorded by a
// rule's Apply during match (spec.md §3). Data is an opaque rule-specific
// slot, e.g. a link-whole flag or here-doc index.
type PrereqTarget struct {
	Target      *Target
	IncludeType IncludeType
	Data        uintptr
	Adhoc       bool

	// Unmatched records that Apply called Unmatch on this edge: a hint
	// that internal/operation need not match or execute it for this
	// action at all (spec.md §4.7: "Apply may unmatch a previously
	// matched prerequisite... used by the compile rule to avoid blocking
	// on modules it only needed for header discovery").
	Unmatched bool
}

// Unmatch flags pt so internal/operation skips it entirely for this
// action, without removing it from PrereqTargets (a later action may
// still need the full edge).
func (pt *PrereqTarget) Unmatch() { pt.Unmatched = true }

// Prerequisite is an as-declared (possibly not yet searched) dependency
// edge (spec.md §3). Key is its lookup-oriented projection.
type Prerequisite struct {
	Project *name.ProjectName
	Type    *TargetType
	Dir     name.DirPath
	Out     name.DirPath
	Name    string
	Ext     string
	Scope   *Scope
	Vars    *variable.Map

	cachedTarget atomic.Pointer[Target]
}

// Key projects p to its lookup key (ignoring Scope/Vars/the resolution
// cache).
func (p *Prerequisite) Key() TargetKey {
	return TargetKey{Type: p.Type, Dir: p.Dir, Out: p.Out, Name: p.Name, Ext: p.Ext}
}

// Resolve finds or creates the Target p names in ts, memoizing the
// result so repeated resolution (e.g. re-matching the same buildfile
// dependency line across actions) doesn't re-walk the target set
// (spec.md §4.7: rule.apply "populate[s] prerequisite_targets...
// searching ... dependencies").
func (p *Prerequisite) Resolve(ts *TargetSet) *Target {
	if t := p.cachedTarget.Load(); t != nil {
		return t
	}
	t, _ := ts.Insert(p.Key(), p.Scope)
	p.cachedTarget.CompareAndSwap(nil, t)
	return p.cachedTarget.Load()
}

// matchArenaSize bounds the per-action inline match-data arena (spec.md
// §3: "stored in the target's per-action inline arena (fixed-capacity)").
// Four slots comfortably covers every rule in internal/cc (header list,
// library search results, link order, depdb handle) without falling back
// to a heap map per target/action.
const matchArenaSize = 4

// actionState is one target's per-action slot: spec.md §4.6's packed
// atomic {count, state, rule?, recipe?, data}.
type actionState struct {
	mu       sync.Mutex
	count    atomic.Int32
	applied  atomic.Int32
	executed atomic.Int32
	state    atomic.Int32 // State
	rule     Rule
	recipe   Recipe
	arena    [matchArenaSize]any
	used     int
	vars     *variable.Map
	err      error
	prereqTargets []*PrereqTarget

	doneOnce sync.Once
	done     chan struct{}
}

func (st *actionState) doneChan() chan struct{} {
	st.doneOnce.Do(func() { st.done = make(chan struct{}) })
	return st.done
}

// Target is the addressable entity of spec.md §3. Scopes own their target
// set; targets are never relocated or deleted for the lifetime of a
// Context (spec.md §9: "arena-allocated nodes keyed by stable indices").
type Target struct {
	Key   TargetKey
	Scope *Scope

	mu            sync.RWMutex
	group         *Target
	Members       []*Target
	Prerequisites []*Prerequisite
	Vars          *variable.Map

	states sync.Map // Action -> *actionState
	Path   name.Path
}

func NewTarget(key TargetKey, scope *Scope) *Target {
	return &Target{Key: key, Scope: scope, Vars: variable.NewMap()}
}

func (t *Target) stateFor(a Action) *actionState {
	v, _ := t.states.LoadOrStore(a, &actionState{})
	return v.(*actionState)
}

// StateOf returns the current recipe outcome for action a.
func (t *Target) StateOf(a Action) State {
	return State(t.stateFor(a).state.Load())
}

// SetState records the outcome of running (or skipping) a's recipe and
// wakes anything parked in WaitState.
func (t *Target) SetState(a Action, s State) {
	st := t.stateFor(a)
	st.state.Store(int32(s))
	if s == StateUnchanged || s == StateChanged || s == StateFailed {
		close(st.doneChan())
	}
}

// WaitState blocks until a reaches a terminal state (Unchanged, Changed or
// Failed) and returns it — the operation driver's execute_prerequisites
// synchronization point (spec.md §4.6: "a target's recipe sees all
// direct-prerequisite recipes completed").
func (t *Target) WaitState(a Action) State {
	st := t.stateFor(a)
	if s := State(st.state.Load()); s == StateUnchanged || s == StateChanged || s == StateFailed {
		return s
	}
	<-st.doneChan()
	return State(st.state.Load())
}

// SetError records the failure reason for a, alongside StateFailed.
func (t *Target) SetError(a Action, err error) {
	st := t.stateFor(a)
	st.mu.Lock()
	st.err = err
	st.mu.Unlock()
	t.SetState(a, StateFailed)
}

func (t *Target) Error(a Action) error {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Busy increments a's busy counter and returns the new value; the
// operation driver calls it before scheduling match or execute work for
// a target (spec.md §4.6). No cycle check is made on the counter.
func (t *Target) Busy(a Action) int32 {
	return t.stateFor(a).count.Add(1)
}

func (t *Target) Unbusy(a Action) int32 {
	return t.stateFor(a).count.Add(-1)
}

func (t *Target) BusyCount(a Action) int32 {
	return t.stateFor(a).count.Load()
}

// MarkApplied/AppliedCount and MarkExecuted/ExecutedCount are the match-
// and execute-phase counterparts of Busy/BusyCount (spec.md §8: "busy/
// applied/executed counters per target"), letting the scheduler and
// diagnostics distinguish "currently being matched" from "matched once"
// and "recipe has run" without re-deriving it from State.
func (t *Target) MarkApplied(a Action) int32 {
	return t.stateFor(a).applied.Add(1)
}

func (t *Target) AppliedCount(a Action) int32 {
	return t.stateFor(a).applied.Load()
}

func (t *Target) MarkExecuted(a Action) int32 {
	return t.stateFor(a).executed.Add(1)
}

func (t *Target) ExecutedCount(a Action) int32 {
	return t.stateFor(a).executed.Load()
}

// SetRule/SetRecipe/Rule/RecipeOf record the outcome of match/apply.
func (t *Target) SetRule(a Action, r Rule) {
	st := t.stateFor(a)
	st.mu.Lock()
	st.rule = r
	st.mu.Unlock()
}

func (t *Target) RuleOf(a Action) Rule {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rule
}

func (t *Target) SetRecipe(a Action, r Recipe) {
	st := t.stateFor(a)
	st.mu.Lock()
	st.recipe = r
	st.mu.Unlock()
}

func (t *Target) RecipeOf(a Action) Recipe {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.recipe
}

// PutMatchData stores a rule-specific value in a's inline arena, returning
// its slot index for later retrieval via MatchData. Panics if the arena is
// exhausted — a signal a rule needs to combine its slots into one struct
// rather than the arena growing unboundedly.
func (t *Target) PutMatchData(a Action, data any) int {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.used >= matchArenaSize {
		panic("core: target match-data arena exhausted")
	}
	idx := st.used
	st.arena[idx] = data
	st.used++
	return idx
}

func (t *Target) MatchData(a Action, idx int) any {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.arena[idx]
}

// PrereqTargets/SetPrereqTargets record the resolved, order-preserving
// dependency list a rule's Apply built for action a (spec.md §4.6:
// "prerequisite_targets[a] preserves declaration order").
func (t *Target) PrereqTargets(a Action) []*PrereqTarget {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.prereqTargets
}

func (t *Target) SetPrereqTargets(a Action, pts []*PrereqTarget) {
	st := t.stateFor(a)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.prereqTargets = pts
}

// Group/SetGroup/AddMember implement ad hoc group membership (spec.md §3:
// "Group membership is a weak reference").
func (t *Target) Group() *Target { t.mu.RLock(); defer t.mu.RUnlock(); return t.group }

func (t *Target) AddMember(member *Target) {
	t.mu.Lock()
	defer t.mu.Unlock()
	member.mu.Lock()
	member.group = t
	member.mu.Unlock()
	t.Members = append(t.Members, member)
}

// AddAdhocMember attaches an ad hoc member target of the given type,
// sharing t's state but carrying its own path (spec.md §4.5).
func (t *Target) AddAdhocMember(typ *TargetType, scope *Scope) *Target {
	key := t.Key
	key.Type = typ
	m := NewTarget(key, scope)
	t.AddMember(m)
	return m
}

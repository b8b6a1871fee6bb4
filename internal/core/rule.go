package core

import "fmt"

// State is the recipe outcome of spec.md §3/§7: unchanged, changed or
// failed, aggregated by the operation driver across a target's
// prerequisites.
type State int

const (
	StateUnknown State = iota
	StateUnchanged
	StateChanged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateChanged:
		return "changed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Recipe realises update or clean for a target (spec.md GLOSSARY).
type Recipe func(a Action, t *Target) (State, error)

// Rule is the interface of spec.md §4.5: match is a stateless
// applicability check; apply commits to the match (may mutate the target,
// e.g. populate prerequisite_targets) and returns the recipe that will
// later run during execute.
type Rule interface {
	Match(a Action, t *Target, hint string) bool
	Apply(a Action, t *Target) (Recipe, error)
}

// RuleFuncs adapts two functions to the Rule interface, the idiomatic Go
// equivalent of build2's lambda-based ad hoc rules.
type RuleFuncs struct {
	MatchFn func(a Action, t *Target, hint string) bool
	ApplyFn func(a Action, t *Target) (Recipe, error)
}

func (r RuleFuncs) Match(a Action, t *Target, hint string) bool { return r.MatchFn(a, t, hint) }
func (r RuleFuncs) Apply(a Action, t *Target) (Recipe, error)   { return r.ApplyFn(a, t) }

// RuleKey indexes a scope's per-(operation, target-type) rule map,
// including an optional rule-name hint (spec.md §4.5: "preferring a more
// specific hint").
type RuleKey struct {
	MetaOp     uint8
	Op         uint8
	TargetType string
	Hint       string
}

// RuleMap is one scope's rules table.
type RuleMap struct {
	entries map[RuleKey]Rule
}

func NewRuleMap() *RuleMap { return &RuleMap{entries: make(map[RuleKey]Rule)} }

func (m *RuleMap) Register(key RuleKey, r Rule) { m.entries[key] = r }

func (m *RuleMap) lookup(key RuleKey) (Rule, bool) {
	r, ok := m.entries[key]
	return r, ok
}

// NoopRecipe always reports the target unchanged without doing anything;
// it backs ad hoc and already-up-to-date targets.
func NoopRecipe(a Action, t *Target) (State, error) { return StateUnchanged, nil }

// DefaultRecipe waits on prerequisites and reports changed iff any
// prerequisite changed, the minimal "aggregate my inputs" behavior used by
// alias-like targets that have no action of their own.
func DefaultRecipe(a Action, t *Target) (State, error) {
	worst := StateUnchanged
	for _, pt := range t.PrereqTargets(a) {
		if pt.Target == nil || pt.IncludeType == IncludeAdhoc {
			continue
		}
		st := pt.Target.StateOf(a)
		if st == StateFailed {
			return StateFailed, fmt.Errorf("prerequisite %s failed", pt.Target.Key)
		}
		if st == StateChanged {
			worst = StateChanged
		}
	}
	return worst, nil
}

// GroupRecipe is the recipe for a group target (spec.md GLOSSARY
// "Group"): it aggregates the states of all members for this action,
// failing if any member failed and reporting Changed if any member changed.
func GroupRecipe(a Action, t *Target) (State, error) {
	if len(t.Members) == 0 {
		return StateUnchanged, fmt.Errorf("group target %s has no members", t.Key)
	}
	worst := StateUnchanged
	for _, m := range t.Members {
		st := m.StateOf(a)
		if st == StateFailed {
			return StateFailed, fmt.Errorf("group member %s failed", m.Key)
		}
		if st == StateChanged {
			worst = StateChanged
		}
	}
	return worst, nil
}

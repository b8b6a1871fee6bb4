// Package operation implements the operation driver of spec.md §4.7: the
// recursive match pass, the parallel execute pass, and the dependency-edge
// iteration that aggregates unchanged/changed/failed state across a
// target graph. It drives internal/core's Scope/Target/Rule types through
// internal/scheduler's phase arbiter and work-stealing pool.
package operation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/b2go/b2go/internal/buildmetrics"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/scheduler"
)

// Driver runs one (meta-operation, operation) action over a target graph.
// A fresh Driver is created per top-level operation invocation; it is not
// reused across actions.
type Driver struct {
	Pool     *scheduler.Pool
	Arbiter  *scheduler.Arbiter

	// KeepGoing mirrors the CLI's --keep-going (spec.md §6, §7): when
	// false, the first failure sets failed and stops scheduling new
	// match/execute tasks, though already-running tasks still complete.
	KeepGoing bool

	// Metrics records task/rule counters for this Driver's lifetime
	// (SPEC_FULL.md's ambient internal/buildmetrics); nil disables
	// recording entirely.
	Metrics *buildmetrics.Metrics

	failed atomic.Bool

	mu      sync.Mutex
	results map[core.Action]*Summary
}

// Summary aggregates outcomes across every target touched by one action
// (spec.md §4.7: "state aggregation (unchanged/changed/failed)").
type Summary struct {
	mu        sync.Mutex
	Unchanged int
	Changed   int
	Failed    int
}

func (s *Summary) record(st core.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st {
	case core.StateChanged:
		s.Changed++
	case core.StateFailed:
		s.Failed++
	default:
		s.Unchanged++
	}
}

// New creates a Driver over pool/arbiter. keepGoing controls whether a
// failure aborts the wave or lets it run to completion collecting errors.
func New(pool *scheduler.Pool, arbiter *scheduler.Arbiter, keepGoing bool) *Driver {
	return &Driver{Pool: pool, Arbiter: arbiter, KeepGoing: keepGoing, results: make(map[core.Action]*Summary)}
}

// Failed reports whether any target in this Driver's lifetime has failed
// with KeepGoing disabled, the context-wide cancellation flag of spec.md
// §5 ("a context-wide failure flag short-circuits further task pickup").
func (d *Driver) Failed() bool { return d.failed.Load() }

func (d *Driver) summaryFor(a core.Action) *Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.results[a]
	if !ok {
		s = &Summary{}
		d.results[a] = s
	}
	return s
}

// Summary returns the aggregated outcome for action a so far.
func (d *Driver) Summary(a core.Action) Summary {
	s := d.summaryFor(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{Unchanged: s.Unchanged, Changed: s.Changed, Failed: s.Failed}
}

// Run matches then executes a over every target in roots (spec.md §4.6:
// "match happens-before apply happens-before recipe"), running the two
// phases to completion under the Arbiter before returning the aggregated
// Summary.
func (d *Driver) Run(ctx context.Context, a core.Action, roots []*core.Target) (Summary, error) {
	if err := d.runPhase(ctx, scheduler.PhaseMatch, func() {
		for _, t := range roots {
			d.matchAsync(ctx, a, t)
		}
	}); err != nil {
		return d.Summary(a), err
	}
	if d.Failed() && !d.KeepGoing {
		return d.Summary(a), fmt.Errorf("operation: match failed, stopping before execute (keep-going disabled)")
	}

	if err := d.runPhase(ctx, scheduler.PhaseExecute, func() {
		for _, t := range roots {
			d.executeAsync(ctx, a, t)
		}
	}); err != nil {
		return d.Summary(a), err
	}

	s := d.Summary(a)
	if s.Failed > 0 && !d.KeepGoing {
		return s, fmt.Errorf("operation: %d target(s) failed", s.Failed)
	}
	return s, nil
}

// runPhase advances the arbiter into phase p, seeds the pool via seed,
// then drives the pool to quiescence before advancing past it. Only the
// Driver calls Advance; individual tasks only Enter/Leave.
func (d *Driver) runPhase(ctx context.Context, p scheduler.Phase, seed func()) error {
	d.Arbiter.Advance(p)
	seed()
	err := d.Pool.Run(ctx)
	d.Arbiter.Advance(nextPhase(p))
	return err
}

func nextPhase(p scheduler.Phase) scheduler.Phase {
	switch p {
	case scheduler.PhaseLoad:
		return scheduler.PhaseMatch
	case scheduler.PhaseMatch:
		return scheduler.PhaseExecute
	default:
		return scheduler.PhaseLoad
	}
}

// matchAsync is match_async(action, target) (spec.md §4.6): it increments
// the target's busy counter, enqueues a pool task that resolves a rule,
// calls Apply (which may recursively matchAsync the target's resolved
// prerequisites), and records the outcome.
func (d *Driver) matchAsync(ctx context.Context, a core.Action, t *core.Target) {
	if t.Busy(a) > 1 {
		// Already matching or matched for this action; do not re-enter.
		// A dependency cycle is not reported here: the repeated visit
		// simply returns.
		return
	}
	d.Metrics.AddTaskScheduled()
	d.Pool.Go(func(ctx context.Context) error {
		d.Arbiter.Enter(scheduler.PhaseMatch)
		defer d.Arbiter.Leave()

		if d.failed.Load() && !d.KeepGoing {
			return nil
		}

		if err := d.matchOne(ctx, a, t); err != nil {
			t.SetError(a, err)
			d.Metrics.AddTargetFailed()
			if !d.KeepGoing {
				d.failed.Store(true)
			}
			return err
		}
		t.MarkApplied(a)
		return nil
	})
}

func (d *Driver) matchOne(ctx context.Context, a core.Action, t *core.Target) error {
	if t.StateOf(a) != core.StateUnknown {
		return nil
	}
	rule, ok := t.Scope.FindRule(a, t.Key.Type, "")
	if !ok {
		// No rule for this target/action: treat as a no-op leaf (e.g. a
		// source file with nothing to build) rather than a hard error,
		// matching build2's behavior for targets that exist only to be
		// consumed as prerequisites.
		t.SetRule(a, core.RuleFuncs{
			MatchFn: func(core.Action, *core.Target, string) bool { return true },
			ApplyFn: func(core.Action, *core.Target) (core.Recipe, error) { return core.NoopRecipe, nil },
		})
		t.SetRecipe(a, core.NoopRecipe)
		return nil
	}
	t.SetRule(a, rule)
	d.Metrics.AddRuleMatched()
	recipe, err := rule.Apply(a, t)
	if err != nil {
		return fmt.Errorf("apply %s on %s: %w", a, t.Key.Name, err)
	}
	t.SetRecipe(a, recipe)

	// Recursively match whatever Apply populated into prerequisite_targets
	// (spec.md §4.7: "populate prerequisite_targets[action] (searching and
	// asynchronously matching dependencies)"), skipping edges Apply chose
	// to Unmatch.
	for _, pt := range t.PrereqTargets(a) {
		if pt.Target == nil || pt.Unmatched || pt.IncludeType == core.IncludeExcluded {
			continue
		}
		d.matchAsync(ctx, a, pt.Target)
	}
	return nil
}

// executeAsync runs execute(action, target) (spec.md §4.7): it first
// waits for the recipe of every direct prerequisite that is neither
// excluded nor post hoc (ad hoc ones are waited for, but their state is
// ignored), then invokes this target's own recipe and records the
// resulting State.
func (d *Driver) executeAsync(ctx context.Context, a core.Action, t *core.Target) {
	if t.Busy(a) > 1 {
		return
	}
	d.Metrics.AddTaskScheduled()
	d.Pool.Go(func(ctx context.Context) error {
		d.Arbiter.Enter(scheduler.PhaseExecute)
		defer d.Arbiter.Leave()

		if d.failed.Load() && !d.KeepGoing {
			return nil
		}

		st, err := d.executeOne(ctx, a, t)
		d.summaryFor(a).record(st)
		d.Metrics.AddTaskExecuted()
		if err != nil {
			t.SetError(a, err)
			d.Metrics.AddTargetFailed()
			if !d.KeepGoing {
				d.failed.Store(true)
			}
			return err
		}
		t.SetState(a, st)
		t.MarkExecuted(a)
		return nil
	})
}

func (d *Driver) executeOne(ctx context.Context, a core.Action, t *core.Target) (core.State, error) {
	pts := t.PrereqTargets(a)
	for _, pt := range pts {
		if pt.Target == nil || pt.IncludeType == core.IncludeExcluded {
			continue
		}
		d.executeAsync(ctx, a, pt.Target)
	}
	// execute_prerequisites: block until every non-adhoc, non-posthoc
	// direct prerequisite has reached a terminal state (spec.md §4.7).
	for _, pt := range pts {
		if pt.Target == nil || pt.IncludeType == core.IncludeExcluded || pt.IncludeType == core.IncludePosthoc {
			continue
		}
		if pt.IncludeType == core.IncludeAdhoc || pt.Adhoc {
			// Ad hoc prerequisites may still be updated but do not
			// contribute to this target's out-of-date determination
			// (spec.md §4.7); we still want their recipe to have run
			// before we proceed, so wait without inspecting state.
			pt.Target.WaitState(a)
			continue
		}
		if st := pt.Target.WaitState(a); st == core.StateFailed {
			return core.StateFailed, fmt.Errorf("prerequisite %s failed", pt.Target.Key.Name)
		}
	}

	recipe := t.RecipeOf(a)
	if recipe == nil {
		return core.StateUnchanged, nil
	}
	return recipe(a, t)
}

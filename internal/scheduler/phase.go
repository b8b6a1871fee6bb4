// Package scheduler implements the phase arbiter and work-stealing task
// pool of spec.md §4.6: the load/match/execute cycle a context advances
// through, and the parallel worker pool that drives match and execute.
package scheduler

import "sync"

// Phase is one of the three states a context occupies at any time
// (spec.md §4.6: "The context occupies exactly one of three phases").
type Phase int32

const (
	PhaseLoad Phase = iota
	PhaseMatch
	PhaseExecute
)

func (p Phase) String() string {
	switch p {
	case PhaseLoad:
		return "load"
	case PhaseMatch:
		return "match"
	case PhaseExecute:
		return "execute"
	default:
		return "unknown"
	}
}

// Arbiter serialises phase transitions: load is exclusive and
// single-threaded, match and execute admit any number of concurrent
// workers, and advancing to the next phase blocks until every worker
// that entered the current phase has left it ("Phase transitions require
// all workers idle on the phase mutex").
type Arbiter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	phase  Phase
	active int
}

func NewArbiter() *Arbiter {
	a := &Arbiter{phase: PhaseLoad}
	a.cond = sync.NewCond(&a.mu)
	return a
}

func (a *Arbiter) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Enter blocks the calling worker until the context is in phase p (and,
// for the load phase, until no other worker is active in it), then
// registers it as active in that phase. Every Enter must be paired with
// a Leave, typically via defer.
func (a *Arbiter) Enter(p Phase) {
	a.mu.Lock()
	for a.phase != p || (p == PhaseLoad && a.active > 0) {
		a.cond.Wait()
	}
	a.active++
	a.mu.Unlock()
}

// Leave retires the calling worker from whichever phase it entered.
func (a *Arbiter) Leave() {
	a.mu.Lock()
	a.active--
	if a.active == 0 {
		a.cond.Broadcast()
	}
	a.mu.Unlock()
}

// Advance suspends the caller until every active worker has called
// Leave, then moves the context to next and wakes anything blocked in
// Enter. Only the load-phase driver (internal/loader) or the operation
// driver (internal/operation) should call this; a worker calling it on
// itself would deadlock against its own Enter.
func (a *Arbiter) Advance(next Phase) {
	a.mu.Lock()
	for a.active > 0 {
		a.cond.Wait()
	}
	a.phase = next
	a.cond.Broadcast()
	a.mu.Unlock()
}

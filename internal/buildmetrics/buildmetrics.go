// Package buildmetrics implements the ambient counters SPEC_FULL.md's
// AMBIENT STACK section describes: lightweight atomic counters (tasks
// scheduled/executed, rules matched, depdb hits/misses) in the shape of
// the teacher's internal/metrics.CodebaseStats — a plain struct of
// derived counts exposed via a snapshot call rather than a push exporter,
// since nothing in the examples pack pulls in a Prometheus-shaped
// dependency for this system to reuse.
package buildmetrics

import "sync/atomic"

// Metrics is one context's counter set. The zero value is ready to use;
// a nil *Metrics is valid everywhere a caller records through it (every
// Inc/Add method below is nil-safe), so components that don't care about
// metrics can simply not construct one.
type Metrics struct {
	tasksScheduled atomic.Int64
	tasksExecuted  atomic.Int64
	rulesMatched   atomic.Int64
	depdbHits      atomic.Int64
	depdbMisses    atomic.Int64
	childProcesses atomic.Int64
	targetsFailed  atomic.Int64
}

// New returns a fresh, zeroed Metrics.
func New() *Metrics { return &Metrics{} }

func (m *Metrics) AddTaskScheduled() {
	if m != nil {
		m.tasksScheduled.Add(1)
	}
}

func (m *Metrics) AddTaskExecuted() {
	if m != nil {
		m.tasksExecuted.Add(1)
	}
}

func (m *Metrics) AddRuleMatched() {
	if m != nil {
		m.rulesMatched.Add(1)
	}
}

func (m *Metrics) AddDepdbHit() {
	if m != nil {
		m.depdbHits.Add(1)
	}
}

func (m *Metrics) AddDepdbMiss() {
	if m != nil {
		m.depdbMisses.Add(1)
	}
}

func (m *Metrics) AddChildProcess() {
	if m != nil {
		m.childProcesses.Add(1)
	}
}

func (m *Metrics) AddTargetFailed() {
	if m != nil {
		m.targetsFailed.Add(1)
	}
}

// Snapshot is a point-in-time, race-free copy of a Metrics' counters
// (spec.md §8's "running the same operation twice" scenarios read a
// Snapshot before and after to assert on the delta).
type Snapshot struct {
	TasksScheduled int64
	TasksExecuted  int64
	RulesMatched   int64
	DepdbHits      int64
	DepdbMisses    int64
	ChildProcesses int64
	TargetsFailed  int64
}

// Snapshot reads every counter. A nil receiver yields the zero Snapshot.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		TasksScheduled: m.tasksScheduled.Load(),
		TasksExecuted:  m.tasksExecuted.Load(),
		RulesMatched:   m.rulesMatched.Load(),
		DepdbHits:      m.depdbHits.Load(),
		DepdbMisses:    m.depdbMisses.Load(),
		ChildProcesses: m.childProcesses.Load(),
		TargetsFailed:  m.targetsFailed.Load(),
	}
}

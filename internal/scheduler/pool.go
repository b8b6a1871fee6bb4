package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of match or execute work submitted to the pool
// (spec.md §4.6, §8): typically "match this target for this action" or
// "run this target's recipe". A Task may itself call Pool.Go to submit
// follow-on work, e.g. a rule's Apply discovering a new prerequisite.
type Task func(ctx context.Context) error

// Pool is the work-stealing task pool of spec.md §8 ("a task queue with
// work-stealing"). Each worker owns a LIFO local queue and pops from its
// tail. Go spreads every task, follow-on work included, across the
// queues round-robin, so follow-on work does not stay on the worker that
// submitted it. A worker whose queue runs dry steals from the opposite
// (FIFO) end of another worker's queue.
//
// A separate buffered-channel semaphore bounds how many tasks may hold
// an OS-process slot at once (internal/cc spawning a compiler), distinct
// from worker count — mirroring the channel-semaphore pattern used
// elsewhere in this codebase for capping concurrent file processing,
// alongside the errgroup-based structured concurrency used for the
// worker wave itself.
type Pool struct {
	workers []*deque
	next    atomic.Uint64
	pending atomic.Int64
	sem     chan struct{}
}

// NewPool creates a pool of workerCount workers (runtime.NumCPU()-1,
// minimum 1, if workerCount <= 0) and a process-spawn semaphore capped
// at processLimit concurrent slots (0 means unbounded).
func NewPool(workerCount, processLimit int) *Pool {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount()
	}
	p := &Pool{workers: make([]*deque, workerCount)}
	for i := range p.workers {
		p.workers[i] = &deque{}
	}
	if processLimit > 0 {
		p.sem = make(chan struct{}, processLimit)
	}
	return p
}

// AcquireProcessSlot blocks until a process-spawn slot is free or ctx is
// done. Rules that shell out (internal/cc's compile/link recipes)
// bracket the external process between Acquire and Release.
func (p *Pool) AcquireProcessSlot(ctx context.Context) error {
	if p.sem == nil {
		return nil
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) ReleaseProcessSlot() {
	if p.sem != nil {
		<-p.sem
	}
}

// Go submits t to the pool, distributing across workers round-robin.
// Safe to call both when seeding a wave and from inside a running Task.
func (p *Pool) Go(t Task) {
	p.pending.Add(1)
	i := int((p.next.Add(1) - 1) % uint64(len(p.workers)))
	p.workers[i].push(t)
}

// Run drives the pool to quiescence: every worker pops its own queue,
// then steals from others when its queue is empty, until nothing is
// pending anywhere. The first task error cancels the shared context for
// every worker via errgroup, so one failing recipe stops the wave
// without the others racing on past it.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range p.workers {
		i := i
		g.Go(func() error { return p.runWorker(gctx, i) })
	}
	return g.Wait()
}

func (p *Pool) runWorker(ctx context.Context, idx int) error {
	self := p.workers[idx]
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t, ok := self.popLIFO()
		if !ok {
			t, ok = p.steal(idx)
		}
		if !ok {
			if p.pending.Load() == 0 {
				return nil
			}
			runtime.Gosched()
			continue
		}
		err := t(ctx)
		p.pending.Add(-1)
		if err != nil {
			return err
		}
	}
}

// steal scans the other workers' queues starting just past idx, taking
// the oldest (FIFO) task from the first non-empty one found.
func (p *Pool) steal(idx int) (Task, bool) {
	n := len(p.workers)
	for i := 1; i < n; i++ {
		victim := p.workers[(idx+i)%n]
		if t, ok := victim.popFIFO(); ok {
			return t, true
		}
	}
	return nil, false
}

func defaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// deque is a worker's local task queue: push/popLIFO from the tail for
// the owner, popFIFO from the head for thieves.
type deque struct {
	mu    sync.Mutex
	tasks []Task
}

func (d *deque) push(t Task) {
	d.mu.Lock()
	d.tasks = append(d.tasks, t)
	d.mu.Unlock()
}

func (d *deque) popLIFO() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.tasks)
	if n == 0 {
		return nil, false
	}
	t := d.tasks[n-1]
	d.tasks = d.tasks[:n-1]
	return t, true
}

func (d *deque) popFIFO() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tasks) == 0 {
		return nil, false
	}
	t := d.tasks[0]
	d.tasks = d.tasks[1:]
	return t, true
}

// Package context wires internal/name, internal/value, internal/variable,
// internal/core, internal/scheduler, internal/operation and
// internal/loader into one Context, the "explicit Context passed to
// every operation; no module-level singletons" spec.md §9 settled as an
// Open Question. A Context owns every shared, per-run registry; two
// Contexts never share a Pool, Registry or OperationTable.
package context

import (
	"context"
	"fmt"

	"github.com/b2go/b2go/internal/buildmetrics"
	"github.com/b2go/b2go/internal/cc"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/loader"
	"github.com/b2go/b2go/internal/operation"
	"github.com/b2go/b2go/internal/scheduler"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// Options configures a Context at construction. Zero values pick the
// same defaults internal/scheduler.NewPool documents (workerCount <= 0
// means runtime.NumCPU()-1, processLimit <= 0 means unbounded).
type Options struct {
	Jobs        int
	ProcessJobs int
	KeepGoing   bool

	// CC/CXX override the compiler driver names internal/cc's rules
	// invoke; empty keeps internal/cc's own "cc"/"c++" defaults.
	CC, CXX string
	// Linker overrides internal/cc's default "c++" link driver.
	Linker string

	// ImportPath supplements internal/loader's PATH search for imported
	// projects (spec.md §4.9's phase-2 fallback).
	ImportPath []string
}

// Context is one build run's full set of shared registries: the variable
// and value-type pools a buildfile's declarations populate, the
// operation-id table, the project loader, the work-stealing pool and
// phase arbiter that drive match/execute, and the metrics counters
// threaded through internal/operation and internal/cc.
type Context struct {
	Pool    *variable.Pool
	Types   *value.Registry
	Ops     *core.OperationTable
	Loader  *loader.Loader
	Sched   *scheduler.Pool
	Arbiter *scheduler.Arbiter
	Metrics *buildmetrics.Metrics

	CCTypes *cc.Types
	CCVars  *cc.Vars

	driver *operation.Driver
}

// New assembles a fresh Context: a variable pool and value registry
// (shared by every scope a Loader bootstraps under it), an operation
// table pre-registering update/clean (core.NewOperationTable), a
// work-stealing Pool and phase Arbiter sized per opts, and the
// internal/cc rule set registered against the resulting registries so
// any project this Context loads can use cxx{}/c{}/obje{}/exe{}/etc. out
// of the box.
func New(opts Options) *Context {
	pool := variable.NewPool()
	types := value.NewRegistry()
	ops := core.NewOperationTable()
	metrics := buildmetrics.New()

	l := loader.New(pool, types, ops)
	l.ImportPath = opts.ImportPath

	sched := scheduler.NewPool(opts.Jobs, opts.ProcessJobs)
	arbiter := scheduler.NewArbiter()

	c := &Context{
		Pool:    pool,
		Types:   types,
		Ops:     ops,
		Loader:  l,
		Sched:   sched,
		Arbiter: arbiter,
		Metrics: metrics,
	}

	// internal/cc's rule registration is deferred to BootstrapProject
	// time (it needs a root scope to attach TargetType/Rule entries to);
	// record the ccModule hook here so every project this Context loads
	// picks up the same CCTypes/CCVars, set once on first bootstrap (a
	// project's subprojects share the amalgamation's scope chain, so
	// re-registering per-subproject would just shadow the same rules).
	l.ExtraModules["cc"] = func(p *loader.Project) error {
		if c.CCTypes != nil {
			return nil
		}
		c.CCTypes, c.CCVars = cc.Register(p.Root, pool, types)

		updateID, _ := ops.OpID("update")
		performID, _ := ops.MetaOpID("perform")
		register := func(tt *core.TargetType, r core.Rule) {
			p.Root.Rules.Register(core.RuleKey{MetaOp: performID, Op: updateID, TargetType: tt.Name}, r)
		}

		compile := &cc.CompileRule{Types: c.CCTypes, Vars: c.CCVars, Pool: sched, CC: opts.CC, CXX: opts.CXX, Metrics: metrics}
		register(c.CCTypes.ObjE, compile)
		register(c.CCTypes.ObjA, compile)
		register(c.CCTypes.ObjS, compile)

		link := &cc.LinkRule{Types: c.CCTypes, Vars: c.CCVars, Pool: sched, Linker: opts.Linker, Metrics: metrics}
		register(c.CCTypes.Exe, link)
		register(c.CCTypes.LibA, link)
		register(c.CCTypes.LibS, link)
		return nil
	}

	return c
}

// Bootstrap loads the project rooted at srcDir (out-of-tree build when
// outDir differs), registering internal/cc's module against its root
// scope via the ExtraModules hook set up in New.
func (c *Context) Bootstrap(srcDir, outDir string) (*loader.Project, error) {
	p, err := c.Loader.BootstrapProject(srcDir, outDir, nil)
	if err != nil {
		return nil, err
	}
	if hook, ok := c.Loader.ExtraModules["cc"]; ok {
		if err := hook(p); err != nil {
			return nil, fmt.Errorf("context: cc module: %w", err)
		}
	}
	return p, nil
}

// Action returns the (meta-operation, operation) pair op names under
// this Context's OperationTable, looking up "perform" as the sole
// meta-operation every run uses (spec.md's GLOSSARY: perform is the
// only meta-operation this implementation exposes; variants like
// "configure" are Non-goals).
func (c *Context) Action(op string) (core.Action, error) {
	metaID, ok := c.Ops.MetaOpID("perform")
	if !ok {
		return core.Action{}, fmt.Errorf("context: %q not registered", "perform")
	}
	opID, ok := c.Ops.OpID(op)
	if !ok {
		return core.Action{}, fmt.Errorf("context: operation %q not registered", op)
	}
	return core.Action{MetaOp: metaID, Op: opID}, nil
}

// Run drives op over roots to completion via a fresh operation.Driver,
// threading this Context's Metrics through so --jobs-wide counters
// accumulate across every Run call made against this Context.
func (c *Context) Run(ctx context.Context, op string, roots []*core.Target, keepGoing bool) (operation.Summary, error) {
	a, err := c.Action(op)
	if err != nil {
		return operation.Summary{}, err
	}
	c.driver = operation.New(c.Sched, c.Arbiter, keepGoing)
	c.driver.Metrics = c.Metrics
	return c.driver.Run(ctx, a, roots)
}

// LastDriver returns the operation.Driver used by the most recent Run
// call, or nil before any Run. Useful for per-target error inspection
// after a keep-going run.
func (c *Context) LastDriver() *operation.Driver { return c.driver }

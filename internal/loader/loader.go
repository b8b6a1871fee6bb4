// Package loader implements spec.md §4.9/§2 item 11: project discovery
// (src_root/out_root, bootstrap/root, subprojects), the buildfile loading
// pipeline that wires internal/lexer + internal/bparser into a populated
// internal/core.Scope, and import resolution including the phase-2
// rule-based fallback and executable metadata extraction.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/b2go/b2go/internal/bparser"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/debug"
	"github.com/b2go/b2go/internal/diag"
	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// standardLayout/alternativeLayout are the two file-naming conventions
// spec.md §6 describes; detection happens once per project, on first
// encounter, and is fixed thereafter.
type layout struct {
	buildDir   string
	bootstrap  string
	root       string
	export     string
	topBuild   string
	subBuild   string
	ext        string
}

var standardLayout = layout{
	buildDir: "build", bootstrap: "bootstrap.build", root: "root.build",
	export: "export.build", topBuild: "buildfile", subBuild: "buildfile", ext: ".build",
}

var alternativeLayout = layout{
	buildDir: "build2", bootstrap: "bootstrap.build2", root: "root.build2",
	export: "export.build2", topBuild: "build2file", subBuild: "build2file", ext: ".build2",
}

// detectLayout picks standard vs alternative by checking which bootstrap
// file exists under srcRoot/build(2)/.
func detectLayout(srcRoot string) layout {
	if _, err := os.Stat(filepath.Join(srcRoot, alternativeLayout.buildDir, alternativeLayout.bootstrap)); err == nil {
		return alternativeLayout
	}
	return standardLayout
}

// Loader drives project bootstrap and buildfile loading. It owns the
// shared, context-wide registries (spec.md §9: "explicit Context passed to
// every operation; no module-level singletons") — internal/context
// assembles one Loader alongside the scheduler/operation pieces.
type Loader struct {
	Pool  *variable.Pool
	Types *value.Registry
	Ops   *core.OperationTable
	Stdout *os.File

	mu       sync.Mutex
	projects map[string]*Project // keyed by src_root, for subproject/import reuse
	byRoot   map[*core.Scope]*Project

	metaMu    sync.Mutex
	metaCache map[string]error // keyed by effective executable path

	// ExtraModules lets a driver (cmd/b2go) or internal/cc register using
	// modules (e.g. "cc") available to a project's root.build, without
	// internal/loader importing internal/cc and creating a cycle.
	ExtraModules map[string]func(root *Project) error

	// ImportPath supplements the PATH search internal/loader's phase-2
	// import fallback performs (spec.md §4.9): extra directories to
	// search for an imported project's metadata-emitting executable,
	// tried after PATH. They are not searched for project roots.
	ImportPath []string
}

// New constructs a Loader sharing pool/types/ops with the rest of a
// Context.
func New(pool *variable.Pool, types *value.Registry, ops *core.OperationTable) *Loader {
	return &Loader{
		Pool:         pool,
		Types:        types,
		Ops:          ops,
		Stdout:       os.Stdout,
		projects:     make(map[string]*Project),
		byRoot:       make(map[*core.Scope]*Project),
		metaCache:    make(map[string]error),
		ExtraModules: make(map[string]func(root *Project) error),
	}
}

// Project is the bootstrapped project of spec.md §6's on-disk layout: a
// root scope plus its src/out root directories and layout convention.
type Project struct {
	Root    *core.Scope
	SrcRoot name.DirPath
	OutRoot name.DirPath
	Layout  layout

	Subprojects map[string]*Project
	Amalgam     *Project

	exportLoaded bool
}

// BootstrapProject discovers and loads a project rooted at srcRoot,
// forwarding to outRoot when it differs (spec.md §6: out_root/build/
// bootstrap/{src,out}-root.build record the forwarding relationship).
// amalgam is the containing project, or nil for a top-level project.
func (l *Loader) BootstrapProject(srcRoot, outRoot string, amalgam *Project) (*Project, error) {
	srcRoot = filepath.Clean(srcRoot)
	if outRoot == "" {
		outRoot = srcRoot
	}
	outRoot = filepath.Clean(outRoot)

	l.mu.Lock()
	if p, ok := l.projects[srcRoot]; ok {
		l.mu.Unlock()
		return p, nil
	}
	l.mu.Unlock()

	lay := detectLayout(srcRoot)
	bootstrapPath := filepath.Join(srcRoot, lay.buildDir, lay.bootstrap)
	src := name.NewDirPath(srcRoot)
	out := name.NewDirPath(outRoot)

	var parentScope *core.Scope
	if amalgam != nil {
		parentScope = amalgam.Root
	}
	root := core.NewRootScope(out, parentScope)
	root.SrcPath = src

	p := &Project{
		Root:        root,
		SrcRoot:     src,
		OutRoot:     out,
		Layout:      lay,
		Subprojects: make(map[string]*Project),
		Amalgam:     amalgam,
	}
	root.Extra.Targets = core.NewTargetSet()

	l.mu.Lock()
	l.projects[srcRoot] = p
	l.byRoot[root] = p
	l.mu.Unlock()

	if _, err := os.Stat(bootstrapPath); err == nil {
		if err := l.loadBootstrap(p, bootstrapPath); err != nil {
			return nil, err
		}
	} else {
		// A project with no bootstrap.build is legal only as an amalgamated
		// leaf amalgamation root is absent: spec.md §8 scenario 1 ("Empty
		// project ... project = empty"). Treat a missing file the same way.
		root.Extra.Project = name.ProjectName("")
	}

	rootBuildPath := filepath.Join(srcRoot, lay.buildDir, lay.root)
	if _, err := os.Stat(rootBuildPath); err == nil {
		if err := l.LoadBuildfile(root, rootBuildPath); err != nil {
			return nil, err
		}
	}

	if amalgam != nil {
		amalgam.Subprojects[string(root.Extra.Project)] = p
		amalgam.Root.Extra.Subprojects[string(root.Extra.Project)] = root
	}

	debug.LogLoader("bootstrapped project %q at %s", root.Extra.Project, srcRoot)
	return p, nil
}

// loadBootstrap parses build/bootstrap.build, which is restricted to the
// handful of directives/assignments spec.md §6 lists: project=,
// amalgamation=, subprojects=, using directives for early modules.
func (l *Loader) loadBootstrap(p *Project, path string) error {
	if err := l.LoadBuildfile(p.Root, path); err != nil {
		return err
	}
	if projVar, ok := l.Pool.Lookup("project"); ok {
		if val, _, ok := p.Root.Vars.Lookup(projVar); ok {
			names := val.Reverse()
			if len(names) == 1 {
				p.Root.Extra.Project = name.ProjectName(names[0].Value)
			}
		}
	}
	if subsVar, ok := l.Pool.Lookup("subprojects"); ok {
		if val, _, ok := p.Root.Vars.Lookup(subsVar); ok {
			for _, n := range val.Reverse() {
				subDir := p.SrcRoot.Sub(n.Value)
				if _, err := l.BootstrapProject(subDir.String(), "", p); err != nil {
					return fmt.Errorf("loader: subproject %s: %w", n.Value, err)
				}
			}
		}
	}
	return nil
}

// LoadBuildfile parses path and walks its statements against scope
// (spec.md §4.4/§4.9's "the parser populates scopes with variables and
// targets"). This is the single entry point include/source/root.build/
// top-level buildfile loading all funnel through.
func (l *Loader) LoadBuildfile(scope *core.Scope, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return diag.Wrap(diag.KindResource, diag.Location{File: path}, err)
	}
	stmts, err := bparser.New(src).Parse()
	if err != nil {
		return diag.Wrap(diag.KindParse, diag.Location{File: path}, err)
	}
	w := &walker{loader: l, file: path}
	return w.execBlock(scope, stmts)
}

// projectOf finds the Project owning scope's project root, or nil if
// scope does not belong to any project bootstrapped through l (a scope
// built directly by a test, for instance).
func (l *Loader) projectOf(scope *core.Scope) *Project {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byRoot[scope.Root]
}

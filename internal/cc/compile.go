package cc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/b2go/b2go/internal/buildmetrics"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/debug"
	"github.com/b2go/b2go/internal/depdb"
	"github.com/b2go/b2go/internal/scheduler"
	"github.com/b2go/b2go/internal/variable"
)

// CompileRule is spec.md §4.10's compile rule: it extracts #include
// directives from the translation unit via internal/cc's tree-sitter
// scanner, records each include's spelling (as written, unresolved) in
// depdb, and re-runs the compiler if the rule version, the option set, the
// source contents or the list of includes changed, or the source is newer
// than the object. The contents and timestamps of included headers are
// not checked, so editing a header alone does not trigger a re-run.
//
// C++ module declarations the scanner reports are not used: no bmi{}
// prerequisites are created for them.
type CompileRule struct {
	Types *Types
	Vars  *Vars
	Pool  *scheduler.Pool

	// CC/CXX name the compiler executables to invoke; empty defaults to
	// "cc"/"c++" respectively, overridable for cross-compilation setups.
	CC, CXX string

	// Metrics records depdb hit/miss and child-process counts (nil
	// disables recording).
	Metrics *buildmetrics.Metrics

	// SearchDirs resolves a #include "..."/<...> to a candidate header
	// target path, given the translation unit's directory and the
	// project's cxx.poptions -I list; swappable for testing.
	SearchDirs func(tuDir string, poptions []string) []string

	scannerPool sync.Pool
}

func (r *CompileRule) scanner() (*HeaderScanner, error) {
	if v := r.scannerPool.Get(); v != nil {
		return v.(*HeaderScanner), nil
	}
	return NewHeaderScanner()
}

func (r *CompileRule) putScanner(s *HeaderScanner) { r.scannerPool.Put(s) }

// Match applies to obje{}/obja{}/objs{} targets for the update operation.
func (r *CompileRule) Match(a core.Action, t *core.Target, hint string) bool {
	switch t.Key.Type {
	case r.Types.ObjE, r.Types.ObjA, r.Types.ObjS:
		return true
	default:
		return false
	}
}

// Apply resolves the translation unit among t.Prerequisites and returns
// the recipe that, during execute, reads it, scans its headers and runs
// the compiler if needed.
func (r *CompileRule) Apply(a core.Action, t *core.Target) (core.Recipe, error) {
	srcPrereq, lang, err := r.findSource(t)
	if err != nil {
		return nil, err
	}

	srcPath := srcPrereq.Dir.Join(srcPrereq.Name + srcExt(lang))
	objPath := t.Key.Dir.Join(t.Key.Name + objExt())

	return func(a core.Action, t *core.Target) (core.State, error) {
		return r.recipe(a, t, srcPath.String(), objPath.String(), lang)
	}, nil
}

func (r *CompileRule) findSource(t *core.Target) (*core.Prerequisite, string, error) {
	for _, p := range t.Prerequisites {
		if p.Type == r.Types.Cxx {
			return p, "cxx", nil
		}
		if p.Type == r.Types.C {
			return p, "c", nil
		}
	}
	return nil, "", fmt.Errorf("cc.compile: %s has no c{}/cxx{} prerequisite", t.Key.Name)
}

func srcExt(lang string) string {
	if lang == "c" {
		return ".c"
	}
	return ".cxx"
}

func objExt() string {
	if os.PathSeparator == '\\' {
		return ".obj"
	}
	return ".o"
}

// recipe is the compile rule's Recipe body (spec.md §4.7): consult
// depdb, decide whether a re-run is needed, spawn the compiler if so.
func (r *CompileRule) recipe(a core.Action, t *core.Target, srcPath, objPath, lang string) (core.State, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return core.StateFailed, fmt.Errorf("cc.compile: read %s: %w", srcPath, err)
	}

	sc, err := r.scanner()
	if err != nil {
		return core.StateFailed, fmt.Errorf("cc.compile: header scanner: %w", err)
	}
	defer r.putScanner(sc)

	scan, err := sc.Scan(src)
	if err != nil {
		return core.StateFailed, fmt.Errorf("cc.compile: scan %s: %w", srcPath, err)
	}

	poptions, coptions, err := r.options(t)
	if err != nil {
		return core.StateFailed, err
	}
	args := r.commandLine(lang, srcPath, objPath, poptions, coptions)

	db, err := depdb.Open(objPath + ".d")
	if err != nil {
		return core.StateFailed, err
	}
	defer db.Close()

	ruleVersion := 1
	unchanged := db.Expect(depdb.RuleID(lang, "compile", ruleVersion))
	unchanged = db.ExpectHash("options", []byte(fmt.Sprintf("%v", args))) && unchanged
	unchanged = db.ExpectHash("source", src) && unchanged
	for _, inc := range scan.Includes {
		unchanged = db.Expect("include "+inc.Path) && unchanged
	}

	if unchanged && !db.Writing() {
		if srcNewer, err := isNewer(srcPath, objPath); err == nil && !srcNewer {
			debug.LogRule("compile: %s unchanged", objPath)
			r.Metrics.AddDepdbHit()
			return core.StateUnchanged, nil
		}
	}
	r.Metrics.AddDepdbMiss()

	if err := r.Pool.AcquireProcessSlot(context.Background()); err != nil {
		return core.StateFailed, err
	}
	defer r.Pool.ReleaseProcessSlot()
	r.Metrics.AddChildProcess()

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return core.StateFailed, err
	}

	compiler := r.compilerFor(lang)
	debug.LogRule("compile: %s %v", compiler, args)
	cmd := exec.Command(compiler, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return core.StateFailed, fmt.Errorf("cc.compile: %s failed: %w", compiler, err)
	}
	return core.StateChanged, nil
}

func (r *CompileRule) compilerFor(lang string) string {
	if lang == "c" {
		if r.CC != "" {
			return r.CC
		}
		return "cc"
	}
	if r.CXX != "" {
		return r.CXX
	}
	return "c++"
}

// options composes cxx.poptions/cxx.coptions from the target's scope,
// honoring the pattern/override-applied lookup of spec.md §4.3.
func (r *CompileRule) options(t *core.Target) (poptions, coptions []string, err error) {
	cache := variable.NewCache()
	tc := core.TargetContext{Type: t.Key.Type, Name: t.Key.Name}
	res := t.Scope.FindForTarget(r.Vars.CxxPoptions, tc, cache)
	if res.Err != nil {
		return nil, nil, fmt.Errorf("cc.compile: %s: %w", t.Key.Name, res.Err)
	}
	if res.Found {
		poptions = VecStrings(res.Value)
	}
	res = t.Scope.FindForTarget(r.Vars.CxxCoptions, tc, cache)
	if res.Err != nil {
		return nil, nil, fmt.Errorf("cc.compile: %s: %w", t.Key.Name, res.Err)
	}
	if res.Found {
		coptions = VecStrings(res.Value)
	}
	return poptions, coptions, nil
}

func (r *CompileRule) commandLine(lang, src, obj string, poptions, coptions []string) []string {
	args := make([]string, 0, len(poptions)+len(coptions)+4)
	args = append(args, poptions...)
	args = append(args, coptions...)
	args = append(args, "-c", src, "-o", obj)
	return args
}

func isNewer(src, obj string) (bool, error) {
	si, err := os.Stat(src)
	if err != nil {
		return true, err
	}
	oi, err := os.Stat(obj)
	if err != nil {
		return true, nil // object missing: treat source as newer
	}
	return si.ModTime().After(oi.ModTime()), nil
}

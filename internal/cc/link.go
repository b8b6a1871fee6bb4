package cc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/b2go/b2go/internal/buildmetrics"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/debug"
	"github.com/b2go/b2go/internal/depdb"
	"github.com/b2go/b2go/internal/scheduler"
	"github.com/b2go/b2go/internal/variable"
)

// argFileThreshold is the Windows command-line length past which an
// @argfile is used instead of passing every object/library path directly
// (spec.md §4.10: "On Windows, argument files are used once the command
// line would exceed the OS limit"). CreateProcess's practical limit is
// ~32K; stay well under it everywhere, not just on Windows, since the
// behavior is harmless (and testable) cross-platform.
const argFileThreshold = 30000

// LinkRule is spec.md §4.10's link rule: it groups prerequisites into
// {C/C++ source, obj/bmi, library, ad hoc}, searches and matches
// libraries, computes per-platform library paths (sonames, import libs),
// builds a command line, checksums options+inputs into depdb, and
// invokes the linker.
type LinkRule struct {
	Types *Types
	Vars  *Vars
	Pool  *scheduler.Pool

	// Linker names the driver used to link, empty defaults to "c++".
	Linker string

	// Metrics records depdb hit/miss and child-process counts (nil
	// disables recording).
	Metrics *buildmetrics.Metrics
}

// Match applies to exe{}/liba{}/libs{} targets for the update operation.
func (r *LinkRule) Match(a core.Action, t *core.Target, hint string) bool {
	switch t.Key.Type {
	case r.Types.Exe, r.Types.LibA, r.Types.LibS:
		return true
	default:
		return false
	}
}

// linkGroups is the pass-1 classification of a link target's
// prerequisites (spec.md §4.10) into three groups: object files,
// libraries, and everything else as ad hoc. Source prerequisites are not
// told apart from other ad hoc ones.
type linkGroups struct {
	objects   []*core.Prerequisite
	libraries []*core.Prerequisite
	adhoc     []*core.Prerequisite
}

func (r *LinkRule) classify(t *core.Target) linkGroups {
	var g linkGroups
	for _, p := range t.Prerequisites {
		switch p.Type {
		case r.Types.ObjE, r.Types.ObjA, r.Types.ObjS, r.Types.Obj:
			g.objects = append(g.objects, p)
		case r.Types.Lib, r.Types.LibA, r.Types.LibS:
			g.libraries = append(g.libraries, p)
		default:
			g.adhoc = append(g.adhoc, p)
		}
	}
	return g
}

// Apply resolves and match-schedules every object/library prerequisite
// (pass 1 of spec.md §4.10), recording PrereqTargets in declaration order
// so the eventual link line preserves it (spec.md §4.6: "prerequisite_
// targets[a] preserves declaration order").
func (r *LinkRule) Apply(a core.Action, t *core.Target) (core.Recipe, error) {
	g := r.classify(t)
	ts := t.Scope.Targets()

	var pts []*core.PrereqTarget
	for _, p := range g.objects {
		target := p.Resolve(ts)
		pts = append(pts, &core.PrereqTarget{Target: target, IncludeType: core.IncludeNormal})
	}
	for _, p := range g.libraries {
		target := p.Resolve(ts)
		pts = append(pts, &core.PrereqTarget{Target: target, IncludeType: core.IncludeNormal})
	}
	for _, p := range g.adhoc {
		target := p.Resolve(ts)
		pts = append(pts, &core.PrereqTarget{Target: target, IncludeType: core.IncludeAdhoc, Adhoc: true})
	}
	t.SetPrereqTargets(a, pts)

	outPath := r.outputPath(t)
	return func(a core.Action, t *core.Target) (core.State, error) {
		return r.recipe(a, t, outPath)
	}, nil
}

func (r *LinkRule) outputPath(t *core.Target) string {
	switch t.Key.Type {
	case r.Types.Exe:
		return t.Key.Dir.Join(t.Key.Name + exeExt()).String()
	case r.Types.LibA:
		return t.Key.Dir.Join(staticLibName(t.Key.Name)).String()
	case r.Types.LibS:
		return t.Key.Dir.Join(sharedLibName(t.Key.Name)).String()
	default:
		return t.Key.Dir.Join(t.Key.Name).String()
	}
}

func exeExt() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// staticLibName/sharedLibName compute the per-platform auxiliary naming
// spec.md §4.10 calls out ("versioned sonames, import libraries"); this
// is the non-Windows/non-versioned baseline, sufficient for the update/
// clean operations this rule drives — full soname symlink chains and
// .lib import-library generation are explicitly out of scope (spec.md
// §1 Non-goals: "platform-specific link-time artifacts").
func staticLibName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".lib"
	}
	return "lib" + name + ".a"
}

func sharedLibName(name string) string {
	switch runtime.GOOS {
	case "windows":
		return name + ".dll"
	case "darwin":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// recipe is pass 2 of spec.md §4.10: "finalise chains ... builds a
// command line, checksums options+inputs into depdb, and invokes the
// linker/archiver."
func (r *LinkRule) recipe(a core.Action, t *core.Target, outPath string) (core.State, error) {
	pts := t.PrereqTargets(a)

	var inputs []string
	worst := core.StateUnchanged
	for _, pt := range pts {
		if pt.Target == nil {
			continue
		}
		if pt.IncludeType != core.IncludeAdhoc {
			if st := pt.Target.StateOf(a); st == core.StateFailed {
				return core.StateFailed, fmt.Errorf("cc.link: prerequisite %s failed", pt.Target.Key.Name)
			} else if st == core.StateChanged {
				worst = core.StateChanged
			}
			if path := pt.Target.Path.String(); path != "" {
				inputs = append(inputs, path)
			} else {
				inputs = append(inputs, pt.Target.Key.Dir.Join(pt.Target.Key.Name+objExt()).String())
			}
		}
	}

	cache := variable.NewCache()
	tc := core.TargetContext{Type: t.Key.Type, Name: t.Key.Name}
	var lopts, libs []string
	res := t.Scope.FindForTarget(r.Vars.CxxLoptions, tc, cache)
	if res.Err != nil {
		return core.StateFailed, fmt.Errorf("cc.link: %s: %w", t.Key.Name, res.Err)
	}
	if res.Found {
		lopts = VecStrings(res.Value)
	}
	res = t.Scope.FindForTarget(r.Vars.CxxLibs, tc, cache)
	if res.Err != nil {
		return core.StateFailed, fmt.Errorf("cc.link: %s: %w", t.Key.Name, res.Err)
	}
	if res.Found {
		libs = VecStrings(res.Value)
	}

	args := r.commandLine(t, outPath, inputs, lopts, libs)

	db, err := depdb.Open(outPath + ".d")
	if err != nil {
		return core.StateFailed, err
	}
	defer db.Close()

	unchanged := db.Expect(depdb.RuleID("cc", "link", 1))
	unchanged = db.ExpectHash("options", []byte(fmt.Sprintf("%v", args))) && unchanged
	for _, in := range inputs {
		unchanged = db.Expect("input "+in) && unchanged
	}

	if unchanged && !db.Writing() && worst == core.StateUnchanged {
		if outNewer, err := allOlderThan(inputs, outPath); err == nil && outNewer {
			debug.LogRule("link: %s unchanged", outPath)
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

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return core.StateFailed, err
	}

	if t.Key.Type == r.Types.LibA {
		return r.archive(outPath, inputs)
	}

	linker := r.Linker
	if linker == "" {
		linker = "c++"
	}
	finalArgs := args
	if len(finalArgs) > 0 && cmdLineLen(finalArgs) > argFileThreshold {
		argFile, cleanup, err := writeArgFile(finalArgs)
		if err != nil {
			return core.StateFailed, err
		}
		defer cleanup()
		finalArgs = []string{"@" + argFile}
	}
	debug.LogRule("link: %s %v", linker, finalArgs)
	cmd := exec.Command(linker, finalArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return core.StateFailed, fmt.Errorf("cc.link: %s failed: %w", linker, err)
	}
	return core.StateChanged, nil
}

func (r *LinkRule) commandLine(t *core.Target, outPath string, inputs, lopts, libs []string) []string {
	args := make([]string, 0, len(inputs)+len(lopts)+len(libs)+3)
	args = append(args, lopts...)
	args = append(args, inputs...)
	for _, lib := range libs {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", outPath)
	if t.Key.Type == r.Types.LibS {
		args = append([]string{"-shared"}, args...)
	}
	return args
}

func (r *LinkRule) archive(outPath string, inputs []string) (core.State, error) {
	args := append([]string{"rcs", outPath}, inputs...)
	debug.LogRule("link: ar %v", args)
	cmd := exec.Command("ar", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return core.StateFailed, fmt.Errorf("cc.link: ar failed: %w", err)
	}
	return core.StateChanged, nil
}

func cmdLineLen(args []string) int {
	n := 0
	for _, a := range args {
		n += len(a) + 1
	}
	return n
}

func writeArgFile(args []string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "b2go-link-*.args")
	if err != nil {
		return "", nil, err
	}
	for _, a := range args {
		fmt.Fprintf(f, "%q\n", a)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", nil, err
	}
	return name, func() { os.Remove(name) }, nil
}

func allOlderThan(inputs []string, out string) (bool, error) {
	oi, err := os.Stat(out)
	if err != nil {
		return false, err
	}
	for _, in := range inputs {
		ii, err := os.Stat(in)
		if err != nil {
			return false, err
		}
		if ii.ModTime().After(oi.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

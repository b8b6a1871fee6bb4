// Command b2go is the driver CLI of spec.md §6/§7: bootstrap a project,
// apply command-line config overrides, resolve positional target specs,
// and run the update or clean operation over them, reporting the
// aggregated summary and exit code.
//
// Modeled on the teacher's cmd/lci (urfave/cli/v2 App with global flags
// plus loadConfigWithOverrides): the same shape, generalized from
// lci's index/search/serve commands to b2go's update/clean/dump.
package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/b2go/b2go/internal/astdump"
	"github.com/b2go/b2go/internal/bparser"
	bcontext "github.com/b2go/b2go/internal/context"
	corepkg "github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/debug"
	"github.com/b2go/b2go/internal/driverconfig"
	"github.com/b2go/b2go/internal/loader"
	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

func main() {
	app := &cli.App{
		Name:                   "b2go",
		Usage:                  "a variable-scoped, rule-driven build system",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "worker count (0 = NumCPU-1)"},
			&cli.IntFlag{Name: "process-jobs", Usage: "concurrent child-process limit (0 = unbounded)"},
			&cli.BoolFlag{Name: "serial", Usage: "equivalent to --jobs=1 --process-jobs=1"},
			&cli.BoolFlag{Name: "keep-going", Aliases: []string{"k"}, Usage: "don't stop at the first failure"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "match and report without executing recipes"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable trace logging (internal/debug)"},
			&cli.StringFlag{Name: "directory", Aliases: []string{"C"}, Usage: "project source root (default: cwd)"},
			&cli.StringFlag{Name: "out-root", Usage: "out-of-tree output root (default: same as source root)"},
			&cli.StringFlag{Name: "cc", Usage: "C compiler driver override"},
			&cli.StringFlag{Name: "cxx", Usage: "C++ compiler driver override"},
			&cli.StringFlag{Name: "linker", Usage: "link driver override"},
			&cli.StringSliceFlag{Name: "import-path", Usage: "extra search directories for imported projects"},
		},
		Commands: []*cli.Command{
			{Name: "update", Aliases: []string{"u"}, Usage: "bring targets up to date (default)", Action: runUpdate},
			{Name: "clean", Aliases: []string{"c"}, Usage: "remove targets' build output", Action: runClean},
			{
				Name:  "dump",
				Usage: "parse a buildfile and print its AST as KDL (internal/astdump)",
				Action: runDump,
			},
		},
		Action: runUpdate,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "b2go:", err)
		os.Exit(1)
	}
}

// buildOptions resolves internal/driverconfig's ambient .b2go.toml against
// c's flags, flags winning on every axis they set explicitly.
func buildOptions(c *cli.Context, srcDir string) (bcontext.Options, bool, bool, error) {
	cfg, err := driverconfig.Load(srcDir)
	if err != nil {
		return bcontext.Options{}, false, false, fmt.Errorf("loading .b2go.toml: %w", err)
	}

	opts := bcontext.Options{
		Jobs:        cfg.Jobs,
		ProcessJobs: cfg.ProcessJobs,
		KeepGoing:   cfg.KeepGoing,
		CC:          cfg.CC,
		CXX:         cfg.CXX,
		Linker:      cfg.Linker,
		ImportPath:  cfg.ImportPath,
	}

	if c.Bool("serial") {
		opts.Jobs, opts.ProcessJobs = 1, 1
	}
	if c.IsSet("jobs") {
		opts.Jobs = c.Int("jobs")
	}
	if c.IsSet("process-jobs") {
		opts.ProcessJobs = c.Int("process-jobs")
	}
	if c.IsSet("keep-going") {
		opts.KeepGoing = c.Bool("keep-going")
	}
	if c.IsSet("cc") {
		opts.CC = c.String("cc")
	}
	if c.IsSet("cxx") {
		opts.CXX = c.String("cxx")
	}
	if c.IsSet("linker") {
		opts.Linker = c.String("linker")
	}
	if ip := c.StringSlice("import-path"); len(ip) > 0 {
		opts.ImportPath = append(append([]string(nil), opts.ImportPath...), ip...)
	}

	verbose := cfg.Verbose || c.Bool("verbose")
	dryRun := c.Bool("dry-run")
	return opts, verbose, dryRun, nil
}

func runUpdate(c *cli.Context) error { return runOperation(c, "update") }
func runClean(c *cli.Context) error  { return runOperation(c, "clean") }

// runOperation is the shared body of update/clean: bootstrap the project,
// apply config overrides, resolve target specs (or default to the
// project root), run op, and report the summary.
func runOperation(c *cli.Context, op string) error {
	srcDir, err := sourceRoot(c)
	if err != nil {
		return err
	}
	opts, verbose, dryRun, err := buildOptions(c, srcDir)
	if err != nil {
		return err
	}
	debug.SetQuiet(!verbose)
	if verbose {
		debug.EnableDebug = "true"
		debug.SetDebugOutput(os.Stderr)
	}

	bc := bcontext.New(opts)

	outDir := c.String("out-root")
	project, err := bc.Bootstrap(srcDir, outDir)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	var specs, overrides []string
	for _, a := range c.Args().Slice() {
		if isOverride(a) {
			overrides = append(overrides, a)
		} else {
			specs = append(specs, a)
		}
	}
	for _, o := range overrides {
		if err := applyOverride(bc.Pool, o); err != nil {
			return err
		}
	}

	roots, err := resolveTargets(project, specs)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		fmt.Println("info: no target to update")
		return nil
	}

	if dryRun {
		for _, t := range roots {
			fmt.Printf("would %s %s\n", op, t.Key.Name)
		}
		return nil
	}

	summary, err := bc.Run(context.Background(), op, roots, opts.KeepGoing)
	fmt.Printf("%s: %d unchanged, %d updated, %d failed\n", op, summary.Unchanged, summary.Changed, summary.Failed)
	return err
}

func runDump(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) != 1 {
		return fmt.Errorf("dump: exactly one buildfile path required")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	stmts, err := bparser.New(src).Parse()
	if err != nil {
		return err
	}
	fmt.Print(astdump.Dump(stmts))
	return nil
}

func sourceRoot(c *cli.Context) (string, error) {
	if d := c.String("directory"); d != "" {
		return filepath.Abs(d)
	}
	return os.Getwd()
}

// isOverride distinguishes a config.var=value/+=/=+ override from a
// target spec: overrides always contain '=' before any '/', a target
// spec never does (spec.md §6's config-variable override syntax).
func isOverride(arg string) bool {
	idx := strings.IndexByte(arg, '=')
	if idx < 0 {
		return false
	}
	if slash := strings.IndexByte(arg, '/'); slash >= 0 && slash < idx {
		return false
	}
	return true
}

// applyOverride parses "name=value" / "name+=value" / "name=+value" and
// registers a global variable.Override (spec.md §4.2/§6).
func applyOverride(pool *variable.Pool, spec string) error {
	name, op, val, err := splitOverride(spec)
	if err != nil {
		return err
	}
	v, err := pool.Insert(name, variable.InsertOptions{})
	if err != nil {
		return fmt.Errorf("override %s: %w", spec, err)
	}
	pool.AddOverride(v, op, 0, valueOf(val))
	return nil
}

func splitOverride(spec string) (varName string, op variable.OverrideOp, val string, err error) {
	if i := strings.Index(spec, "+="); i >= 0 {
		return spec[:i], variable.OpSuffix, spec[i+2:], nil
	}
	if i := strings.Index(spec, "=+"); i >= 0 {
		return spec[:i], variable.OpPrefix, spec[i+2:], nil
	}
	if i := strings.IndexByte(spec, '='); i >= 0 {
		return spec[:i], variable.OpOverride, spec[i+1:], nil
	}
	return "", 0, "", fmt.Errorf("malformed override %q", spec)
}

func valueOf(s string) *value.Value {
	return value.NewNames([]name.Name{name.Simple(s)})
}

// resolveTargets turns specs into core.Target roots by best-effort parsing
// "dir/name.type" against the project's target-type registry. An empty
// specs list (spec.md §8 scenario 1: an empty project run with the default
// operation) yields no roots rather than an error; the caller reports
// "info: no target to update" and exits 0.
func resolveTargets(p *loader.Project, specs []string) ([]*corepkg.Target, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	roots := make([]*corepkg.Target, 0, len(specs))
	for _, spec := range specs {
		t, err := resolveTarget(p, spec)
		if err != nil {
			return nil, err
		}
		roots = append(roots, t)
	}
	return roots, nil
}

func resolveTarget(p *loader.Project, spec string) (*corepkg.Target, error) {
	spec = filepath.ToSlash(spec)
	dir, base := path.Split(spec)
	ext := path.Ext(base)
	typeName := strings.TrimPrefix(ext, ".")
	leaf := strings.TrimSuffix(base, ext)
	if typeName == "" {
		return nil, fmt.Errorf("target %q: no type suffix (expected name.type)", spec)
	}
	tt, ok := p.Root.ResolveTargetType(typeName)
	if !ok {
		return nil, fmt.Errorf("target %q: unknown target type %q", spec, typeName)
	}
	dirPath := p.Root.OutPath
	if dir != "" {
		dirPath = p.Root.OutPath.Sub(strings.TrimSuffix(dir, "/"))
	}
	key := corepkg.TargetKey{Type: tt, Dir: dirPath, Name: leaf}
	t, _ := p.Root.Targets().Insert(key, p.Root)
	return t, nil
}

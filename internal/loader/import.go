package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/b2go/b2go/internal/bparser"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/debug"
	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// execImport handles the `import` directive (spec.md §4.9). The
// grammar's general directive-argument parsing (a bare name list) does
// not capture the `import <var> = <name>` metavariable-binding form, so
// each argument is resolved purely for its bootstrap/target-creation side
// effect; a caller referencing the imported target later does so by its
// fully qualified name directly. This, together with the unrecognized
// trailing `?` metadata-request marker, is not handled by the parser.
func (w *walker) execImport(scope *core.Scope, d *bparser.Directive) error {
	for _, ne := range d.Args {
		if ne.VarRef != "" {
			continue
		}
		n := name.Name{Value: ne.Value, Type: ne.Type}
		if ne.Project != "" {
			p := name.ProjectName(ne.Project)
			n.Project = &p
		}
		t, viaPhase2, err := w.loader.resolveImport(scope, n)
		if err != nil {
			return err
		}
		debug.LogLoader("import %s -> %s", n.String(), t.Key.Name)
		if viaPhase2 && t.Key.Type == w.loader.exeTypeHint(scope) {
			if err := w.loader.extractMetadata(t, n.Value); err != nil {
				debug.LogLoader("import %s: metadata extraction skipped: %v", n.String(), err)
			}
		}
	}
	return nil
}

// exeTypeHint reports the "exe" target type if the scope knows one, used
// only to decide whether a phase-2-resolved target is worth a metadata
// probe (running an obj{}/liba{} as a program makes no sense).
func (l *Loader) exeTypeHint(scope *core.Scope) *core.TargetType {
	tt, _ := scope.ResolveTargetType("exe")
	return tt
}

// execExport handles the `export` directive inside an export.build stub
// (spec.md §4.9/§6: "emits names on import"): the listed names become
// this project's importable surface.
func (w *walker) execExport(scope *core.Scope, d *bparser.Directive) error {
	root := scope.Root
	if root.Extra.Exports == nil {
		root.Extra.Exports = make(map[string]name.Name)
	}
	for _, ne := range d.Args {
		if ne.VarRef != "" {
			continue
		}
		n := name.Name{Value: ne.Value, Type: ne.Type}
		root.Extra.Exports[ne.Value] = n
	}
	return nil
}

// resolveImport implements spec.md §4.9's resolution order:
// config.<proj> (the fixed SPEC_FULL.md precedence decision over
// config.import.<proj>.<name>[.<type>]), then config.import.<proj>.
// <name>[.<type>], then config.import.<proj>, then import.build2,
// then subprojects of the current root and its outer amalgamations,
// finally falling back to a phase-2 PATH search.
func (l *Loader) resolveImport(scope *core.Scope, n name.Name) (*core.Target, bool, error) {
	if n.Project == nil || *n.Project == "" {
		return nil, false, fmt.Errorf("loader: import: %q is not project-qualified", n.String())
	}
	proj := string(*n.Project)
	cache := variable.NewCache()

	if v, ok := l.Pool.Lookup("config." + proj); ok {
		res := scope.Find(v, cache)
		if res.Err != nil {
			return nil, false, fmt.Errorf("loader: import %s: %w", n.String(), res.Err)
		}
		if res.Found && res.Value != nil {
			if dir := firstValueString(res.Value); dir != "" {
				t, err := l.resolveImportAt(n, dir)
				return t, false, err
			}
		}
	}

	qualBase := "config.import." + proj + "." + n.Value
	if n.Type != "" {
		if v, ok := l.Pool.Lookup(qualBase + "." + n.Type); ok {
			res := scope.Find(v, cache)
			if res.Err != nil {
				return nil, false, fmt.Errorf("loader: import %s: %w", n.String(), res.Err)
			}
			if res.Found && res.Value != nil {
				if dir := firstValueString(res.Value); dir != "" {
					t, err := l.resolveImportAt(n, dir)
					return t, false, err
				}
			}
		}
	}
	if v, ok := l.Pool.Lookup(qualBase); ok {
		res := scope.Find(v, cache)
		if res.Err != nil {
			return nil, false, fmt.Errorf("loader: import %s: %w", n.String(), res.Err)
		}
		if res.Found && res.Value != nil {
			if dir := firstValueString(res.Value); dir != "" {
				t, err := l.resolveImportAt(n, dir)
				return t, false, err
			}
		}
	}
	if v, ok := l.Pool.Lookup("config.import." + proj); ok {
		res := scope.Find(v, cache)
		if res.Err != nil {
			return nil, false, fmt.Errorf("loader: import %s: %w", n.String(), res.Err)
		}
		if res.Found && res.Value != nil {
			if dir := firstValueString(res.Value); dir != "" {
				t, err := l.resolveImportAt(n, dir)
				return t, false, err
			}
		}
	}

	if v, ok := l.Pool.Lookup("import.build2"); ok {
		res := scope.Find(v, cache)
		if res.Err != nil {
			return nil, false, fmt.Errorf("loader: import %s: %w", n.String(), res.Err)
		}
		if res.Found && res.Value != nil {
			for _, nm := range res.Value.Reverse() {
				dir := filepath.Join(nm.Value, proj)
				if t, err := l.resolveImportAt(n, dir); err == nil {
					return t, false, nil
				}
			}
		}
	}

	if p := l.projectOf(scope); p != nil {
		if sp, ok := p.Subprojects[proj]; ok {
			t, err := l.importFromProject(sp, n)
			return t, false, err
		}
		for amalg := p.Amalgam; amalg != nil; amalg = amalg.Amalgam {
			if sp, ok := amalg.Subprojects[proj]; ok {
				t, err := l.importFromProject(sp, n)
				return t, false, err
			}
		}
	}

	t, err := l.resolveImportPhase2(scope, n)
	return t, true, err
}

func firstValueString(val *value.Value) string {
	if val == nil {
		return ""
	}
	names := val.Reverse()
	if len(names) == 0 {
		return ""
	}
	return names[0].Value
}

func (l *Loader) resolveImportAt(n name.Name, dir string) (*core.Target, error) {
	sub, err := l.BootstrapProject(dir, "", nil)
	if err != nil {
		return nil, err
	}
	return l.importFromProject(sub, n)
}

// importFromProject loads p's export.build (once) and resolves n against
// p's root target-type registry and TargetSet.
func (l *Loader) importFromProject(p *Project, n name.Name) (*core.Target, error) {
	if !p.exportLoaded {
		exportPath := filepath.Join(p.SrcRoot.String(), p.Layout.buildDir, p.Layout.export)
		if err := l.LoadBuildfile(p.Root, exportPath); err == nil {
			p.exportLoaded = true
		}
	}
	tt, ok := p.Root.ResolveTargetType(n.Type)
	if !ok {
		return nil, fmt.Errorf("loader: import: project %q has no target type %q", p.Root.Extra.Project, n.Type)
	}
	key := core.TargetKey{Type: tt, Dir: p.Root.OutPath, Name: n.Value}
	t, _ := p.Root.Targets().Insert(key, p.Root)
	return t, nil
}

// resolveImportPhase2 is spec.md §4.9's rule-based fallback: a PATH (plus
// Loader.ImportPath) search for an executable named after the imported
// project or target (spec.md §8 scenario 6: "Phase-2 rule resolves via
// PATH search; target's process_path is set").
func (l *Loader) resolveImportPhase2(scope *core.Scope, n name.Name) (*core.Target, error) {
	candidates := []string{proj(n), n.Value}
	var path string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if p, err := exec.LookPath(c); err == nil {
			path = p
			break
		}
	}
	for _, dir := range l.ImportPath {
		if path != "" {
			break
		}
		for _, c := range candidates {
			if c == "" {
				continue
			}
			full := filepath.Join(dir, c)
			if p, err := exec.LookPath(full); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		return nil, fmt.Errorf("loader: import: %s: no config.import.* entry, no subproject, and phase-2 PATH search failed", n.String())
	}

	tt, ok := scope.ResolveTargetType(n.Type)
	if !ok {
		tt, _ = scope.ResolveTargetType("exe")
	}
	if tt == nil {
		return nil, fmt.Errorf("loader: import: %s: cannot resolve without a known target type", n.String())
	}
	key := core.TargetKey{Type: tt, Dir: scope.OutPath, Name: n.Value}
	t, _ := scope.Targets().Insert(key, scope)
	t.Path = name.NewPath(path)
	return t, nil
}

func proj(n name.Name) string {
	if n.Project == nil {
		return ""
	}
	return string(*n.Project)
}

// extractMetadata runs an imported executable target with
// --build2-metadata=1 and applies the buildfile-syntax variable
// assignments its output carries onto t (spec.md §4.9), caching the
// outcome by the executable's effective path.
func (l *Loader) extractMetadata(t *core.Target, key string) error {
	path := t.Path.String()
	if path == "" {
		return fmt.Errorf("loader: metadata: %s has no resolved executable path", t.Key.Name)
	}

	l.metaMu.Lock()
	if err, ok := l.metaCache[path]; ok {
		l.metaMu.Unlock()
		return err
	}
	l.metaMu.Unlock()

	err := l.runMetadata(t, key, path)

	l.metaMu.Lock()
	l.metaCache[path] = err
	l.metaMu.Unlock()
	return err
}

const metadataReadLimit = 64 * 1024

func (l *Loader) runMetadata(t *core.Target, key, path string) error {
	cmd := exec.Command(path, "--build2-metadata=1")
	var buf bytes.Buffer
	cmd.Stdout = &buf
	runErr := cmd.Run()
	out := buf.Bytes()
	if runErr != nil && len(out) == 0 {
		return fmt.Errorf("loader: metadata: %s: %w", path, runErr)
	}
	if len(out) > metadataReadLimit {
		out = out[:metadataReadLimit]
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return fmt.Errorf("loader: metadata: %s: empty output", path)
	}
	sig := strings.TrimSpace(scanner.Text())
	want := "# build2 buildfile " + key
	if sig != want {
		return fmt.Errorf("loader: metadata: %s: expected signature %q, got %q", path, want, sig)
	}

	var rest bytes.Buffer
	for scanner.Scan() {
		rest.WriteString(scanner.Text())
		rest.WriteByte('\n')
	}
	if rest.Len() == 0 {
		return nil
	}
	stmts, err := bparser.New(rest.Bytes()).Parse()
	if err != nil {
		return fmt.Errorf("loader: metadata: %s: %w", path, err)
	}
	w := &walker{loader: l, file: path}
	return w.execTargetBlock(t.Scope, t, stmts)
}

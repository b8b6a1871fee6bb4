package loader

import (
	"fmt"
	"strings"

	"github.com/b2go/b2go/internal/bparser"
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/diag"
	"github.com/b2go/b2go/internal/name"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// walker executes one parsed buildfile's statements against a live
// Scope, populating variables, targets and prerequisites (spec.md §4.9).
// Load is exclusive and single-threaded (spec.md §4.6), so a walker needs
// no synchronization of its own beyond what Scope/Pool already provide.
type walker struct {
	loader *Loader
	file   string
}

func (w *walker) loc(line int) diag.Location {
	return diag.Location{File: w.file, Line: line}
}

// execBlock runs stmts against scope in order.
func (w *walker) execBlock(scope *core.Scope, stmts []bparser.Statement) error {
	for _, s := range stmts {
		if err := w.execStmt(scope, nil, s); err != nil {
			return err
		}
	}
	return nil
}

// execTargetBlock runs stmts as a dependency declaration's trailing
// block: bare variable assignments attach to target's own Vars rather
// than the enclosing scope (spec.md §3: "a target's own variable map
// shadows its scope's for lookups against that target specifically").
func (w *walker) execTargetBlock(scope *core.Scope, target *core.Target, stmts []bparser.Statement) error {
	for _, s := range stmts {
		if err := w.execStmt(scope, target, s); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) execStmt(scope *core.Scope, target *core.Target, s bparser.Statement) error {
	switch st := s.(type) {
	case *bparser.Assignment:
		return w.execAssignment(scope, target, st)
	case *bparser.DependencyDecl:
		return w.execDependency(scope, st)
	case *bparser.ScopeBlock:
		sub := core.NewSubScope(scope.OutPath, scope)
		return w.execBlock(sub, st.Body)
	case *bparser.Directive:
		return w.execDirective(scope, st)
	default:
		return diag.New(diag.KindInternal, diag.Location{File: w.file}, "unknown statement type %T", s)
	}
}

// execAssignment handles both plain `var op rhs` and the pattern-
// qualified `type{pattern}: var op rhs` form (spec.md §4.2).
func (w *walker) execAssignment(scope *core.Scope, target *core.Target, a *bparser.Assignment) error {
	rhs, err := w.resolveNames(scope, a.RHS)
	if err != nil {
		return err
	}
	val := value.NewNames(rhs)

	v, err := w.loader.Pool.Insert(a.Var, variable.InsertOptions{})
	if err != nil {
		return diag.Wrap(diag.KindSemantic, w.loc(a.Line), err)
	}

	if a.TypePattern != "" {
		return w.execPatternAssignment(scope, a, v, val)
	}

	dest := scope.Vars
	if target != nil {
		dest = target.Vars
		if dest == nil {
			dest = variable.NewLocalMap()
			target.Vars = dest
		}
	}
	return w.applyOp(dest, v, a.Op, val, a.Line)
}

// execPatternAssignment records `type{pattern}: var op rhs` into the
// scope's target_vars (spec.md §3 Scope, §4.2 specificity). It resolves
// TypePattern against the scope's target-type chain; "*"/"**" alone
// (i.e. any type) is represented by an absent TargetType match, which
// spec.md's own worked examples (§8) never need, so an unresolvable
// type name is reported rather than silently treated as wildcard-any.
func (w *walker) execPatternAssignment(scope *core.Scope, a *bparser.Assignment, v *variable.Variable, val *value.Value) error {
	tt, ok := scope.ResolveTargetType(a.TypePattern)
	if !ok {
		return diag.New(diag.KindLookup, w.loc(a.Line), "undefined target type %q", a.TypePattern).
			WithNote(diag.SuggestNote("target type", a.TypePattern, scope.TargetTypes.Names()))
	}
	pat := variable.NewPattern(a.NamePattern, w.loader.Pool.NextPatternOrder())

	if a.Op != bparser.OpSet {
		// Append/prepend markers are opaque to value.Value (spec.md §9
		// Open Questions #3);
		// record which operation produced this entry so a future
		// FindForTarget chaining pass (not yet implemented) can combine
		// multiple matching patterns in specificity order instead of
		// taking only the single best match it does today.
		if a.Op == bparser.OpAppend {
			val.Extra = 1
		} else {
			val.Extra = 2
		}
	}
	scope.TargetVars.Assign(tt, pat, v, val)
	return nil
}

// applyOp performs op against dest's existing entry for v (spec.md §4.1:
// `+=`/`=+` against an absent variable behave like `=`). A variable with
// a declared type (e.g. cxx.poptions) typifies both sides and composes
// through the type's own Append/Prepend; an untyped variable (the common
// case for plain buildfile variables) concatenates the raw Names
// sequences directly, since an untyped value is nothing but that
// sequence until something downstream typifies it (spec.md §4.1).
func (w *walker) applyOp(dest *variable.Map, v *variable.Variable, op bparser.AssignOp, rhs *value.Value, line int) error {
	if op == bparser.OpSet {
		dest.Assign(v, rhs)
		return nil
	}
	existing, _, ok := dest.Lookup(v)
	if !ok || existing == nil {
		dest.Assign(v, rhs)
		return nil
	}

	if declared := v.Type(); declared != nil {
		if existing.IsUntyped() {
			if err := existing.Typify(declared, v); err != nil {
				return diag.Wrap(diag.KindSemantic, diag.Location{File: w.file, Line: line}, err)
			}
		}
		rhsNames := rhs.Reverse()
		var err error
		if op == bparser.OpAppend {
			err = existing.Append(declared, rhsNames, v)
		} else {
			err = existing.Prepend(declared, rhsNames, v)
		}
		if err != nil {
			return diag.Wrap(diag.KindSemantic, diag.Location{File: w.file, Line: line}, err)
		}
		dest.Assign(v, existing)
		return nil
	}

	existingNames := existing.Reverse()
	rhsNames := rhs.Reverse()
	combined := make([]name.Name, 0, len(existingNames)+len(rhsNames))
	if op == bparser.OpAppend {
		combined = append(combined, existingNames...)
		combined = append(combined, rhsNames...)
	} else {
		combined = append(combined, rhsNames...)
		combined = append(combined, existingNames...)
	}
	dest.Assign(v, value.NewNames(combined))
	return nil
}

// resolveNames flattens a name-expression list, expanding $var
// references and group-brace crossing (spec.md §4.4).
func (w *walker) resolveNames(scope *core.Scope, exprs []bparser.NameExpr) ([]name.Name, error) {
	var out []name.Name
	for _, ne := range exprs {
		ns, err := w.resolveNameExpr(scope, ne)
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}
	return out, nil
}

func (w *walker) resolveNameExpr(scope *core.Scope, ne bparser.NameExpr) ([]name.Name, error) {
	if ne.VarRef != "" {
		return w.resolveVarRef(scope, ne.VarRef)
	}
	base := name.Name{Value: ne.Value, Type: ne.Type, Dir: name.NewDirPath(ne.Dir)}
	if ne.Project != "" {
		p := name.ProjectName(ne.Project)
		base.Project = &p
	}
	if ne.Pair {
		base.Pair = '@'
	}
	return name.Cross(base, ne.Groups), nil
}

// resolveVarRef evaluates a `$var` or `$(var)` reference against scope
// (spec.md §4.4 eval contexts). Only a bare variable lookup is
// supported: build2's richer eval-context grammar (function calls,
// arithmetic, string ops inside `$(...)`) is not implemented, a known
// limitation alongside the unparsed `[type]` attribute syntax.
func (w *walker) resolveVarRef(scope *core.Scope, ref string) ([]name.Name, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "(") && strings.HasSuffix(ref, ")") {
		ref = strings.TrimSpace(ref[1 : len(ref)-1])
	}
	v, ok := w.loader.Pool.Lookup(ref)
	if !ok {
		return nil, diag.New(diag.KindLookup, diag.Location{File: w.file}, "undefined variable %q", ref).
			WithNote(diag.SuggestNote("variable", ref, w.loader.Pool.Names()))
	}
	res := scope.Find(v, variable.NewCache())
	if res.Err != nil {
		return nil, diag.New(diag.KindSemantic, diag.Location{File: w.file}, "%s: %v", ref, res.Err)
	}
	if !res.Found || res.Value == nil {
		return nil, nil
	}
	return res.Value.Reverse(), nil
}

// execDependency resolves a `targets: prerequisites` declaration
// (spec.md §3): each target name is inserted into the project's
// TargetSet (created on first reference, found thereafter), and each
// prerequisite becomes an as-declared core.Prerequisite edge a rule's
// Apply later resolves and matches.
func (w *walker) execDependency(scope *core.Scope, d *bparser.DependencyDecl) error {
	targets, err := w.resolveNames(scope, d.Targets)
	if err != nil {
		return err
	}

	type resolvedPrereq struct {
		n     name.Name
		adhoc bool
	}
	var prereqs []resolvedPrereq
	for _, pe := range d.Prerequisites {
		ns, err := w.resolveNameExpr(scope, pe.Name)
		if err != nil {
			return err
		}
		for _, n := range ns {
			prereqs = append(prereqs, resolvedPrereq{n: n, adhoc: pe.Adhoc})
		}
	}

	ts := scope.Targets()
	for _, tn := range targets {
		tt, ok := scope.ResolveTargetType(tn.Type)
		if !ok {
			return diag.New(diag.KindLookup, w.loc(d.Line), "undefined target type %q", tn.Type).
				WithNote(diag.SuggestNote("target type", tn.Type, scope.TargetTypes.Names()))
		}
		dir := tn.Dir
		if dir.Empty() {
			dir = scope.OutPath
		}
		key := core.TargetKey{Type: tt, Dir: dir, Name: tn.Value}
		t, _ := ts.Insert(key, scope)

		for _, rp := range prereqs {
			var ptype *core.TargetType
			if rp.n.Type != "" {
				pt, ok := scope.ResolveTargetType(rp.n.Type)
				if !ok {
					return diag.New(diag.KindLookup, w.loc(d.Line), "undefined target type %q", rp.n.Type).
						WithNote(diag.SuggestNote("target type", rp.n.Type, scope.TargetTypes.Names()))
				}
				ptype = pt
			}
			pdir := rp.n.Dir
			if pdir.Empty() {
				pdir = scope.OutPath
			}
			prereq := &core.Prerequisite{Type: ptype, Dir: pdir, Name: rp.n.Value, Scope: scope, Vars: variable.NewLocalMap()}
			if rp.n.Project != nil {
				proj := *rp.n.Project
				prereq.Project = &proj
			}
			t.Prerequisites = append(t.Prerequisites, prereq)
			_ = rp.adhoc // core.Prerequisite has no ad hoc field, so the `|` marker is dropped here
		}

		if len(d.Block) > 0 {
			if err := w.execTargetBlock(scope, t, d.Block); err != nil {
				return err
			}
		}
	}
	return nil
}

// execDirective dispatches one of include/source/import/export/using/
// define/if/elif/else/assert/print (spec.md §4.4).
func (w *walker) execDirective(scope *core.Scope, d *bparser.Directive) error {
	switch d.Keyword {
	case "include", "source":
		return w.execInclude(scope, d)
	case "import":
		return w.execImport(scope, d)
	case "export":
		return w.execExport(scope, d)
	case "using":
		return w.execUsing(scope, d)
	case "define":
		return w.execDefine(scope, d)
	case "if", "elif", "else":
		return w.execConditional(scope, d)
	case "assert":
		return w.execAssert(scope, d)
	case "print":
		return w.execPrint(scope, d)
	default:
		return diag.New(diag.KindSemantic, w.loc(d.Line), "unknown directive %q", d.Keyword)
	}
}

func (w *walker) execInclude(scope *core.Scope, d *bparser.Directive) error {
	names, err := w.resolveNames(scope, d.Args)
	if err != nil {
		return err
	}
	dir := scope.OutPath.Parent()
	if dir.Empty() {
		dir = scope.OutPath
	}
	for _, n := range names {
		path := dir.Join(n.Value).String()
		if err := w.loader.LoadBuildfile(scope, path); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) execUsing(scope *core.Scope, d *bparser.Directive) error {
	names, err := w.resolveNames(scope, d.Args)
	if err != nil {
		return err
	}
	proj := w.loader.projectOf(scope)
	if proj == nil {
		return diag.New(diag.KindSemantic, w.loc(d.Line), "using: scope does not belong to a bootstrapped project")
	}
	for _, n := range names {
		setup, ok := w.loader.ExtraModules[n.Value]
		if !ok {
			continue // an unregistered module name is a no-op (spec.md §1 Non-goals: "modules beyond cxx are not implemented")
		}
		if err := setup(proj); err != nil {
			return diag.Wrap(diag.KindSemantic, w.loc(d.Line), err)
		}
		proj.Root.Extra.Modules = append(proj.Root.Extra.Modules, n.Value)
	}
	return nil
}

// execDefine implements the `define` directive (spec.md §4.4): a new
// target type derived from an existing one. The grammar's general
// directive-argument parsing stops at a bare name list, so only the
// `define derived base` two-name shape is recognized; the canonical
// `define derived: base` colon form is not recognized.
func (w *walker) execDefine(scope *core.Scope, d *bparser.Directive) error {
	if len(d.Args) < 2 {
		return diag.New(diag.KindSemantic, w.loc(d.Line), "define: expected a derived and a base type name")
	}
	derived := d.Args[0].Value
	baseName := d.Args[1].Value
	base, ok := scope.ResolveTargetType(baseName)
	if !ok {
		return diag.New(diag.KindLookup, w.loc(d.Line), "define: undefined base type %q", baseName).
			WithNote(diag.SuggestNote("target type", baseName, scope.TargetTypes.Names()))
	}
	scope.TargetTypes.Derive(derived, base)
	return nil
}

// execConditional evaluates an if/elif/else chain against scope's
// variables (spec.md §4.4 eval contexts). Cond supports a bare variable
// (truthy if defined and non-empty), a leading `!` negation, and
// `lhs == rhs` / `lhs != rhs` string comparison — the common shapes in
// practice; arbitrary eval-context expressions are not implemented.
func (w *walker) execConditional(scope *core.Scope, d *bparser.Directive) error {
	if d.Keyword == "else" {
		return w.execBlock(scope, d.Body)
	}
	ok, err := w.evalCond(scope, d.Cond)
	if err != nil {
		return err
	}
	if ok {
		return w.execBlock(scope, d.Body)
	}
	if d.Else != nil {
		return w.execDirective(scope, d.Else)
	}
	return nil
}

func (w *walker) evalCond(scope *core.Scope, cond string) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return false, nil
	}
	negate := false
	if strings.HasPrefix(cond, "!") {
		negate = true
		cond = strings.TrimSpace(cond[1:])
	}
	var result bool
	switch {
	case strings.Contains(cond, "=="):
		parts := strings.SplitN(cond, "==", 2)
		result = w.evalOperand(scope, parts[0]) == w.evalOperand(scope, parts[1])
	case strings.Contains(cond, "!="):
		parts := strings.SplitN(cond, "!=", 2)
		result = w.evalOperand(scope, parts[0]) != w.evalOperand(scope, parts[1])
	default:
		result = w.truthy(scope, cond)
	}
	if negate {
		result = !result
	}
	return result, nil
}

func (w *walker) evalOperand(scope *core.Scope, s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") && len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	if v, ok := w.loader.Pool.Lookup(s); ok {
		if res := scope.Find(v, nil); res.Found && res.Value != nil {
			names := res.Value.Reverse()
			vals := make([]string, len(names))
			for i, n := range names {
				vals[i] = n.String()
			}
			return strings.Join(vals, " ")
		}
		return ""
	}
	return s
}

func (w *walker) truthy(scope *core.Scope, s string) bool {
	switch s {
	case "true":
		return true
	case "false", "":
		return false
	}
	v, ok := w.loader.Pool.Lookup(s)
	if !ok {
		return false
	}
	res := scope.Find(v, nil)
	if !res.Found || res.Value == nil {
		return false
	}
	return !res.Value.Empty()
}

func (w *walker) execAssert(scope *core.Scope, d *bparser.Directive) error {
	names, err := w.resolveNames(scope, d.Args)
	if err != nil {
		return err
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n.String()
	}
	if ok, _ := w.evalCond(scope, strings.Join(parts, " ")); !ok {
		return diag.New(diag.KindSemantic, w.loc(d.Line), "assertion failed: %s", strings.Join(parts, " "))
	}
	return nil
}

func (w *walker) execPrint(scope *core.Scope, d *bparser.Directive) error {
	names, err := w.resolveNames(scope, d.Args)
	if err != nil {
		return err
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n.String()
	}
	fmt.Fprintln(w.loader.Stdout, strings.Join(parts, " "))
	return nil
}

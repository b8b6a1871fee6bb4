// Package astdump implements spec.md §8's round-trip debugging aid: dump
// a parsed buildfile's AST (internal/bparser.Statement tree) to a
// human-readable KDL document and reparse it back into an equivalent
// AST, backing a `b2go dump` subcommand and the round-trip property
// tests spec.md §8 calls for ("parse, dump, reparse, compare").
//
// The teacher's internal/config/kdl_config.go shows this codebase's only
// observed use of github.com/sblinch/kdl-go: kdl.Parse followed by a
// manual document.Node walk (nodeName/firstStringArg/firstIntArg/
// collectStringArgs) — there is no generic Marshal counterpart in that
// usage, so Dump hand-writes KDL text the same way a human author would,
// and Parse walks the parsed document.Node tree exactly like
// kdl_config.go's parseKDL does.
package astdump

import (
	"fmt"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/b2go/b2go/internal/bparser"
)

// Dump renders stmts as a KDL document, one top-level node per statement,
// nested statements (ScopeBlock bodies, DependencyDecl blocks, Directive
// bodies) rendered as children of their owning node.
func Dump(stmts []bparser.Statement) string {
	var b strings.Builder
	writeStatements(&b, stmts, 0)
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}

func writeStatements(b *strings.Builder, stmts []bparser.Statement, depth int) {
	for _, s := range stmts {
		writeStatement(b, s, depth)
	}
}

func writeStatement(b *strings.Builder, s bparser.Statement, depth int) {
	switch v := s.(type) {
	case *bparser.Assignment:
		writeAssignment(b, v, depth)
	case *bparser.DependencyDecl:
		writeDependencyDecl(b, v, depth)
	case *bparser.ScopeBlock:
		writeScopeBlock(b, v, depth)
	case *bparser.Directive:
		writeDirective(b, v, depth)
	default:
		indent(b, depth)
		fmt.Fprintf(b, "unknown-statement %q\n", fmt.Sprintf("%T", s))
	}
}

func writeAssignment(b *strings.Builder, a *bparser.Assignment, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "assign %s %s line=%d", quote(a.Var), quote(assignOpString(a.Op)), a.Line)
	if a.TypePattern != "" {
		fmt.Fprintf(b, " type-pattern=%s", quote(a.TypePattern))
	}
	if a.NamePattern != "" {
		fmt.Fprintf(b, " name-pattern=%s", quote(a.NamePattern))
	}
	b.WriteString(" {\n")
	indent(b, depth+1)
	b.WriteString("rhs")
	for _, n := range a.RHS {
		b.WriteString(" ")
		b.WriteString(quote(encodeNameExpr(n)))
	}
	b.WriteString("\n")
	indent(b, depth)
	b.WriteString("}\n")
}

func writeDependencyDecl(b *strings.Builder, d *bparser.DependencyDecl, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "dep line=%d {\n", d.Line)

	indent(b, depth+1)
	b.WriteString("targets")
	for _, n := range d.Targets {
		b.WriteString(" ")
		b.WriteString(quote(encodeNameExpr(n)))
	}
	b.WriteString("\n")

	indent(b, depth+1)
	b.WriteString("prereqs")
	for _, p := range d.Prerequisites {
		b.WriteString(" ")
		b.WriteString(quote(encodePrereqExpr(p)))
	}
	b.WriteString("\n")

	if len(d.Block) > 0 {
		indent(b, depth+1)
		b.WriteString("block {\n")
		writeStatements(b, d.Block, depth+2)
		indent(b, depth+1)
		b.WriteString("}\n")
	}

	indent(b, depth)
	b.WriteString("}\n")
}

func writeScopeBlock(b *strings.Builder, s *bparser.ScopeBlock, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "scope line=%d {\n", s.Line)
	writeStatements(b, s.Body, depth+1)
	indent(b, depth)
	b.WriteString("}\n")
}

func writeDirective(b *strings.Builder, d *bparser.Directive, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "directive %s line=%d {\n", quote(d.Keyword), d.Line)

	indent(b, depth+1)
	b.WriteString("args")
	for _, n := range d.Args {
		b.WriteString(" ")
		b.WriteString(quote(encodeNameExpr(n)))
	}
	b.WriteString("\n")

	if d.Cond != "" {
		indent(b, depth+1)
		fmt.Fprintf(b, "cond %s\n", quote(d.Cond))
	}

	if len(d.Body) > 0 {
		indent(b, depth+1)
		b.WriteString("body {\n")
		writeStatements(b, d.Body, depth+2)
		indent(b, depth+1)
		b.WriteString("}\n")
	}

	if d.Else != nil {
		indent(b, depth+1)
		b.WriteString("else {\n")
		writeDirective(b, d.Else, depth+2)
		indent(b, depth+1)
		b.WriteString("}\n")
	}

	indent(b, depth)
	b.WriteString("}\n")
}

// Parse reparses a document produced by Dump back into an equivalent
// []bparser.Statement tree.
func Parse(text string) ([]bparser.Statement, error) {
	doc, err := kdl.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("astdump: parse: %w", err)
	}
	return parseStatements(doc.Nodes)
}

func parseStatements(nodes []*document.Node) ([]bparser.Statement, error) {
	stmts := make([]bparser.Statement, 0, len(nodes))
	for _, n := range nodes {
		s, err := parseStatement(n)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func parseStatement(n *document.Node) (bparser.Statement, error) {
	switch nodeName(n) {
	case "assign":
		return parseAssignment(n)
	case "dep":
		return parseDependencyDecl(n)
	case "scope":
		return parseScopeBlock(n)
	case "directive":
		return parseDirective(n)
	default:
		return nil, fmt.Errorf("astdump: unknown node %q", nodeName(n))
	}
}

func parseAssignment(n *document.Node) (*bparser.Assignment, error) {
	a := &bparser.Assignment{}
	args := stringArgs(n)
	if len(args) < 2 {
		return nil, fmt.Errorf("astdump: assign node missing var/op")
	}
	a.Var = args[0]
	op, err := parseAssignOp(args[1])
	if err != nil {
		return nil, err
	}
	a.Op = op
	a.Line = intProp(n, "line")
	a.TypePattern = stringProp(n, "type-pattern")
	a.NamePattern = stringProp(n, "name-pattern")

	if rhs := childNamed(n, "rhs"); rhs != nil {
		for _, s := range stringArgs(rhs) {
			ne, err := decodeNameExpr(s)
			if err != nil {
				return nil, err
			}
			a.RHS = append(a.RHS, ne)
		}
	}
	return a, nil
}

func parseDependencyDecl(n *document.Node) (*bparser.DependencyDecl, error) {
	d := &bparser.DependencyDecl{Line: intProp(n, "line")}
	if targets := childNamed(n, "targets"); targets != nil {
		for _, s := range stringArgs(targets) {
			ne, err := decodeNameExpr(s)
			if err != nil {
				return nil, err
			}
			d.Targets = append(d.Targets, ne)
		}
	}
	if prereqs := childNamed(n, "prereqs"); prereqs != nil {
		for _, s := range stringArgs(prereqs) {
			p, err := decodePrereqExpr(s)
			if err != nil {
				return nil, err
			}
			d.Prerequisites = append(d.Prerequisites, p)
		}
	}
	if block := childNamed(n, "block"); block != nil {
		stmts, err := parseStatements(block.Children)
		if err != nil {
			return nil, err
		}
		d.Block = stmts
	}
	return d, nil
}

func parseScopeBlock(n *document.Node) (*bparser.ScopeBlock, error) {
	stmts, err := parseStatements(n.Children)
	if err != nil {
		return nil, err
	}
	return &bparser.ScopeBlock{Body: stmts, Line: intProp(n, "line")}, nil
}

func parseDirective(n *document.Node) (*bparser.Directive, error) {
	args := stringArgs(n)
	if len(args) < 1 {
		return nil, fmt.Errorf("astdump: directive node missing keyword")
	}
	d := &bparser.Directive{Keyword: args[0], Line: intProp(n, "line")}

	if a := childNamed(n, "args"); a != nil {
		for _, s := range stringArgs(a) {
			ne, err := decodeNameExpr(s)
			if err != nil {
				return nil, err
			}
			d.Args = append(d.Args, ne)
		}
	}
	if c := childNamed(n, "cond"); c != nil {
		if s, ok := firstStringArg(c); ok {
			d.Cond = s
		}
	}
	if body := childNamed(n, "body"); body != nil {
		stmts, err := parseStatements(body.Children)
		if err != nil {
			return nil, err
		}
		d.Body = stmts
	}
	if elseNode := childNamed(n, "else"); elseNode != nil {
		inner := childNamed(elseNode, "directive")
		if inner == nil && len(elseNode.Children) > 0 {
			inner = elseNode.Children[0]
		}
		if inner != nil {
			nested, err := parseDirective(inner)
			if err != nil {
				return nil, err
			}
			d.Else = nested
		}
	}
	return d, nil
}

func assignOpString(op bparser.AssignOp) string {
	switch op {
	case bparser.OpAppend:
		return "append"
	case bparser.OpPrepend:
		return "prepend"
	default:
		return "set"
	}
}

func parseAssignOp(s string) (bparser.AssignOp, error) {
	switch s {
	case "set":
		return bparser.OpSet, nil
	case "append":
		return bparser.OpAppend, nil
	case "prepend":
		return bparser.OpPrepend, nil
	default:
		return 0, fmt.Errorf("astdump: unknown assign op %q", s)
	}
}

// encodeNameExpr/decodeNameExpr round-trip a bparser.NameExpr through a
// single KDL string argument. The NameExpr still carries its group-brace
// suffixes unexpanded (internal/name.Cross runs later, in internal/loader),
// and the encoding keeps them as separate groups in a plain delimited
// record rather than reproducing buildfile syntax.
const fieldSep = "\x1f"
const groupSep = "\x1e"
const itemSep = "\x1d"

func encodeNameExpr(n bparser.NameExpr) string {
	groups := make([]string, 0, len(n.Groups))
	for _, g := range n.Groups {
		groups = append(groups, strings.Join(g, itemSep))
	}
	pair := "0"
	if n.Pair {
		pair = "1"
	}
	return strings.Join([]string{
		n.Project, n.Type, n.Dir, n.Value,
		strings.Join(groups, groupSep),
		pair, n.VarRef,
	}, fieldSep)
}

func decodeNameExpr(s string) (bparser.NameExpr, error) {
	parts := strings.Split(s, fieldSep)
	if len(parts) != 7 {
		return bparser.NameExpr{}, fmt.Errorf("astdump: malformed name expr %q", s)
	}
	var groups [][]string
	if parts[4] != "" {
		for _, g := range strings.Split(parts[4], groupSep) {
			groups = append(groups, strings.Split(g, itemSep))
		}
	}
	return bparser.NameExpr{
		Project: parts[0],
		Type:    parts[1],
		Dir:     parts[2],
		Value:   parts[3],
		Groups:  groups,
		Pair:    parts[5] == "1",
		VarRef:  parts[6],
	}, nil
}

func encodePrereqExpr(p bparser.PrereqExpr) string {
	adhoc := "0"
	if p.Adhoc {
		adhoc = "1"
	}
	return adhoc + fieldSep + encodeNameExpr(p.Name)
}

func decodePrereqExpr(s string) (bparser.PrereqExpr, error) {
	idx := strings.Index(s, fieldSep)
	if idx < 0 {
		return bparser.PrereqExpr{}, fmt.Errorf("astdump: malformed prereq expr %q", s)
	}
	ne, err := decodeNameExpr(s[idx+1:])
	if err != nil {
		return bparser.PrereqExpr{}, err
	}
	return bparser.PrereqExpr{Name: ne, Adhoc: s[:idx] == "1"}, nil
}

// quote renders s as a KDL string literal.
func quote(s string) string {
	return strconv.Quote(s)
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func childNamed(n *document.Node, name string) *document.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if nodeName(c) == name {
			return c
		}
	}
	return nil
}

func stringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstStringArg(n *document.Node) (string, bool) {
	if n == nil || len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

// stringProp/intProp read a KDL property (name=value on the node itself)
// rather than a positional argument — Dump writes type-pattern=,
// name-pattern= and line= this way.
func stringProp(n *document.Node, key string) string {
	if n == nil || n.Properties == nil {
		return ""
	}
	if p, ok := n.Properties[key]; ok {
		if s, ok := p.Value.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(n *document.Node, key string) int {
	if n == nil || n.Properties == nil {
		return 0
	}
	if p, ok := n.Properties[key]; ok {
		switch v := p.Value.(type) {
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

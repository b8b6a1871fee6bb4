package bparser

import (
	"fmt"

	"github.com/b2go/b2go/internal/lexer"
)

var directiveKeywords = map[string]bool{
	"include": true, "source": true, "import": true, "export": true,
	"using": true, "define": true, "if": true, "elif": true, "else": true,
	"assert": true, "print": true,
}

// Parser turns a lexer.Lexer's token stream into a Statement tree.
type Parser struct {
	lex    *lexer.Lexer
	cur    lexer.Token
	lexErr error
}

func New(src []byte) *Parser {
	p := &Parser{lex: lexer.New(src)}
	p.advance()
	return p
}

func (p *Parser) advance() {
	tok, err := p.lex.Next()
	if err != nil {
		// Surface lex errors as a sentinel EOF; Parse's caller checks err
		// from the top-level call instead of threading it through every
		// advance (spec.md §7 ParseError carries the original position).
		p.cur = lexer.Token{Kind: lexer.EOF}
		p.lexErr = err
		return
	}
	p.cur = tok
}

// Parse scans body until EOF, returning the top-level statement list.
func (p *Parser) Parse() ([]Statement, error) {
	stmts, err := p.parseBlock(true)
	if err != nil {
		return nil, err
	}
	if p.lexErr != nil {
		return nil, p.lexErr
	}
	return stmts, nil
}

func (p *Parser) parseBlock(topLevel bool) ([]Statement, error) {
	var out []Statement
	for {
		p.skipNewlines()
		if p.cur.Kind == lexer.EOF {
			return out, nil
		}
		if p.cur.Kind == lexer.RBrace {
			if topLevel {
				return nil, fmt.Errorf("bparser: unexpected '}' at line %d", p.cur.Line)
			}
			return out, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			out = append(out, stmt)
		}
	}
}

func (p *Parser) skipNewlines() {
	for p.cur.Kind == lexer.Newline {
		p.advance()
	}
}

func (p *Parser) parseStatement() (Statement, error) {
	line := p.cur.Line

	if p.cur.Kind == lexer.LBrace {
		p.advance()
		body, err := p.parseBlock(false)
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != lexer.RBrace {
			return nil, fmt.Errorf("bparser: expected '}' closing scope opened at line %d", line)
		}
		p.advance()
		return &ScopeBlock{Body: body, Line: line}, nil
	}

	if p.cur.Kind == lexer.Word && directiveKeywords[p.cur.Text] {
		return p.parseDirective()
	}

	return p.parseAssignmentOrDependency(line)
}

func (p *Parser) parseDirective() (Statement, error) {
	kw := p.cur.Text
	line := p.cur.Line
	p.advance()

	d := &Directive{Keyword: kw, Line: line}

	switch kw {
	case "if", "elif":
		d.Cond = p.scanConditionText()
		body, err := p.expectBracedOrIndentedBody()
		if err != nil {
			return nil, err
		}
		d.Body = body
		p.skipNewlines()
		if p.cur.Kind == lexer.Word && (p.cur.Text == "elif" || p.cur.Text == "else") {
			next, err := p.parseDirective()
			if err != nil {
				return nil, err
			}
			d.Else = next.(*Directive)
		}
		return d, nil
	case "else":
		body, err := p.expectBracedOrIndentedBody()
		if err != nil {
			return nil, err
		}
		d.Body = body
		return d, nil
	default:
		args, err := p.parseNameExprList(stopAtNewline)
		if err != nil {
			return nil, err
		}
		d.Args = args
		return d, nil
	}
}

// scanConditionText collects raw words up to the newline or opening brace
// as the condition's unevaluated text; the loader's eval-context
// evaluator (spec.md §4.4 "eval contexts") interprets it against the
// current scope's variables.
func (p *Parser) scanConditionText() string {
	var text string
	for p.cur.Kind != lexer.Newline && p.cur.Kind != lexer.LBrace && p.cur.Kind != lexer.EOF {
		if text != "" {
			text += " "
		}
		text += p.cur.Text
		p.advance()
	}
	return text
}

func (p *Parser) expectBracedOrIndentedBody() ([]Statement, error) {
	p.skipNewlines()
	if p.cur.Kind != lexer.LBrace {
		return nil, fmt.Errorf("bparser: expected '{' at line %d", p.cur.Line)
	}
	p.advance()
	body, err := p.parseBlock(false)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.RBrace {
		return nil, fmt.Errorf("bparser: expected closing '}' at line %d", p.cur.Line)
	}
	p.advance()
	return body, nil
}

// parseAssignmentOrDependency disambiguates the two statement forms that
// both start with a name-expression list (spec.md §4.4): an assignment
// has a bare variable word followed directly by an operator, while a
// dependency declaration's target list is followed by ':'.
func (p *Parser) parseAssignmentOrDependency(line int) (Statement, error) {
	// A leading `type{pattern}:` qualifier before a variable assignment,
	// e.g. `cxx{*}: extension = cxx`.
	typePattern, namePattern, isTVAssign := p.tryTypePatternPrefix()
	if isTVAssign {
		return p.finishAssignment(line, typePattern, namePattern)
	}

	if p.cur.Kind == lexer.Word && isAssignOpAhead(p) {
		return p.finishAssignment(line, "", "")
	}

	targets, err := p.parseNameExprList(stopAtColon)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.Colon {
		return nil, fmt.Errorf("bparser: expected ':' after target list at line %d", line)
	}
	p.advance()

	prereqs, err := p.parsePrereqList()
	if err != nil {
		return nil, err
	}

	decl := &DependencyDecl{Targets: targets, Prerequisites: prereqs, Line: line}
	p.skipNewlines()
	// A trailing indented block (variables scoped to this dependency)
	// is written the same as a nested ScopeBlock directly following.
	if p.cur.Kind == lexer.LBrace {
		p.advance()
		body, err := p.parseBlock(false)
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != lexer.RBrace {
			return nil, fmt.Errorf("bparser: expected '}' closing dependency block at line %d", line)
		}
		p.advance()
		decl.Block = body
	}
	return decl, nil
}

// tryTypePatternPrefix recognizes `type{pattern}:` preceding a variable
// assignment. It only commits (consumes tokens) when the shape fully
// matches; ok is false and no tokens are consumed otherwise.
func (p *Parser) tryTypePatternPrefix() (typ, pat string, ok bool) {
	if p.cur.Kind != lexer.Word {
		return "", "", false
	}
	savedCur, savedState := p.cur, p.lex.Snapshot()
	restore := func() {
		p.cur = savedCur
		p.lex.Restore(savedState)
	}

	typName := p.cur.Text
	p.advance()
	if p.cur.Kind != lexer.LBrace {
		restore()
		return "", "", false
	}
	p.advance()
	if p.cur.Kind != lexer.Word {
		restore()
		return "", "", false
	}
	patName := p.cur.Text
	p.advance()
	if p.cur.Kind != lexer.RBrace {
		restore()
		return "", "", false
	}
	p.advance()
	if p.cur.Kind != lexer.Colon {
		restore()
		return "", "", false
	}
	p.advance()
	// A dependency declaration can share the exact "word '{' word '}'
	// ':'" shape (e.g. `exe{hello}:`); only commit to the type-pattern
	// variable-assignment reading if a bare variable-then-operator
	// actually follows the colon.
	if p.cur.Kind != lexer.Word || !isAssignOpAhead(p) {
		restore()
		return "", "", false
	}
	return typName, patName, true
}

func (p *Parser) finishAssignment(line int, typePattern, namePattern string) (Statement, error) {
	if p.cur.Kind != lexer.Word {
		return nil, fmt.Errorf("bparser: expected variable name at line %d", line)
	}
	varName := p.cur.Text
	p.advance()

	var op AssignOp
	switch p.cur.Kind {
	case lexer.Assign:
		op = OpSet
	case lexer.AppendOp:
		op = OpAppend
	case lexer.PrependOp:
		op = OpPrepend
	default:
		return nil, fmt.Errorf("bparser: expected '=', '+=' or '=+' at line %d", p.cur.Line)
	}
	p.advance()

	rhs, err := p.parseNameExprList(stopAtNewline)
	if err != nil {
		return nil, err
	}
	return &Assignment{TypePattern: typePattern, NamePattern: namePattern, Var: varName, Op: op, RHS: rhs, Line: line}, nil
}

func isAssignOpAhead(p *Parser) bool {
	savedCur, savedState := p.cur, p.lex.Snapshot()
	defer func() {
		p.cur = savedCur
		p.lex.Restore(savedState)
	}()
	p.advance()
	switch p.cur.Kind {
	case lexer.Assign, lexer.AppendOp, lexer.PrependOp:
		return true
	default:
		return false
	}
}

type stopSet int

const (
	stopAtNewline stopSet = iota
	stopAtColon
)

func (p *Parser) parseNameExprList(stop stopSet) ([]NameExpr, error) {
	var out []NameExpr
	for {
		switch p.cur.Kind {
		case lexer.Newline, lexer.EOF, lexer.RBrace:
			return out, nil
		case lexer.Colon:
			if stop == stopAtColon {
				return out, nil
			}
			return out, fmt.Errorf("bparser: unexpected ':' at line %d", p.cur.Line)
		}
		nes, err := p.parseNameExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, nes...)
	}
}

func (p *Parser) parsePrereqList() ([]PrereqExpr, error) {
	var out []PrereqExpr
	for {
		switch p.cur.Kind {
		case lexer.Newline, lexer.EOF, lexer.RBrace:
			return out, nil
		}
		adhoc := false
		if p.cur.Kind == lexer.Pipe {
			adhoc = true
			p.advance()
		}
		nes, err := p.parseNameExpr()
		if err != nil {
			return nil, err
		}
		for _, ne := range nes {
			out = append(out, PrereqExpr{Name: ne, Adhoc: adhoc})
		}
	}
}

// parseNameExpr parses one name-expression position, handling $var
// references, qualified project%, typed{}, and group-brace crossing
// suffixes (spec.md §4.4). A single source position can expand to several
// names: `exe{hello foo}` declares two same-typed names, and a trailing
// `{b c}{d e}` group-brace suffix multiplies every name produced so far
// (internal/name.Cross applies the same multiplication at resolution
// time; here it only needs to be threaded through, not evaluated).
func (p *Parser) parseNameExpr() ([]NameExpr, error) {
	if p.cur.Kind == lexer.VarRef {
		ne := NameExpr{VarRef: p.cur.Text}
		p.advance()
		return []NameExpr{ne}, nil
	}
	if p.cur.Kind == lexer.LParen {
		// A bare $(...) RHS (e.g. `x = $(foo)`): keep the inner text as
		// the VarRef's raw expression for the loader's evaluator.
		p.advance()
		expr := ""
		for p.cur.Kind != lexer.RParen && p.cur.Kind != lexer.EOF {
			if expr != "" {
				expr += " "
			}
			expr += p.cur.Text
			p.advance()
		}
		if p.cur.Kind == lexer.RParen {
			p.advance()
		}
		return []NameExpr{{VarRef: "(" + expr + ")"}}, nil
	}

	first := p.cur
	if first.Kind != lexer.Word {
		return nil, fmt.Errorf("bparser: expected name at line %d, got %s", first.Line, first.Kind)
	}
	base := NameExpr{Value: first.Text}
	p.advance()

	if p.cur.Kind == lexer.Percent {
		p.advance()
		if p.cur.Kind != lexer.Word {
			return nil, fmt.Errorf("bparser: expected project name after '%%' at line %d", p.cur.Line)
		}
		base.Project = base.Value
		base.Value = p.cur.Text
		p.advance()
	}

	names := []NameExpr{base}
	if p.cur.Kind == lexer.LBrace {
		typ := base.Value
		p.advance()
		var values []string
		for p.cur.Kind != lexer.RBrace {
			if p.cur.Kind != lexer.Word {
				return nil, fmt.Errorf("bparser: expected name inside '{...}' at line %d", p.cur.Line)
			}
			values = append(values, p.cur.Text)
			p.advance()
			if p.cur.Kind == lexer.Comma {
				p.advance()
			}
		}
		p.advance() // consume '}'
		names = names[:0]
		for _, v := range values {
			n := base
			n.Type = typ
			n.Value = v
			names = append(names, n)
		}
		if len(names) == 0 {
			n := base
			n.Type = typ
			n.Value = ""
			names = append(names, n)
		}
	}

	for p.cur.Kind == lexer.LBrace {
		p.advance()
		var group []string
		for p.cur.Kind != lexer.RBrace {
			if p.cur.Kind != lexer.Word {
				return nil, fmt.Errorf("bparser: expected name inside group braces at line %d", p.cur.Line)
			}
			group = append(group, p.cur.Text)
			p.advance()
			if p.cur.Kind == lexer.Comma {
				p.advance()
			}
		}
		p.advance()
		for i := range names {
			names[i].Groups = append(names[i].Groups, group)
		}
	}

	if p.cur.Kind == lexer.At {
		for i := range names {
			names[i].Pair = true
		}
		p.advance()
	}

	return names, nil
}

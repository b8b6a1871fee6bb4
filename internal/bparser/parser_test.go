package bparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignment(t *testing.T) {
	stmts, err := New([]byte("cxx.std = latest\n")).Parse()
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	a := stmts[0].(*Assignment)
	assert.Equal(t, "cxx.std", a.Var)
	assert.Equal(t, OpSet, a.Op)
	require.Len(t, a.RHS, 1)
	assert.Equal(t, "latest", a.RHS[0].Value)
}

func TestParseDependencyDecl(t *testing.T) {
	stmts, err := New([]byte("exe{hello}: cxx{hello.cxx} libue{libfoo}\n")).Parse()
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	d := stmts[0].(*DependencyDecl)
	require.Len(t, d.Targets, 1)
	assert.Equal(t, "exe", d.Targets[0].Type)
	assert.Equal(t, "hello", d.Targets[0].Value)
	require.Len(t, d.Prerequisites, 2)
	assert.Equal(t, "cxx", d.Prerequisites[0].Name.Type)
	assert.Equal(t, "libue", d.Prerequisites[1].Name.Type)
}

func TestParseDependencyWithBlock(t *testing.T) {
	src := "exe{hello}: cxx{hello}\n{\n  cxx.poptions += -Ibar\n}\n"
	stmts, err := New([]byte(src)).Parse()
	require.NoError(t, err)
	d := stmts[0].(*DependencyDecl)
	require.Len(t, d.Block, 1)
	a := d.Block[0].(*Assignment)
	assert.Equal(t, OpAppend, a.Op)
}

func TestParseScopeBlock(t *testing.T) {
	src := "{\n  x = 1\n}\n"
	stmts, err := New([]byte(src)).Parse()
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	s := stmts[0].(*ScopeBlock)
	require.Len(t, s.Body, 1)
}

func TestParseTypePatternAssignment(t *testing.T) {
	stmts, err := New([]byte("file{*}: extension = txt\n")).Parse()
	require.NoError(t, err)
	a := stmts[0].(*Assignment)
	assert.Equal(t, "file", a.TypePattern)
	assert.Equal(t, "*", a.NamePattern)
	assert.Equal(t, "extension", a.Var)
}

func TestParseIfElseDirective(t *testing.T) {
	src := "if $(config.threads)\n{\n  x = 1\n}\nelse\n{\n  x = 2\n}\n"
	stmts, err := New([]byte(src)).Parse()
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	d := stmts[0].(*Directive)
	assert.Equal(t, "if", d.Keyword)
	require.NotNil(t, d.Else)
	assert.Equal(t, "else", d.Else.Keyword)
}

func TestParseIncludeDirective(t *testing.T) {
	stmts, err := New([]byte("include foo/build/bar.build\n")).Parse()
	require.NoError(t, err)
	d := stmts[0].(*Directive)
	assert.Equal(t, "include", d.Keyword)
	require.Len(t, d.Args, 1)
}

func TestParseVarRefRHS(t *testing.T) {
	stmts, err := New([]byte("x = $(foo bar)\n")).Parse()
	require.NoError(t, err)
	a := stmts[0].(*Assignment)
	require.Len(t, a.RHS, 1)
	assert.Equal(t, "(foo bar)", a.RHS[0].VarRef)
}

func TestParseGroupBraceCrossing(t *testing.T) {
	stmts, err := New([]byte("x = hxx{a}{b c}{d e}\n")).Parse()
	require.NoError(t, err)
	a := stmts[0].(*Assignment)
	require.Len(t, a.RHS, 1)
	ne := a.RHS[0]
	assert.Equal(t, "hxx", ne.Type)
	assert.Equal(t, "a", ne.Value)
	require.Len(t, ne.Groups, 2)
	assert.Equal(t, []string{"b", "c"}, ne.Groups[0])
	assert.Equal(t, []string{"d", "e"}, ne.Groups[1])
}

func TestParseTypedBraceEnumeratesMultipleNames(t *testing.T) {
	stmts, err := New([]byte("x = exe{hello foo}\n")).Parse()
	require.NoError(t, err)
	a := stmts[0].(*Assignment)
	require.Len(t, a.RHS, 2)
	assert.Equal(t, "exe", a.RHS[0].Type)
	assert.Equal(t, "hello", a.RHS[0].Value)
	assert.Equal(t, "exe", a.RHS[1].Type)
	assert.Equal(t, "foo", a.RHS[1].Value)
}

package astdump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b2go/b2go/internal/bparser"
)

func roundTrip(t *testing.T, stmts []bparser.Statement) []bparser.Statement {
	t.Helper()
	text := Dump(stmts)
	got, err := Parse(text)
	require.NoError(t, err)
	return got
}

func TestRoundTripAssignment(t *testing.T) {
	stmts := []bparser.Statement{
		&bparser.Assignment{
			Var:  "cxx.poptions",
			Op:   bparser.OpAppend,
			RHS:  []bparser.NameExpr{{Value: "-I/usr/include"}, {Value: "-DFOO"}},
			Line: 3,
		},
	}
	got := roundTrip(t, stmts)
	require.Len(t, got, 1)
	assert.Equal(t, stmts[0], got[0])
}

func TestRoundTripDependencyDecl(t *testing.T) {
	stmts := []bparser.Statement{
		&bparser.DependencyDecl{
			Targets:       []bparser.NameExpr{{Type: "exe", Value: "hello"}},
			Prerequisites: []bparser.PrereqExpr{{Name: bparser.NameExpr{Type: "cxx", Value: "hello"}}, {Name: bparser.NameExpr{Type: "lib", Value: "util"}, Adhoc: true}},
			Block: []bparser.Statement{
				&bparser.Assignment{Var: "bin.lib", Op: bparser.OpSet, RHS: []bparser.NameExpr{{Value: "shared"}}},
			},
			Line: 7,
		},
	}
	got := roundTrip(t, stmts)
	require.Len(t, got, 1)
	assert.Equal(t, stmts[0], got[0])
}

func TestRoundTripScopeBlock(t *testing.T) {
	stmts := []bparser.Statement{
		&bparser.ScopeBlock{
			Line: 1,
			Body: []bparser.Statement{
				&bparser.Assignment{Var: "x", Op: bparser.OpSet, RHS: []bparser.NameExpr{{Value: "1"}}},
			},
		},
	}
	got := roundTrip(t, stmts)
	require.Len(t, got, 1)
	assert.Equal(t, stmts[0], got[0])
}

func TestRoundTripDirectiveWithElse(t *testing.T) {
	stmts := []bparser.Statement{
		&bparser.Directive{
			Keyword: "if",
			Cond:    "$cxx.std == 'c++20'",
			Line:    2,
			Body: []bparser.Statement{
				&bparser.Assignment{Var: "std", Op: bparser.OpSet, RHS: []bparser.NameExpr{{Value: "20"}}},
			},
			Else: &bparser.Directive{
				Keyword: "else",
				Line:    4,
				Body: []bparser.Statement{
					&bparser.Assignment{Var: "std", Op: bparser.OpSet, RHS: []bparser.NameExpr{{Value: "17"}}},
				},
			},
		},
	}
	got := roundTrip(t, stmts)
	require.Len(t, got, 1)
	assert.Equal(t, stmts[0], got[0])
}

func TestEncodeDecodeNameExprWithGroups(t *testing.T) {
	n := bparser.NameExpr{
		Project: "foo",
		Type:    "cxx",
		Dir:     "src/",
		Value:   "main",
		Groups:  [][]string{{"a", "b"}, {"c"}},
		Pair:    true,
		VarRef:  "",
	}
	s := encodeNameExpr(n)
	got, err := decodeNameExpr(s)
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

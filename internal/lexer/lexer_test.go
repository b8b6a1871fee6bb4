package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New([]byte(src))
	var out []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		out = append(out, tok)
		if tok.Kind == EOF {
			return out
		}
	}
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestAssignment(t *testing.T) {
	toks := scanAll(t, "cxx.std = \"latest\"\n")
	assert.Equal(t, []Kind{Word, Assign, String, Newline, EOF}, kinds(toks))
	assert.Equal(t, "latest", toks[2].Text)
}

func TestAppendAndPrepend(t *testing.T) {
	toks := scanAll(t, "x += foo\nx =+ bar\n")
	assert.Equal(t, []Kind{Word, AppendOp, Word, Newline, Word, PrependOp, Word, Newline, EOF}, kinds(toks))
}

func TestDependencyDecl(t *testing.T) {
	toks := scanAll(t, "exe{hello}: cxx{hello}\n")
	assert.Equal(t, []Kind{Word, LBrace, Word, RBrace, Colon, Word, LBrace, Word, RBrace, Newline, EOF}, kinds(toks))
}

func TestVarRefAndEval(t *testing.T) {
	toks := scanAll(t, "x = $(config.verbose)\n")
	assert.Equal(t, []Kind{Word, Assign, LParen, Word, RParen, Newline, EOF}, kinds(toks))
	assert.Equal(t, "$(", toks[2].Text)
}

func TestCommentSkippedByDefault(t *testing.T) {
	toks := scanAll(t, "# a comment\nx = 1\n")
	assert.Equal(t, []Kind{Newline, Word, Assign, Word, Newline, EOF}, kinds(toks))
}

func TestCommentKept(t *testing.T) {
	l := New([]byte("# hi\n"))
	l.KeepComments = true
	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, Comment, tok.Kind)
	assert.Equal(t, "# hi", tok.Text)
}

func TestPairAndQualifier(t *testing.T) {
	toks := scanAll(t, "hello.cxx@./ foo%bar{baz}\n")
	assert.Equal(t, []Kind{Word, At, Word, Word, Percent, Word, LBrace, Word, RBrace, Newline, EOF}, kinds(toks))
}

func TestLineContinuation(t *testing.T) {
	toks := scanAll(t, "x = a \\\n    b\n")
	assert.Equal(t, []Kind{Word, Assign, Word, Word, Newline, EOF}, kinds(toks))
}

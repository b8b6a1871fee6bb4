package depdb

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecord(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "missing.d"))
	require.NoError(t, err)
	assert.False(t, db.Existed())
	assert.False(t, db.Expect(RuleID("cxx", "compile", 1)))
	assert.True(t, db.Writing())
}

func TestOpenInterruptedWriteForcesRegeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.d")
	require.NoError(t, os.WriteFile(path, []byte(RuleID("cxx", "compile", 1)+"\nhash abc\n"), 0o644))

	db, err := Open(path)
	require.NoError(t, err)
	assert.False(t, db.Existed())
}

func TestExpectMatchesPriorRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.d")
	writeRecord(t, path, RuleID("cxx", "compile", 1), "hash deadbeefdeadbeef")

	db, err := Open(path)
	require.NoError(t, err)
	require.True(t, db.Existed())

	assert.True(t, db.Expect(RuleID("cxx", "compile", 1)))
	assert.True(t, db.Expect("hash deadbeefdeadbeef"))
	assert.False(t, db.Writing())
	assert.Empty(t, db.Diff())
}

func TestExpectDivergesAndWritesNewRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.d")
	writeRecord(t, path, RuleID("cxx", "compile", 1), "hash 1111111111111111")

	db, err := Open(path)
	require.NoError(t, err)

	assert.True(t, db.Expect(RuleID("cxx", "compile", 1)))
	assert.False(t, db.Expect("hash 2222222222222222"))
	assert.True(t, db.Writing())
	assert.NotEmpty(t, db.Diff())

	require.NoError(t, db.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, RuleID("cxx", "compile", 1)+"\nhash 2222222222222222\n\n", string(data))
}

func TestCloseLeavesUnchangedRecordUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.d")
	writeRecord(t, path, RuleID("cxx", "compile", 1), "hash 1111111111111111")
	before, err := os.Stat(path)
	require.NoError(t, err)

	db, err := Open(path)
	require.NoError(t, err)
	assert.True(t, db.Expect(RuleID("cxx", "compile", 1)))
	assert.True(t, db.Expect("hash 1111111111111111"))
	require.NoError(t, db.Close())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestReaderExposesRemainingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.d")
	writeRecord(t, path, RuleID("cxx", "compile", 1), "inc a.h", "inc b.h")

	db, err := Open(path)
	require.NoError(t, err)
	require.True(t, db.Expect(RuleID("cxx", "compile", 1)))

	rest, err := io.ReadAll(db.Reader())
	require.NoError(t, err)
	assert.Equal(t, "inc a.h\ninc b.h\n", string(rest))
}

package driverconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNoFilesReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, c)
}

func TestLoadProjectOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	writeFile(t, filepath.Join(dir, fileName), `jobs = 4
keep_going = true
cxx = "clang++"
`)

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Jobs)
	assert.True(t, c.KeepGoing)
	assert.Equal(t, "clang++", c.CXX)
}

func TestLoadMergesGlobalAndProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, fileName), `jobs = 8
cc = "gcc"
import_path = ["/opt/shared"]
`)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, fileName), `cxx = "clang++"
import_path = ["/opt/local"]
`)

	c, err := Load(dir)
	require.NoError(t, err)
	// Project doesn't set jobs/cc, so the global values should show through.
	assert.Equal(t, 8, c.Jobs)
	assert.Equal(t, "gcc", c.CC)
	assert.Equal(t, "clang++", c.CXX)
	assert.ElementsMatch(t, []string{"/opt/local", "/opt/shared"}, c.ImportPath)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

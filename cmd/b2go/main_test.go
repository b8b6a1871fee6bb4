package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b2go/b2go/internal/variable"
)

func TestIsOverride(t *testing.T) {
	assert.True(t, isOverride("config.cxx=clang++"))
	assert.True(t, isOverride("cxx.poptions+=-I/usr/include"))
	assert.True(t, isOverride("cxx.poptions=+-I/usr/local/include"))
	assert.False(t, isOverride("src/hello.exe"))
	assert.False(t, isOverride("hello.exe"))
}

func TestSplitOverrideSet(t *testing.T) {
	name, op, val, err := splitOverride("config.cxx=clang++")
	require.NoError(t, err)
	assert.Equal(t, "config.cxx", name)
	assert.Equal(t, variable.OpOverride, op)
	assert.Equal(t, "clang++", val)
}

func TestSplitOverrideAppend(t *testing.T) {
	name, op, val, err := splitOverride("cxx.poptions+=-DFOO")
	require.NoError(t, err)
	assert.Equal(t, "cxx.poptions", name)
	assert.Equal(t, variable.OpSuffix, op)
	assert.Equal(t, "-DFOO", val)
}

func TestSplitOverridePrepend(t *testing.T) {
	name, op, val, err := splitOverride("cxx.poptions=+-DFOO")
	require.NoError(t, err)
	assert.Equal(t, "cxx.poptions", name)
	assert.Equal(t, variable.OpPrefix, op)
	assert.Equal(t, "-DFOO", val)
}

func TestSplitOverrideMalformed(t *testing.T) {
	_, _, _, err := splitOverride("no-equals-sign")
	assert.Error(t, err)
}

// Package name implements the buildfile name model: project-qualified,
// directory-relative, typed names and the plain filesystem paths they
// resolve against.
package name

import (
	"path/filepath"
	"strings"
)

// Path is a simple (non-directory) filesystem path. It is kept in
// OS-native form and is not required to be absolute.
type Path struct {
	s string
}

// NewPath cleans and wraps s.
func NewPath(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path{s: filepath.Clean(s)}
}

func (p Path) String() string { return p.s }
func (p Path) Empty() bool    { return p.s == "" }

// DirPath is a directory path. Invariant: non-empty DirPaths always end in
// the OS path separator, matching the buildfile grammar's "directory name"
// (§3: "a directory-only name has ... dir ending in a separator").
type DirPath struct {
	s string
}

// NewDirPath cleans s and ensures a trailing separator.
func NewDirPath(s string) DirPath {
	if s == "" {
		return DirPath{}
	}
	c := filepath.Clean(s)
	if !strings.HasSuffix(c, string(filepath.Separator)) {
		c += string(filepath.Separator)
	}
	return DirPath{s: c}
}

func (d DirPath) String() string { return d.s }
func (d DirPath) Empty() bool    { return d.s == "" }

// Join appends a relative leaf (file or sub-directory) to d.
func (d DirPath) Join(leaf string) Path {
	return NewPath(filepath.Join(d.s, leaf))
}

// Sub returns a new DirPath one level deeper.
func (d DirPath) Sub(leaf string) DirPath {
	return NewDirPath(filepath.Join(d.s, leaf))
}

// Leaf returns the final path component (directory name) without the
// trailing separator.
func (d DirPath) Leaf() string {
	c := strings.TrimSuffix(d.s, string(filepath.Separator))
	return filepath.Base(c)
}

// Parent returns the containing directory, or DirPath{} at the root.
func (d DirPath) Parent() DirPath {
	c := strings.TrimSuffix(d.s, string(filepath.Separator))
	p := filepath.Dir(c)
	if p == c || p == "." {
		return DirPath{}
	}
	return NewDirPath(p)
}

// Sup reports whether d is a (non-strict) prefix directory of other, i.e.
// other lies at or below d in the tree.
func (d DirPath) Sup(other DirPath) bool {
	if d.s == "" {
		return true
	}
	return strings.HasPrefix(other.s, d.s)
}

// ToRelative converts an absolute path to one relative to root, falling
// back to the original (or absolute) path when the two have no common
// ancestor or conversion fails. This is the driver-facing, output-boundary
// counterpart to the internally-absolute paths the loader and targets use.
//
// Adapted from the teacher's pkg/pathutil.ToRelative (standardbeagle/lci):
// b2go's targets and scopes are keyed by absolute out-directory (§3 Scope),
// but diagnostics and dumps should read relative to the invoking project
// root the same way the teacher's CLI output does.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}
	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	rel, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if strings.HasPrefix(rel, "..") {
		return absPath
	}
	return rel
}

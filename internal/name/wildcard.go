package name

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// WildcardMatcher matches buildfile wildcard name patterns (§4.4): '*'
// matches within one path component (no separator crossing), '**' matches
// across any number of components. It is also reused by variable pattern
// matching (§4.2) over dot-separated name components.
//
// Grounded on the teacher's exclude-glob handling (internal/config.Config,
// internal/indexing/watcher.go), which drives the same doublestar engine
// over "**/..." patterns read from a project config file.
type WildcardMatcher struct {
	pattern string
}

func NewWildcardMatcher(pattern string) WildcardMatcher {
	return WildcardMatcher{pattern: pattern}
}

// Match reports whether value satisfies the pattern. '*' is translated to
// doublestar's single-component wildcard and '**' to its recursive one.
func (m WildcardMatcher) Match(value string) bool {
	ok, err := doublestar.Match(m.pattern, value)
	return err == nil && ok
}

// MatchPath matches a slash-separated relative path against the pattern,
// honoring directory-crossing '**' semantics exactly as doublestar defines
// them; used for include/exclude lists and ad hoc import directory search.
func (m WildcardMatcher) MatchPath(path string) bool {
	ok, err := doublestar.Match(m.pattern, path)
	return err == nil && ok
}

// IsWildcard reports whether s contains any wildcard metacharacter,
// distinguishing a literal name from a pattern during parsing.
func IsWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// SplitComponents splits a dot-separated pattern (used for variable
// patterns, e.g. "config.*.options") into its components, preserving empty
// leading/trailing components so "*.suffix" and "prefix.*" can be told
// apart from a bare "**".
func SplitComponents(pattern string) []string {
	return strings.Split(pattern, ".")
}

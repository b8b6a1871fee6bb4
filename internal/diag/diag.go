// Package diag implements the error/diagnostic stack of spec.md §7: typed
// errors carrying a source location, a sink that aggregates them across
// one load unit or operation, and the "did you mean" suggestion engine
// used by undefined-variable/target/module lookups.
//
// Modeled on the teacher's internal/errors package (IndexingError/
// ParseError: a Type discriminator, an Unwrap-able Underlying error, and
// a constructor-plus-With-chain builder style) generalized from the
// teacher's file-indexing error kinds to spec.md §7's parse/lookup/
// semantic/phase/resource/child-failure/cycle kinds.
package diag

import "fmt"

// Kind discriminates the error categories spec.md §7 names.
type Kind string

const (
	KindParse    Kind = "parse"
	KindLookup   Kind = "lookup"
	KindSemantic Kind = "semantic"
	KindPhase    Kind = "phase"
	KindResource Kind = "resource"
	KindChild    Kind = "child"
	KindCycle    Kind = "cycle"
	// KindInternal marks a consistency violation that aborts rather than
	// propagating as a user-facing diagnostic (spec.md §7: "Internal-
	// consistency violations ... produce an internal: prefix and abort").
	KindInternal Kind = "internal"
)

// Location is a buildfile source position.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Error is b2go's diagnostic type (spec.md §7): "file:line:column: kind:
// message" followed by optional info: notes.
type Error struct {
	Kind    Kind
	Loc     Location
	Message string
	Notes   []string
	Cause   error
}

func New(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/loc context to an underlying error, preserving it
// for errors.Is/As via Unwrap.
func Wrap(kind Kind, loc Location, cause error) *Error {
	return &Error{Kind: kind, Loc: loc, Message: cause.Error(), Cause: cause}
}

// WithNote appends an "info:" suggestion, e.g. from Suggest.
func (e *Error) WithNote(note string) *Error {
	e.Notes = append(e.Notes, note)
	return e
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Kind == KindInternal {
		prefix = "internal"
	}
	var s string
	if loc := e.Loc.String(); loc != "" {
		s = fmt.Sprintf("%s: %s: %s", loc, prefix, e.Message)
	} else {
		s = fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	for _, n := range e.Notes {
		s += "\n  info: " + n
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// Sink aggregates diagnostics across one load unit or operation run
// (spec.md §7: top-level operation "returns a failure count"). It is not
// safe for concurrent use; callers needing that wrap it in their own
// mutex (internal/loader does this once per file load, which is already
// single-threaded per spec.md §4.6's load-phase exclusivity).
type Sink struct {
	errs []*Error
}

func (s *Sink) Report(e *Error) { s.errs = append(s.errs, e) }

func (s *Sink) Errors() []*Error { return s.errs }

func (s *Sink) Count() int { return len(s.errs) }

func (s *Sink) HasErrors() bool { return len(s.errs) > 0 }

// Package depdb implements the append-only dependency database of
// spec.md §4.8: a line-oriented journal stored next to a target's output
// (conventionally "<target>.d") recording rule identity, checksums,
// inputs and timestamps, used to decide whether a rule must re-execute.
package depdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pmezard/go-difflib/difflib"
)

// DB is one target+action's depdb handle (spec.md §5: "each file is owned
// by a single action+target tuple; no cross-target sharing"). Reading
// compares each existing line against what the rule is about to write;
// on the first mismatch it switches to Writing mode for the remainder of
// the record.
type DB struct {
	path     string
	lines    []string // lines read from the existing file, in order
	readIdx  int
	writing  bool
	modTime  time.Time
	out      []string // lines accumulated for (re)write
	existed  bool
}

// Open reads the existing depdb at path, if any. A missing file is not an
// error: DB starts in an empty, always-mismatching state so the first
// Expect call begins writing immediately.
func Open(path string) (*DB, error) {
	db := &DB{path: path}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, fmt.Errorf("depdb: open %s: %w", path, err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		db.modTime = fi.ModTime()
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	terminated := false
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			terminated = true
			break
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("depdb: read %s: %w", path, err)
	}
	// An interrupted write (no empty terminator) forces full
	// regeneration (spec.md §4.8).
	if terminated {
		db.lines = lines
		db.existed = true
	}
	return db, nil
}

// ModTime is the depdb file's last-modified time as observed at Open,
// independent of the target's own mtime (spec.md §3).
func (db *DB) ModTime() time.Time { return db.modTime }

// Existed reports whether a complete (terminated) prior record was found.
func (db *DB) Existed() bool { return db.existed }

// Writing reports whether db has already diverged from the prior record
// and is accumulating a fresh one.
func (db *DB) Writing() bool { return db.writing }

// Expect compares line against the next unread line of the prior record.
// A mismatch (including running past the end of the prior record)
// switches db to Writing mode for every subsequent call. Expect always
// appends line to the output record, matching depdb's "switch to append"
// behavior on first mismatch (spec.md §4.8).
func (db *DB) Expect(line string) (matched bool) {
	db.out = append(db.out, line)
	if db.writing {
		return false
	}
	if db.readIdx >= len(db.lines) || db.lines[db.readIdx] != line {
		db.writing = true
		return false
	}
	db.readIdx++
	return true
}

// ExpectHash is Expect over an xxhash digest of data, the standard
// pattern for option-hash/file-set-hash entries (spec.md §4.8, §6:
// "UTF-8, LF-terminated lines; ... subsequent lines are rule-defined,
// most commonly checksums and file paths").
func (db *DB) ExpectHash(label string, data []byte) bool {
	return db.Expect(fmt.Sprintf("%s %016x", label, xxhash.Sum64(data)))
}

// RuleID is conventionally the first line of a record: "<lang>.<op>
// <version>" (spec.md §6).
func RuleID(lang, op string, version int) string {
	return fmt.Sprintf("%s.%s %d", lang, op, version)
}

// Reader exposes the remaining unread lines of the prior record, e.g. for
// a compile rule replaying a previously recorded header-dependency list
// that it has no reason to invalidate this run.
func (db *DB) Reader() io.Reader {
	rest := db.lines[db.readIdx:]
	s := ""
	for _, l := range rest {
		s += l + "\n"
	}
	return stringsReader(s)
}

func stringsReader(s string) io.Reader { return &sr{s: s} }

type sr struct {
	s string
	i int
}

func (r *sr) Read(p []byte) (int, error) {
	if r.i >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.i:])
	r.i += n
	return n, nil
}

// Diff renders a unified diff between the prior record and the one
// accumulated so far, for --verbose "why is this rule re-running"
// diagnostics (spec.md §7). Empty once db has consumed every prior line
// without diverging.
func (db *DB) Diff() string {
	if !db.writing && db.readIdx == len(db.lines) {
		return ""
	}
	d := difflib.UnifiedDiff{
		A:        db.lines,
		B:        db.out,
		FromFile: db.path + " (prior)",
		ToFile:   db.path + " (this run)",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return ""
	}
	return text
}

// Close finalizes db: if nothing diverged and every prior line was
// consumed, the file is left untouched (spec.md's end-to-end scenario 3:
// "Second run with untouched hello.c: unchanged, no spawns" implies no
// depdb rewrite either). Otherwise the accumulated record is written out,
// LF-terminated and empty-line-terminated, and db.modTime is updated.
func (db *DB) Close() error {
	if !db.writing && db.readIdx == len(db.lines) {
		return nil
	}
	tmp := db.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("depdb: create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	for _, l := range db.out {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			f.Close()
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return fmt.Errorf("depdb: rename %s: %w", tmp, err)
	}
	db.modTime = time.Now()
	return nil
}

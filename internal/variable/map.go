package variable

import (
	"sort"
	"sync"

	"github.com/b2go/b2go/internal/value"
)

type entry struct {
	value   *value.Value
	version uint64
}

// Map is the prefix-ordered variable -> {value, version} map of spec.md
// §4.2. Two flavours exist: Global (locked, for scope/target-owned data
// mutated under phase discipline — see spec.md §4.6) and Local
// (unsynchronized, for function-local temporaries). NewMap defaults to
// Global; NewLocalMap skips the lock entirely.
type Map struct {
	mu       sync.RWMutex
	locked   bool
	entries  map[*Variable]*entry
}

func NewMap() *Map      { return &Map{locked: true, entries: make(map[*Variable]*entry)} }
func NewLocalMap() *Map { return &Map{locked: false, entries: make(map[*Variable]*entry)} }

func (m *Map) rlock() {
	if m.locked {
		m.mu.RLock()
	}
}
func (m *Map) runlock() {
	if m.locked {
		m.mu.RUnlock()
	}
}
func (m *Map) lock() {
	if m.locked {
		m.mu.Lock()
	}
}
func (m *Map) unlock() {
	if m.locked {
		m.mu.Unlock()
	}
}

// Lookup returns v's value and the version at which it was last directly
// modified.
func (m *Map) Lookup(v *Variable) (*value.Value, uint64, bool) {
	m.rlock()
	defer m.runlock()
	e, ok := m.entries[v]
	if !ok {
		return nil, 0, false
	}
	return e.value, e.version, true
}

// Assign sets v's value, bumping its version (spec.md §4.2: "version
// increments on every direct modification").
func (m *Map) Assign(v *Variable, val *value.Value) uint64 {
	m.lock()
	defer m.unlock()
	e, ok := m.entries[v]
	if !ok {
		e = &entry{}
		m.entries[v] = e
	}
	e.value = val
	e.version++
	return e.version
}

// Version returns v's current version without fetching the value (0 if
// unset).
func (m *Map) Version(v *Variable) uint64 {
	m.rlock()
	defer m.runlock()
	if e, ok := m.entries[v]; ok {
		return e.version
	}
	return 0
}

// Delete removes v's entry entirely (used when an assignment with
// [null] clears a variable rather than setting it to an empty value).
func (m *Map) Delete(v *Variable) {
	m.lock()
	defer m.unlock()
	delete(m.entries, v)
}

// Variables returns every Variable with an entry, in prefix (lexical name)
// order — the "prefix-ordered map" of spec.md §4.2, enabling consumers to
// scan by dotted-name prefix (e.g. all "cxx.*" entries together).
func (m *Map) Variables() []*Variable {
	m.rlock()
	defer m.runlock()
	out := make([]*Variable, 0, len(m.entries))
	for v := range m.entries {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (m *Map) Len() int {
	m.rlock()
	defer m.runlock()
	return len(m.entries)
}

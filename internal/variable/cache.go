package variable

import (
	"sync"

	"github.com/b2go/b2go/internal/value"
)

// CacheKey identifies one memoized override-application result: the
// variable being looked up and the address of the innermost stem
// VariableMap the lookup resolved to (spec.md §4.3: "keyed by
// (variable*, innermost_stem_vars*)").
type CacheKey struct {
	Var  *Variable
	Stem uintptr
}

type cacheEntry struct {
	result      *value.Value
	stemVersion uint64
	baseVersion uint64
}

// Cache is the variable_override_cache of spec.md §4.3: it memoizes the
// result of applying an override chain to a stem value, invalidated
// whenever either the stem's or the base variable's version advances.
type Cache struct {
	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]*cacheEntry)}
}

// Get returns the cached result for key if it is still valid for the
// given stem/base versions.
func (c *Cache) Get(key CacheKey, stemVersion, baseVersion uint64) (*value.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.stemVersion != stemVersion || e.baseVersion != baseVersion {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

// Put stores (or replaces) the memoized result for key.
func (c *Cache) Put(key CacheKey, result *value.Value, stemVersion, baseVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{result: result, stemVersion: stemVersion, baseVersion: baseVersion}
}

// Invalidate drops every entry for var, used when its override chain
// itself changes shape (a new override registered).
func (c *Cache) Invalidate(v *Variable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Var == v {
			delete(c.entries, k)
		}
	}
}

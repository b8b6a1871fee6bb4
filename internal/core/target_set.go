package core

import "sync"

// targetSetShards bounds lock contention on TargetSet: each shard has its
// own RWMutex, lookups take the shard's read lock and inserts its write
// lock (spec.md §5: "lookup is lock-free, insert uses per-bucket locks").
const targetSetShards = 64

// TargetSet is the concurrent, insert-only container of spec.md §4.5/§5.
// Once inserted a target is never removed or relocated for the lifetime
// of the owning Context.
type TargetSet struct {
	shards [targetSetShards]targetShard
}

type targetShard struct {
	mu sync.RWMutex
	m  map[TargetKey]*Target
}

func NewTargetSet() *TargetSet {
	ts := &TargetSet{}
	for i := range ts.shards {
		ts.shards[i].m = make(map[TargetKey]*Target)
	}
	return ts
}

func (ts *TargetSet) shardFor(k TargetKey) *targetShard {
	h := hashKey(k)
	return &ts.shards[h%targetSetShards]
}

func hashKey(k TargetKey) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis
	write := func(s string) {
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= 1099511628211
		}
	}
	if k.Type != nil {
		write(k.Type.Name)
	}
	write(k.Dir.String())
	write(k.Out.String())
	write(k.Name)
	write(k.Ext)
	return h
}

// Insert returns the existing target for key if present, otherwise
// creates and stores a new one via NewTarget. The bool reports whether the
// target was freshly created.
func (ts *TargetSet) Insert(key TargetKey, scope *Scope) (*Target, bool) {
	shard := ts.shardFor(key)

	shard.mu.RLock()
	if t, ok := shard.m[key]; ok {
		shard.mu.RUnlock()
		return t, false
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if t, ok := shard.m[key]; ok {
		return t, false
	}
	t := NewTarget(key, scope)
	shard.m[key] = t
	return t, true
}

// Find looks up key without inserting.
func (ts *TargetSet) Find(key TargetKey) (*Target, bool) {
	shard := ts.shardFor(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	t, ok := shard.m[key]
	return t, ok
}

// Range iterates every target; intended for diagnostics/dumps, not the hot
// path.
func (ts *TargetSet) Range(fn func(*Target) bool) {
	for i := range ts.shards {
		ts.shards[i].mu.RLock()
		targets := make([]*Target, 0, len(ts.shards[i].m))
		for _, t := range ts.shards[i].m {
			targets = append(targets, t)
		}
		ts.shards[i].mu.RUnlock()
		for _, t := range targets {
			if !fn(t) {
				return
			}
		}
	}
}

package value

import (
	"sync"
	"unsafe"
)

// shardCount mutexes are enough to keep typification contention low
// without a per-value allocation; identity is derived from the Value's
// address, matching spec.md §4.1's "mutex shard keyed by value identity".
const shardCount = 64

var shards [shardCount]sync.Mutex

func lockFor(v *Value) *sync.Mutex {
	idx := uintptr(unsafe.Pointer(v)) / unsafe.Sizeof(Value{}) % shardCount
	return &shards[idx]
}

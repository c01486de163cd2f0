package cap

import (
	"sync"
	"sync/atomic"

	"corekernel/defs"
)

const numShards = 16

// shard is one lock-striped bucket of the registry, grounded on
// biscuit's hashtable.bucket_t (a per-bucket sync.RWMutex guarding its own
// slice of entries) rather than one global lock over the whole table.
type shard struct {
	mu  sync.RWMutex
	set map[defs.ObjectId]bool
}

// Registry tracks every live kernel object's ObjectId, the single source
// of truth the dispatcher consults to resolve "identify" and to refuse
// operations on an object that has already been destroyed. Identifiers
// are minted monotonically and never reused, per §3.
type Registry struct {
	shards  [numShards]shard
	nextIDs [8]uint64 // one counter per ObjectType, avoids a shared hot counter
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].set = make(map[defs.ObjectId]bool)
	}
	return r
}

func (r *Registry) shardFor(id defs.ObjectId) *shard {
	return &r.shards[id.Id%numShards]
}

// Mint allocates a fresh, never-reused ObjectId of the given type and
// registers it as live.
func (r *Registry) Mint(t defs.ObjectType) defs.ObjectId {
	n := atomic.AddUint64(&r.nextIDs[t], 1)
	id := defs.ObjectId{Type: t, Id: n}
	s := r.shardFor(id)
	s.mu.Lock()
	s.set[id] = true
	s.mu.Unlock()
	return id
}

// Unregister marks id as destroyed; it must not be reused.
func (r *Registry) Unregister(id defs.ObjectId) {
	s := r.shardFor(id)
	s.mu.Lock()
	delete(s.set, id)
	s.mu.Unlock()
}

// IsLive reports whether id currently names a live object.
func (r *Registry) IsLive(id defs.ObjectId) bool {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set[id]
}

package ipc

import (
	"sync"

	"corekernel/defs"
	"corekernel/mem"
)

// RegionRegistry maps region ids to their SharedRegion, implementing
// vm.RegionSource for any address space that maps a Shared-backed VMA.
type RegionRegistry struct {
	mu      sync.RWMutex
	regions map[uint64]*SharedRegion
}

// NewRegionRegistry returns an empty registry.
func NewRegionRegistry() *RegionRegistry {
	return &RegionRegistry{regions: make(map[uint64]*SharedRegion)}
}

// Add registers a region so its frames can be resolved on fault.
func (r *RegionRegistry) Add(region *SharedRegion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[region.ID.Id] = region
}

// Remove drops a region; subsequent faults against it return NotFound.
func (r *RegionRegistry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regions, id)
}

// GetFrame satisfies vm.RegionSource.
func (r *RegionRegistry) GetFrame(regionID uint64, pageOffset uint64) (mem.PA, defs.Err_t) {
	r.mu.RLock()
	region, ok := r.regions[regionID]
	r.mu.RUnlock()
	if !ok {
		return 0, defs.ENotFound
	}
	return region.GetFrame(regionID, pageOffset)
}

package mem

import (
	"sync"

	"corekernel/oom"
)

// FrameAllocator owns a fixed arena of page frames and hands them out in
// O(1) via a LIFO free list, grounded on biscuit's Physmem_t free-list
// design (mem/mem.go) simplified from its per-CPU sharding to a single
// locked list, since this simulator has no real CPUs to shard across.
// Frames are never zeroed on free; callers zero on demand, matching the
// frame-allocator contract.
type FrameAllocator struct {
	mu    sync.Mutex
	arena []byte
	base  PA
	free  []PA // LIFO stack of free frame addresses
	used  map[PA]bool
}

// NewFrameAllocator carves nframes page frames out of a freshly allocated
// host arena, standing in for the boot-supplied physical memory map.
func NewFrameAllocator(nframes int) *FrameAllocator {
	a := &FrameAllocator{
		arena: make([]byte, nframes*PageSize),
		base:  PA(0x1000_0000),
		used:  make(map[PA]bool, nframes),
	}
	a.free = make([]PA, 0, nframes)
	for i := nframes - 1; i >= 0; i-- {
		a.free = append(a.free, a.base+PA(i*PageSize))
	}
	return a
}

// AllocFrame removes and returns one free frame, or ok=false if the
// allocator is exhausted.
func (a *FrameAllocator) AllocFrame() (pa PA, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		oom.Notify(PageSize)
		return 0, false
	}
	n := len(a.free) - 1
	pa = a.free[n]
	a.free = a.free[:n]
	a.used[pa] = true
	return pa, true
}

// FreeFrame returns pa to the free list. It panics if pa was not
// currently allocated, matching the "freeing an unowned frame is a bug"
// invariant.
func (a *FrameAllocator) FreeFrame(pa PA) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.used[pa] {
		panic("FreeFrame: frame not allocated")
	}
	delete(a.used, pa)
	a.free = append(a.free, pa)
}

// Bytes returns a slice over the frame's backing storage, for zeroing or
// reading/writing simulated physical memory. The slice is valid only
// while the frame remains allocated to the caller.
func (a *FrameAllocator) Bytes(pa PA) []byte {
	off := int(pa - a.base)
	return a.arena[off : off+PageSize]
}

// Zero clears the frame's contents, used by the page-fault handler for
// anonymous mappings and by the mapper when it allocates a fresh
// intermediate page table.
func (a *FrameAllocator) Zero(pa PA) {
	b := a.Bytes(pa)
	for i := range b {
		b[i] = 0
	}
}

// NumFree reports the number of frames currently on the free list.
func (a *FrameAllocator) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

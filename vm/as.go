package vm

import (
	"sync"

	"github.com/google/btree"

	"corekernel/defs"
	"corekernel/mem"
	"corekernel/paging"
)

// FileSource resolves File-backed VMA faults, implemented by the initrd
// reader: reads PageSize bytes at offset into buf, zero-filling any
// bytes past EOF.
type FileSource interface {
	ReadPage(fileID uint64, offset uint64, buf []byte) defs.Err_t
}

// RegionSource resolves Shared-backed VMA faults.
type RegionSource interface {
	GetFrame(regionID uint64, pageOffset uint64) (mem.PA, defs.Err_t)
}

// TensorSource resolves Tensor-backed VMA faults. It returns
// defs.EDeviceMemory (not EOutOfMemory) when the buffer currently lives
// off-CPU, per the resolved Open Question in §9, so the caller can
// distinguish "needs migration" from true exhaustion.
type TensorSource interface {
	GetFrame(tensorID uint64, pageOffset uint64) (mem.PA, defs.Err_t)
}

// AddressSpace holds one process's VMA map and page-table root. The VMA
// map is a google/btree ordered map keyed by Start, per §3.
type AddressSpace struct {
	ID defs.ObjectId

	mu     sync.RWMutex
	tree   *btree.BTreeG[*VMA]
	mapper *paging.Mapper
	frames *mem.FrameAllocator

	Files   FileSource
	Regions RegionSource
	Tensors TensorSource
}

// New constructs an address space with a fresh PML4 root.
func New(id defs.ObjectId, frames *mem.FrameAllocator) (*AddressSpace, defs.Err_t) {
	m, err := paging.NewMapper(frames)
	if err != defs.EOK {
		return nil, err
	}
	return &AddressSpace{
		ID:     id,
		tree:   btree.NewG[*VMA](32, vmaLess),
		mapper: m,
		frames: frames,
	}, defs.EOK
}

// Root returns the page-table root physical address.
func (as *AddressSpace) Root() mem.PA { return as.mapper.Root() }

// Activate records a whole-TLB flush on the mapper. No current-root
// register is simulated, so nothing records which root is active.
func (as *AddressSpace) Activate() {
	as.mapper.FlushAll()
}

func (as *AddressSpace) findOverlap(start, end mem.VA) *VMA {
	var hit *VMA
	as.tree.Ascend(func(v *VMA) bool {
		if v.overlaps(start, end) {
			hit = v
			return false
		}
		return true
	})
	return hit
}

// Map creates a new VMA, rejecting any overlap with an existing one.
func (as *AddressSpace) Map(v *VMA) defs.Err_t {
	if v.End <= v.Start || !v.Start.Aligned(mem.PageSize) || !v.End.Aligned(mem.PageSize) {
		return defs.EInvalidArgument
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.findOverlap(v.Start, v.End) != nil {
		return defs.EInvalidArgument // Overlap
	}
	as.tree.ReplaceOrInsert(v)
	return defs.EOK
}

// Unmap removes every VMA overlapping [start, start+size), unmapping each
// of its pages and freeing frames the address space owns (Anonymous,
// File); Shared/Physical/Tensor frames are collaborator-owned and are
// left alone.
func (as *AddressSpace) Unmap(start mem.VA, size uint64) defs.Err_t {
	end := mem.VA(uint64(start) + size)
	as.mu.Lock()
	defer as.mu.Unlock()

	var victims []*VMA
	as.tree.Ascend(func(v *VMA) bool {
		if v.overlaps(start, end) {
			victims = append(victims, v)
		}
		return true
	})
	for _, v := range victims {
		as.tree.Delete(v)
		for va := v.Start; va < v.End; va += mem.PageSize {
			pa, err := as.mapper.Unmap(va)
			if err != defs.EOK {
				continue // not faulted in yet
			}
			if v.Backing == BackAnonymous || v.Backing == BackFile {
				as.frames.FreeFrame(pa)
			}
		}
	}
	return defs.EOK
}

// HandleFault resolves a page fault at va, installing a PTE on success.
func (as *AddressSpace) HandleFault(va mem.VA, write bool) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	aligned := va.PageRounddown()
	var v *VMA
	as.tree.Ascend(func(item *VMA) bool {
		if item.contains(aligned) {
			v = item
			return false
		}
		return true
	})
	if v == nil {
		return defs.ENotFound
	}
	if write && v.Prot&paging.ProtWrite == 0 {
		return defs.EPermissionDenied
	}

	switch v.Backing {
	case BackAnonymous:
		pa, ok := as.frames.AllocFrame()
		if !ok {
			return defs.EOutOfMemory
		}
		as.frames.Zero(pa)
		return as.mapper.MapPage(aligned, pa, v.Prot)

	case BackPhysical:
		pa := mem.PA(uint64(v.PhysBase) + uint64(aligned-v.Start))
		return as.mapper.MapPage(aligned, pa, v.Prot)

	case BackFile:
		if as.Files == nil {
			return defs.ENotFound
		}
		pa, ok := as.frames.AllocFrame()
		if !ok {
			return defs.EOutOfMemory
		}
		as.frames.Zero(pa)
		off := v.FileOffset + uint64(aligned-v.Start)
		if err := as.Files.ReadPage(v.FileID, off, as.frames.Bytes(pa)); err != defs.EOK {
			as.frames.FreeFrame(pa)
			return err
		}
		return as.mapper.MapPage(aligned, pa, v.Prot)

	case BackShared:
		if as.Regions == nil {
			return defs.ENotFound
		}
		pageOff := uint64(aligned-v.Start) / mem.PageSize
		pa, err := as.Regions.GetFrame(v.RegionID, pageOff)
		if err != defs.EOK {
			return err
		}
		return as.mapper.MapPage(aligned, pa, v.Prot)

	case BackTensor:
		if as.Tensors == nil {
			return defs.ENotFound
		}
		pageOff := v.TensorOffset + uint64(aligned-v.Start)/mem.PageSize
		pa, err := as.Tensors.GetFrame(v.TensorID, pageOff)
		if err != defs.EOK {
			return err // may be EDeviceMemory
		}
		return as.mapper.MapPage(aligned, pa, v.Prot)
	}
	return defs.EInvalidArgument
}

// Translate exposes the underlying mapper's translation for tests and
// for the syscall layer's pointer-validation path.
func (as *AddressSpace) Translate(va mem.VA) (mem.PA, defs.Err_t) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.mapper.Translate(va)
}

// Destroy tears down every VMA (freeing owned frames) ahead of reclaiming
// the PML4 chain itself.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	var all []*VMA
	as.tree.Ascend(func(v *VMA) bool { all = append(all, v); return true })
	as.mu.Unlock()
	for _, v := range all {
		as.Unmap(v.Start, uint64(v.End-v.Start))
	}
	as.mapper.FreeAll()
}

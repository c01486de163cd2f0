package ipc

import (
	"corekernel/defs"
	"corekernel/mem"
)

// SharedRegion is a collection of frames mappable into multiple address
// spaces, per §3/§4.7. get_frame backs the vm package's RegionSource
// collaborator interface for fault resolution.
type SharedRegion struct {
	ID     defs.ObjectId
	Frames []mem.PA
	Size   uint64
	Flags  uint32
}

// NewSharedRegion wraps a pre-allocated frame list.
func NewSharedRegion(id defs.ObjectId, frames []mem.PA) *SharedRegion {
	return &SharedRegion{ID: id, Frames: frames, Size: uint64(len(frames)) * mem.PageSize}
}

// GetFrame resolves a page fault to the contained frame at
// offset/PAGE_SIZE, satisfying vm.RegionSource.
func (r *SharedRegion) GetFrame(regionID uint64, pageOffset uint64) (mem.PA, defs.Err_t) {
	if regionID != r.ID.Id {
		return 0, defs.ENotFound
	}
	if pageOffset >= uint64(len(r.Frames)) {
		return 0, defs.EInvalidArgument
	}
	return r.Frames[pageOffset], defs.EOK
}

// Package vm implements the per-address-space VMA registry and
// demand-paging fault handler, grounded on biscuit's vm/as.go (Vm_t,
// Sys_pgfault, Vmadd_anon/_file/_shareanon/_sharefile) restated around
// the ordered, non-overlapping VMA map of §3/§4.4.
package vm

import "corekernel/mem"
import "corekernel/paging"

// Backing names which collaborator resolves a VMA's page faults.
type Backing int

const (
	BackAnonymous Backing = iota
	BackPhysical
	BackFile
	BackShared
	BackTensor
)

// VMA is one contiguous mapping within an address space. start/end are
// page-aligned virtual addresses with end > start.
type VMA struct {
	Start, End mem.VA
	Prot       paging.Prot
	Backing    Backing

	PhysBase mem.PA // BackPhysical

	FileID     uint64 // BackFile
	FileOffset uint64

	RegionID uint64 // BackShared

	TensorID     uint64 // BackTensor
	TensorOffset uint64
}

func (v *VMA) contains(va mem.VA) bool { return va >= v.Start && va < v.End }

func (v *VMA) overlaps(start, end mem.VA) bool {
	return v.Start < end && start < v.End
}

func vmaLess(a, b *VMA) bool { return a.Start < b.Start }

// Package mem implements physical-frame ownership and the kernel heap
// (slab + buddy) described by the memory-management component design.
// Grounded on biscuit's mem/mem.go (Pa_t/Physmem_t) and util.go, restated
// for a hosted simulator instead of bare metal.
package mem

import "fmt"

// PageShift and PageSize describe the fixed 4 KiB frame size.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// PA is a physical address. PA and VA are deliberately distinct types so
// that mixing them is a compile error, matching the data model's
// "must be a type error" invariant.
type PA uint64

// VA is a virtual address.
type VA uint64

func (p PA) String() string { return fmt.Sprintf("PA(%#x)", uint64(p)) }
func (v VA) String() string { return fmt.Sprintf("VA(%#x)", uint64(v)) }

// PageRounddown aligns a PA down to a page boundary.
func (p PA) PageRounddown() PA { return PA(uint64(p) &^ (PageSize - 1)) }

// Offset returns the low 12 bits of a VA (the in-page offset).
func (v VA) Offset() uint64 { return uint64(v) & (PageSize - 1) }

// PageRounddown aligns a VA down to a page boundary.
func (v VA) PageRounddown() VA { return VA(uint64(v) &^ (PageSize - 1)) }

// Aligned reports whether p is a multiple of align (which must be a power
// of two).
func (p PA) Aligned(align uint64) bool { return uint64(p)%align == 0 }

// Aligned reports whether v is a multiple of align.
func (v VA) Aligned(align uint64) bool { return uint64(v)%align == 0 }

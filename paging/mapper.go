package paging

import (
	"sync"
	"unsafe"

	"corekernel/defs"
	"corekernel/mem"
)

// Mapper walks and mutates a single PML4 chain. One Mapper exists per
// AddressSpace; each exported method takes the Mapper's own mutex, so
// page-table mutation through one Mapper is serialized here.
type Mapper struct {
	mu     sync.Mutex
	frames *mem.FrameAllocator
	root   mem.PA

	shootdowns int // single-page TLB invalidations issued, for tests/metrics
	flushes    int // whole-TLB flushes issued
}

// NewMapper allocates a fresh, zeroed PML4 root frame.
func NewMapper(frames *mem.FrameAllocator) (*Mapper, defs.Err_t) {
	root, ok := frames.AllocFrame()
	if !ok {
		return nil, defs.EOutOfMemory
	}
	frames.Zero(root)
	return &Mapper{frames: frames, root: root}, defs.EOK
}

// Root returns the PML4 root physical address.
func (m *Mapper) Root() mem.PA { return m.root }

func (m *Mapper) tableAt(pa mem.PA) *Table {
	b := m.frames.Bytes(pa)
	return (*Table)(unsafe.Pointer(&b[0]))
}

// walkCreate descends from the root through intermediate levels,
// allocating and zeroing any missing table, per §4.3 step 1. It returns
// the PD (level-2) table reached through l0 and l1 and fails with HugePageConflict if an
// intermediate entry is already a huge page.
func (m *Mapper) walkCreate(l0, l1, l2 int) (*Table, defs.Err_t) {
	pml4 := m.tableAt(m.root)
	cur := pml4
	for _, idx := range []int{l0, l1} {
		e := cur.Entries[idx]
		if e.Present() {
			if e.Huge() {
				return nil, defs.EInvalidArgument // HugePageConflict
			}
			cur = m.tableAt(e.Addr())
			continue
		}
		pa, ok := m.frames.AllocFrame()
		if !ok {
			return nil, defs.EOutOfMemory
		}
		m.frames.Zero(pa)
		cur.Entries[idx] = MkPTE(pa, PTE_WRITABLE|PTE_USER)
		cur = m.tableAt(pa)
	}
	// cur is now the PD; one more level needed to reach PT, handled by
	// caller-specific logic (4K path descends once more; huge path stops
	// here).
	e := cur.Entries[l2]
	if e.Present() && e.Huge() {
		return nil, defs.EInvalidArgument
	}
	return cur, defs.EOK
}

// MapPage installs a 4 KiB mapping at va -> pa with the given protection.
func (m *Mapper) MapPage(va mem.VA, pa mem.PA, prot Prot) defs.Err_t {
	if !va.Aligned(mem.PageSize) || !pa.Aligned(mem.PageSize) {
		return defs.EInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	l0, l1, l2, l3, _ := Indices(va)
	pd, err := m.walkCreate(l0, l1, l2)
	if err != defs.EOK {
		return err
	}
	pdEntry := pd.Entries[l2]
	var pt *Table
	if pdEntry.Present() {
		if pdEntry.Huge() {
			return defs.EInvalidArgument
		}
		pt = m.tableAt(pdEntry.Addr())
	} else {
		ptPA, ok := m.frames.AllocFrame()
		if !ok {
			return defs.EOutOfMemory
		}
		m.frames.Zero(ptPA)
		pd.Entries[l2] = MkPTE(ptPA, PTE_WRITABLE|PTE_USER)
		pt = m.tableAt(ptPA)
	}
	if pt.Entries[l3].Present() {
		return defs.EInvalidArgument // AlreadyMapped
	}
	pt.Entries[l3] = MkPTE(pa, pteFlags(prot))
	m.invalidatePage(va)
	return defs.EOK
}

// MapHugePage installs a 2 MiB mapping at the PD level.
func (m *Mapper) MapHugePage(va mem.VA, pa mem.PA, prot Prot) defs.Err_t {
	const hugeSize = 2 << 20
	if uint64(va)%hugeSize != 0 || uint64(pa)%hugeSize != 0 {
		return defs.EInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	l0, l1, l2, _, _ := Indices(va)
	pd, err := m.walkCreate(l0, l1, l2)
	if err != defs.EOK {
		return err
	}
	if pd.Entries[l2].Present() {
		return defs.EInvalidArgument
	}
	pd.Entries[l2] = MkPTE(pa, pteFlags(prot)|PTE_HUGEPAGE)
	m.invalidatePage(va)
	return defs.EOK
}

// Unmap removes the mapping at va (4 KiB or the containing huge page) and
// returns the physical address it pointed to, so the caller can reclaim
// the frame.
func (m *Mapper) Unmap(va mem.VA) (mem.PA, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l0, l1, l2, l3, _ := Indices(va)
	pml4 := m.tableAt(m.root)
	e := pml4.Entries[l0]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	pdpt := m.tableAt(e.Addr())
	e = pdpt.Entries[l1]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	pd := m.tableAt(e.Addr())
	e = pd.Entries[l2]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	if e.Huge() {
		pa := e.Addr()
		pd.Entries[l2] = 0
		m.invalidatePage(va)
		return pa, defs.EOK
	}
	pt := m.tableAt(e.Addr())
	e = pt.Entries[l3]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	pa := e.Addr()
	pt.Entries[l3] = 0
	m.invalidatePage(va)
	return pa, defs.EOK
}

// Translate walks the table honoring huge-page short-circuits and returns
// the physical address with the VA's low bits mixed in.
func (m *Mapper) Translate(va mem.VA) (mem.PA, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l0, l1, l2, l3, off := Indices(va)
	pml4 := m.tableAt(m.root)
	e := pml4.Entries[l0]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	pdpt := m.tableAt(e.Addr())
	e = pdpt.Entries[l1]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	pd := m.tableAt(e.Addr())
	e = pd.Entries[l2]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	if e.Huge() {
		const hugeSize = 2 << 20
		base := uint64(e.Addr())
		hugeOff := uint64(va) % hugeSize
		return mem.PA(base + hugeOff), defs.EOK
	}
	pt := m.tableAt(e.Addr())
	e = pt.Entries[l3]
	if !e.Present() {
		return 0, defs.ENotFound
	}
	return mem.PA(uint64(e.Addr()) + off), defs.EOK
}

// invalidatePage issues a single-page TLB invalidation. This simulator has
// no real TLB, so the call is a recorded stub, matching how biscuit's
// vm/as.go isolates Tlbshoot behind a narrow function so callers are
// oblivious to the underlying mechanism.
func (m *Mapper) invalidatePage(va mem.VA) { m.shootdowns++ }

// FlushAll issues a whole-TLB flush, used on address-space switch (CR3
// reload) or when an operation mutates a huge range.
func (m *Mapper) FlushAll() { m.flushes++ }

// Shootdowns and Flushes expose invalidation counts for tests.
func (m *Mapper) Shootdowns() int { return m.shootdowns }
func (m *Mapper) Flushes() int    { return m.flushes }

// FreeAll reclaims every intermediate PDPT/PD/PT frame this mapper
// allocated via walkCreate, then the PML4 root itself. It does not free
// the leaf data frames PT entries point at (those are owned by the
// VMAs that mapped them, and are reclaimed by AddressSpace.Destroy
// before it calls here), only the table frames descended to reach them,
// matching §4.4's "freeing the PML4 chain recursively."
func (m *Mapper) FreeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	pml4 := m.tableAt(m.root)
	for _, e0 := range pml4.Entries {
		if !e0.Present() {
			continue
		}
		pdpt := m.tableAt(e0.Addr())
		for _, e1 := range pdpt.Entries {
			if !e1.Present() {
				continue
			}
			if e1.Huge() {
				continue
			}
			pd := m.tableAt(e1.Addr())
			for _, e2 := range pd.Entries {
				if !e2.Present() || e2.Huge() {
					continue
				}
				m.frames.FreeFrame(e2.Addr())
			}
			m.frames.FreeFrame(e1.Addr())
		}
		m.frames.FreeFrame(e0.Addr())
	}
	m.frames.FreeFrame(m.root)
}

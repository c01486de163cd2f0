package mem

import (
	"sync"

	"corekernel/oom"
)

// MaxOrder is the highest buddy order; order N covers 4 KiB * 2^N, so the
// largest block is 4 KiB * 2^14 = 64 MiB.
const MaxOrder = 14

// KernelHeapBase is the synthetic kernel-virtual base address the buddy
// region is carved from, matching the "canonical high-half kernel
// addresses" layout.
const KernelHeapBase VA = 0xFFFF_8000_1000_0000

// buddy is a classic power-of-two block allocator with coalescing free,
// grounded on the component design's §4.2 description. Free-block
// membership is tracked per order via address sets; two blocks coalesce
// whenever both halves of a pair are simultaneously free, which is
// equivalent to (and replaces the need for a separate bitmap alongside)
// explicitly tracking split-state bits.
type buddy struct {
	mu        sync.Mutex
	freeAddrs [MaxOrder + 1]map[VA]bool
	store     map[VA][]byte // backing bytes for blocks currently allocated or free
}

func newBuddy() *buddy {
	b := &buddy{store: make(map[VA][]byte)}
	for i := range b.freeAddrs {
		b.freeAddrs[i] = make(map[VA]bool)
	}
	top := KernelHeapBase
	b.freeAddrs[MaxOrder][top] = true
	b.store[top] = make([]byte, blockSize(MaxOrder))
	return b
}

func blockSize(order int) int { return PageSize << uint(order) }

func buddyOf(addr VA, order int) VA {
	return addr ^ VA(blockSize(order))
}

// alloc returns a block of exactly blockSize(order) bytes, page-aligned to
// 4096*2^order, or ok=false if no block of sufficient size is available
// even after splitting.
func (b *buddy) alloc(order int) (VA, []byte, bool) {
	if order > MaxOrder {
		return 0, nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o := order
	for o <= MaxOrder && len(b.freeAddrs[o]) == 0 {
		o++
	}
	if o > MaxOrder {
		oom.Notify(blockSize(order))
		return 0, nil, false
	}
	// Pop one free block at order o.
	var addr VA
	for a := range b.freeAddrs[o] {
		addr = a
		break
	}
	delete(b.freeAddrs[o], addr)
	data := b.store[addr]

	// Split down to the requested order, pushing each upper half back
	// onto the free list for its order.
	for o > order {
		o--
		half := blockSize(o)
		buddyAddr := addr + VA(half)
		b.store[buddyAddr] = data[half:]
		b.freeAddrs[o][buddyAddr] = true
		data = data[:half]
		b.store[addr] = data
	}
	return addr, data, true
}

// free returns a block at addr/order to the allocator, coalescing with
// its buddy while the buddy is also free.
func (b *buddy) free(addr VA, order int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for order < MaxOrder {
		bud := buddyOf(addr, order)
		if !b.freeAddrs[order][bud] {
			break
		}
		delete(b.freeAddrs[order], bud)
		delete(b.store, bud)
		if bud < addr {
			addr = bud
		}
		order++
	}
	if d, ok := b.store[addr]; !ok || len(d) != blockSize(order) {
		b.store[addr] = make([]byte, blockSize(order))
	}
	b.freeAddrs[order][addr] = true
}

// freeCount reports how many free blocks exist at the given order, used
// by tests to observe coalescing.
func (b *buddy) freeCount(order int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.freeAddrs[order])
}

// orderFor returns the smallest order whose block size is >= size.
func orderFor(size int) int {
	o := 0
	for blockSize(o) < size {
		o++
	}
	return o
}

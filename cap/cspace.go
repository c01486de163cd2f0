package cap

import (
	"sync"

	"corekernel/defs"
)

// Slot is a small integer naming a capability within one CSpace.
type Slot int

type capNode struct {
	cap      Capability
	parent   *capNode
	children []*capNode
	revoked  bool
}

// CSpace is a per-process capability space: an ordered table of small
// integer slots to capabilities, the only way userspace names kernel
// objects. The free-slot tracker is adapted from biscuit's
// msi.Msivecs_t fixed availability-map pattern, generalized from a fixed
// 8-vector pool to a growing one (a CSpace has no architectural vector
// limit the way MSI interrupt vectors do).
type CSpace struct {
	mu    sync.Mutex
	nodes map[Slot]*capNode
	avail map[Slot]bool
	next  Slot
}

// NewCSpace returns an empty capability space.
func NewCSpace() *CSpace {
	return &CSpace{nodes: make(map[Slot]*capNode), avail: make(map[Slot]bool)}
}

func (cs *CSpace) allocSlotLocked() Slot {
	for s := range cs.avail {
		delete(cs.avail, s)
		return s
	}
	s := cs.next
	cs.next++
	return s
}

func (cs *CSpace) freeSlotLocked(s Slot) {
	delete(cs.nodes, s)
	cs.avail[s] = true
}

// Insert adds a fresh, parentless capability and returns its slot.
func (cs *CSpace) Insert(c Capability) Slot {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	s := cs.allocSlotLocked()
	cs.nodes[s] = &capNode{cap: c}
	return s
}

// Lookup resolves a slot to its capability, failing InvalidCapability if
// the slot is empty or the capability has been revoked.
func (cs *CSpace) Lookup(s Slot) (Capability, defs.Err_t) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n, ok := cs.nodes[s]
	if !ok || n.revoked {
		return Capability{}, defs.EInvalidCapability
	}
	return n.cap, defs.EOK
}

// Derive requires DERIVE on the source slot and produces a child slot
// whose rights are exactly `requested`, which must be a subset of the
// parent's rights (a request for rights the parent lacks fails
// PermissionDenied rather than silently narrowing).
func (cs *CSpace) Derive(s Slot, requested Rights) (Slot, defs.Err_t) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n, ok := cs.nodes[s]
	if !ok || n.revoked {
		return 0, defs.EInvalidCapability
	}
	if n.cap.Rights&Derive == 0 {
		return 0, defs.EPermissionDenied
	}
	if requested&^n.cap.Rights != 0 {
		return 0, defs.EPermissionDenied
	}
	child := &capNode{cap: Capability{Object: n.cap.Object, Rights: requested}, parent: n}
	n.children = append(n.children, child)
	slot := cs.allocSlotLocked()
	cs.nodes[slot] = child
	return slot, defs.EOK
}

// Revoke requires REVOKE on the slot and invalidates it plus every
// transitive descendant, immediately: subsequent lookups fail
// InvalidCapability.
func (cs *CSpace) Revoke(s Slot) defs.Err_t {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n, ok := cs.nodes[s]
	if !ok || n.revoked {
		return defs.EInvalidCapability
	}
	if n.cap.Rights&Revoke == 0 {
		return defs.EPermissionDenied
	}
	revokeSubtree(n)
	return defs.EOK
}

func revokeSubtree(n *capNode) {
	n.revoked = true
	for _, c := range n.children {
		revokeSubtree(c)
	}
}

// Grant requires GRANT on the slot and installs a capability with rights
// `rights & requested` into dst's CSpace. If move is true the source
// slot is emptied (a transfer); otherwise the source keeps its cap (a
// duplicate with possibly-narrower rights).
func (cs *CSpace) Grant(s Slot, dst *CSpace, requested Rights, move bool) (Slot, defs.Err_t) {
	cs.mu.Lock()
	n, ok := cs.nodes[s]
	if !ok || n.revoked {
		cs.mu.Unlock()
		return 0, defs.EInvalidCapability
	}
	if n.cap.Rights&Grant == 0 {
		cs.mu.Unlock()
		return 0, defs.EPermissionDenied
	}
	if requested&^n.cap.Rights != 0 {
		cs.mu.Unlock()
		return 0, defs.EPermissionDenied
	}
	granted := Capability{Object: n.cap.Object, Rights: n.cap.Rights & requested}
	if move {
		cs.freeSlotLocked(s)
	}
	cs.mu.Unlock()

	dst.mu.Lock()
	defer dst.mu.Unlock()
	slot := dst.allocSlotLocked()
	dst.nodes[slot] = &capNode{cap: granted}
	return slot, defs.EOK
}

// Drop removes a capability from the CSpace without revoking derived
// children (they remain valid — dropping is a purely local slot release,
// unlike Revoke).
func (cs *CSpace) Drop(s Slot) defs.Err_t {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.nodes[s]; !ok {
		return defs.EInvalidCapability
	}
	cs.freeSlotLocked(s)
	return defs.EOK
}

package ipc

import (
	"sync/atomic"
	"time"

	"corekernel/defs"
)

// Notification is a u64 bit-set with atomic signal and mask-wait
// semantics, per §3/§4.7.
type Notification struct {
	bits atomic.Uint64
}

// NewNotification returns a notification with no bits set.
func NewNotification() *Notification { return &Notification{} }

// Signal performs bits |= mask atomically.
func (n *Notification) Signal(mask uint64) {
	for {
		old := n.bits.Load()
		if n.bits.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// Wait blocks until (bits & mask) != 0, then atomically reads and clears
// exactly the intersected bits, returning them. timeout 0 returns
// WouldBlock immediately if no bits currently match.
func (n *Notification) Wait(mask uint64, timeout time.Duration) (uint64, defs.Err_t) {
	deadline := time.Now().Add(forever(timeout))
	for {
		old := n.bits.Load()
		if hit := old & mask; hit != 0 {
			if n.bits.CompareAndSwap(old, old&^hit) {
				return hit, defs.EOK
			}
			continue
		}
		if timeout == 0 {
			return 0, defs.EWouldBlock
		}
		if time.Now().After(deadline) {
			return 0, defs.ETimeout
		}
		time.Sleep(pollInterval)
	}
}

// Poll reports the currently-set bits without blocking or clearing them.
func (n *Notification) Poll() uint64 { return n.bits.Load() }

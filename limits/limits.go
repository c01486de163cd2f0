// Package limits tracks system-wide resource caps, grounded on biscuit's
// limits.Syslimit_t/Sysatomic_t: a struct of configured ceilings plus an
// atomic take/give counter type used to enforce them without a lock.
package limits

import "sync/atomic"

// Atomic is a resource ceiling that can be taken from and given back to
// concurrently via CAS-free atomic add.
type Atomic struct {
	v int64
}

// NewAtomic returns a counter initialized to n available units.
func NewAtomic(n int64) *Atomic { return &Atomic{v: n} }

// Taken tries to reserve n units, returning false (and rolling back)
// if that would take the counter negative.
func (a *Atomic) Taken(n int64) bool {
	if n < 0 {
		panic("negative reservation")
	}
	if atomic.AddInt64(&a.v, -n) >= 0 {
		return true
	}
	atomic.AddInt64(&a.v, n)
	return false
}

// Take reserves a single unit.
func (a *Atomic) Take() bool { return a.Taken(1) }

// Given returns n units to the pool.
func (a *Atomic) Given(n int64) {
	if n < 0 {
		panic("negative release")
	}
	atomic.AddInt64(&a.v, n)
}

// Give returns a single unit.
func (a *Atomic) Give() { a.Given(1) }

// Remaining reports the current count, racy but fine for /proc-style
// reporting.
func (a *Atomic) Remaining() int64 { return atomic.LoadInt64(&a.v) }

// System holds the configured ceilings for every object kind the
// capability registry and IPC subsystem mint, so a runaway caller can be
// turned away with EOutOfMemory/EPermissionDenied instead of exhausting
// host memory.
type System struct {
	Threads     *Atomic
	Endpoints   *Atomic
	Rings       *Atomic
	Regions     *Atomic
	CSpaceSlots *Atomic
	AuditBytes  *Atomic
}

// Default returns the stock ceilings used by cmd/kerneld absent
// operator-supplied overrides.
func Default() *System {
	return &System{
		Threads:     NewAtomic(1 << 14),
		Endpoints:   NewAtomic(1 << 16),
		Rings:       NewAtomic(1 << 12),
		Regions:     NewAtomic(1 << 16),
		CSpaceSlots: NewAtomic(1 << 20),
		AuditBytes:  NewAtomic(1 << 30),
	}
}

// Package accnt accumulates per-thread CPU accounting, grounded on
// biscuit's accnt.Accnt_t: an embedded mutex guarding a pair of
// nanosecond counters, with atomic fast-path increments and a locked
// snapshot for exporting usage to callers.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accnt accumulates the user and system time consumed by one thread.
type Accnt struct {
	Userns int64
	Sysns  int64
	mu     sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Sysadd adds delta nanoseconds to the system-time counter.
func (a *Accnt) Sysadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// IOTime removes time spent waiting for IPC completion from system time,
// since blocked threads shouldn't be charged for dispatcher-visible wait.
func (a *Accnt) IOTime(since time.Time) {
	a.Sysadd(-time.Since(since).Nanoseconds())
}

// Finish charges the elapsed time since inttime (a syscall-entry
// timestamp) to system time.
func (a *Accnt) Finish(inttime time.Time) {
	a.Sysadd(time.Since(inttime).Nanoseconds())
}

// Add merges another thread's accounting into a, typically a parent
// process totalling its children's exit-time usage.
func (a *Accnt) Add(n *Accnt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
}

// Usage is a consistent snapshot of accumulated CPU time.
type Usage struct {
	User time.Duration
	Sys  time.Duration
}

// Fetch returns a locked snapshot of the accounting record.
func (a *Accnt) Fetch() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Usage{
		User: time.Duration(a.Userns),
		Sys:  time.Duration(a.Sysns),
	}
}

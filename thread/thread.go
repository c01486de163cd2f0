// Package thread tracks per-thread kernel state, grounded on biscuit's
// tinfo.Tnote_t/Threadinfo_t: a Mutex-guarded note per thread plus a
// registry keyed by thread ID. biscuit recovers the current thread's
// note from goroutine-local storage via a patched runtime
// (runtime.Gptr/Setgptr); stock Go has no such hook, so here the
// dispatcher threads a *Thread explicitly through every handler call
// instead of reaching for thread-local state.
package thread

import (
	"sync"

	"corekernel/accnt"
	"corekernel/cap"
	"corekernel/defs"
)

// Thread is one schedulable kernel thread: its identity, capability
// space, accounting, and kill/doom state.
type Thread struct {
	ID     defs.Tid_t
	Pid    defs.Pid_t
	CSpace *cap.CSpace
	Accnt  accnt.Accnt

	mu       sync.Mutex
	alive    bool
	killed   bool
	isDoomed bool
	killCh   chan bool
	kerr     defs.Err_t
}

// New creates a thread note for tid/pid, owning the given capability
// space.
func New(tid defs.Tid_t, pid defs.Pid_t, cs *cap.CSpace) *Thread {
	return &Thread{
		ID:     tid,
		Pid:    pid,
		CSpace: cs,
		alive:  true,
		killCh: make(chan bool, 1),
	}
}

// Doomed reports whether the thread has been marked for forced exit.
func (t *Thread) Doomed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isDoomed
}

// Kill marks the thread as killed with the given error and wakes
// anything blocked on its kill channel.
func (t *Thread) Kill(err defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.killed {
		return
	}
	t.killed = true
	t.isDoomed = true
	t.kerr = err
	select {
	case t.killCh <- true:
	default:
	}
}

// Killed reports whether Kill has been called, and the error it was
// called with.
func (t *Thread) Killed() (bool, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killed, t.kerr
}

// MarkDead records that the thread has exited.
func (t *Thread) MarkDead() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = false
}

// Alive reports whether the thread has not yet exited.
func (t *Thread) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

// Registry tracks every live thread note by ID, for lookups during
// cross-thread signal/kill delivery.
type Registry struct {
	mu    sync.Mutex
	notes map[defs.Tid_t]*Thread
}

// NewRegistry returns an empty thread registry.
func NewRegistry() *Registry {
	return &Registry{notes: make(map[defs.Tid_t]*Thread)}
}

// Add registers t under its ID.
func (r *Registry) Add(t *Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[t.ID] = t
}

// Remove drops a thread note once it has exited.
func (r *Registry) Remove(tid defs.Tid_t) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, tid)
}

// Lookup finds a thread note by ID.
func (r *Registry) Lookup(tid defs.Tid_t) (*Thread, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.notes[tid]
	return t, ok
}

// Len reports how many threads are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

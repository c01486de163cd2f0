// Package cap implements the capability subsystem: typed object
// references with monotonically-derivable rights, per-process capability
// spaces, and a system-wide live-object registry. Grounded on biscuit's
// fd.go (Fd_t slot-table pattern), hashtable.go (lock-striped concurrent
// map) and msi.go (fixed-pool slot allocator), restated around capability
// derive/grant/revoke instead of file descriptors and interrupt vectors.
package cap

import "corekernel/defs"

// Rights is a bit-flag set. Derivation always produces a subset: a
// process holding R can only ever mint caps with rights subseteq R.
type Rights uint32

const (
	Read Rights = 1 << iota
	Write
	Exec
	Map
	Send
	Receive
	Signal
	Wait
	Poll
	Grant
	Derive
	Revoke
)

// Capability is the unforgeable pair naming a kernel object plus the
// rights this particular reference carries.
type Capability struct {
	Object defs.ObjectId
	Rights Rights
}

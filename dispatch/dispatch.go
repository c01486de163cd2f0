// Package dispatch implements the syscall dispatcher: a flat opcode to
// handler table, capability/pointer validation ahead of every handler,
// and the ring-enter batching loop. Grounded on biscuit's syscall.go
// sysall dispatch switch restated as a table (per the design note on
// avoiding a type switch) plus sys.go's per-syscall argument-fetch
// pattern, now operating on decoded struct arguments instead of raw
// register values since there is no real ABI to model.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"corekernel/cap"
	"corekernel/caller"
	"corekernel/defs"
	"corekernel/ipc"
	"corekernel/mem"
	"corekernel/stats"
	"corekernel/thread"
	"corekernel/vm"
)

// Syscall number ranges, per the external-interface table: only the
// boundaries the dispatcher itself needs to classify an opcode for
// accounting are named here; individual handlers are registered by
// exact number via Register.
const (
	RangeIPCStart        = 0
	RangeIPCEnd          = 14
	RangeCapabilityStart = 16
	RangeCapabilityEnd   = 20
	RangeMemoryStart     = 32
	RangeMemoryEnd       = 49
	RangeThreadStart     = 64
	RangeThreadEnd       = 68
	RangeProcessStart    = 80
	RangeProcessEnd      = 84
	RangeFileStart       = 96
	RangeFileEnd         = 101
	RangeTensorStart     = 112
	RangeTensorEnd       = 117
	RangeTimeTravelStart = 144
	RangeTimeTravelEnd   = 147
	RangeSystemStart     = 240
	RangeSystemEnd       = 255
)

// Args is the decoded, register-ABI-free argument struct every handler
// receives; unused fields are simply left zero for a given opcode.
type Args struct {
	Thread  *thread.Thread
	AS      *vm.AddressSpace
	CapSlot cap.Slot
	VA      uint64
	Size    uint64
	Flags   uint32
	Params  [4]uint64
}

// Result is what a direct (non-ring) syscall returns to its caller.
// Trace is set only when Err came from a recovered handler panic, for
// the caller to forward into the audit log.
type Result struct {
	Value int64
	Err   defs.Err_t
	Trace string
}

// Handler services exactly one syscall number.
type Handler func(Args) Result

// Dispatcher holds the flat opcode table and the shared subsystem
// handles every handler closes over when registered.
type Dispatcher struct {
	table [256]Handler

	enterGate *semaphore.Weighted
	metrics   stats.Dispatch

	// panics dedupes recovered handler-panic call chains so a repeatedly
	// crashing handler doesn't flood the audit log with one entry per
	// call, grounded on biscuit's caller.Distinct_caller_t.
	panics caller.DistinctSet
}

// maxConcurrentEnters bounds how many threads may be parked inside
// Enter's blocking wait simultaneously, per §4.6's note that
// golang.org/x/sync/semaphore (not the ring's own poll loop) is the
// primitive throttling concurrently-blocked callers.
const maxConcurrentEnters = 256

// New returns a dispatcher with an empty syscall table.
func New() *Dispatcher {
	return &Dispatcher{enterGate: semaphore.NewWeighted(maxConcurrentEnters)}
}

// Register installs h as the handler for syscall number n. n must fall
// within one of the ranges in the external-interface table.
func (d *Dispatcher) Register(n int, h Handler) {
	d.table[n] = h
}

// Dispatch validates the pointer/capability arguments implied by a and
// routes to the registered handler for n, per §4.8.
func (d *Dispatcher) Dispatch(n int, a Args) Result {
	if n < 0 || n >= len(d.table) || d.table[n] == nil {
		d.metrics.Errors.Inc()
		return Result{Err: defs.EInvalidSyscall}
	}
	// Memory syscalls (map/unmap/alloc/free/...) take VA as the address
	// being established or torn down, not a pointer into an existing
	// mapping, so they are exempt from the generic pointer-validity check
	// below — their handlers establish the very mapping this check would
	// otherwise require to already exist.
	inMemoryRange := n >= RangeMemoryStart && n <= RangeMemoryEnd
	if a.VA != 0 && a.AS != nil && !inMemoryRange {
		if _, err := a.AS.Translate(mem.VA(a.VA)); err != defs.EOK {
			d.metrics.Errors.Inc()
			return Result{Err: defs.EBadAddress}
		}
	}
	if a.CapSlot != 0 && a.Thread != nil {
		if _, err := a.Thread.CSpace.Lookup(a.CapSlot); err != defs.EOK {
			d.metrics.Errors.Inc()
			return Result{Err: defs.EInvalidCapability}
		}
	}
	bumpRangeCounter(&d.metrics, n)
	return d.callHandler(d.table[n], a)
}

// callHandler invokes h, recovering a panic into an error Result rather
// than taking down the whole daemon: per §7, user-induced errors are
// always a return code, but a handler bug is still not a user-induced
// error, so this converts it into one rather than violating that
// contract by crashing the process. The panic's call chain is deduped
// via d.panics so a recurring bug logs its trace once, not per call.
func (d *Dispatcher) callHandler(h Handler, a Args) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Errors.Inc()
			res = Result{Err: defs.EInvalidArgument}
			if fresh, trace := d.panics.Distinct(); fresh {
				res.Trace = fmt.Sprintf("handler panic: %v\n%s", r, trace)
			}
		}
	}()
	return h(a)
}

func bumpRangeCounter(m *stats.Dispatch, n int) {
	switch {
	case n >= RangeIPCStart && n <= RangeIPCEnd:
		m.IPCCalls.Inc()
	case n >= RangeCapabilityStart && n <= RangeCapabilityEnd:
		m.CapabilityOps.Inc()
	case n >= RangeMemoryStart && n <= RangeMemoryEnd:
		m.MemoryOps.Inc()
	case n >= RangeThreadStart && n <= RangeThreadEnd:
		m.ThreadOps.Inc()
	case n >= RangeTensorStart && n <= RangeTensorEnd:
		m.TensorOps.Inc()
	}
}

// Enter drains up to toSubmit SQEs from r into registered ring-opcode
// handlers, then blocks (behind the dispatcher's semaphore gate, not a
// busy loop) until minComplete CQEs are posted or the submission queue
// drains, per §4.6.
func (d *Dispatcher) Enter(ctx context.Context, r *ipc.Ring, toSubmit, minComplete int, timeout time.Duration) defs.Err_t {
	for i := 0; i < toSubmit; i++ {
		sqe, ok := r.PopSQE()
		if !ok {
			break
		}
		d.processSQE(r, sqe)
	}

	if err := d.enterGate.Acquire(ctx, 1); err != nil {
		return defs.EInterrupted
	}
	defer d.enterGate.Release(1)

	r.WaitMinComplete(minComplete, timeout)
	return defs.EOK
}

func (d *Dispatcher) processSQE(r *ipc.Ring, sqe ipc.SQE) {
	h := d.table[ringOpcodeToSyscall(sqe.Opcode)]
	var res Result
	if h == nil {
		res = Result{Err: defs.EInvalidSyscall}
	} else {
		// A panicking handler fails only the SQE that triggered it; the
		// batch continues with the next one, per §7's ring-batch failure
		// semantics.
		res = d.callHandler(h, Args{Params: sqe.Params, CapSlot: cap.Slot(sqe.CapSlot)})
	}
	if sqe.Flags&ipc.NoCQE != 0 && res.Err == defs.EOK {
		return
	}
	r.PushCQE(ipc.CQE{
		UserData: sqe.UserData,
		Result:   resultCode(res),
	})
}

func resultCode(res Result) int64 {
	if res.Err != defs.EOK {
		return int64(res.Err)
	}
	return res.Value
}

// ringOpcodeToSyscall maps a ring SQE opcode onto the stable syscall
// number space so both entry paths (direct syscall, ring-batched)
// dispatch through the same table.
func ringOpcodeToSyscall(op ipc.Opcode) int {
	return RangeIPCStart + int(op)
}

// Metrics exposes the dispatcher's accumulated counters.
func (d *Dispatcher) Metrics() stats.Dispatch { return d.metrics }

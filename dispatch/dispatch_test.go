package dispatch

import (
	"context"
	"testing"
	"time"

	"corekernel/defs"
	"corekernel/ipc"
)

func TestDispatchUnknownSyscall(t *testing.T) {
	d := New()
	res := d.Dispatch(999, Args{})
	if res.Err != defs.EInvalidSyscall {
		t.Fatalf("expected EInvalidSyscall, got %v", res.Err)
	}
}

func TestDispatchRoutesToHandler(t *testing.T) {
	d := New()
	called := false
	d.Register(RangeSystemStart, func(a Args) Result {
		called = true
		return Result{Value: 42, Err: defs.EOK}
	})
	res := d.Dispatch(RangeSystemStart, Args{})
	if !called || res.Value != 42 || res.Err != defs.EOK {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	d := New()
	d.Register(RangeSystemStart, func(a Args) Result {
		panic("boom")
	})
	// Dispatch from one call site so both panics share a call chain, which
	// is what the dispatcher's dedup set keys on.
	var results [2]Result
	for i := range results {
		results[i] = d.Dispatch(RangeSystemStart, Args{})
	}
	res, res2 := results[0], results[1]
	if res.Err != defs.EInvalidArgument {
		t.Fatalf("expected EInvalidArgument from a recovered panic, got %v", res.Err)
	}
	if res.Trace == "" {
		t.Fatal("expected the first occurrence of a panic site to carry a trace")
	}

	if res2.Trace != "" {
		t.Fatalf("expected the second occurrence of the same panic site to be deduped, got trace %q", res2.Trace)
	}
}

func TestEnterDrainsSQEsAndPostsCQEs(t *testing.T) {
	d := New()
	d.Register(RangeIPCStart, func(a Args) Result {
		return Result{Value: 7, Err: defs.EOK}
	})
	r, err := ipc.NewRing(4, 4)
	if err != defs.EOK {
		t.Fatalf("NewRing: %v", err)
	}
	if err := r.PushSQE(ipc.SQE{Opcode: ipc.OpSend, UserData: 1}); err != defs.EOK {
		t.Fatalf("PushSQE: %v", err)
	}

	if err := d.Enter(context.Background(), r, 1, 1, 100*time.Millisecond); err != defs.EOK {
		t.Fatalf("Enter: %v", err)
	}
	cqe, ok := r.PopCQE()
	if !ok {
		t.Fatal("expected a completion to be posted")
	}
	if cqe.UserData != 1 || cqe.Result != 7 {
		t.Fatalf("unexpected cqe: %+v", cqe)
	}
}

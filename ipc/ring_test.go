package ipc

import (
	"testing"

	"corekernel/defs"
)

func TestRingCapacityValidation(t *testing.T) {
	if _, err := NewRing(3, 4); err != defs.EInvalidArgument {
		t.Fatalf("expected InvalidArgument for non-power-of-two SQ, got %v", err)
	}
	if _, err := NewRing(4, 1<<17); err != defs.EInvalidArgument {
		t.Fatalf("expected InvalidArgument exceeding CQ max, got %v", err)
	}
}

func TestRingCapacityOneBoundary(t *testing.T) {
	r, _ := NewRing(1, 1)
	if err := r.PushSQE(SQE{UserData: 1}); err != defs.EOK {
		t.Fatalf("first push: %v", err)
	}
	if err := r.PushSQE(SQE{UserData: 2}); err != defs.EWouldBlock {
		t.Fatalf("expected QueueFull/WouldBlock on second push, got %v", err)
	}
	if _, ok := r.PopSQE(); !ok {
		t.Fatal("expected to pop the first entry")
	}
	if err := r.PushSQE(SQE{UserData: 3}); err != defs.EOK {
		t.Fatalf("push after pop: %v", err)
	}
}

func TestRingSendReceiveScenario(t *testing.T) {
	r, _ := NewRing(4, 4)
	r.PushSQE(SQE{Opcode: OpSend, UserData: 1})
	r.PushSQE(SQE{Opcode: OpReceive, UserData: 2})

	var processed int
	for {
		sqe, ok := r.PopSQE()
		if !ok {
			break
		}
		processed++
		switch sqe.Opcode {
		case OpSend:
			r.PushCQE(CQE{UserData: sqe.UserData, Result: 0})
		case OpReceive:
			r.PushCQE(CQE{UserData: sqe.UserData, Result: 5, Data: [2]uint64{0x42, 0}})
		}
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed SQEs, got %d", processed)
	}
	cqe1, _ := r.PopCQE()
	cqe2, _ := r.PopCQE()
	if cqe1.Result != 0 || cqe2.Result != 5 || cqe2.Data[0] != 0x42 {
		t.Fatalf("unexpected CQEs: %+v %+v", cqe1, cqe2)
	}
}

package ipc

import (
	"testing"

	"corekernel/defs"
)

func TestSignalWaitClearsIntersection(t *testing.T) {
	n := NewNotification()
	n.Signal(0b1010)
	got, err := n.Wait(0b0011, 0)
	if err != defs.EOK {
		t.Fatalf("Wait: %v", err)
	}
	if got != 0b0010 {
		t.Fatalf("expected intersection 0b0010, got %b", got)
	}
	if n.Poll() != 0b1000 {
		t.Fatalf("expected remaining bits 0b1000, got %b", n.Poll())
	}
}

func TestWaitNoMatchWouldBlock(t *testing.T) {
	n := NewNotification()
	n.Signal(0b0001)
	if _, err := n.Wait(0b0010, 0); err != defs.EWouldBlock {
		t.Fatalf("expected WouldBlock, got %v", err)
	}
}

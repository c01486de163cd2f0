package thread

import (
	"testing"

	"corekernel/cap"
	"corekernel/defs"
)

func TestKillMarksDoomedAndWakesChannel(t *testing.T) {
	th := New(1, 1, cap.NewCSpace())
	if th.Doomed() {
		t.Fatal("new thread should not be doomed")
	}
	th.Kill(defs.EInterrupted)
	if !th.Doomed() {
		t.Fatal("expected thread to be doomed after Kill")
	}
	killed, err := th.Killed()
	if !killed || err != defs.EInterrupted {
		t.Fatalf("expected killed=true err=EInterrupted, got killed=%v err=%v", killed, err)
	}
	select {
	case <-th.killCh:
	default:
		t.Fatal("expected kill channel to be signalled")
	}
}

func TestRegistryAddLookupRemove(t *testing.T) {
	r := NewRegistry()
	th := New(5, 1, cap.NewCSpace())
	r.Add(th)

	if got, ok := r.Lookup(5); !ok || got != th {
		t.Fatal("expected to find registered thread")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 registered thread, got %d", r.Len())
	}
	r.Remove(5)
	if _, ok := r.Lookup(5); ok {
		t.Fatal("expected thread to be gone after Remove")
	}
}

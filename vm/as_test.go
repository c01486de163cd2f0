package vm

import (
	"testing"

	"corekernel/defs"
	"corekernel/mem"
	"corekernel/paging"
)

func newAS(t *testing.T) (*AddressSpace, *mem.FrameAllocator) {
	t.Helper()
	frames := mem.NewFrameAllocator(256)
	as, err := New(defs.ObjectId{Type: defs.ObjAddressSpace, Id: 1}, frames)
	if err != defs.EOK {
		t.Fatalf("New: %v", err)
	}
	return as, frames
}

func TestAnonymousFaultPath(t *testing.T) {
	as, _ := newAS(t)
	va := mem.VA(0x4000_0000)
	if err := as.Map(&VMA{Start: va, End: va + 0x2000, Prot: paging.ProtRead | paging.ProtWrite | paging.ProtUser, Backing: BackAnonymous}); err != defs.EOK {
		t.Fatalf("Map: %v", err)
	}
	if err := as.HandleFault(va, false); err != defs.EOK {
		t.Fatalf("HandleFault: %v", err)
	}
	pa, err := as.Translate(va)
	if err != defs.EOK {
		t.Fatalf("Translate: %v", err)
	}
	if pa == 0 {
		t.Fatal("expected nonzero physical address")
	}

	if err := as.Unmap(va, 0x2000); err != defs.EOK {
		t.Fatalf("Unmap: %v", err)
	}
	if _, err := as.Translate(va); err != defs.ENotFound {
		t.Fatalf("expected NotFound after unmap, got %v", err)
	}
}

func TestOverlapRejected(t *testing.T) {
	as, _ := newAS(t)
	as.Map(&VMA{Start: 0x1000, End: 0x3000, Backing: BackAnonymous})
	err := as.Map(&VMA{Start: 0x2000, End: 0x4000, Backing: BackAnonymous})
	if err == defs.EOK {
		t.Fatal("expected overlap rejection")
	}
}

func TestFaultOnUnmappedRegion(t *testing.T) {
	as, _ := newAS(t)
	if err := as.HandleFault(0x9000, false); err != defs.ENotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDestroyReclaimsEveryFrame(t *testing.T) {
	as, frames := newAS(t)
	total := frames.NumFree() + 1 // +1 for the PML4 root New already consumed

	va1 := mem.VA(0x4000_0000)
	va2 := mem.VA(0x8000_0000_0000 - mem.PageSize)
	if err := as.Map(&VMA{Start: va1, End: va1 + mem.PageSize, Prot: paging.ProtRead | paging.ProtWrite | paging.ProtUser, Backing: BackAnonymous}); err != defs.EOK {
		t.Fatalf("Map: %v", err)
	}
	if err := as.Map(&VMA{Start: va2, End: va2 + mem.PageSize, Prot: paging.ProtRead | paging.ProtWrite | paging.ProtUser, Backing: BackAnonymous}); err != defs.EOK {
		t.Fatalf("Map: %v", err)
	}
	if err := as.HandleFault(va1, false); err != defs.EOK {
		t.Fatalf("HandleFault: %v", err)
	}
	if err := as.HandleFault(va2, false); err != defs.EOK {
		t.Fatalf("HandleFault: %v", err)
	}
	if frames.NumFree() == total {
		t.Fatal("expected mapping and fault-in to consume frames before Destroy")
	}

	as.Destroy()
	if got := frames.NumFree(); got != total {
		t.Fatalf("expected every frame reclaimed after Destroy, got %d free want %d", got, total)
	}
}

func TestWriteFaultPermissionDenied(t *testing.T) {
	as, _ := newAS(t)
	as.Map(&VMA{Start: 0x1000, End: 0x2000, Prot: paging.ProtRead, Backing: BackAnonymous})
	if err := as.HandleFault(0x1000, true); err != defs.EPermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

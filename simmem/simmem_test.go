package simmem

import "testing"

func TestManagerAllocationsAreDistinctAndAdvance(t *testing.T) {
	m := New()

	v1, _ := m.AllocateContiguousVirtualPages(2)
	v2, _ := m.AllocateContiguousVirtualPages(1)
	if v2 != v1+2*pageSize {
		t.Fatalf("expected virtual allocations to advance by page count, got %#x then %#x", v1, v2)
	}

	p1, _ := m.AllocatePhysicalBlock()
	p2, _ := m.AllocatePhysicalBlock()
	if p2 != p1+pageSize {
		t.Fatalf("expected physical allocations to advance by one page, got %#x then %#x", p1, p2)
	}
}

func TestManagerAllocateZeroPagesErrors(t *testing.T) {
	m := New()
	if _, err := m.AllocateContiguousVirtualPages(0); err == nil {
		t.Fatal("expected an error for a non-positive page count")
	}
}

func TestCreateAddressSpaceDistinctRoots(t *testing.T) {
	m := New()
	a, _ := m.CreateAddressSpace()
	b, _ := m.CreateAddressSpace()

	if a.PageMap().Root() == b.PageMap().Root() {
		t.Fatal("expected distinct page-map roots for distinct address spaces")
	}
}

func TestWriteAtAndReadAtRoundTrip(t *testing.T) {
	m := New()
	spaceIface, _ := m.CreateAddressSpace()
	space := spaceIface.(*AddressSpace)

	obj, err := space.AllocateAnonymousVMObject(pageSize, 0, true)
	if err != nil {
		t.Fatalf("AllocateAnonymousVMObject: %v", err)
	}

	payload := []byte("hello stack")
	if err := space.WriteAt(obj.Base(), payload); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	out := make([]byte, len(payload))
	if err := space.ReadAt(obj.Base(), out); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(out) != string(payload) {
		t.Fatalf("expected round-tripped bytes %q, got %q", payload, out)
	}
}

func TestWriteAtOutOfBoundsErrors(t *testing.T) {
	m := New()
	spaceIface, _ := m.CreateAddressSpace()
	space := spaceIface.(*AddressSpace)

	if err := space.WriteAt(0xdeadbeef, []byte("x")); err == nil {
		t.Fatal("expected an error writing outside any mapped object")
	}
}

func TestAllocateAnonymousVMObjectZeroSizeErrors(t *testing.T) {
	m := New()
	spaceIface, _ := m.CreateAddressSpace()
	space := spaceIface.(*AddressSpace)

	if _, err := space.AllocateAnonymousVMObject(0, 0, true); err == nil {
		t.Fatal("expected an error for a zero-size VM object")
	}
}

func TestForkCopiesObjectsIndependently(t *testing.T) {
	m := New()
	parentIface, _ := m.CreateAddressSpace()
	parent := parentIface.(*AddressSpace)

	obj, _ := parent.AllocateAnonymousVMObject(pageSize, 0, true)
	parent.WriteAt(obj.Base(), []byte("original"))

	childIface, err := parent.Fork()
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	child := childIface.(*AddressSpace)

	// Mutating the parent after fork must not affect the child's copy.
	parent.WriteAt(obj.Base(), []byte("mutated!"))

	out := make([]byte, len("original"))
	if err := child.ReadAt(obj.Base(), out); err != nil {
		t.Fatalf("child ReadAt: %v", err)
	}
	if string(out) != "original" {
		t.Fatalf("expected child's copy to be unaffected by post-fork parent writes, got %q", out)
	}
}

func TestDestroyMarksDestroyedAndDropsObjects(t *testing.T) {
	m := New()
	spaceIface, _ := m.CreateAddressSpace()
	space := spaceIface.(*AddressSpace)

	obj, _ := space.AllocateAnonymousVMObject(pageSize, 0, true)
	space.Destroy()

	if !space.Destroyed() {
		t.Fatal("expected Destroyed to report true")
	}
	if err := space.WriteAt(obj.Base(), []byte("x")); err == nil {
		t.Fatal("expected writes after Destroy to fail, objects dropped")
	}
}

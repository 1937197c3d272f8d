package slab

import "testing"

func TestAllocFillsSlabThenCreatesNew(t *testing.T) {
	a := New(16, 4)
	var ptrs [][]byte
	for i := 0; i < 4; i++ {
		p, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		ptrs = append(ptrs, p)
	}
	if a.full.count != 1 || a.partial.count != 0 {
		t.Fatalf("expected one full slab, got full=%d partial=%d", a.full.count, a.partial.count)
	}
	if _, err := a.Alloc(); err != nil {
		t.Fatalf("Alloc after full: %v", err)
	}
	if a.partial.count != 1 {
		t.Fatalf("expected a fresh partial slab, got %d", a.partial.count)
	}
}

func TestFreeMovesFullToPartial(t *testing.T) {
	a := New(16, 2)
	p1, _ := a.Alloc()
	_, _ = a.Alloc()
	if a.full.count != 1 {
		t.Fatalf("expected full slab")
	}
	if err := a.Free(p1); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if a.full.count != 0 || a.partial.count != 1 {
		t.Fatalf("expected slab back on partial, full=%d partial=%d", a.full.count, a.partial.count)
	}
}

func TestFreeAllMovesToEmptyCache(t *testing.T) {
	a := New(16, 2)
	p1, _ := a.Alloc()
	p2, _ := a.Alloc()
	_ = a.Free(p1)
	_ = a.Free(p2)
	if a.empty.count != 1 {
		t.Fatalf("expected slab cached as empty, got %d", a.empty.count)
	}
	if a.partial.count != 0 || a.full.count != 0 {
		t.Fatalf("slab should have left partial/full")
	}
}

func TestEmptySlabIsReusedOnAlloc(t *testing.T) {
	a := New(16, 2)
	p1, _ := a.Alloc()
	p2, _ := a.Alloc()
	_ = a.Free(p1)
	_ = a.Free(p2)
	if a.stats.SlabsCreated != 1 {
		t.Fatalf("expected 1 slab created so far")
	}
	if _, err := a.Alloc(); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a.stats.SlabsCreated != 1 {
		t.Fatalf("expected empty slab reused, not a new one created")
	}
}

func TestDoubleFreeIsRejected(t *testing.T) {
	a := New(16, 2)
	p, _ := a.Alloc()
	if err := a.Free(p); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := a.Free(p); err == nil {
		t.Fatal("expected error on double free")
	}
}

func TestActiveObjectsConservation(t *testing.T) {
	a := New(32, 8)
	var ptrs [][]byte
	for i := 0; i < 20; i++ {
		p, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		if i%2 == 0 {
			if err := a.Free(p); err != nil {
				t.Fatalf("Free: %v", err)
			}
		}
	}
	want := int64(20 - 10)
	if got := a.ActiveObjects(); got != want {
		t.Fatalf("ActiveObjects = %d, want %d", got, want)
	}
}

func TestEmptyCacheCapEvictsNewlyFreedSlab(t *testing.T) {
	a := NewWithEmptyCap(16, 1, 1)
	p1, _ := a.Alloc()
	_ = a.Free(p1) // one empty slab cached

	p2, _ := a.Alloc() // reuses cached slab
	p3, _ := a.Alloc() // forces a new slab (old one now full)
	_ = a.Free(p2)
	_ = a.Free(p3) // two slabs now empty; cap is 1, one should be dropped

	if a.empty.count != 1 {
		t.Fatalf("empty.count = %d, want 1 (cap enforced)", a.empty.count)
	}
}

func TestAllocatedObjectsDoNotOverlap(t *testing.T) {
	a := New(16, 4)
	var ptrs [][]byte
	for i := 0; i < 4; i++ {
		p, _ := a.Alloc()
		for j := range p {
			p[j] = byte(i)
		}
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		for _, b := range p {
			if b != byte(i) {
				t.Fatalf("object %d corrupted: %v", i, p)
			}
		}
	}
}

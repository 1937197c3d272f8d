package mempool

import "testing"

func smallPool() *Pool {
	return New(Config{InitialPoolSize: 64 * 10, CacheDepth: 8, StatsEnabled: true})
}

func TestClassFor(t *testing.T) {
	cases := []struct {
		size int
		want int
	}{
		{1, 0}, {16, 0}, {17, 1}, {8192, 9}, {8193, -1}, {0, -1}, {-1, -1},
	}
	for _, c := range cases {
		if got := classFor(c.size); got != c.want {
			t.Errorf("classFor(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestCacheAllocFreeRoundTrip(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	buf, err := c.Alloc(20)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 20 {
		t.Fatalf("len = %d, want 20", len(buf))
	}
	copy(buf, "hello world, twenty!")

	if err := c.Free(buf, 20); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestCacheReusesFreedPointer(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	b1, _ := c.Alloc(10)
	_ = c.Free(b1, 10)

	b2, _ := c.Alloc(10)
	if &b1[0] != &b2[0] {
		t.Fatal("expected the cached pointer to be reused")
	}
}

func TestOversizeAllocBypassesPool(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	buf, err := c.Alloc(1 << 20)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 1<<20 {
		t.Fatalf("len = %d", len(buf))
	}
	stats := p.Stats()
	if stats.SystemAllocs != 1 {
		t.Fatalf("SystemAllocs = %d, want 1", stats.SystemAllocs)
	}
}

func TestCrossCacheFreeIsSafe(t *testing.T) {
	p := smallPool()
	c1 := NewCache(p)
	c2 := NewCache(p)

	buf, _ := c1.Alloc(30)
	if err := c2.Free(buf, 30); err != nil {
		t.Fatalf("cross-cache free failed: %v", err)
	}
}

func TestReallocSameClassKeepsPointer(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	buf, _ := c.Alloc(10)
	copy(buf, "0123456789")
	grown, err := c.Realloc(buf, 10, 15)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if &grown[0] != &buf[0] {
		t.Fatal("expected same backing storage within a class")
	}
}

func TestReallocDifferentClassCopies(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	buf, _ := c.Alloc(10)
	copy(buf, "abcdefghij")
	grown, err := c.Realloc(buf, 10, 100)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if string(grown[:10]) != "abcdefghij" {
		t.Fatalf("data not preserved across realloc: %q", grown[:10])
	}
}

func TestStrndup(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	buf, err := c.Strndup("hello world", 5)
	if err != nil {
		t.Fatalf("Strndup: %v", err)
	}
	if string(buf[:5]) != "hello" || buf[5] != 0 {
		t.Fatalf("Strndup = %q", buf)
	}
}

func TestTLSClearDrainsCache(t *testing.T) {
	p := smallPool()
	c := NewCache(p)

	b, _ := c.Alloc(10)
	_ = c.Free(b, 10)
	c.TLSClear()

	for _, stack := range c.stacks {
		if len(stack) != 0 {
			t.Fatal("expected TLSClear to empty all stacks")
		}
	}
}

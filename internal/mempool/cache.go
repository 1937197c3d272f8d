package mempool

import "github.com/kvsrv/kvsrv/internal/metrics"

// Cache is the per-worker front end to a Pool: for each size class, a
// small bounded stack of recently freed objects, absorbing the common
// alloc/free-same-size pattern without touching the shared slab
// allocator's lock. A Cache is not safe for concurrent use; each owner
// creates its own with NewCache. Connection workers do not create one.
type Cache struct {
	pool   *Pool
	stacks [10][][]byte
}

// NewCache creates a Cache bound to pool.
func NewCache(pool *Pool) *Cache {
	return &Cache{pool: pool}
}

// Alloc maps size to the smallest class whose size >= size. If none,
// the system allocator is used directly (accounted as a "pool miss").
// Otherwise the worker's cache is tried first; on a cache miss the
// request falls through to the shared slab allocator (accounted as a
// "pool hit").
func (c *Cache) Alloc(size int) ([]byte, error) {
	idx := classFor(size)
	if idx < 0 {
		if c.pool.statsOn {
			c.pool.systemAllocs.Add(1)
		}
		metrics.RecordMemPoolOp("alloc", "system")
		return make([]byte, size), nil
	}

	if stack := c.stacks[idx]; len(stack) > 0 {
		top := stack[len(stack)-1]
		c.stacks[idx] = stack[:len(stack)-1]
		if c.pool.statsOn {
			c.pool.tlsHits.Add(1)
		}
		metrics.RecordMemPoolOp("alloc", "tls_hit")
		return top[:size:cap(top)], nil
	}

	buf, err := c.pool.allocFromClass(idx, size)
	if err != nil {
		metrics.RecordMemPoolOp("alloc", "slab_miss")
		return nil, err
	}
	metrics.RecordMemPoolOp("alloc", "slab_hit")
	return buf, nil
}

// Free returns ptr, which must have been obtained from Alloc(size) on
// some Cache sharing this Cache's Pool, for reuse. A pointer allocated
// on one worker may be freed on another: the slab allocator identifies
// the owning slab by address range, not by which worker's cache called
// in, so this is always correct.
func (c *Cache) Free(ptr []byte, size int) error {
	idx := classFor(size)
	if idx < 0 {
		if c.pool.statsOn {
			c.pool.frees.Add(1)
		}
		metrics.RecordMemPoolOp("free", "system")
		return nil // system-allocated; nothing to return, GC reclaims it.
	}
	if cap(ptr) != ClassSizes[idx] {
		return ErrSizeMismatch
	}

	if c.pool.statsOn {
		c.pool.frees.Add(1)
	}
	if len(c.stacks[idx]) < c.pool.cacheDepth {
		c.stacks[idx] = append(c.stacks[idx], ptr)
		metrics.RecordMemPoolOp("free", "tls_cached")
		return nil
	}
	metrics.RecordMemPoolOp("free", "slab_returned")
	return c.pool.freeToClass(idx, ptr)
}

// Realloc grows or shrinks a previous allocation. If oldSize and newSize
// map to the same class, the original pointer is reused in place;
// otherwise a new allocation is made, min(oldSize,newSize) bytes are
// copied, and the old allocation is freed.
func (c *Cache) Realloc(ptr []byte, oldSize, newSize int) ([]byte, error) {
	oldIdx, newIdx := classFor(oldSize), classFor(newSize)
	if oldIdx >= 0 && oldIdx == newIdx {
		return ptr[:newSize:cap(ptr)], nil
	}

	next, err := c.Alloc(newSize)
	if err != nil {
		return nil, err
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	copy(next, ptr[:n])
	_ = c.Free(ptr, oldSize)
	return next, nil
}

// Strdup allocates len(s)+1 bytes, copies s, and null-terminates it.
func (c *Cache) Strdup(s string) ([]byte, error) {
	return c.Strndup(s, len(s))
}

// Strndup allocates min(len(s),n)+1 bytes, copies up to n bytes of s,
// and null-terminates the result.
func (c *Cache) Strndup(s string, n int) ([]byte, error) {
	if n > len(s) {
		n = len(s)
	}
	buf, err := c.Alloc(n + 1)
	if err != nil {
		return nil, err
	}
	copy(buf, s[:n])
	buf[n] = 0
	return buf, nil
}

// TLSClear drains every cached pointer back into the shared slab
// allocators, so memory doesn't stay pinned in a cache that is no
// longer used. The owner calls it before discarding the Cache.
func (c *Cache) TLSClear() {
	for idx, stack := range c.stacks {
		for _, ptr := range stack {
			_ = c.pool.freeToClass(idx, ptr)
		}
		c.stacks[idx] = nil
	}
}

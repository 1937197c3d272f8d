// Package mempool implements a size-classed memory pool: a fixed vector
// of slab allocators (internal/slab), one per canonical size class,
// fronted by a small per-worker cache.
//
// Go has no real thread-local storage, so the "thread-local cache" is
// realized as a Cache value that its owner passes around explicitly
// rather than hiding it behind a runtime TLS slot. The package is
// standalone: the connection and parser layers do not create a Pool or
// a Cache, and request parsing does not allocate from it.
//
// Each size class is backed by an internal/slab.Allocator so its
// bitmap/partial/full/empty invariants hold across every request, and
// allocations above the largest class fall back to the system allocator,
// accounted separately in Stats.
package mempool

import (
	"sync/atomic"

	"github.com/kvsrv/kvsrv/internal/slab"
	"github.com/kvsrv/kvsrv/pkg/errors"
)

// ClassSizes are the ten canonical size classes, each slab allocator
// sized to hold objects up to and including its class's byte size.
var ClassSizes = [10]int{16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192}

const maxClassSize = 8192

// Config configures a Pool at init time.
type Config struct {
	// InitialPoolSize sizes each class's objects-per-slab via
	// clamp(InitialPoolSize/size, 64, 1024).
	InitialPoolSize int
	// CacheDepth bounds each per-worker cache stack per size class.
	CacheDepth int
	// StatsEnabled gates the statistics counters with a single bool
	// check, avoiding atomic traffic on the hot path when off.
	StatsEnabled bool
}

// DefaultConfig returns a reasonable default pool configuration.
func DefaultConfig() Config {
	return Config{InitialPoolSize: 1 << 20, CacheDepth: 8, StatsEnabled: true}
}

// Stats aggregates allocation outcome counters across all size classes.
type Stats struct {
	TLSHits      int64
	SlabHits     int64
	SystemAllocs int64
	Frees        int64
}

// Pool is a shared memory pool, reached through one or more Cache
// values. The server does not create one at startup.
type Pool struct {
	classes    [10]*slab.Allocator
	cacheDepth int
	statsOn    bool

	tlsHits, slabHits, systemAllocs, frees atomic.Int64
}

// New builds a Pool with one slab.Allocator per size class.
func New(cfg Config) *Pool {
	if cfg.CacheDepth <= 0 {
		cfg.CacheDepth = 8
	}
	p := &Pool{cacheDepth: cfg.CacheDepth, statsOn: cfg.StatsEnabled}
	for i, size := range ClassSizes {
		n := clamp(cfg.InitialPoolSize/size, 64, 1024)
		p.classes[i] = slab.New(size, n)
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// classFor returns the index of the smallest class whose size >= size,
// or -1 if size exceeds the largest class (or is non-positive).
func classFor(size int) int {
	if size <= 0 || size > maxClassSize {
		return -1
	}
	for i, s := range ClassSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// allocFromClass pulls one object from the given class's slab allocator
// and slices it down to the requested size while preserving the class's
// full capacity (useful to callers that later grow within the class).
func (p *Pool) allocFromClass(idx, size int) ([]byte, error) {
	raw, err := p.classes[idx].Alloc()
	if err != nil {
		return nil, err
	}
	if p.statsOn {
		p.slabHits.Add(1)
	}
	return raw[:size:len(raw)], nil
}

// freeToClass returns ptr to the class's slab allocator.
func (p *Pool) freeToClass(idx int, ptr []byte) error {
	full := ptr[:cap(ptr)]
	return p.classes[idx].Free(full)
}

// Stats returns a snapshot of the pool's allocation-outcome counters.
func (p *Pool) Stats() Stats {
	return Stats{
		TLSHits:      p.tlsHits.Load(),
		SlabHits:     p.slabHits.Load(),
		SystemAllocs: p.systemAllocs.Load(),
		Frees:        p.frees.Load(),
	}
}

// ErrSizeMismatch is returned by Free when size doesn't map to the same
// class as the original Alloc.
var ErrSizeMismatch = errors.New(errors.KindOOM, "mempool: free size does not match alloc size class")

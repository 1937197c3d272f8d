// Package bufpool implements three size-classed pools of reusable byte
// buffers for network I/O: small (512), medium (4096), large (65536).
// Each class holds a bounded stack of free buffers behind its own lock.
package bufpool

import (
	"sync"

	"github.com/kvsrv/kvsrv/internal/metrics"
)

// Class identifies one of the three buffer size classes.
type Class int

const (
	Small  Class = iota // 512 bytes, sized for short replies and request lines.
	Medium              // 4096 bytes, the default connection read buffer size.
	Large               // 65536 bytes, for large array replies and bulk payloads.
	numClasses
)

var classSizes = [numClasses]int{512, 4096, 65536}

func (c Class) Size() int { return classSizes[c] }

func (c Class) String() string {
	switch c {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	default:
		return "unknown"
	}
}

// defaultCap bounds the number of free buffers retained per class.
const defaultCap = 64

// classPool is one size class's bounded stack of free buffers.
type classPool struct {
	mu    sync.Mutex
	stack [][]byte
	cap   int

	acquires, releases, news, drops int64
}

// Pool is the set of three size-classed buffer pools.
type Pool struct {
	classes [numClasses]*classPool
}

// New creates a Pool with the default per-class cap.
func New() *Pool {
	return NewWithCap(defaultCap)
}

// NewWithCap creates a Pool whose classes each cache up to capPerClass
// free buffers.
func NewWithCap(capPerClass int) *Pool {
	p := &Pool{}
	for i := range p.classes {
		p.classes[i] = &classPool{cap: capPerClass}
	}
	return p
}

// Acquire returns a buffer from class c with length 0 and capacity
// class.Size(), either popped from the free stack or freshly allocated.
func (p *Pool) Acquire(c Class) []byte {
	cp := p.classes[c]
	cp.mu.Lock()
	if n := len(cp.stack); n > 0 {
		buf := cp.stack[n-1]
		cp.stack = cp.stack[:n-1]
		cp.acquires++
		cp.mu.Unlock()
		metrics.RecordBufferPoolOp(c.String(), "acquire")
		return buf[:0]
	}
	cp.acquires++
	cp.news++
	cp.mu.Unlock()
	metrics.RecordBufferPoolOp(c.String(), "new")
	return make([]byte, 0, c.Size())
}

// AcquireFor returns a buffer from the smallest class able to hold size
// bytes without pooling, or a freshly allocated slice if size exceeds
// the largest class.
func (p *Pool) AcquireFor(size int) []byte {
	for c := Class(0); c < numClasses; c++ {
		if size <= c.Size() {
			return p.Acquire(c)
		}
	}
	return make([]byte, 0, size)
}

// Release returns buf to the pool matching its capacity. Buffers whose
// capacity doesn't match any class (e.g. grown past it, or oversized
// allocations from AcquireFor) are dropped and left to the GC.
func (p *Pool) Release(buf []byte) {
	if buf == nil {
		return
	}
	c, ok := classFor(cap(buf))
	if !ok {
		return
	}
	cp := p.classes[c]
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.releases++
	if len(cp.stack) >= cp.cap {
		cp.drops++
		metrics.RecordBufferPoolOp(c.String(), "drop")
		return
	}
	cp.stack = append(cp.stack, buf[:0])
	metrics.RecordBufferPoolOp(c.String(), "release")
}

func classFor(capacity int) (Class, bool) {
	for c := Class(0); c < numClasses; c++ {
		if capacity == c.Size() {
			return c, true
		}
	}
	return 0, false
}

// Stats is a snapshot of one class's acquire/release counters.
type Stats struct {
	Acquires, Releases, News, Drops int64
	Cached                          int
}

// Stats returns a snapshot for class c.
func (p *Pool) Stats(c Class) Stats {
	cp := p.classes[c]
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return Stats{
		Acquires: cp.acquires,
		Releases: cp.releases,
		News:     cp.news,
		Drops:    cp.drops,
		Cached:   len(cp.stack),
	}
}

// Package slab implements a bitmap-managed slab allocator: each Slab
// holds a fixed number of equal-size objects plus an allocation bitmap,
// and sits on exactly one of three intrusive lists (partial/full/empty)
// owned by an Allocator for one object size.
//
// Slabs move between the three lists as they fill and drain; free-object
// lookup within a slab is a first-fit scan over the bitmap rather than an
// embedded per-object free-list link, and list membership is explicit
// via prev/next pointers rather than index-based handles.
package slab

import (
	"math/bits"
	"sync"

	"github.com/kvsrv/kvsrv/pkg/errors"
)

// defaultEmptyCap is the default cap on cached empty slabs per allocator.
const defaultEmptyCap = 2

// Slab is a contiguous block holding a fixed number of equal-size
// objects plus an N-bit allocation bitmap. It is intrusive: prev/next
// link it into exactly one of its Allocator's three lists at a time.
type Slab struct {
	mem    []byte
	bitmap []uint64
	n      int
	used   int

	list       *list
	prev, next *Slab
}

func newSlab(objSize, n int) *Slab {
	return &Slab{
		mem:    make([]byte, objSize*n),
		bitmap: make([]uint64, (n+63)/64),
		n:      n,
	}
}

func (s *Slab) contains(ptr []byte, objSize int) (idx int, ok bool) {
	base := addrOf(s.mem)
	p := addrOf(ptr)
	if p < base || p >= base+uintptr(len(s.mem)) {
		return 0, false
	}
	off := p - base
	if off%uintptr(objSize) != 0 {
		return 0, false
	}
	return int(off) / objSize, true
}

func (s *Slab) bitSet(i int) bool  { return s.bitmap[i/64]&(1<<(uint(i)%64)) != 0 }
func (s *Slab) setBit(i int)       { s.bitmap[i/64] |= 1 << (uint(i) % 64) }
func (s *Slab) clearBit(i int)     { s.bitmap[i/64] &^= 1 << (uint(i) % 64) }

// firstClearBit returns the index of the first clear bit in [0, n), or -1
// if the slab is full.
func (s *Slab) firstClearBit() int {
	for w := 0; w < len(s.bitmap); w++ {
		word := s.bitmap[w]
		if word == ^uint64(0) {
			continue
		}
		// Mask off bits beyond n in the last word so they don't look free.
		bit := bits.TrailingZeros64(^word)
		idx := w*64 + bit
		if idx >= s.n {
			return -1
		}
		return idx
	}
	return -1
}

// list is one of an Allocator's three intrusive doubly-linked slab lists.
type list struct {
	head, tail *Slab
	count      int
}

func (l *list) pushFront(s *Slab) {
	s.list = l
	s.prev = nil
	s.next = l.head
	if l.head != nil {
		l.head.prev = s
	}
	l.head = s
	if l.tail == nil {
		l.tail = s
	}
	l.count++
}

func (l *list) remove(s *Slab) {
	if s.prev != nil {
		s.prev.next = s.next
	} else if l.head == s {
		l.head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else if l.tail == s {
		l.tail = s.prev
	}
	s.prev, s.next, s.list = nil, nil, nil
	l.count--
}

// Stats holds allocator counters. Allocations - Deallocations gives the
// number of objects currently live, a useful conservation check.
type Stats struct {
	Allocations   int64
	Deallocations int64
	SlabsCreated  int64
	SlabsReleased int64
}

// Allocator owns the three lists (partial/full/empty) for one object
// size.
type Allocator struct {
	objSize  int
	n        int
	emptyCap int

	mu                     sync.Mutex
	partial, full, empty   list
	stats                  Stats
}

// New creates an Allocator for objects of size objSize, n objects per
// slab, with the default empty-slab cache cap.
func New(objSize, n int) *Allocator {
	return NewWithEmptyCap(objSize, n, defaultEmptyCap)
}

// NewWithEmptyCap creates an Allocator with an explicit empty-slab cache cap.
func NewWithEmptyCap(objSize, n, emptyCap int) *Allocator {
	if objSize <= 0 || n <= 0 {
		panic("slab: objSize and n must be positive")
	}
	return &Allocator{objSize: objSize, n: n, emptyCap: emptyCap}
}

// ObjSize returns the fixed object size this allocator serves.
func (a *Allocator) ObjSize() int { return a.objSize }

// Alloc returns one zero-length-backing object slice of ObjSize() bytes.
func (a *Allocator) Alloc() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.partial.head
	if s == nil {
		if a.empty.head != nil {
			s = a.empty.head
			a.empty.remove(s)
			a.partial.pushFront(s)
		} else {
			s = newSlab(a.objSize, a.n)
			a.stats.SlabsCreated++
			a.partial.pushFront(s)
		}
	}

	idx := s.firstClearBit()
	if idx < 0 {
		// Invariant violation: a partial slab must have a clear bit.
		return nil, errors.New(errors.KindOOM, "slab: partial slab has no free object")
	}
	s.setBit(idx)
	s.used++
	a.stats.Allocations++

	if s.used == s.n {
		a.partial.remove(s)
		a.full.pushFront(s)
	}

	off := idx * a.objSize
	return s.mem[off : off+a.objSize : off+a.objSize], nil
}

// Free returns ptr, previously returned by Alloc, to its owning slab.
func (a *Allocator) Free(ptr []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, idx := a.findOwner(ptr)
	if s == nil {
		return errors.New(errors.KindOOM, "slab: pointer not owned by this allocator")
	}
	if !s.bitSet(idx) {
		return errors.New(errors.KindOOM, "slab: double free")
	}
	s.clearBit(idx)
	s.used--
	a.stats.Deallocations++

	wasFull := s.used == s.n-1
	if wasFull && s.list == &a.full {
		a.full.remove(s)
		a.partial.pushFront(s)
	}

	if s.used == 0 && s.list != &a.empty {
		s.list.remove(s)
		if a.empty.count < a.emptyCap {
			a.empty.pushFront(s)
		} else {
			a.stats.SlabsReleased++
			// Drop the slab entirely; the GC reclaims it. The slab
			// that just emptied is the one released when the empty
			// cache is already at capacity, leaving the previously
			// cached slabs (hotter, by definition already reused
			// once) in place.
		}
	}
	return nil
}

func (a *Allocator) findOwner(ptr []byte) (*Slab, int) {
	for _, l := range [2]*list{&a.partial, &a.full} {
		for s := l.head; s != nil; s = s.next {
			if idx, ok := s.contains(ptr, a.objSize); ok {
				return s, idx
			}
		}
	}
	return nil, 0
}

// Destroy releases every slab on all three lists.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partial = list{}
	a.full = list{}
	a.empty = list{}
}

// Stats returns a snapshot of the allocator's counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// ActiveObjects returns allocations - deallocations.
func (a *Allocator) ActiveObjects() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.Allocations - a.stats.Deallocations
}

// Package lru implements the LRU eviction policy.
package lru

import "github.com/IvanBrykalov/lru/policy"

// nilSlot marks the absence of a link in the arena.
const nilSlot int32 = -1

// slot is one arena cell of the recency list. Links are arena indices, not
// pointers, so slots can be recycled through the free list.
type slot[K comparable] struct {
	key  K
	prev int32
	next int32
}

// lru is a classic "move-to-front" Least-Recently-Used strategy.
//
// The recency list is a doubly linked list stored in an arena (head = MRU,
// tail = LRU); idx maps every tracked key to its slot, so every operation
// is O(1) apart from SelectVictims, which is O(victims).
type lru[K comparable] struct {
	capacity int

	slots []slot[K]
	idx   map[K]int32
	free  []int32 // recycled slot indices
	head  int32   // MRU
	tail  int32   // LRU
}

type lruPolicy[K comparable] struct{}

// New returns a Policy factory that constructs LRU strategies.
func New[K comparable]() policy.Policy[K] { return lruPolicy[K]{} }

// New implements policy.Policy.
func (lruPolicy[K]) New(capacity int) policy.Strategy[K] { return NewStrategy[K](capacity) }

// NewStrategy builds a standalone LRU strategy. A capacity of 0 makes every
// tracked key a victim; negative values are treated as 0.
func NewStrategy[K comparable](capacity int) policy.Strategy[K] {
	if capacity < 0 {
		capacity = 0
	}
	hint := capacity
	if hint > 1<<16 {
		hint = 1 << 16 // grow lazily for very large caches
	}
	return &lru[K]{
		capacity: capacity,
		slots:    make([]slot[K], 0, hint+1),
		idx:      make(map[K]int32, hint+1),
		head:     nilSlot,
		tail:     nilSlot,
	}
}

// OnAdd places the key at MRU. A key that is already tracked is promoted.
func (p *lru[K]) OnAdd(k K) {
	if i, ok := p.idx[k]; ok {
		p.moveToFront(i)
		return
	}
	i := p.alloc(k)
	p.idx[k] = i
	p.pushFront(i)
}

// OnAccess promotes the key to MRU.
func (p *lru[K]) OnAccess(k K) {
	if i, ok := p.idx[k]; ok {
		p.moveToFront(i)
	}
}

// OnRemove unlinks the key and recycles its slot.
func (p *lru[K]) OnRemove(k K) {
	i, ok := p.idx[k]
	if !ok {
		return
	}
	p.unlink(i)
	delete(p.idx, k)
	var zero K
	p.slots[i].key = zero // drop the reference for the GC
	p.free = append(p.free, i)
}

// OnClear forgets every key but keeps the arena's backing storage.
func (p *lru[K]) OnClear() {
	clear(p.idx)
	clear(p.slots)
	p.slots = p.slots[:0]
	p.free = p.free[:0]
	p.head, p.tail = nilSlot, nilSlot
}

// SelectVictims walks from the LRU end towards MRU.
func (p *lru[K]) SelectVictims(currentSize int) []K {
	over := currentSize - p.capacity
	if over <= 0 {
		return nil
	}
	victims := make([]K, 0, over)
	for i := p.tail; i != nilSlot && len(victims) < over; i = p.slots[i].prev {
		victims = append(victims, p.slots[i].key)
	}
	return victims
}

// Len returns the number of tracked keys.
func (p *lru[K]) Len() int { return len(p.idx) }

// Capacity returns the configured bound.
func (p *lru[K]) Capacity() int { return p.capacity }

// Keys returns tracked keys from LRU to MRU.
func (p *lru[K]) Keys() []K {
	out := make([]K, 0, len(p.idx))
	for i := p.tail; i != nilSlot; i = p.slots[i].prev {
		out = append(out, p.slots[i].key)
	}
	return out
}

// -------------------- arena list --------------------

func (p *lru[K]) alloc(k K) int32 {
	if n := len(p.free); n > 0 {
		i := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[i] = slot[K]{key: k, prev: nilSlot, next: nilSlot}
		return i
	}
	p.slots = append(p.slots, slot[K]{key: k, prev: nilSlot, next: nilSlot})
	return int32(len(p.slots) - 1)
}

// pushFront links a detached slot at MRU.
func (p *lru[K]) pushFront(i int32) {
	s := &p.slots[i]
	s.prev = nilSlot
	s.next = p.head
	if p.head != nilSlot {
		p.slots[p.head].prev = i
	}
	p.head = i
	if p.tail == nilSlot {
		p.tail = i
	}
}

func (p *lru[K]) moveToFront(i int32) {
	if i == p.head {
		return
	}
	p.unlink(i)
	p.pushFront(i)
}

func (p *lru[K]) unlink(i int32) {
	s := &p.slots[i]
	if s.prev != nilSlot {
		p.slots[s.prev].next = s.next
	} else {
		p.head = s.next
	}
	if s.next != nilSlot {
		p.slots[s.next].prev = s.prev
	} else {
		p.tail = s.prev
	}
	s.prev, s.next = nilSlot, nilSlot
}

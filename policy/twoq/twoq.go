// Package twoq implements the 2Q eviction policy.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/lru/policy"
)

// twoQ implements the 2Q eviction policy.
//
// Resident queues:
//   - A1in (younger queue): FIFO of first-time keys
//   - Am   (mature queue): LRU of keys that were referenced again
//
// Ghost A1out: keys only, tracks recently dropped A1in keys to give them
// a second chance (bypass A1in on re-admission).
//
// Concurrency: all methods are called under the cache's data lock.
type twoQ[K comparable] struct {
	capacity int
	capIn    int // A1in share of capacity
	capGhost int // A1out (ghost) capacity

	// A1in: newest at Front() -> oldest at Back()
	inList *list.List
	inIdx  map[K]*list.Element // element.Value is K

	// Am: MRU at Front() -> LRU at Back()
	amList *list.List
	amIdx  map[K]*list.Element

	// A1out (ghosts): MRU at Front() -> LRU at Back()
	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New constructs a 2Q policy factory.
// Common choices: capIn ≈ 25% of capacity; capGhost ≈ 50–100% of capacity.
// Non-positive sizes are derived from the capacity passed to Policy.New.
func New[K comparable](capIn, capGhost int) policy.Policy[K] {
	return twoQPolicy[K]{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy[K comparable] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[K]) New(capacity int) policy.Strategy[K] {
	if capacity < 0 {
		capacity = 0
	}
	capIn, capGhost := p.capIn, p.capGhost
	if capIn <= 0 {
		capIn = max(1, capacity/4)
	}
	if capGhost <= 0 {
		capGhost = max(1, capacity/2)
	}
	return &twoQ[K]{
		capacity:  capacity,
		capIn:     capIn,
		capGhost:  capGhost,
		inList:    list.New(),
		inIdx:     make(map[K]*list.Element),
		amList:    list.New(),
		amIdx:     make(map[K]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// OnAdd admission rules:
//   - A key already resident is treated as an access.
//   - If the key is present in ghosts (A1out), bypass A1in and admit
//     directly to Am (MRU). The ghost entry is dropped.
//   - Otherwise admit into A1in.
func (q *twoQ[K]) OnAdd(k K) {
	if q.resident(k) {
		q.OnAccess(k)
		return
	}
	if ge, ok := q.ghostIdx[k]; ok {
		// Second chance: straight into Am.
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.amIdx[k] = q.amList.PushFront(k)
		return
	}
	q.inIdx[k] = q.inList.PushFront(k)
}

// OnAccess: a key in A1in is promoted to Am; a key in Am moves to MRU.
func (q *twoQ[K]) OnAccess(k K) {
	if el, ok := q.inIdx[k]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, k)
		q.amIdx[k] = q.amList.PushFront(k)
		return
	}
	if el, ok := q.amIdx[k]; ok {
		q.amList.MoveToFront(el)
	}
}

// OnRemove:
//   - If the key was in A1in, its key goes to ghosts (A1out), respecting capGhost.
//   - Removals from Am do NOT populate ghosts.
func (q *twoQ[K]) OnRemove(k K) {
	if el, ok := q.amIdx[k]; ok {
		q.amList.Remove(el)
		delete(q.amIdx, k)
		return
	}
	el, ok := q.inIdx[k]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, k)

	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	// Enforce ghost capacity (drop LRU ghosts).
	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}

// OnClear drops resident keys and ghosts.
func (q *twoQ[K]) OnClear() {
	q.inList.Init()
	q.amList.Init()
	q.ghostList.Init()
	clear(q.inIdx)
	clear(q.amIdx)
	clear(q.ghostIdx)
}

// SelectVictims drains A1in (oldest first) while it holds more than its
// share, then takes Am's LRU end. When Am is exhausted the rest of A1in
// follows.
func (q *twoQ[K]) SelectVictims(currentSize int) []K {
	over := currentSize - q.capacity
	if over <= 0 {
		return nil
	}
	victims := make([]K, 0, over)
	inEl, amEl := q.inList.Back(), q.amList.Back()
	inLeft := q.inList.Len()
	for len(victims) < over {
		switch {
		case inEl != nil && (inLeft > q.capIn || amEl == nil):
			victims = append(victims, inEl.Value.(K))
			inEl = inEl.Prev()
			inLeft--
		case amEl != nil:
			victims = append(victims, amEl.Value.(K))
			amEl = amEl.Prev()
		default:
			return victims
		}
	}
	return victims
}

// Len returns the number of resident keys (ghosts excluded).
func (q *twoQ[K]) Len() int { return q.inList.Len() + q.amList.Len() }

// Capacity returns the configured bound.
func (q *twoQ[K]) Capacity() int { return q.capacity }

func (q *twoQ[K]) resident(k K) bool {
	if _, ok := q.inIdx[k]; ok {
		return true
	}
	_, ok := q.amIdx[k]
	return ok
}

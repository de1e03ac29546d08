package cache

// store is the authoritative key→value mapping. It never evicts and knows
// nothing about recency; both belong to the cache and its strategy.
// Not safe for concurrent use: guarded by the cache's data lock.
type store[K comparable, V any] struct {
	m map[K]V
}

func newStore[K comparable, V any](sizeHint int) *store[K, V] {
	if sizeHint > 1<<16 {
		sizeHint = 1 << 16
	}
	return &store[K, V]{m: make(map[K]V, sizeHint)}
}

func (s *store[K, V]) get(k K) (V, bool) {
	v, ok := s.m[k]
	return v, ok
}

// put inserts or overwrites k and reports whether it was an insert.
func (s *store[K, V]) put(k K, v V) (inserted bool) {
	_, exists := s.m[k]
	s.m[k] = v
	return !exists
}

// remove reports whether k was present.
func (s *store[K, V]) remove(k K) bool {
	if _, ok := s.m[k]; !ok {
		return false
	}
	delete(s.m, k)
	return true
}

func (s *store[K, V]) clear() { clear(s.m) }

func (s *store[K, V]) size() int { return len(s.m) }

func (s *store[K, V]) containsKey(k K) bool {
	_, ok := s.m[k]
	return ok
}

// keys returns a snapshot in unspecified order.
func (s *store[K, V]) keys() []K {
	out := make([]K, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out
}

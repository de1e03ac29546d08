// Package policy defines the eviction strategy contract used by the cache.
package policy

// Strategy tracks resident keys and decides which of them to evict once the
// cache holds more entries than the strategy's capacity.
//
// Concurrency: all methods are invoked under the cache's data lock.
// Implementations must not lock on their own and must be deterministic for
// a fixed sequence of calls (no hidden randomness), so eviction choices are
// reproducible in tests.
//
// Semantics:
//   - OnAdd starts tracking a newly inserted key. Adding a key that is
//     already tracked counts as an access.
//   - OnAccess records a use of a resident key (a read hit or an overwrite).
//     Unknown keys are ignored.
//   - OnRemove stops tracking a key. Unknown keys are ignored.
//   - OnClear drops every tracked key.
//   - SelectVictims returns, in eviction order, the keys that must go so
//     that currentSize-len(victims) <= Capacity(). It does not stop
//     tracking them; the cache calls OnRemove for each victim it deletes.
type Strategy[K comparable] interface {
	OnAdd(k K)
	OnAccess(k K)
	OnRemove(k K)
	OnClear()
	SelectVictims(currentSize int) []K

	// Len returns the number of tracked keys. It must always equal the
	// number of entries resident in the cache.
	Len() int
	// Capacity returns the entry bound the strategy enforces.
	Capacity() int
}

// Ordered is implemented by strategies that can report their tracked keys
// in eviction order (next victim first).
type Ordered[K comparable] interface {
	Keys() []K
}

// Policy is a factory that creates a Strategy bound to a capacity.
// A cache calls New exactly once, at construction.
type Policy[K comparable] interface {
	New(capacity int) Strategy[K]
}

// Func adapts a plain constructor to the Policy interface.
type Func[K comparable] func(capacity int) Strategy[K]

// New implements Policy.
func (f Func[K]) New(capacity int) Strategy[K] { return f(capacity) }

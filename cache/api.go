package cache

import (
	"context"
)

// Cache is a generic in-memory key/value cache with a pluggable eviction
// strategy and lifecycle events.
// All methods are safe for concurrent use by multiple goroutines.
//
// Typical complexity for operations is amortized O(1):
// a map lookup plus constant-time strategy bookkeeping under the data lock.
// Events are delivered after the data lock is released.
type Cache[K comparable, V any] interface {
	// Set inserts or updates k→v and promotes the entry according to the
	// active eviction policy. Emits Added or Updated, then one Evicted per
	// key the strategy dropped to stay within capacity.
	Set(k K, v V)

	// Add inserts k→v only if k is not present.
	// Returns false if the key already exists (no update, no event).
	Add(k K, v V) bool

	// Get returns the value for k and a boolean flag indicating presence.
	// On hit, the entry is promoted according to the policy. Emits Hit or Miss.
	Get(k K) (V, bool)

	// GetOrCompute returns the cached value for k or computes it with fn
	// outside the data lock and stores it. A compute error is returned
	// as is and nothing is stored. See ComputeMode for concurrent misses.
	GetOrCompute(ctx context.Context, k K, fn ComputeFunc[K, V]) (V, error)

	// GetOrLoad is GetOrCompute with Options.Loader.
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Remove deletes k if present and returns true on success.
	// Emits Removed only when the key was present.
	Remove(k K) bool

	// Clear drops every entry. Each call emits exactly one Cleared event.
	Clear()

	// Has reports whether k is resident without touching recency or
	// emitting events.
	Has(k K) bool

	// Keys returns a snapshot of resident keys. With an order-aware policy
	// (LRU) keys are listed from next victim to most recently used.
	Keys() []K

	// Len returns the number of resident entries.
	Len() int

	// Cap returns the capacity bound.
	Cap() int

	// Stats returns a snapshot of hit/miss/eviction/compute counters.
	Stats() Stats

	// Subscribe registers fn for events of one kind.
	Subscribe(kind EventKind, fn Observer[K, V]) Subscription

	// SubscribeAll registers fn for every event kind.
	SubscribeAll(fn Observer[K, V]) Subscription

	// Unsubscribe removes a subscription; false if it was unknown.
	Unsubscribe(s Subscription) bool

	// Close marks the cache closed: writes become no-ops, reads miss and
	// GetOrCompute returns ErrClosed. Close is idempotent and returns nil.
	Close() error
}

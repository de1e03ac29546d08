package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/IvanBrykalov/lru/policy"
)

// DefaultCapacity is used when Options.Capacity is zero.
const DefaultCapacity = 1024

// ComputeFunc produces the value for a missing key. It runs outside the
// cache's data lock.
type ComputeFunc[K comparable, V any] func(ctx context.Context, k K) (V, error)

// ComputeMode selects how GetOrCompute treats concurrent misses on one key.
type ComputeMode uint8

const (
	// ComputeRace lets every concurrent miss run its own computation; the
	// results are stored with Set, so the last writer wins.
	ComputeRace ComputeMode = iota
	// ComputeCoalesce runs at most one computation per key at a time. Late
	// callers wait for the leader's result (or their own ctx).
	ComputeCoalesce
)

func (m ComputeMode) String() string {
	if m == ComputeCoalesce {
		return "coalesce"
	}
	return "race"
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Hooks are called outside the data lock.
type Metrics interface {
	Hit()
	Miss()
	Evict()
	Size(entries int)
	// Compute observes one GetOrCompute/GetOrLoad computation.
	Compute(d time.Duration, err error)
}

// Options configures the cache behavior. Zero values are safe;
// sane defaults are applied in New():
//   - Capacity 0   => DefaultCapacity
//   - nil Policy   => LRU
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => slog.Default()
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. Negative values are rejected and
	// 0 selects DefaultCapacity; use Disabled for a cache that keeps
	// nothing. Capacity is ignored when Disabled is set.
	Capacity int

	// Disabled forces a capacity of 0: every insert is evicted immediately
	// (Added is followed by Evicted). Capacity is ignored when set.
	Disabled bool

	// Policy is a pluggable eviction policy (LRU/2Q/…); nil => LRU by default.
	Policy policy.Policy[K]

	// Compute selects the GetOrCompute behavior on concurrent misses.
	Compute ComputeMode

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader ComputeFunc[K, V]

	// Clone, if set, copies values on the way into the cache and on the way
	// out (Get, GetOrCompute, event payloads). Use it for reference types
	// (slices, maps, pointers) so callers never alias stored values.
	Clone func(V) V

	// OnObserverError receives *ObserverError for every failing observer.
	// Nil => the failure is logged at Warn level.
	OnObserverError func(err error)

	// Logger is used for construction details and observer failures.
	Logger *slog.Logger

	// Metrics receives Hit/Miss/Evict/Size/Compute signals.
	Metrics Metrics
}

// Package cache provides a generic, thread-safe, in-memory key/value cache
// with pluggable eviction policies (LRU by default), lifecycle events,
// optional coalesced computation of missing values and lightweight metrics
// hooks.
//
// Design
//
//   - Concurrency: one data lock guards the key→value store and the eviction
//     strategy's bookkeeping, so both change in the same critical section and
//     the strategy always tracks exactly the resident keys.
//
//   - Policies: the eviction policy is pluggable via the policy package.
//     LRU is the default; a 2Q policy (resists scan pollution) is provided.
//     The cache asks the strategy for victims whenever it holds more than
//     Capacity entries. Capacity 0 (Options.Disabled) evicts every insert.
//
//   - Events: Subscribe/SubscribeAll register observers for Added, Updated,
//     Removed, Evicted, Cleared, Hit and Miss. Events are collected under
//     the data lock and delivered after it is released, synchronously and in
//     subscription order, so an observer may call back into the cache. A
//     failing observer is reported to Options.OnObserverError (or logged)
//     and never affects other observers or the operation's result.
//
//   - GetOrCompute: the compute function runs outside the data lock. With
//     ComputeRace (default) concurrent misses each compute and the last
//     write wins; with ComputeCoalesce at most one computation per key is in
//     flight and late callers wait for it. Errors are returned unchanged and
//     nothing is stored.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size/Compute signals.
//     By default NoopMetrics is used; plug the Prometheus adapter
//     (metrics/prom) to export metrics.
//
// Basic usage
//
//	c := cache.MustNew[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// Observing evictions
//
//	c.Subscribe(cache.EventEvicted, func(ev cache.Event[string, []byte]) error {
//	    log.Printf("evicted %s", ev.Key)
//	    return nil
//	})
//
// With GetOrCompute (coalesced)
//
//	c := cache.MustNew[string, string](cache.Options[string, string]{
//	    Capacity: 1024,
//	    Compute:  cache.ComputeCoalesce,
//	})
//	v, err := c.GetOrCompute(ctx, "key", func(ctx context.Context, k string) (string, error) {
//	    return "v:" + k, nil // e.g. fetch from DB
//	})
//
// Using an alternative policy (2Q)
//
//	c := cache.MustNew[string, string](cache.Options[string, string]{
//	    Capacity: 50_000,
//	    Policy:   twoq.New[string](12_500 /* A1in ≈ 25% */, 25_000 /* ghosts */),
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Typical operation cost is
// O(1) expected time: one map access and a constant amount of list fixes.
// Eviction work is O(1) per removed item.
package cache

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/lru/internal/singleflight"
	"github.com/IvanBrykalov/lru/internal/util"
	"github.com/IvanBrykalov/lru/policy"
	"github.com/IvanBrykalov/lru/policy/lru"
)

// cache is an in-memory KV store with a pluggable eviction strategy.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	// ---- guarded by mu (the data lock) ----
	mu       sync.RWMutex
	store    *store[K, V]
	strategy policy.Strategy[K]
	inflight singleflight.Table[K, V] // ComputeCoalesce only

	capacity int // immutable
	events   *Notifier[K, V]
	closed   atomic.Bool
	opt      Options[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_           util.CacheLinePad
	hits        util.PaddedAtomicUint64
	misses      util.PaddedAtomicUint64
	evicts      util.PaddedAtomicUint64
	computes    util.PaddedAtomicUint64
	computeErrs util.PaddedAtomicUint64
}

// pending carries what an operation must report once the data lock is
// released: events for observers plus metric deltas.
type pending[K comparable, V any] struct {
	events  []Event[K, V]
	evicted int
	size    int
}

// New constructs a cache with the provided Options.
// Defaults:
//   - Capacity 0   -> DefaultCapacity (1024)
//   - nil Policy   -> LRU
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> slog.Default()
//
// A negative Capacity fails with ErrInvalidCapacity.
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	capacity := opt.Capacity
	switch {
	case opt.Disabled:
		capacity = 0
	case capacity < 0:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	case capacity == 0:
		capacity = DefaultCapacity
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K]()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	c := &cache[K, V]{
		store:    newStore[K, V](capacity),
		strategy: opt.Policy.New(capacity),
		capacity: capacity,
		opt:      opt,
	}
	c.events = NewNotifier[K, V](c.observerFailed)

	opt.Logger.Debug("cache created",
		slog.Int("capacity", capacity),
		slog.String("policy", fmt.Sprintf("%T", c.strategy)),
		slog.String("compute", opt.Compute.String()),
	)
	// return pointer-to-impl as the interface (avoids unexported-return lint)
	return c, nil
}

// MustNew is like New but panics on invalid Options.
func MustNew[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	c, err := New(opt)
	if err != nil {
		panic(err)
	}
	return c
}

// ---- Cache[K,V] implementation ----

// Set inserts or updates k→v and enforces capacity.
func (c *cache[K, V]) Set(k K, v V) {
	if c.closed.Load() {
		return
	}
	v = c.clone(v)

	c.mu.Lock()
	p := c.setLocked(k, v)
	c.mu.Unlock()

	c.flush(p)
}

// Add inserts k→v only if absent.
func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	v = c.clone(v)

	c.mu.Lock()
	if c.store.containsKey(k) {
		c.mu.Unlock()
		return false
	}
	p := c.setLocked(k, v)
	c.mu.Unlock()

	c.flush(p)
	return true
}

// Get returns the value for k and a presence flag.
// On hit, the entry is promoted according to the active policy.
func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}

	c.mu.Lock()
	v, ok := c.store.get(k)
	if ok {
		c.strategy.OnAccess(k)
	}
	c.mu.Unlock()

	c.lookedUp(k, v, ok)
	if !ok {
		return v, false
	}
	return c.clone(v), true
}

// GetOrCompute returns the value for k; on miss it runs fn outside the
// data lock and stores the result.
func (c *cache[K, V]) GetOrCompute(ctx context.Context, k K, fn ComputeFunc[K, V]) (V, error) {
	var zero V
	if fn == nil {
		return zero, ErrNilCompute
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if c.opt.Compute == ComputeCoalesce {
		return c.computeCoalesced(ctx, k, fn)
	}

	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	v, err := c.compute(ctx, k, fn)
	if err != nil {
		return zero, err
	}
	c.Set(k, v) // last writer wins
	return v, nil
}

// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}
	return c.GetOrCompute(ctx, k, c.opt.Loader)
}

// Remove deletes k if present and returns true on success.
func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}

	c.mu.Lock()
	v, ok := c.store.get(k)
	if ok {
		c.store.remove(k)
		c.strategy.OnRemove(k)
	}
	p := pending[K, V]{size: c.store.size()}
	c.mu.Unlock()

	if !ok {
		return false
	}
	// Explicit Remove is not counted as an eviction in metrics.
	p.events = []Event[K, V]{{Kind: EventRemoved, Key: k, Value: v}}
	c.flush(p)
	return true
}

// Clear drops every entry and emits one Cleared event.
func (c *cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	n := c.store.size()
	c.store.clear()
	c.strategy.OnClear()
	c.mu.Unlock()

	c.flush(pending[K, V]{events: []Event[K, V]{{Kind: EventCleared, Count: n}}})
}

// Has reports residency without promoting the entry.
func (c *cache[K, V]) Has(k K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.containsKey(k)
}

// Keys returns a snapshot of resident keys.
func (c *cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if o, ok := c.strategy.(policy.Ordered[K]); ok {
		return o.Keys()
	}
	return c.store.keys()
}

// Len returns the number of resident entries.
func (c *cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.size()
}

// Cap returns the capacity bound (fixed at construction).
func (c *cache[K, V]) Cap() int { return c.capacity }

// Stats returns a snapshot of the counters.
func (c *cache[K, V]) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evicts.Load(),
		Computes:      c.computes.Load(),
		ComputeErrors: c.computeErrs.Load(),
	}
}

func (c *cache[K, V]) Subscribe(kind EventKind, fn Observer[K, V]) Subscription {
	return c.events.Subscribe(kind, fn)
}

func (c *cache[K, V]) SubscribeAll(fn Observer[K, V]) Subscription {
	return c.events.SubscribeAll(fn)
}

func (c *cache[K, V]) Unsubscribe(s Subscription) bool { return c.events.Unsubscribe(s) }

// Close marks the cache as closed. Future operations are ignored.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// -------------------- internals --------------------

// setLocked stores k→v, informs the strategy and evicts until the cache is
// within capacity. mu must be held.
func (c *cache[K, V]) setLocked(k K, v V) pending[K, V] {
	var p pending[K, V]
	kind := EventUpdated
	if c.store.put(k, v) {
		kind = EventAdded
		c.strategy.OnAdd(k)
	} else {
		c.strategy.OnAccess(k)
	}
	if c.events.Len() > 0 {
		p.events = append(p.events, Event[K, V]{Kind: kind, Key: k, Value: v})
	}
	c.enforceCapacityLocked(&p)
	p.size = c.store.size()
	return p
}

// enforceCapacityLocked removes the strategy's victims until
// size <= capacity. mu must be held.
func (c *cache[K, V]) enforceCapacityLocked(p *pending[K, V]) {
	for c.store.size() > c.capacity {
		victims := c.strategy.SelectVictims(c.store.size())
		if len(victims) == 0 {
			// A strategy that tracks fewer keys than the store is broken;
			// stop rather than spin.
			c.opt.Logger.Error("cache: strategy returned no victims",
				slog.Int("size", c.store.size()),
				slog.Int("tracked", c.strategy.Len()),
			)
			return
		}
		for _, vk := range victims {
			v, ok := c.store.get(vk)
			c.strategy.OnRemove(vk)
			if !ok {
				continue
			}
			c.store.remove(vk)
			p.evicted++
			if c.events.Len() > 0 {
				p.events = append(p.events, Event[K, V]{Kind: EventEvicted, Key: vk, Value: v})
			}
		}
	}
}

// flush reports metrics and delivers events. mu must NOT be held.
func (c *cache[K, V]) flush(p pending[K, V]) {
	if p.evicted > 0 {
		c.evicts.Add(uint64(p.evicted))
		for i := 0; i < p.evicted; i++ {
			c.opt.Metrics.Evict()
		}
	}
	c.opt.Metrics.Size(p.size)
	c.publish(p.events...)
}

// lookedUp records a hit or miss. mu must NOT be held.
func (c *cache[K, V]) lookedUp(k K, v V, hit bool) {
	if hit {
		c.hits.Add(1)
		c.opt.Metrics.Hit()
		c.publish(Event[K, V]{Kind: EventHit, Key: k, Value: v})
		return
	}
	c.misses.Add(1)
	c.opt.Metrics.Miss()
	c.publish(Event[K, V]{Kind: EventMiss, Key: k})
}

func (c *cache[K, V]) publish(events ...Event[K, V]) {
	if len(events) == 0 || c.events.Len() == 0 {
		return
	}
	if c.opt.Clone != nil {
		for i := range events {
			if events[i].Kind.hasValue() {
				events[i].Value = c.opt.Clone(events[i].Value)
			}
		}
	}
	c.events.Publish(events...)
}

// compute runs fn and records its outcome. A panicking fn is counted as a
// failed computation before the panic continues.
func (c *cache[K, V]) compute(ctx context.Context, k K, fn ComputeFunc[K, V]) (V, error) {
	start := time.Now()
	var err error
	panicked := true
	defer func() {
		if panicked {
			err = ErrComputePanicked
		}
		c.computes.Add(1)
		if err != nil {
			c.computeErrs.Add(1)
		}
		c.opt.Metrics.Compute(time.Since(start), err)
	}()

	v, err := fn(ctx, k)
	panicked = false
	return v, err
}

// computeCoalesced implements ComputeCoalesce: the cache lookup and the
// in-flight check happen under one lock acquisition; late joiners wait.
func (c *cache[K, V]) computeCoalesced(ctx context.Context, k K, fn ComputeFunc[K, V]) (V, error) {
	c.mu.Lock()
	if v, ok := c.store.get(k); ok {
		c.strategy.OnAccess(k)
		c.mu.Unlock()
		c.lookedUp(k, v, true)
		return c.clone(v), nil
	}
	call, leader := c.inflight.Join(k)
	c.mu.Unlock()

	var zero V
	c.lookedUp(k, zero, false)

	if !leader {
		v, err := call.Wait(ctx)
		if err != nil {
			return zero, err
		}
		return c.clone(v), nil
	}
	return c.lead(ctx, k, fn, call)
}

// lead runs the computation for a coalesced miss. The in-flight marker is
// cleared before followers are released, on success, failure or panic.
// Clone and strategy hooks may panic too; the cleanup then runs with mu
// already held.
func (c *cache[K, V]) lead(ctx context.Context, k K, fn ComputeFunc[K, V], call *singleflight.Call[V]) (V, error) {
	resolved, locked := false, false
	defer func() {
		if resolved {
			return
		}
		// Something panicked: release followers, let the panic continue.
		if !locked {
			c.mu.Lock()
		}
		c.inflight.Forget(k)
		c.mu.Unlock()
		var zero V
		call.Resolve(zero, ErrComputePanicked)
	}()

	v, err := c.compute(ctx, k, fn)
	var cp V
	if err == nil {
		cp = c.clone(v)
	}

	var p pending[K, V]
	stored := false
	c.mu.Lock()
	locked = true
	c.inflight.Forget(k)
	if err == nil && !c.closed.Load() {
		p = c.setLocked(k, cp)
		stored = true
	}
	locked = false
	c.mu.Unlock()

	resolved = true
	call.Resolve(v, err)
	if stored {
		c.flush(p)
	}

	if err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

func (c *cache[K, V]) clone(v V) V {
	if c.opt.Clone == nil {
		return v
	}
	return c.opt.Clone(v)
}

// observerFailed is the Notifier error sink. A panicking OnObserverError is
// logged and does not reach the operation that produced the event.
func (c *cache[K, V]) observerFailed(err error) {
	if c.opt.OnObserverError == nil {
		c.opt.Logger.Warn("cache observer failed", slog.Any("err", err))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.opt.Logger.Warn("cache observer error handler panicked",
				slog.Any("panic", r),
				slog.Any("err", err),
			)
		}
	}()
	c.opt.OnObserverError(err)
}

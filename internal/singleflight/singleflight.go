// Package singleflight tracks in-flight computations per key so that
// concurrent misses can share one result.
package singleflight

import (
	"context"
)

// Table maps keys to in-flight calls.
//
// Table has no lock of its own: the owner guards every Join and Forget with
// the same lock that protects the data the computation fills, so "is the key
// cached?" and "is it being computed?" are answered atomically.
//
// Concurrency notes:
//   - The first caller for a given key becomes the leader and runs the work
//     outside the owner's lock.
//   - The leader must Forget the key (under the owner's lock) before it
//     Resolves the call, so a released follower never finds a stale marker.
//   - Publishing (val, err) happens-before close(done), so reads after
//     <-done observe the final values.
type Table[K comparable, V any] struct {
	m map[K]*Call[V]
}

// Call is one in-flight computation.
type Call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// Join returns the in-flight call for key, creating it if there is none.
// leader is true for the caller that created the call and must resolve it.
func (t *Table[K, V]) Join(key K) (c *Call[V], leader bool) {
	if c, ok := t.m[key]; ok {
		return c, false
	}
	if t.m == nil {
		t.m = make(map[K]*Call[V])
	}
	c = &Call[V]{done: make(chan struct{})}
	t.m[key] = c
	return c, true
}

// Forget removes the in-flight marker for key.
func (t *Table[K, V]) Forget(key K) { delete(t.m, key) }

// Len returns the number of in-flight calls.
func (t *Table[K, V]) Len() int { return len(t.m) }

// Resolve publishes the result and wakes followers. It must be called
// exactly once, by the leader.
func (c *Call[V]) Resolve(v V, err error) {
	c.val, c.err = v, err
	close(c.done)
}

// Done is closed once the call is resolved.
func (c *Call[V]) Done() <-chan struct{} { return c.done }

// Wait blocks until the call is resolved or ctx is cancelled. Cancelling
// ctx unblocks only this follower; it does NOT cancel the leader's work.
func (c *Call[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

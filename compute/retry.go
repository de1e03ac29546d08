// Package compute provides helpers that wrap cache.ComputeFunc values.
package compute

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/IvanBrykalov/lru/cache"
)

// Defaults applied by Retry before caller options.
const (
	DefaultAttempts = 3
	DefaultDelay    = 50 * time.Millisecond
)

// Retry wraps fn so that failed computations are retried with backoff.
// Only the last error is returned. The context passed to the wrapped
// function bounds the whole retry loop; caller options cannot override it.
//
// Wrap an error with retry.Unrecoverable to stop retrying early.
//
//	c.GetOrCompute(ctx, k, compute.Retry(fetch, retry.Attempts(5)))
func Retry[K comparable, V any](fn cache.ComputeFunc[K, V], opts ...retry.Option) cache.ComputeFunc[K, V] {
	if fn == nil {
		return nil
	}
	base := make([]retry.Option, 0, len(opts)+4)
	base = append(base,
		retry.Attempts(DefaultAttempts),
		retry.Delay(DefaultDelay),
		retry.LastErrorOnly(true),
	)
	base = append(base, opts...)

	return func(ctx context.Context, k K) (V, error) {
		all := append(base[:len(base):len(base)], retry.Context(ctx))
		return retry.NewWithData[V](all...).Do(func() (V, error) {
			return fn(ctx, k)
		})
	}
}

// Loader adapts a context-free fetch function into a ComputeFunc, the
// shape most data-source clients expose.
func Loader[K comparable, V any](fetch func(K) (V, error)) cache.ComputeFunc[K, V] {
	if fetch == nil {
		return nil
	}
	return func(_ context.Context, k K) (V, error) { return fetch(k) }
}

package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned by New when Options.Capacity is negative.
	ErrInvalidCapacity = errors.New("cache: capacity must not be negative")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrNilCompute is returned by GetOrCompute when fn is nil.
	ErrNilCompute = errors.New("cache: nil compute function")

	// ErrClosed is returned by GetOrCompute after Close.
	ErrClosed = errors.New("cache: closed")

	// ErrComputePanicked is handed to callers waiting on a coalesced
	// computation whose function panicked. The panic itself is re-raised in
	// the goroutine that ran the function.
	ErrComputePanicked = errors.New("cache: compute function panicked")
)

// ObserverError reports an observer that returned an error or panicked.
// It is passed to Options.OnObserverError and never to the caller of the
// operation that produced the event.
type ObserverError struct {
	Kind         EventKind
	Subscription Subscription
	Err          error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("cache: observer %d failed on %s event: %v", e.Subscription, e.Kind, e.Err)
}

func (e *ObserverError) Unwrap() error { return e.Err }

package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// EventKind identifies a cache lifecycle transition.
type EventKind uint8

const (
	// EventAdded means a new key was inserted.
	EventAdded EventKind = iota + 1
	// EventUpdated means the value of a resident key was replaced.
	EventUpdated
	// EventRemoved means a resident key was deleted by Remove.
	EventRemoved
	// EventEvicted means a key was dropped by the eviction strategy.
	EventEvicted
	// EventCleared means Clear was called (emitted on every call).
	EventCleared
	// EventHit means a lookup found the key.
	EventHit
	// EventMiss means a lookup did not find the key.
	EventMiss
)

var kindNames = [...]string{
	EventAdded:   "added",
	EventUpdated: "updated",
	EventRemoved: "removed",
	EventEvicted: "evicted",
	EventCleared: "cleared",
	EventHit:     "hit",
	EventMiss:    "miss",
}

func (k EventKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// hasValue reports whether events of this kind carry a Value.
func (k EventKind) hasValue() bool {
	switch k {
	case EventAdded, EventUpdated, EventRemoved, EventEvicted, EventHit:
		return true
	}
	return false
}

// Event describes one committed cache transition.
// Key is zero for EventCleared; Value is zero for EventMiss and EventCleared.
// Count is the number of entries dropped by a Clear.
type Event[K comparable, V any] struct {
	Kind  EventKind
	Key   K
	Value V
	Count int
}

// Observer receives events. A returned error (or a panic) is reported to the
// cache's error sink and does not affect other observers.
type Observer[K comparable, V any] func(Event[K, V]) error

// Subscription is a handle returned by Subscribe; zero is never issued.
type Subscription uint64

type subscriber[K comparable, V any] struct {
	id   Subscription
	kind EventKind // 0 = all kinds
	fn   Observer[K, V]
}

// Notifier is a process-local pub/sub for cache events.
//
// Subscriptions are guarded by their own lock, independent of any cache data
// lock. Publish snapshots the subscriber list and delivers synchronously, in
// subscription order, without holding that lock, so observers may subscribe,
// unsubscribe or call back into the cache. An observer removed while an
// event is being delivered may still receive that event.
type Notifier[K comparable, V any] struct {
	mu   sync.RWMutex
	subs []subscriber[K, V] // copy-on-write; never mutated in place
	next Subscription

	n       atomic.Int32
	onError func(error)
}

// NewNotifier returns an empty Notifier. onError receives *ObserverError
// values for failing observers; nil discards them.
func NewNotifier[K comparable, V any](onError func(error)) *Notifier[K, V] {
	return &Notifier[K, V]{onError: onError}
}

// Subscribe registers fn for events of the given kind.
func (n *Notifier[K, V]) Subscribe(kind EventKind, fn Observer[K, V]) Subscription {
	if kind == 0 {
		panic("cache: Subscribe requires an event kind; use SubscribeAll")
	}
	return n.add(kind, fn)
}

// SubscribeAll registers fn for every event kind.
func (n *Notifier[K, V]) SubscribeAll(fn Observer[K, V]) Subscription {
	return n.add(0, fn)
}

func (n *Notifier[K, V]) add(kind EventKind, fn Observer[K, V]) Subscription {
	if fn == nil {
		panic("cache: nil Observer")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.next++
	subs := make([]subscriber[K, V], len(n.subs), len(n.subs)+1)
	copy(subs, n.subs)
	n.subs = append(subs, subscriber[K, V]{id: n.next, kind: kind, fn: fn})
	n.n.Store(int32(len(n.subs)))
	return n.next
}

// Unsubscribe removes a subscription. It returns false if the handle is
// unknown or was already removed.
func (n *Notifier[K, V]) Unsubscribe(id Subscription) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subs {
		if s.id != id {
			continue
		}
		subs := make([]subscriber[K, V], 0, len(n.subs)-1)
		subs = append(subs, n.subs[:i]...)
		n.subs = append(subs, n.subs[i+1:]...)
		n.n.Store(int32(len(n.subs)))
		return true
	}
	return false
}

// Len returns the number of active subscriptions.
func (n *Notifier[K, V]) Len() int { return int(n.n.Load()) }

// Publish delivers events in order to every matching observer.
func (n *Notifier[K, V]) Publish(events ...Event[K, V]) {
	if len(events) == 0 || n.Len() == 0 {
		return
	}
	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()

	for _, ev := range events {
		for _, s := range subs {
			if s.kind != 0 && s.kind != ev.Kind {
				continue
			}
			if err := deliver(s.fn, ev); err != nil && n.onError != nil {
				n.onError(&ObserverError{Kind: ev.Kind, Subscription: s.id, Err: err})
			}
		}
	}
}

// deliver calls fn, turning a panic into an error.
func deliver[K comparable, V any](fn Observer[K, V], ev Event[K, V]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ev)
}

package lru

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/lru/policy"
)

// --- test harness ---

// harness mimics how the cache drives a strategy: it owns the resident set
// and removes whatever SelectVictims proposes.
type harness[K comparable] struct {
	s       policy.Strategy[K]
	present map[K]struct{}
}

func newHarness[K comparable](capacity int) *harness[K] {
	return &harness[K]{s: New[K]().New(capacity), present: map[K]struct{}{}}
}

func (h *harness[K]) set(k K) (evicted []K) {
	if _, ok := h.present[k]; ok {
		h.s.OnAccess(k)
	} else {
		h.present[k] = struct{}{}
		h.s.OnAdd(k)
	}
	evicted = h.s.SelectVictims(len(h.present))
	for _, v := range evicted {
		delete(h.present, v)
		h.s.OnRemove(v)
	}
	return evicted
}

func (h *harness[K]) get(k K) bool {
	if _, ok := h.present[k]; !ok {
		return false
	}
	h.s.OnAccess(k)
	return true
}

func (h *harness[K]) remove(k K) bool {
	if _, ok := h.present[k]; !ok {
		return false
	}
	delete(h.present, k)
	h.s.OnRemove(k)
	return true
}

func keysOf[K comparable](s policy.Strategy[K]) []K {
	return s.(policy.Ordered[K]).Keys()
}

// --- tests ---

// N+1 distinct inserts into capacity N evict exactly the first key.
func TestLRU_FirstInsertedIsEvicted(t *testing.T) {
	t.Parallel()

	h := newHarness[string](3)
	for _, k := range []string{"a", "b", "c"} {
		if ev := h.set(k); len(ev) != 0 {
			t.Fatalf("no eviction expected while filling, got %v", ev)
		}
	}
	ev := h.set("d")
	if !slices.Equal(ev, []string{"a"}) {
		t.Fatalf("want [a] evicted, got %v", ev)
	}
	if got := keysOf(h.s); !slices.Equal(got, []string{"b", "c", "d"}) {
		t.Fatalf("LRU->MRU order: got %v", got)
	}
}

// Access refresh: a, b, get(a), c evicts b.
func TestLRU_AccessRefreshesRecency(t *testing.T) {
	t.Parallel()

	h := newHarness[string](2)
	h.set("a")
	h.set("b")
	if !h.get("a") {
		t.Fatal("a must be resident")
	}
	ev := h.set("c")
	if !slices.Equal(ev, []string{"b"}) {
		t.Fatalf("want [b] evicted, got %v", ev)
	}
}

// Overwriting a key counts as a use.
func TestLRU_OverwritePromotes(t *testing.T) {
	t.Parallel()

	h := newHarness[int](2)
	h.set(1)
	h.set(2)
	h.set(1) // overwrite: 1 becomes MRU
	ev := h.set(3)
	require.Equal(t, []int{2}, ev)
}

// Capacity 0 disables the cache: every insert is its own victim.
func TestLRU_ZeroCapacityEvictsEverything(t *testing.T) {
	t.Parallel()

	h := newHarness[string](0)
	for _, k := range []string{"x", "y"} {
		ev := h.set(k)
		require.Equal(t, []string{k}, ev)
		require.Zero(t, h.s.Len())
	}
	require.Equal(t, 0, NewStrategy[string](-5).Capacity(), "negative capacity clamps to 0")
}

// SelectVictims returns several keys when the size overshoots by more than one.
func TestLRU_SelectVictimsMany(t *testing.T) {
	t.Parallel()

	s := New[int]().New(2)
	for i := 0; i < 5; i++ {
		s.OnAdd(i)
	}
	require.Equal(t, []int{0, 1, 2}, s.SelectVictims(5))
	require.Equal(t, 5, s.Len(), "SelectVictims must not untrack keys")
	require.Nil(t, s.SelectVictims(2))
}

// Unknown keys are ignored by OnAccess/OnRemove; OnAdd twice does not duplicate.
func TestLRU_UnknownKeysAndDuplicates(t *testing.T) {
	t.Parallel()

	s := New[string]().New(4)
	s.OnAccess("ghost")
	s.OnRemove("ghost")
	require.Zero(t, s.Len())

	s.OnAdd("a")
	s.OnAdd("b")
	s.OnAdd("a")
	require.Equal(t, 2, s.Len())
	require.Equal(t, []string{"b", "a"}, keysOf(s))
}

// Removed slots are recycled and the list stays consistent.
func TestLRU_RemoveAndReuseSlots(t *testing.T) {
	t.Parallel()

	s := New[int]().New(10).(*lru[int])
	for i := 0; i < 4; i++ {
		s.OnAdd(i)
	}
	s.OnRemove(0) // tail
	s.OnRemove(3) // head
	s.OnRemove(1) // middle
	require.Equal(t, []int{2}, s.Keys())
	require.Len(t, s.free, 3)

	s.OnAdd(7)
	s.OnAdd(8)
	require.Len(t, s.slots, 4, "arena must reuse freed slots")
	require.Equal(t, []int{2, 7, 8}, s.Keys())
}

func TestLRU_OnClear(t *testing.T) {
	t.Parallel()

	s := New[string]().New(3)
	s.OnAdd("a")
	s.OnAdd("b")
	s.OnClear()
	require.Zero(t, s.Len())
	require.Empty(t, keysOf(s))
	require.Nil(t, s.SelectVictims(0))

	s.OnAdd("c")
	require.Equal(t, []string{"c"}, keysOf(s))
}

// Differential test against hashicorp/golang-lru's simplelru as a reference
// model: after every operation the recency order must match.
func TestLRU_MatchesReferenceModel(t *testing.T) {
	t.Parallel()

	const capacity = 8
	ref, err := simplelru.NewLRU[int, struct{}](capacity, nil)
	require.NoError(t, err)
	h := newHarness[int](capacity)

	r := rand.New(rand.NewSource(42))
	for step := 0; step < 20_000; step++ {
		k := r.Intn(24)
		switch op := r.Intn(10); {
		case op < 5:
			h.set(k)
			ref.Add(k, struct{}{})
		case op < 8:
			_, refOK := ref.Get(k)
			if got := h.get(k); got != refOK {
				t.Fatalf("step %d: get(%d)=%v, reference %v", step, k, got, refOK)
			}
		default:
			if got, want := h.remove(k), ref.Remove(k); got != want {
				t.Fatalf("step %d: remove(%d)=%v, reference %v", step, k, got, want)
			}
		}

		if !slices.Equal(keysOf(h.s), ref.Keys()) {
			t.Fatalf("step %d: order %v, reference %v", step, keysOf(h.s), ref.Keys())
		}
		if h.s.Len() != len(h.present) {
			t.Fatalf("step %d: strategy tracks %d keys, resident %d", step, h.s.Len(), len(h.present))
		}
	}
}

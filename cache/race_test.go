package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanBrykalov/lru/policy/twoq"
)

// N workers each run 10,000 mixed Set/Get/Remove operations on a shared
// cache. Must finish without deadlock, stay within capacity and keep the
// store and strategy in lock-step. Should pass under `-race`.
func TestRace_Basic(t *testing.T) {
	for _, tc := range []struct {
		name string
		opt  Options[string, []byte]
	}{
		{"lru", Options[string, []byte]{Capacity: 512}},
		{"2q", Options[string, []byte]{Capacity: 512, Policy: twoq.New[string](128, 256)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCache(t, tc.opt)

			// A live observer exercises the event path concurrently.
			var evicted atomic.Int64
			c.Subscribe(EventEvicted, func(Event[string, []byte]) error {
				evicted.Add(1)
				return nil
			})

			workers := 4 * runtime.GOMAXPROCS(0)
			const opsPerWorker = 10_000
			const keyspace = 4_096

			done := make(chan struct{})
			var wg sync.WaitGroup
			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func(id int) {
					defer wg.Done()
					r := rand.New(rand.NewSource(int64(id) * 9973))
					for i := 0; i < opsPerWorker; i++ {
						k := "k:" + strconv.Itoa(r.Intn(keyspace))
						switch r.Intn(100) {
						case 0, 1, 2, 3, 4, 5, 6, 7, 8, 9: // ~10% Remove
							c.Remove(k)
						case 10, 11, 12, 13, 14, 15, 16, 17, 18, 19,
							20, 21, 22, 23, 24, 25, 26, 27, 28, 29: // ~20% Set
							c.Set(k, []byte("x"))
						default: // ~70% Get
							c.Get(k)
						}
					}
				}(w)
			}
			go func() { wg.Wait(); close(done) }()

			select {
			case <-done:
			case <-time.After(30 * time.Second):
				t.Fatal("workers did not finish: deadlock?")
			}

			if n := c.Len(); n > c.Cap() {
				t.Fatalf("Len %d exceeds capacity %d", n, c.Cap())
			}
			requireConsistent(t, c)
			if got, want := uint64(evicted.Load()), c.Stats().Evictions; got != want {
				t.Fatalf("observed %d evictions, counted %d", got, want)
			}
		})
	}
}

// One hundred goroutines call GetOrCompute on the same key concurrently in
// coalesced mode. The function should run at most once.
func TestRace_GetOrCompute(t *testing.T) {
	var calls int64

	c := newTestCache(t, Options[string, string]{Capacity: 1024, Compute: ComputeCoalesce})
	fn := func(_ context.Context, k string) (string, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(2 * time.Millisecond) // simulate I/O
		return "v:" + k, nil
	}

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := c.GetOrCompute(context.Background(), key, fn)
			if err != nil {
				t.Errorf("GetOrCompute error: %v", err)
				return
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("compute should run at most once, got %d", got)
	}

	// Subsequent call should be a pure cache hit.
	if v, err := c.GetOrCompute(context.Background(), key, fn); err != nil || v != "v:"+key {
		t.Fatalf("second GetOrCompute failed: v=%q err=%v", v, err)
	}
}

// Racing mode on many keys: concurrent misses may compute twice, but the
// cache ends consistent and every stored value is a computed one.
func TestRace_GetOrComputeRacing(t *testing.T) {
	c := newTestCache(t, Options[int, int]{Capacity: 64})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2_000; i++ {
				k := i % 128
				v, err := c.GetOrCompute(context.Background(), k, func(_ context.Context, k int) (int, error) {
					return k * 2, nil
				})
				if err != nil || v != k*2 {
					t.Errorf("k=%d v=%d err=%v", k, v, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	requireConsistent(t, c)
}

// Subscribing and unsubscribing while the cache is busy must not block
// either side.
func TestRace_SubscribeWhileMutating(t *testing.T) {
	c := newTestCache(t, Options[int, int]{Capacity: 32})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			c.Set(i%100, i)
			c.Get(i % 50)
		}
	}()

	for i := 0; i < 1_000; i++ {
		s := c.SubscribeAll(func(Event[int, int]) error { return nil })
		if !c.Unsubscribe(s) {
			t.Fatalf("unsubscribe %d failed", s)
		}
	}
	close(stop)
	wg.Wait()
	requireConsistent(t, c)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/lru/cache"
	pmet "github.com/IvanBrykalov/lru/metrics/prom"
	"github.com/IvanBrykalov/lru/policy/twoq"
)

// report is the outcome of one workload run.
type report struct {
	cfg     config
	elapsed time.Duration

	ops, reads, writes, computes uint64
	hits, misses                 uint64
	evictEvents                  uint64
	stats                        cache.Stats
	size                         int
}

func (r report) print(w io.Writer) {
	hitRate := 0.0
	if r.reads > 0 {
		hitRate = float64(r.hits) / float64(r.reads) * 100
	}
	fmt.Fprintf(w, "policy=%s compute=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n",
		r.cfg.Policy, r.cfg.Compute, r.cfg.Capacity, r.cfg.Workers, r.cfg.Keys, r.elapsed, r.cfg.Seed)
	fmt.Fprintf(w, "ops=%d (%.0f ops/s)  reads=%d  writes=%d  computes=%d\n",
		r.ops, float64(r.ops)/r.elapsed.Seconds(), r.reads, r.writes, r.computes)
	fmt.Fprintf(w, "hits=%d  misses=%d  hit-rate=%.2f%%\n", r.hits, r.misses, hitRate)
	fmt.Fprintf(w, "evictions=%d (observed %d)  compute-errors=%d\n",
		r.stats.Evictions, r.evictEvents, r.stats.ComputeErrors)
	fmt.Fprintf(w, "Len()=%d\n", r.size)
}

func buildCache(cfg config, m cache.Metrics, logger *slog.Logger) (cache.Cache[string, string], error) {
	opt := cache.Options[string, string]{
		Capacity: cfg.Capacity,
		Metrics:  m,
		Logger:   logger,
	}
	if cfg.Capacity == 0 {
		opt.Disabled = true
	}
	if cfg.Policy == "2q" {
		// split 2Q queues as a simple default
		opt.Policy = twoq.New[string](cfg.Capacity/4, cfg.Capacity/2)
	}
	if cfg.Compute == "coalesce" {
		opt.Compute = cache.ComputeCoalesce
	}
	return cache.New(opt)
}

func serve(ctx context.Context, g *errgroup.Group, name, addr string, h http.Handler, logger *slog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		logger.Info("serving", slog.String("endpoint", name), slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener failed", slog.String("endpoint", name), slog.Any("err", err))
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func run(ctx context.Context, cfg config, logger *slog.Logger) (report, error) {
	rep := report{cfg: cfg}

	srvCtx, stopServers := context.WithCancel(ctx)
	var servers errgroup.Group
	defer func() {
		stopServers()
		if err := servers.Wait(); err != nil {
			logger.Warn("server shutdown", slog.Any("err", err))
		}
	}()

	// ---- pprof server ----
	if cfg.PprofAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		serve(srvCtx, &servers, "pprof", cfg.PprofAddr, mux, logger)
	}

	// ---- Prometheus metrics ----
	reg := prometheus.NewRegistry()
	metrics := pmet.New(reg, "lru", "bench", nil) // namespace "lru" for consistency
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		serve(srvCtx, &servers, "metrics", cfg.MetricsAddr, mux, logger)
	}

	// ---- Build cache ----
	c, err := buildCache(cfg, metrics, logger)
	if err != nil {
		return rep, err
	}
	defer func() { _ = c.Close() }()

	var evictEvents atomic.Uint64
	c.Subscribe(cache.EventEvicted, func(cache.Event[string, string]) error {
		evictEvents.Add(1)
		return nil
	})

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := cfg.Preload
	if pl == 0 {
		pl = cfg.Capacity / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Set(k, "v"+strconv.Itoa(i))
	}

	load := func(ctx context.Context, k string) (string, error) {
		if cfg.Latency > 0 {
			t := time.NewTimer(cfg.Latency)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-t.C:
			}
		}
		return "computed:" + k, nil
	}

	// ---- Load generation ----
	var reads, writes, computes, hits, misses, total atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	logger.Info("workload started",
		slog.Int("workers", cfg.Workers),
		slog.Duration("duration", cfg.Duration),
		slog.Int("preloaded", c.Len()),
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	keysMax := uint64(cfg.Keys - 1)
	for w := 0; w < cfg.Workers; w++ {
		id := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(cfg.Seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, cfg.ZipfS, cfg.ZipfV, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for gctx.Err() == nil {
				total.Add(1)
				if int(localR.Int31n(100)) >= cfg.Reads {
					writes.Add(1)
					c.Set(keyByZipf(), "v"+strconv.Itoa(localR.Int()))
					continue
				}

				reads.Add(1)
				if int(localR.Int31n(100)) < cfg.Computes {
					computes.Add(1)
					k := keyByZipf()
					had := c.Has(k)
					if _, err := c.GetOrCompute(gctx, k, load); err != nil {
						if gctx.Err() != nil {
							return nil
						}
						return fmt.Errorf("compute %s: %w", k, err)
					}
					if had {
						hits.Add(1)
					} else {
						misses.Add(1)
					}
					continue
				}
				if _, ok := c.Get(keyByZipf()); ok {
					hits.Add(1)
				} else {
					misses.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	rep.elapsed = time.Since(start)

	rep.ops = total.Load()
	rep.reads = reads.Load()
	rep.writes = writes.Load()
	rep.computes = computes.Load()
	rep.hits = hits.Load()
	rep.misses = misses.Load()
	rep.evictEvents = evictEvents.Load()
	rep.stats = c.Stats()
	rep.size = c.Len()

	logger.Debug("workload finished", slog.Uint64("ops", rep.ops), slog.Duration("elapsed", rep.elapsed))
	return rep, nil
}

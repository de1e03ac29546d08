// Command bench runs a synthetic workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	def := defaultConfig()
	return &cli.Command{
		Name:      "bench",
		Usage:     "drive a concurrent workload through the cache",
		UsageText: "bench [--config file.yaml] [options]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML or JSON file with workload settings; flags override it"},

			&cli.IntFlag{Name: "cap", Usage: "cache capacity (entries)", Value: def.Capacity},
			&cli.StringFlag{Name: "policy", Usage: "eviction policy: lru | 2q", Value: def.Policy},
			&cli.StringFlag{Name: "compute", Usage: "miss computation mode: race | coalesce", Value: def.Compute},

			&cli.IntFlag{Name: "workers", Usage: "number of worker goroutines", Value: def.Workers},
			&cli.DurationFlag{Name: "duration", Usage: "benchmark duration", Value: def.Duration},
			&cli.IntFlag{Name: "reads", Usage: "read percentage [0..100]", Value: def.Reads},
			&cli.IntFlag{Name: "computes", Usage: "percentage of reads that use GetOrCompute [0..100]", Value: def.Computes},
			&cli.DurationFlag{Name: "latency", Usage: "simulated compute latency", Value: def.Latency},

			&cli.IntFlag{Name: "keys", Usage: "keyspace size", Value: def.Keys},
			&cli.FloatFlag{Name: "zipf_s", Usage: "Zipf s > 1 (skew)", Value: def.ZipfS},
			&cli.FloatFlag{Name: "zipf_v", Usage: "Zipf v", Value: def.ZipfV},
			&cli.Int64Flag{Name: "seed", Usage: "random seed", Value: def.Seed, HideDefault: true},
			&cli.IntFlag{Name: "preload", Usage: "preload entries (0 = cap/2)", Value: def.Preload},

			&cli.StringFlag{Name: "pprof", Usage: "serve pprof at addr (e.g. :6060); empty = disabled"},
			&cli.StringFlag{Name: "http", Usage: "serve Prometheus metrics at addr; empty = disabled", Value: def.MetricsAddr},
			&cli.StringFlag{Name: "log-level", Usage: "debug | info | warn | error", Value: def.LogLevel},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			rep, err := run(ctx, cfg, logger)
			if err != nil {
				return err
			}
			rep.print(os.Stdout)
			return nil
		},
	}
}

// resolveConfig layers defaults, the --config file and explicitly set flags.
func resolveConfig(cmd *cli.Command) (config, error) {
	cfg := defaultConfig()
	if path := cmd.String("config"); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if cmd.IsSet("cap") {
		cfg.Capacity = cmd.Int("cap")
	}
	if cmd.IsSet("policy") {
		cfg.Policy = cmd.String("policy")
	}
	if cmd.IsSet("compute") {
		cfg.Compute = cmd.String("compute")
	}
	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("duration") {
		cfg.Duration = cmd.Duration("duration")
	}
	if cmd.IsSet("reads") {
		cfg.Reads = cmd.Int("reads")
	}
	if cmd.IsSet("computes") {
		cfg.Computes = cmd.Int("computes")
	}
	if cmd.IsSet("latency") {
		cfg.Latency = cmd.Duration("latency")
	}
	if cmd.IsSet("keys") {
		cfg.Keys = cmd.Int("keys")
	}
	if cmd.IsSet("zipf_s") {
		cfg.ZipfS = cmd.Float("zipf_s")
	}
	if cmd.IsSet("zipf_v") {
		cfg.ZipfV = cmd.Float("zipf_v")
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Int64("seed")
	}
	if cmd.IsSet("preload") {
		cfg.Preload = cmd.Int("preload")
	}
	if cmd.IsSet("pprof") {
		cfg.PprofAddr = cmd.String("pprof")
	}
	if cmd.IsSet("http") {
		cfg.MetricsAddr = cmd.String("http")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}

	return cfg, cfg.validate()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestLoadConfigBytes(t *testing.T) {
	t.Parallel()

	yml := []byte(`
capacity: 512
policy: 2q
compute: coalesce
duration: 250ms
zipf_s: 1.3
`)
	cfg := defaultConfig()
	require.NoError(t, loadConfigBytes(yml, ".yaml", &cfg))
	assert.Equal(t, 512, cfg.Capacity)
	assert.Equal(t, "2q", cfg.Policy)
	assert.Equal(t, "coalesce", cfg.Compute)
	assert.Equal(t, 250*time.Millisecond, cfg.Duration)
	assert.InDelta(t, 1.3, cfg.ZipfS, 1e-9)
	assert.Equal(t, 80, cfg.Reads, "unset keys keep their defaults")

	js := []byte(`{"reads": 50, "keys": 10}`)
	require.NoError(t, loadConfigBytes(js, ".json", &cfg))
	assert.Equal(t, 50, cfg.Reads)
	assert.Equal(t, 10, cfg.Keys)
	assert.Equal(t, 512, cfg.Capacity)

	require.ErrorIs(t, loadConfigBytes(nil, ".toml", &cfg), errUnsupportedFormat)
	require.Error(t, loadConfigBytes([]byte("capacity: [oops"), ".yml", &cfg))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	ok := defaultConfig()
	require.NoError(t, ok.validate())

	for name, mut := range map[string]func(*config){
		"negative capacity": func(c *config) { c.Capacity = -1 },
		"bad policy":        func(c *config) { c.Policy = "lfu" },
		"bad compute":       func(c *config) { c.Compute = "eager" },
		"reads over 100":    func(c *config) { c.Reads = 101 },
		"computes negative": func(c *config) { c.Computes = -5 },
		"no workers":        func(c *config) { c.Workers = 0 },
		"no keys":           func(c *config) { c.Keys = 0 },
		"flat zipf":         func(c *config) { c.ZipfS = 1 },
		"zero duration":     func(c *config) { c.Duration = 0 },
	} {
		cfg := defaultConfig()
		mut(&cfg)
		assert.ErrorIs(t, cfg.validate(), errInvalidConfig, name)
	}
}

// Flags that are set explicitly win over the config file.
func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capacity: 64\npolicy: 2q\nworkers: 3\n"), 0o600))

	cmd := newCommand()
	var got config
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		var err error
		got, err = resolveConfig(cmd)
		return err
	}
	require.NoError(t, cmd.Run(context.Background(), []string{"bench", "--config", path, "--policy", "lru"}))

	assert.Equal(t, 64, got.Capacity)
	assert.Equal(t, "lru", got.Policy)
	assert.Equal(t, 3, got.Workers)
}

func TestResolveConfig_RejectsZeroWorkers(t *testing.T) {
	t.Parallel()

	cmd := newCommand()
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		_, err := resolveConfig(cmd)
		return err
	}
	err := cmd.Run(context.Background(), []string{"bench", "--workers", "0"})
	require.ErrorIs(t, err, errInvalidConfig)
}

func TestRun_ShortWorkload(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Capacity = 128
	cfg.Keys = 1024
	cfg.Workers = 4
	cfg.Duration = 50 * time.Millisecond
	cfg.Computes = 30
	cfg.Compute = "coalesce"
	cfg.MetricsAddr = ""
	cfg.Seed = 1
	require.NoError(t, cfg.validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rep, err := run(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.Positive(t, rep.ops)
	assert.Equal(t, rep.ops, rep.reads+rep.writes)
	assert.LessOrEqual(t, rep.size, cfg.Capacity)
	assert.Equal(t, rep.stats.Evictions, rep.evictEvents)

	var buf bytes.Buffer
	rep.print(&buf)
	assert.Contains(t, buf.String(), "policy=lru compute=coalesce cap=128")
}

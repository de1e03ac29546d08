package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

var (
	errUnsupportedFormat = errors.New("bench: unsupported config format")
	errInvalidConfig     = errors.New("bench: invalid config")
)

// config is the workload description. Values come from defaults, then an
// optional YAML/JSON file, then explicitly set flags.
type config struct {
	Capacity int    `koanf:"capacity"`
	Policy   string `koanf:"policy"`  // lru | 2q
	Compute  string `koanf:"compute"` // race | coalesce

	Workers  int           `koanf:"workers"`
	Duration time.Duration `koanf:"duration"`
	Reads    int           `koanf:"reads"`    // percent of ops that are Get
	Computes int           `koanf:"computes"` // percent of reads routed through GetOrCompute
	Latency  time.Duration `koanf:"latency"`  // simulated compute latency

	Keys    int     `koanf:"keys"`
	ZipfS   float64 `koanf:"zipf_s"`
	ZipfV   float64 `koanf:"zipf_v"`
	Seed    int64   `koanf:"seed"`
	Preload int     `koanf:"preload"`

	PprofAddr   string `koanf:"pprof"`
	MetricsAddr string `koanf:"http"`
	LogLevel    string `koanf:"log_level"`
}

func defaultConfig() config {
	return config{
		Capacity:    100_000,
		Policy:      "lru",
		Compute:     "race",
		Workers:     2 * runtime.GOMAXPROCS(0),
		Duration:    10 * time.Second,
		Reads:       80,
		Keys:        1_000_000,
		ZipfS:       1.1,
		ZipfV:       1.0,
		Seed:        time.Now().UnixNano(),
		MetricsAddr: ":8080",
		LogLevel:    "info",
	}
}

// loadConfigFile overlays the file at path onto cfg. The format is taken
// from the extension (.yaml, .yml or .json).
func loadConfigFile(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bench: read config: %w", err)
	}
	return loadConfigBytes(data, filepath.Ext(path), cfg)
}

func loadConfigBytes(data []byte, ext string, cfg *config) error {
	var parser koanf.Parser
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %q", errUnsupportedFormat, ext)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return fmt.Errorf("bench: parse config: %w", err)
		}
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("bench: decode config: %w", err)
	}
	return nil
}

func (c config) validate() error {
	switch {
	case c.Capacity < 0:
		return fmt.Errorf("%w: capacity %d", errInvalidConfig, c.Capacity)
	case c.Policy != "lru" && c.Policy != "2q":
		return fmt.Errorf("%w: policy %q (use lru or 2q)", errInvalidConfig, c.Policy)
	case c.Compute != "race" && c.Compute != "coalesce":
		return fmt.Errorf("%w: compute %q (use race or coalesce)", errInvalidConfig, c.Compute)
	case c.Reads < 0 || c.Reads > 100:
		return fmt.Errorf("%w: reads %d not in [0,100]", errInvalidConfig, c.Reads)
	case c.Computes < 0 || c.Computes > 100:
		return fmt.Errorf("%w: computes %d not in [0,100]", errInvalidConfig, c.Computes)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", errInvalidConfig)
	case c.Keys < 1:
		return fmt.Errorf("%w: keys must be positive", errInvalidConfig)
	case c.ZipfS <= 1 || c.ZipfV < 1:
		return fmt.Errorf("%w: zipf requires s > 1 and v >= 1", errInvalidConfig)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", errInvalidConfig)
	}
	return nil
}

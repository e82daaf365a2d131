// Package config handles strata.toml isolate configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/strata/heap"
)

// FileName is the configuration file strata looks for.
const FileName = "strata.toml"

// Duration wraps time.Duration so TOML values like "30s" parse
// directly.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents a strata.toml configuration.
type Config struct {
	Isolate   IsolateConfig   `toml:"isolate"`
	Collector CollectorConfig `toml:"collector"`
	Log       LogConfig       `toml:"log"`

	// Dir is the directory containing the strata.toml file (set at load time).
	Dir string `toml:"-"`
}

// IsolateConfig sizes the heap and toggles the shortcut cache.
type IsolateConfig struct {
	EnableFieldShortcuts bool `toml:"enable-field-shortcuts"`
	InitialPageBudget    int  `toml:"initial-page-budget"`
	MaxPages             int  `toml:"max-pages"`
}

// CollectorConfig tunes compaction and the background collector.
type CollectorConfig struct {
	FragmentationThreshold float64  `toml:"fragmentation-threshold"`
	Auto                   bool     `toml:"auto"`
	AutoInterval           Duration `toml:"auto-interval"`
	OccupancyTrigger       float64  `toml:"occupancy-trigger"`
}

// LogConfig names the commonlog hierarchy root.
type LogConfig struct {
	Name string `toml:"name"`
}

// Default returns the configuration used when no strata.toml exists.
// Every field is usable as-is.
func Default() *Config {
	return &Config{
		Isolate: IsolateConfig{
			EnableFieldShortcuts: true,
			InitialPageBudget:    1,
			MaxPages:             0,
		},
		Collector: CollectorConfig{
			FragmentationThreshold: heap.DefaultFragmentationThreshold,
			Auto:                   false,
			AutoInterval:           Duration(heap.DefaultCollectInterval),
			OccupancyTrigger:       0.85,
		},
		Log: LogConfig{
			Name: "strata",
		},
	}
}

// Load parses a strata.toml file from the given directory. Fields
// absent from the file keep their defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir to find a strata.toml file, then
// loads and returns the config. Returns nil if no config file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	if c.Isolate.InitialPageBudget < 0 {
		return fmt.Errorf("isolate.initial-page-budget must be >= 0, got %d", c.Isolate.InitialPageBudget)
	}
	if c.Isolate.MaxPages < 0 {
		return fmt.Errorf("isolate.max-pages must be >= 0, got %d", c.Isolate.MaxPages)
	}
	if t := c.Collector.FragmentationThreshold; t < 0 || t > 1 {
		return fmt.Errorf("collector.fragmentation-threshold must be in [0, 1], got %v", t)
	}
	if t := c.Collector.OccupancyTrigger; t < 0 || t > 1 {
		return fmt.Errorf("collector.occupancy-trigger must be in [0, 1], got %v", t)
	}
	if c.Collector.Auto && c.Collector.AutoInterval <= 0 {
		return fmt.Errorf("collector.auto-interval must be positive when collector.auto is set, got %v", c.Collector.AutoInterval.Std())
	}
	return nil
}

// Options translates the configuration into heap.Options. The heap
// package stays independent of the config layer; this is the only
// bridge between the two.
func (c *Config) Options() heap.Options {
	opts := heap.DefaultOptions()
	opts.InitialPages = c.Isolate.InitialPageBudget
	opts.MaxPages = c.Isolate.MaxPages
	opts.EnableFieldShortcuts = c.Isolate.EnableFieldShortcuts
	opts.FragmentationThreshold = c.Collector.FragmentationThreshold
	if c.Log.Name != "" {
		opts.LogName = c.Log.Name + ".heap"
	}
	return opts
}

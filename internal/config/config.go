// Package config holds the tunables for indexing, watching and
// persistence. Defaults are safe for interactive use; a TOML file can
// override any field.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	// Root is the directory tree under analysis.
	Root string `toml:"root"`

	// Exclude lists glob patterns excluded from walks, on top of the
	// built-in VCS/build/cache exclusions.
	Exclude []string `toml:"exclude"`

	// RespectGitignore layers the project .gitignore onto the excludes.
	RespectGitignore bool `toml:"respect_gitignore"`

	// Watch enables the background file watcher after the initial index.
	Watch bool `toml:"watch"`

	// Watcher selects the watch backend: "poll" or "notify".
	Watcher string `toml:"watcher"`

	// Workers bounds parallel parsing during directory indexing.
	// 0 means NumCPU.
	Workers int `toml:"workers"`

	// PollIntervalMs is the change-scan period of the polling watcher.
	PollIntervalMs int `toml:"poll_interval_ms"`

	// DebounceMs coalesces rapid events for the same path.
	DebounceMs int `toml:"debounce_ms"`

	// BatchSize caps how many queued changes one batch consumes.
	BatchSize int `toml:"batch_size"`

	// BatchTimeoutMs flushes a non-empty queue that has not reached
	// BatchSize.
	BatchTimeoutMs int `toml:"batch_timeout_ms"`

	// RevalidateHops is how many dependent hops are re-checked after a
	// change batch. 1 covers direct dependents.
	RevalidateHops int `toml:"revalidate_hops"`

	// SnapshotPath is where the knowledge graph persists. Empty disables
	// persistence.
	SnapshotPath string `toml:"snapshot_path"`

	// ShutdownTimeoutMs bounds how long shutdown waits for in-flight
	// work.
	ShutdownTimeoutMs int `toml:"shutdown_timeout_ms"`
}

// Watch backends.
const (
	WatcherPoll   = "poll"
	WatcherNotify = "notify"
)

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Root:              ".",
		RespectGitignore:  true,
		Watch:             true,
		Watcher:           WatcherPoll,
		Workers:           runtime.NumCPU(),
		PollIntervalMs:    2000,
		DebounceMs:        200,
		BatchSize:         50,
		BatchTimeoutMs:    1000,
		RevalidateHops:    1,
		ShutdownTimeoutMs: 5000,
	}
}

// Load reads a TOML config file over the defaults. A missing file is not
// an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the runtime cannot work with and fills zero
// values with defaults.
func (c *Config) Validate() error {
	def := Default()
	if c.Root == "" {
		c.Root = def.Root
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = def.PollIntervalMs
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchTimeoutMs <= 0 {
		c.BatchTimeoutMs = def.BatchTimeoutMs
	}
	if c.RevalidateHops < 0 {
		return fmt.Errorf("revalidate_hops must not be negative")
	}
	if c.Watcher == "" {
		c.Watcher = def.Watcher
	}
	if c.Watcher != WatcherPoll && c.Watcher != WatcherNotify {
		return fmt.Errorf("unknown watcher backend %q", c.Watcher)
	}
	if c.ShutdownTimeoutMs <= 0 {
		c.ShutdownTimeoutMs = def.ShutdownTimeoutMs
	}
	return nil
}

func (c Config) PollInterval() time.Duration { return time.Duration(c.PollIntervalMs) * time.Millisecond }
func (c Config) DebounceWindow() time.Duration { return time.Duration(c.DebounceMs) * time.Millisecond }
func (c Config) BatchTimeout() time.Duration { return time.Duration(c.BatchTimeoutMs) * time.Millisecond }
func (c Config) ShutdownTimeout() time.Duration { return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond }

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	def := Default()
	if cfg.BatchSize != def.BatchSize || cfg.RevalidateHops != def.RevalidateHops {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codescope.toml")
	content := `root = "/srv/project"
poll_interval_ms = 500
batch_size = 10
exclude = ["*.generated.py"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Root != "/srv/project" || cfg.BatchSize != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval())
	}
	if cfg.BatchTimeoutMs != Default().BatchTimeoutMs {
		t.Fatalf("unset fields must keep defaults: %+v", cfg)
	}
	if len(cfg.Exclude) != 1 {
		t.Fatalf("exclude not loaded: %+v", cfg.Exclude)
	}
}

func TestValidateRejectsNegativeHops(t *testing.T) {
	cfg := Default()
	cfg.RevalidateHops = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateWatcherBackend(t *testing.T) {
	cfg := Default()
	cfg.Watcher = "inotify"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}

	cfg.Watcher = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty watcher must default: %v", err)
	}
	if cfg.Watcher != WatcherPoll {
		t.Fatalf("unexpected watcher: %q", cfg.Watcher)
	}
}

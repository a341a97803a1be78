package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/pkg/formats"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitFor(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("events channel closed before expected event")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPollingSourceLifecycle(t *testing.T) {
	dir := t.TempDir()
	src := NewPollingSource(dir, 20*time.Millisecond, nil, formats.NewDefaultRegistry())
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	path := filepath.Join(dir, "app.py")
	if err := os.WriteFile(path, []byte("X = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	normalized := model.NormalizePath(path)

	created := waitFor(t, src.Events(), func(ev Event) bool {
		return ev.Path == normalized && ev.Op == OpCreated
	})
	if created.At.IsZero() {
		t.Fatal("event timestamp not set")
	}

	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	waitFor(t, src.Events(), func(ev Event) bool {
		return ev.Path == normalized && ev.Op == OpModified
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, src.Events(), func(ev Event) bool {
		return ev.Path == normalized && ev.Op == OpDeleted
	})
}

func TestPollingSourceIgnoresUnsupportedAndExcluded(t *testing.T) {
	dir := t.TempDir()
	src := NewPollingSource(dir, 20*time.Millisecond, nil, formats.NewDefaultRegistry())
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	if err := os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "node_modules", "dep.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "raw.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	watched := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(watched, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, src.Events(), func(ev Event) bool { return ev.Op == OpCreated })
	if ev.Path != model.NormalizePath(watched) {
		t.Fatalf("expected only the supported file to surface, got %s", ev.Path)
	}
}

func TestPollingSourceStopClosesEvents(t *testing.T) {
	dir := t.TempDir()
	src := NewPollingSource(dir, 20*time.Millisecond, nil, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()

	select {
	case _, ok := <-src.Events():
		if ok {
			t.Fatal("expected closed channel after stop")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after stop")
	}
}

func TestNotifySourceDetectsChanges(t *testing.T) {
	dir := t.TempDir()
	src, err := NewNotifySource(dir, 30*time.Millisecond, nil, formats.NewDefaultRegistry())
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	path := filepath.Join(dir, "svc.py")
	if err := os.WriteFile(path, []byte("A = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	normalized := model.NormalizePath(path)

	waitFor(t, src.Events(), func(ev Event) bool {
		return ev.Path == normalized && ev.Op == OpCreated
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, src.Events(), func(ev Event) bool {
		return ev.Path == normalized && ev.Op == OpDeleted
	})
}

func TestNotifySourceDebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	src, err := NewNotifySource(dir, 50*time.Millisecond, nil, formats.NewDefaultRegistry())
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	path := filepath.Join(dir, "burst.py")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("B = 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	normalized := model.NormalizePath(path)

	// The write burst lands as a single creation.
	ev := waitFor(t, src.Events(), func(ev Event) bool { return ev.Path == normalized })
	if ev.Op != OpCreated {
		t.Fatalf("expected coalesced creation, got %v", ev.Op)
	}

	select {
	case extra := <-src.Events():
		if extra.Path == normalized {
			t.Fatalf("burst must coalesce to one event, got extra %v", extra.Op)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

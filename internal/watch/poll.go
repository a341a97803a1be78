package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/codescope-dev/codescope/internal/ignore"
	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/internal/parser"
)

// PollingSource detects changes by rescanning the tree at a fixed
// interval and diffing (path, mtime) snapshots. It needs no platform
// support and never misses events, at the cost of scan latency.
type PollingSource struct {
	root     string
	interval time.Duration
	matcher  *ignore.Matcher
	registry *parser.Registry

	events chan Event
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mtimes map[string]time.Time
}

func NewPollingSource(root string, interval time.Duration, matcher *ignore.Matcher, registry *parser.Registry) *PollingSource {
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}
	return &PollingSource{
		root:     root,
		interval: interval,
		matcher:  matcher,
		registry: registry,
		events:   make(chan Event, 256),
		mtimes:   make(map[string]time.Time),
	}
}

func (p *PollingSource) Events() <-chan Event { return p.events }

// Start primes the mtime snapshot and launches the scan loop. Changes
// that predate Start are not reported.
func (p *PollingSource) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mtimes = p.scan()

	p.wg.Add(1)
	go p.loop(ctx)

	slog.Info("polling watcher started",
		slog.String("root", p.root),
		slog.Duration("interval", p.interval),
		slog.Int("files", len(p.mtimes)))
	return nil
}

// Stop cancels the loop and waits for it to finish. The events channel
// closes once the loop exits.
func (p *PollingSource) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *PollingSource) loop(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := p.scan()
			p.emit(ctx, current)
			p.mtimes = current
		}
	}
}

// scan walks the tree and records the mtime of every watchable file.
// Walk errors are logged and skipped; a transiently unreadable file just
// surfaces as deleted until it is readable again.
func (p *PollingSource) scan() map[string]time.Time {
	current := make(map[string]time.Time, len(p.mtimes))

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("watch scan error", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel != "." && p.matcher.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.matcher.ShouldIgnore(rel, false) {
			return nil
		}
		if p.registry != nil && !p.registry.CanParse(path) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		current[model.NormalizePath(path)] = info.ModTime()
		return nil
	})
	if err != nil {
		slog.Warn("watch scan failed", slog.String("root", p.root), slog.String("error", err.Error()))
	}
	return current
}

func (p *PollingSource) emit(ctx context.Context, current map[string]time.Time) {
	now := time.Now()

	for path, mtime := range current {
		prev, existed := p.mtimes[path]
		switch {
		case !existed:
			p.send(ctx, Event{Path: path, Op: OpCreated, At: now})
		case mtime.After(prev):
			p.send(ctx, Event{Path: path, Op: OpModified, At: now})
		}
	}
	for path := range p.mtimes {
		if _, ok := current[path]; !ok {
			p.send(ctx, Event{Path: path, Op: OpDeleted, At: now})
		}
	}
}

func (p *PollingSource) send(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

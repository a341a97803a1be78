package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codescope-dev/codescope/internal/ignore"
	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/internal/parser"
)

// NotifySource pushes changes via fsnotify. Events for the same path
// within the debounce window collapse into one. New directories are
// added to the watch as they appear.
type NotifySource struct {
	root     string
	debounce time.Duration
	matcher  *ignore.Matcher
	registry *parser.Registry

	watcher *fsnotify.Watcher
	events  chan Event
	flushCh chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
}

func NewNotifySource(root string, debounce time.Duration, matcher *ignore.Matcher, registry *parser.Registry) (*NotifySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}
	return &NotifySource{
		root:     root,
		debounce: debounce,
		matcher:  matcher,
		registry: registry,
		watcher:  watcher,
		events:   make(chan Event, 256),
		flushCh:  make(chan struct{}, 1),
		pending:  make(map[string]Event),
	}, nil
}

func (n *NotifySource) Events() <-chan Event { return n.events }

func (n *NotifySource) Start(ctx context.Context) error {
	if err := n.addWatches(n.root); err != nil {
		n.watcher.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(1)
	go n.loop(ctx)

	slog.Info("fsnotify watcher started", slog.String("root", n.root))
	return nil
}

func (n *NotifySource) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}

func (n *NotifySource) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if rel != "." && n.matcher.ShouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		return n.watcher.Add(path)
	})
}

// loop is the only sender on the events channel; the debounce timer just
// signals it via flushCh.
func (n *NotifySource) loop(ctx context.Context) {
	defer n.wg.Done()
	defer close(n.events)
	defer n.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			n.mu.Lock()
			if n.timer != nil {
				n.timer.Stop()
			}
			n.mu.Unlock()
			return
		case <-n.flushCh:
			n.deliver(ctx, n.takePending())
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(ctx, ev)
		}
	}
}

func (n *NotifySource) handle(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(n.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}

	if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
		if ev.Op.Has(fsnotify.Create) && !n.matcher.ShouldIgnore(rel, true) {
			if addErr := n.watcher.Add(ev.Name); addErr != nil {
				slog.Warn("watch add failed", slog.String("dir", ev.Name), slog.String("error", addErr.Error()))
			}
		}
		return
	}

	if n.matcher.ShouldIgnore(rel, false) {
		return
	}
	if n.registry != nil && !n.registry.CanParse(ev.Name) {
		return
	}

	var op Op
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreated
	case ev.Op.Has(fsnotify.Write):
		op = OpModified
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDeleted
	default:
		return
	}

	n.enqueue(ctx, Event{Path: model.NormalizePath(ev.Name), Op: op, At: time.Now()})
}

// enqueue coalesces events per path for the debounce window. A deletion
// overrides a pending modification; a creation followed by writes stays
// a creation.
func (n *NotifySource) enqueue(ctx context.Context, ev Event) {
	if n.debounce <= 0 {
		n.deliver(ctx, []Event{ev})
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if prev, ok := n.pending[ev.Path]; ok {
		if prev.Op == OpCreated && ev.Op == OpModified {
			ev.Op = OpCreated
		}
	}
	n.pending[ev.Path] = ev

	if n.timer == nil {
		n.timer = time.AfterFunc(n.debounce, n.signalFlush)
	} else {
		n.timer.Reset(n.debounce)
	}
}

func (n *NotifySource) signalFlush() {
	select {
	case n.flushCh <- struct{}{}:
	default:
	}
}

func (n *NotifySource) takePending() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	batch := make([]Event, 0, len(n.pending))
	for _, ev := range n.pending {
		batch = append(batch, ev)
	}
	n.pending = make(map[string]Event)
	n.timer = nil
	return batch
}

func (n *NotifySource) deliver(ctx context.Context, batch []Event) {
	for _, ev := range batch {
		select {
		case n.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

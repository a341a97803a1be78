// Package updater keeps the symbol index and dependency graphs current
// as files change. Events from a watch source queue up and are consumed
// in batches: each batch applies every change to the index, rebuilds the
// dependency graphs exactly once, then re-validates stale dependents of
// the changed files.
package updater

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/codescope-dev/codescope/internal/index"
	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/internal/tracker"
	"github.com/codescope-dev/codescope/internal/watch"
)

// Options tune batching and dependent re-validation.
type Options struct {
	// BatchSize caps how many queued events one batch consumes.
	BatchSize int

	// BatchTimeout flushes a smaller batch when no more events arrive.
	BatchTimeout time.Duration

	// RevalidateHops is how many dependent hops to re-check after a
	// batch: 1 means direct dependents only.
	RevalidateHops int

	// ShutdownTimeout bounds how long Stop waits for the consumer.
	ShutdownTimeout time.Duration
}

func (o *Options) fill() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = time.Second
	}
	if o.RevalidateHops < 0 {
		o.RevalidateHops = 1
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
}

// Stats reports updater activity counters.
type Stats struct {
	Watching        bool `json:"watching"`
	QueuedUpdates   int  `json:"queued_updates"`
	BatchesApplied  int  `json:"batches_applied"`
	EventsProcessed int  `json:"events_processed"`
}

// Updater wires a watch source to the index and tracker.
type Updater struct {
	index   *index.SymbolIndex
	tracker *tracker.DependencyTracker
	source  watch.Source
	opts    Options

	mu       sync.Mutex
	queue    []watch.Event
	watching bool
	batches  int
	events   int

	cancel context.CancelFunc
	done   chan struct{}
}

func New(idx *index.SymbolIndex, tr *tracker.DependencyTracker, source watch.Source, opts Options) *Updater {
	opts.fill()
	return &Updater{
		index:   idx,
		tracker: tr,
		source:  source,
		opts:    opts,
	}
}

// Start launches the watch source and the batch consumer.
func (u *Updater) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	if err := u.source.Start(ctx); err != nil {
		cancel()
		return err
	}
	u.cancel = cancel
	u.done = make(chan struct{})

	u.mu.Lock()
	u.watching = true
	u.mu.Unlock()

	go u.consume(ctx)
	slog.Info("incremental updater started",
		slog.Int("batch_size", u.opts.BatchSize),
		slog.Int("revalidate_hops", u.opts.RevalidateHops))
	return nil
}

// Stop shuts the source and consumer down cooperatively: cancel, then
// join with a bounded wait. An in-flight batch finishes.
func (u *Updater) Stop() {
	if u.cancel == nil {
		return
	}
	u.cancel()
	u.source.Stop()

	select {
	case <-u.done:
	case <-time.After(u.opts.ShutdownTimeout):
		slog.Warn("updater consumer did not stop within timeout")
	}

	u.mu.Lock()
	u.watching = false
	u.mu.Unlock()
	slog.Info("incremental updater stopped")
}

// ForceUpdate queues the given paths as modifications, bypassing the
// watch source.
func (u *Updater) ForceUpdate(paths []string) {
	now := time.Now()
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, path := range paths {
		u.queue = append(u.queue, watch.Event{
			Path: model.NormalizePath(path),
			Op:   watch.OpModified,
			At:   now,
		})
	}
}

// UpdateFile applies a single change immediately, outside the batch
// queue. content may be pre-read. Returns false when indexing failed.
func (u *Updater) UpdateFile(path string, content []byte) bool {
	normalized := model.NormalizePath(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		u.index.RemoveFile(normalized)
		u.tracker.Rebuild(u.index.Records())
		slog.Debug("removed deleted file", slog.String("file", normalized))
		return true
	}
	if content == nil && !u.index.NeedsUpdate(path) {
		return true
	}

	ok := u.index.IndexFile(path, content)
	u.tracker.Rebuild(u.index.Records())
	if ok {
		u.revalidateDependents([]string{normalized})
	}
	return ok
}

// Stats returns current activity counters.
func (u *Updater) Stats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Stats{
		Watching:        u.watching,
		QueuedUpdates:   len(u.queue),
		BatchesApplied:  u.batches,
		EventsProcessed: u.events,
	}
}

// consume moves source events into the queue and applies batches when
// the queue reaches BatchSize or the timeout elapses with work pending.
func (u *Updater) consume(ctx context.Context) {
	defer close(u.done)

	timer := time.NewTimer(u.opts.BatchTimeout)
	defer timer.Stop()
	events := u.source.Events()

	for {
		select {
		case <-ctx.Done():
			// Drain whatever is already queued, then exit.
			for {
				batch := u.takeBatch()
				if len(batch) == 0 {
					return
				}
				u.applyBatch(batch)
			}
		case ev, ok := <-events:
			if !ok {
				for {
					batch := u.takeBatch()
					if len(batch) == 0 {
						return
					}
					u.applyBatch(batch)
				}
			}
			u.mu.Lock()
			u.queue = append(u.queue, ev)
			full := len(u.queue) >= u.opts.BatchSize
			u.mu.Unlock()
			if full {
				u.applyBatch(u.takeBatch())
			}
		case <-timer.C:
			if batch := u.takeBatch(); len(batch) > 0 {
				u.applyBatch(batch)
			}
			timer.Reset(u.opts.BatchTimeout)
		}
	}
}

// takeBatch pops up to BatchSize events off the queue.
func (u *Updater) takeBatch() []watch.Event {
	u.mu.Lock()
	defer u.mu.Unlock()

	n := len(u.queue)
	if n == 0 {
		return nil
	}
	if n > u.opts.BatchSize {
		n = u.opts.BatchSize
	}
	batch := make([]watch.Event, n)
	copy(batch, u.queue[:n])
	u.queue = u.queue[n:]
	return batch
}

// applyBatch applies every change, rebuilds the graphs once, then
// re-validates dependents of the files that changed.
func (u *Updater) applyBatch(batch []watch.Event) {
	// Later events for the same path supersede earlier ones.
	latest := make(map[string]watch.Event, len(batch))
	var order []string
	for _, ev := range batch {
		if _, seen := latest[ev.Path]; !seen {
			order = append(order, ev.Path)
		}
		latest[ev.Path] = ev
	}

	var updated []string
	for _, path := range order {
		ev := latest[path]
		switch ev.Op {
		case watch.OpDeleted:
			u.index.RemoveFile(ev.Path)
		default:
			if u.index.IndexFile(ev.Path, nil) {
				updated = append(updated, ev.Path)
			}
		}
	}

	u.tracker.Rebuild(u.index.Records())
	u.revalidateDependents(updated)

	u.mu.Lock()
	u.batches++
	u.events += len(batch)
	u.mu.Unlock()

	slog.Debug("applied change batch",
		slog.Int("events", len(batch)),
		slog.Int("updated", len(updated)))
}

// revalidateDependents re-indexes stale dependents of the changed files,
// following reverse edges for the configured number of hops.
func (u *Updater) revalidateDependents(changed []string) {
	if u.opts.RevalidateHops == 0 || len(changed) == 0 {
		return
	}

	frontier := changed
	visited := make(map[string]bool, len(changed))
	for _, f := range changed {
		visited[f] = true
	}

	for hop := 0; hop < u.opts.RevalidateHops; hop++ {
		var next []string
		for _, path := range frontier {
			for _, dependent := range u.tracker.FileDependents(path) {
				if visited[dependent] {
					continue
				}
				visited[dependent] = true
				next = append(next, dependent)
				if u.index.NeedsUpdate(dependent) {
					u.index.IndexFile(dependent, nil)
				}
			}
		}
		if len(next) == 0 {
			return
		}
		frontier = next
	}
}

package watch

import (
	"context"
	"sync"
)

// MergedSource fans several sources into one event stream, so multiple
// roots can feed a single consumer.
type MergedSource struct {
	sources []Source
	events  chan Event
}

// Merge combines sources into one. A single source is returned as-is.
func Merge(sources ...Source) Source {
	if len(sources) == 1 {
		return sources[0]
	}
	return &MergedSource{
		sources: sources,
		events:  make(chan Event, 256),
	}
}

func (m *MergedSource) Events() <-chan Event { return m.events }

// Start starts every underlying source and begins forwarding. If any
// source fails to start, the ones already started are stopped.
func (m *MergedSource) Start(ctx context.Context) error {
	for i, source := range m.sources {
		if err := source.Start(ctx); err != nil {
			for _, started := range m.sources[:i] {
				started.Stop()
			}
			return err
		}
	}

	var wg sync.WaitGroup
	for _, source := range m.sources {
		wg.Add(1)
		go func(in <-chan Event) {
			defer wg.Done()
			for ev := range in {
				select {
				case m.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(source.Events())
	}
	go func() {
		wg.Wait()
		close(m.events)
	}()
	return nil
}

// Stop stops every underlying source. The merged channel closes once all
// source channels do.
func (m *MergedSource) Stop() {
	for _, source := range m.sources {
		source.Stop()
	}
}

// Package watch abstracts how file changes are discovered. The updater
// consumes a Source; which backend produces the events is its caller's
// choice. The polling backend works everywhere; the fsnotify backend
// pushes events where the platform supports it.
package watch

import (
	"context"
	"time"
)

// Op classifies a file change.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpDeleted
)

func (op Op) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event is one observed file change. Path is normalized.
type Event struct {
	Path string
	Op   Op
	At   time.Time
}

// Source produces change events for a directory tree. Start is
// non-blocking; the source runs until ctx is canceled or Stop is called,
// then closes its Events channel.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan Event
}

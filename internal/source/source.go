// Package source supplies annotation events to pipeline runs. The event
// store is owned by an external collaborator; this package only reads it,
// plus an append path used by the import command to load exports locally.
package source

import (
	"context"

	"github.com/sells-group/curator-cli/internal/model"
)

// EventSource supplies annotation events, optionally filtered by a time
// window over the given field. A nil window means all history.
type EventSource interface {
	ReadEvents(ctx context.Context, window *model.TimeRange, field model.WindowField) ([]model.AnnotationEvent, error)
}

// EventStore is an EventSource that also accepts imported events.
type EventStore interface {
	EventSource

	AppendEvents(ctx context.Context, events []model.AnnotationEvent) (int, error)
	Migrate(ctx context.Context) error
	Close() error
}

// FilterWindow returns the subsequence of events whose windowed timestamp
// falls inside the range. Shared by backends so window semantics (closed
// interval, zero timestamps excluded from bounded ranges) never diverge.
func FilterWindow(events []model.AnnotationEvent, window *model.TimeRange, field model.WindowField) []model.AnnotationEvent {
	if window == nil {
		return events
	}
	out := make([]model.AnnotationEvent, 0, len(events))
	for _, ev := range events {
		if window.Contains(ev.WindowTime(field)) {
			out = append(out, ev)
		}
	}
	return out
}

// Static is an in-memory EventSource over a fixed event slice. Used in tests
// and for single-file runs that bypass the event store.
type Static struct {
	events []model.AnnotationEvent
}

// NewStatic copies the given events into a Static source.
func NewStatic(events []model.AnnotationEvent) *Static {
	copied := make([]model.AnnotationEvent, len(events))
	copy(copied, events)
	return &Static{events: copied}
}

func (s *Static) ReadEvents(_ context.Context, window *model.TimeRange, field model.WindowField) ([]model.AnnotationEvent, error) {
	out := make([]model.AnnotationEvent, len(s.events))
	copy(out, s.events)
	return FilterWindow(out, window, field), nil
}

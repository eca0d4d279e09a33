package testsupport

import (
	"context"
	"sync"

	"trackline/internal/events"
)

// EventRecorder is an in-memory events.Publisher.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *EventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *EventRecorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *EventRecorder) Types() []events.Type {
	recorded := r.Events()
	out := make([]events.Type, 0, len(recorded))
	for _, event := range recorded {
		out = append(out, event.Type)
	}
	return out
}

// Progress returns the progress values of recorded events for trackID.
func (r *EventRecorder) Progress(trackID int64) []int {
	var out []int
	for _, event := range r.Events() {
		if event.TrackID == trackID {
			out = append(out, event.Progress)
		}
	}
	return out
}

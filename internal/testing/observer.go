package testing

import (
	"sync"

	"github.com/imamik/ledgerlab/internal/provisioning"
)

// RecordingObserver is a concurrency-safe Observer that keeps every event.
type RecordingObserver struct {
	mu       sync.Mutex
	events   []provisioning.Event
	messages []string
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) Printf(format string, _ ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, format)
}

func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *RecordingObserver) Progress(phase string, _, _ int) {
	o.Event(provisioning.Event{Type: provisioning.EventProgress, Phase: phase})
}

// WithFields returns the observer itself so derived observers share one log.
func (o *RecordingObserver) WithFields(_ map[string]string) provisioning.Observer {
	return o
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), o.events...)
}

// EventsOfType returns the recorded events of type t.
func (o *RecordingObserver) EventsOfType(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range o.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

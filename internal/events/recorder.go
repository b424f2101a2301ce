package events

import (
	"sync"
)

// Recorder is an in-memory Sink that keeps every event it receives.
// It backs the blocking analyze endpoint and tests.
type Recorder struct {
	mu     sync.RWMutex
	events []*ProgressEvent
	err    error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every later Send return err, simulating a gone client.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Send implements Sink.
func (r *Recorder) Send(event *ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

// Events returns a copy of the recorded events in send order.
func (r *Recorder) Events() []*ProgressEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event, or nil.
func (r *Recorder) Last() *ProgressEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

// Terminal returns the terminal events received.
func (r *Recorder) Terminal() []*ProgressEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ProgressEvent
	for _, e := range r.events {
		if e.IsTerminal() {
			out = append(out, e)
		}
	}
	return out
}

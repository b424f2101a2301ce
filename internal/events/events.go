package events

import (
	"errors"

	"github.com/phrazzld/docstream/internal/domain"
)

// ErrClientGone is returned by Streamer.Emit when the sink can no longer be written.
var ErrClientGone = errors.New("client disconnected")

// ProgressEvent is a single frame of the progress stream.
type ProgressEvent struct {
	Status   domain.Status `json:"status"`
	Progress int           `json:"progress"`
	Message  string        `json:"message"`
	Data     any           `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`
}

// IsTerminal reports whether the event ends the stream.
func (e *ProgressEvent) IsTerminal() bool {
	return e != nil && e.Status.IsTerminal()
}

// Sink receives encoded progress events for one client.
type Sink interface {
	// Send delivers one event. An error means the client is unreachable.
	Send(event *ProgressEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event *ProgressEvent) error

// Send implements Sink.
func (f SinkFunc) Send(event *ProgressEvent) error {
	return f(event)
}

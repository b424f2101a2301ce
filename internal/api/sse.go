package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/docstream/internal/events"
)

// sseSink writes progress events as server-sent events, one JSON object per
// data frame, flushing after every frame.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
	// writeTimeout bounds each frame; zero leaves writes unbounded.
	writeTimeout time.Duration
}

// startSSE writes the stream headers and returns a sink for the response.
func startSSE(w http.ResponseWriter, taskID string, writeTimeout time.Duration) (*sseSink, error) {
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout; each frame gets its own deadline.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderTaskID, taskID)
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming unsupported: %w", err)
	}
	return &sseSink{w: w, rc: rc, writeTimeout: writeTimeout}, nil
}

// Send implements events.Sink. A client that does not take the frame within
// the write timeout makes Send fail.
func (s *sseSink) Send(ev *events.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if s.writeTimeout > 0 {
		// Writers without deadline support stay unbounded.
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}

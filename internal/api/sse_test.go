package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/events"
)

// deadlineRecorder is a ResponseRecorder that records write deadlines.
type deadlineRecorder struct {
	*httptest.ResponseRecorder

	mu        sync.Mutex
	deadlines []time.Time
}

func (d *deadlineRecorder) SetWriteDeadline(t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deadlines = append(d.deadlines, t)
	return nil
}

func TestSSESink_DeadlinePerFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		timeout       time.Duration
		wantDeadlines int
	}{
		{name: "bounded", timeout: time.Minute, wantDeadlines: 3},
		{name: "unbounded", timeout: 0, wantDeadlines: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}
			sink, err := startSSE(w, "task-1", tt.timeout)
			require.NoError(t, err)

			started := time.Now()
			require.NoError(t, sink.Send(&events.ProgressEvent{Status: domain.StatusUploading, Progress: 5}))
			require.NoError(t, sink.Send(&events.ProgressEvent{Status: domain.StatusParsing, Progress: 35}))

			require.Len(t, w.deadlines, tt.wantDeadlines)
			assert.True(t, w.deadlines[0].IsZero(), "the server write timeout is lifted first")
			for _, d := range w.deadlines[1:] {
				assert.False(t, d.Before(started.Add(tt.timeout)))
				assert.True(t, d.Before(time.Now().Add(tt.timeout+time.Second)))
			}

			assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
			assert.Equal(t, "task-1", w.Header().Get(HeaderTaskID))
			assert.Equal(t, 2, strings.Count(w.Body.String(), "data: "))
		})
	}
}

func TestSSESink_StalledClientFailsSend(t *testing.T) {
	t.Parallel()

	errc := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sink, err := startSSE(w, "task-1", 50*time.Millisecond)
		if err != nil {
			errc <- err
			return
		}
		ev := &events.ProgressEvent{Status: domain.StatusProcessing, Progress: 40, Message: strings.Repeat("x", 1<<20)}
		for {
			if err := sink.Send(ev); err != nil {
				errc <- err
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	// The client sends a request and then never reads the stream.
	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	bw := bufio.NewWriter(conn)
	_, err = fmt.Fprintf(bw, "GET /analyze/stream HTTP/1.1\r\nHost: %s\r\n\r\n", srv.Listener.Addr())
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("send to a stalled client never failed")
	}
}

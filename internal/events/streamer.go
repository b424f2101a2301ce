package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/task"
)

// Streamer produces the progress events of one task and writes them to one sink.
//
// Once Close has been called, or the task has been cancelled, every builder
// method returns nil. Complete and Fail share a single terminal slot: the first
// one to succeed wins and every later terminal call returns nil.
type Streamer struct {
	task   *task.Task
	sink   Sink
	logger *slog.Logger

	mu           sync.Mutex
	closed       bool
	finished     bool
	lastProgress int
	lastSent     time.Time
	timeFunc     func() time.Time
}

// NewStreamer binds a task to a sink.
func NewStreamer(t *task.Task, sink Sink, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		task:     t,
		sink:     sink,
		logger:   logger.With("component", "progress_streamer", "task_id", t.ID()),
		timeFunc: time.Now,
	}
}

// Progress records a non-terminal update on the task and returns the event to send.
// The event carries the task's stored progress, which never decreases.
func (s *Streamer) Progress(status domain.Status, progress int, message string) *ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.finished || s.task.IsCancelled() {
		return nil
	}

	stored, ok := s.task.Update(status, progress, message)
	if !ok {
		return nil
	}
	return &ProgressEvent{Status: status, Progress: stored, Message: message}
}

// KeepAlive repeats the last sent progress value with the task's current status.
func (s *Streamer) KeepAlive() *ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.finished || s.task.IsTerminal() {
		return nil
	}

	snap := s.task.Snapshot()
	return &ProgressEvent{Status: snap.Status, Progress: s.lastProgress, Message: snap.Message}
}

// Complete performs the terminal Complete transition and returns the final event.
func (s *Streamer) Complete(data any) *ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.finished {
		return nil
	}
	if !s.task.Complete(data, "analysis complete") {
		return nil
	}
	s.finished = true

	return &ProgressEvent{
		Status:   domain.StatusComplete,
		Progress: 100,
		Message:  "analysis complete",
		Data:     data,
	}
}

// Fail performs the terminal Error transition. The event keeps the last
// recorded progress so the stream stays non-decreasing.
func (s *Streamer) Fail(err error) *ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.finished || err == nil {
		return nil
	}

	msg := err.Error()
	if !s.task.Fail(msg) {
		return nil
	}
	s.finished = true

	return &ProgressEvent{
		Status:   domain.StatusError,
		Progress: s.task.Progress(),
		Message:  msg,
		Error:    msg,
		Code:     domain.ErrorCode(err),
	}
}

// Emit writes ev to the sink. Nil events and writes after Close are dropped.
// A sink failure is reported as ErrClientGone.
func (s *Streamer) Emit(ev *ProgressEvent) error {
	if ev == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if err := s.sink.Send(ev); err != nil {
		s.logger.Debug("progress event not delivered", "status", ev.Status, "error", err)
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	if ev.Progress > s.lastProgress {
		s.lastProgress = ev.Progress
	}
	s.lastSent = s.timeFunc()
	return nil
}

// SinceLastSend returns the time elapsed since the last delivered event.
func (s *Streamer) SinceLastSend() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSent.IsZero() {
		return 0
	}
	return s.timeFunc().Sub(s.lastSent)
}

// LastProgress returns the highest progress value delivered so far.
func (s *Streamer) LastProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProgress
}

// Finished reports whether a terminal event has been produced.
func (s *Streamer) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Close stops the stream. Later calls are no-ops.
func (s *Streamer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

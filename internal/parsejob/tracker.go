package parsejob

import (
	"sync/atomic"
	"time"

	"github.com/phrazzld/docstream/internal/domain"
)

// Sample is an immutable progress observation published by the job goroutine.
type Sample struct {
	Stage   domain.Status
	Percent int
	Message string
	At      time.Time
}

// Tracker is the single-writer, single-reader progress record shared between
// the background job and the heartbeat loop. Each Set publishes a new Sample
// with one atomic pointer swap.
type Tracker struct {
	current atomic.Pointer[Sample]
}

// NewTracker starts in the uploading stage at 0%.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Set(domain.StatusUploading, 0, "")
	return t
}

// Set publishes a new observation.
func (t *Tracker) Set(stage domain.Status, percent int, message string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.current.Store(&Sample{Stage: stage, Percent: percent, Message: message, At: time.Now()})
}

// Load returns the latest observation.
func (t *Tracker) Load() Sample {
	if s := t.current.Load(); s != nil {
		return *s
	}
	return Sample{Stage: domain.StatusUploading}
}

package task

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/docstream/internal/domain"
)

// Snapshot is a point-in-time copy of a task's observable state.
type Snapshot struct {
	ID        string        `json:"id"`
	Status    domain.Status `json:"status"`
	Progress  int           `json:"progress"`
	Message   string        `json:"message"`
	Error     string        `json:"error,omitempty"`
	JobRef    string        `json:"job_ref,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Task is one client request's unit of work. All mutation goes through its
// methods; progress never decreases and a terminal status is final.
type Task struct {
	id        string
	createdAt time.Time

	// ctx is the task's cancellation token; cancel flips it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	status   domain.Status
	progress int
	message  string
	jobRef   string
	result   any
	errMsg   string
}

func newTask(id string, createdAt time.Time) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		id:        id,
		createdAt: createdAt,
		ctx:       ctx,
		cancel:    cancel,
		status:    domain.StatusPending,
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// CreatedAt returns when the registry created the task.
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// Context is done once the task is cancelled or has reached a terminal status.
func (t *Task) Context() context.Context { return t.ctx }

// Status returns the current lifecycle status.
func (t *Task) Status() domain.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Progress returns the highest progress recorded so far.
func (t *Task) Progress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// IsCancelled reports whether the task was cancelled by a client or disconnect.
func (t *Task) IsCancelled() bool {
	return t.Status() == domain.StatusCancelled
}

// IsTerminal reports whether the task has finished in any way.
func (t *Task) IsTerminal() bool {
	return t.Status().IsTerminal()
}

// Result returns the payload stored on completion, if any.
func (t *Task) Result() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Snapshot copies the observable fields.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		ID:        t.id,
		Status:    t.status,
		Progress:  t.progress,
		Message:   t.message,
		Error:     t.errMsg,
		JobRef:    t.jobRef,
		CreatedAt: t.createdAt,
	}
}

// SetJobRef records the external parse job handle.
func (t *Task) SetJobRef(ref string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	t.jobRef = ref
}

// Update moves the task to a non-terminal status. The stored progress is the
// maximum of the current and requested values. It returns the stored progress
// and false when the task is already terminal.
func (t *Task) Update(status domain.Status, progress int, message string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() || status.IsTerminal() {
		return t.progress, false
	}

	t.status = status
	if progress > t.progress {
		t.progress = clampPercent(progress)
	}
	t.message = message
	return t.progress, true
}

// Complete performs the terminal transition to Complete.
func (t *Task) Complete(result any, message string) bool {
	return t.finish(domain.StatusComplete, 100, message, "", result)
}

// Fail performs the terminal transition to Error, keeping the last progress.
func (t *Task) Fail(errMsg string) bool {
	return t.finish(domain.StatusError, -1, errMsg, errMsg, nil)
}

// Cancel performs the terminal transition to Cancelled and fires the
// cancellation token. It returns false if the task was already terminal.
func (t *Task) Cancel() bool {
	return t.finish(domain.StatusCancelled, -1, "cancelled", "", nil)
}

// finish applies exactly one terminal transition; later calls are no-ops.
func (t *Task) finish(status domain.Status, progress int, message, errMsg string, result any) bool {
	t.mu.Lock()
	if t.status.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	t.status = status
	if progress > t.progress {
		t.progress = progress
	}
	t.message = message
	t.errMsg = errMsg
	t.result = result
	t.mu.Unlock()

	// Release anything still waiting on the token.
	t.cancel()
	return true
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

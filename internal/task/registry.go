package task

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docstream/internal/domain"
)

// RegistryConfig holds configuration for the task registry.
type RegistryConfig struct {
	// TaskTimeout is the nominal task lifetime. Tasks older than twice this
	// age are removed by the sweep regardless of status.
	TaskTimeout time.Duration

	// SweepInterval defines how often expired tasks are collected.
	// If zero, defaults to one minute.
	SweepInterval time.Duration

	// MaxActive bounds the number of non-terminal tasks. Zero means unlimited.
	MaxActive int
}

// DefaultRegistryConfig returns a RegistryConfig with reasonable defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		TaskTimeout:   10 * time.Minute,
		SweepInterval: time.Minute,
		MaxActive:     5,
	}
}

// RemoveHook is called after a task leaves the registry.
type RemoveHook func(taskID string)

// Registry is the in-memory index of live tasks.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	timers map[string]*time.Timer
	hooks  []RemoveHook

	config   RegistryConfig
	logger   *slog.Logger
	timeFunc func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates an empty Registry. Call Start to run the sweep.
func NewRegistry(config RegistryConfig, logger *slog.Logger) *Registry {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultRegistryConfig().TaskTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		tasks:    make(map[string]*Task),
		timers:   make(map[string]*time.Timer),
		config:   config,
		logger:   logger.With("component", "task_registry"),
		timeFunc: time.Now,
		stopCh:   make(chan struct{}),
	}
}

// OnRemove registers a hook run after every removal, including sweeps.
func (r *Registry) OnRemove(hook RemoveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Create registers a fresh Pending task.
func (r *Registry) Create() (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.MaxActive > 0 && r.activeLocked() >= r.config.MaxActive {
		return nil, fmt.Errorf("%w: limit is %d", domain.ErrTooManyTasks, r.config.MaxActive)
	}

	id := newTaskID()
	for r.tasks[id] != nil {
		id = newTaskID()
	}

	t := newTask(id, r.timeFunc())
	r.tasks[id] = t

	r.logger.Debug("task created", "task_id", id, "active", r.activeLocked())
	return t, nil
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return t, nil
}

// Cancel flips a live task to Cancelled. It is idempotent and returns true
// only when a non-terminal task existed and was cancelled by this call.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if !t.Cancel() {
		return false
	}

	r.logger.Info("task cancelled", "task_id", id)
	return true
}

// CancelAll cancels every live task and returns how many were cancelled.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	cancelled := 0
	for _, t := range tasks {
		if t.Cancel() {
			cancelled++
		}
	}
	if cancelled > 0 {
		r.logger.Info("cancelled live tasks", "count", cancelled)
	}
	return cancelled
}

// Remove drops the task from the registry. Unknown ids are ignored.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	if timer, pending := r.timers[id]; pending {
		timer.Stop()
		delete(r.timers, id)
	}
	hooks := append([]RemoveHook(nil), r.hooks...)
	r.mu.Unlock()

	if !ok {
		return false
	}
	for _, hook := range hooks {
		hook(id)
	}
	r.logger.Debug("task removed", "task_id", id)
	return true
}

// RemoveAfter schedules removal of the task after delay. A later call for
// the same id replaces the earlier schedule.
func (r *Registry) RemoveAfter(id string, delay time.Duration) {
	if delay <= 0 {
		r.Remove(id)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return
	}
	if existing, ok := r.timers[id]; ok {
		existing.Stop()
	}
	r.timers[id] = time.AfterFunc(delay, func() {
		r.Remove(id)
	})
}

// ActiveCount returns the number of non-terminal tasks.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

// Len returns the number of registered tasks, terminal ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Registry) activeLocked() int {
	n := 0
	for _, t := range r.tasks {
		if !t.IsTerminal() {
			n++
		}
	}
	return n
}

// Sweep removes every task older than twice the task timeout and returns
// how many were removed. Live expired tasks are cancelled first.
func (r *Registry) Sweep() int {
	cutoff := r.timeFunc().Add(-2 * r.config.TaskTimeout)

	r.mu.Lock()
	var expired []*Task
	for _, t := range r.tasks {
		if t.CreatedAt().Before(cutoff) {
			expired = append(expired, t)
		}
	}
	r.mu.Unlock()

	for _, t := range expired {
		if t.Cancel() {
			r.logger.Warn("expired task was still running", "task_id", t.ID(), "created_at", t.CreatedAt())
		}
		r.Remove(t.ID())
	}

	if len(expired) > 0 {
		r.logger.Info("swept expired tasks", "count", len(expired))
	}
	return len(expired)
}

// Start launches the periodic sweep.
func (r *Registry) Start() {
	r.wg.Add(1)
	go r.sweepLoop()
}

// Stop halts the sweep and clears pending removal timers. Safe to call twice.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()

	r.mu.Lock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	r.logger.Debug("starting task sweep", "interval", r.config.SweepInterval)

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stopCh:
			r.logger.Debug("stopping task sweep")
			return
		}
	}
}

func newTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

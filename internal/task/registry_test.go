package task

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/docstream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultRegistryConfig(), testLogger())

	task, err := r.Create()
	require.NoError(t, err)
	assert.Len(t, task.ID(), 12)
	assert.Equal(t, domain.StatusPending, task.Status())

	got, err := r.Get(task.ID())
	require.NoError(t, err)
	assert.Same(t, task, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestRegistry_MaxActive(t *testing.T) {
	t.Parallel()

	config := DefaultRegistryConfig()
	config.MaxActive = 2
	r := NewRegistry(config, testLogger())

	first, err := r.Create()
	require.NoError(t, err)
	_, err = r.Create()
	require.NoError(t, err)

	_, err = r.Create()
	assert.ErrorIs(t, err, domain.ErrTooManyTasks)

	// Finished tasks free a slot even before removal.
	require.True(t, first.Complete(nil, "done"))
	_, err = r.Create()
	assert.NoError(t, err)
	assert.Equal(t, 2, r.ActiveCount())
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_UnlimitedWhenZero(t *testing.T) {
	t.Parallel()

	config := DefaultRegistryConfig()
	config.MaxActive = 0
	r := NewRegistry(config, testLogger())

	for i := 0; i < 20; i++ {
		_, err := r.Create()
		require.NoError(t, err)
	}
	assert.Equal(t, 20, r.ActiveCount())
}

func TestRegistry_CancelIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultRegistryConfig(), testLogger())
	task, err := r.Create()
	require.NoError(t, err)

	assert.True(t, r.Cancel(task.ID()))
	assert.False(t, r.Cancel(task.ID()), "second cancel is a no-op")
	assert.False(t, r.Cancel("unknown"))
	assert.Equal(t, domain.StatusCancelled, task.Status())
	assert.Equal(t, 0, r.ActiveCount())

	done, err := r.Create()
	require.NoError(t, err)
	done.Complete(nil, "done")
	assert.False(t, r.Cancel(done.ID()), "completed task cannot be cancelled")
	assert.Equal(t, domain.StatusComplete, done.Status())
}

func TestRegistry_CancelAll(t *testing.T) {
	t.Parallel()

	config := DefaultRegistryConfig()
	config.MaxActive = 0
	r := NewRegistry(config, testLogger())

	for i := 0; i < 3; i++ {
		_, err := r.Create()
		require.NoError(t, err)
	}
	finished, _ := r.Create()
	finished.Fail("boom")

	assert.Equal(t, 3, r.CancelAll())
	assert.Equal(t, 0, r.ActiveCount())
}

func TestRegistry_RemoveRunsHooks(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultRegistryConfig(), testLogger())

	var mu sync.Mutex
	var removed []string
	r.OnRemove(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		removed = append(removed, id)
	})

	task, err := r.Create()
	require.NoError(t, err)

	assert.True(t, r.Remove(task.ID()))
	assert.False(t, r.Remove(task.ID()))

	mu.Lock()
	assert.Equal(t, []string{task.ID()}, removed)
	mu.Unlock()

	_, err = r.Get(task.ID())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestRegistry_RemoveAfter(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultRegistryConfig(), testLogger())
	task, err := r.Create()
	require.NoError(t, err)

	r.RemoveAfter(task.ID(), 20*time.Millisecond)
	assert.Equal(t, 1, r.Len(), "removal is delayed")

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRegistry_StopCancelsPendingRemovals(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultRegistryConfig(), testLogger())
	r.Start()

	task, err := r.Create()
	require.NoError(t, err)
	r.RemoveAfter(task.ID(), 30*time.Millisecond)

	r.Stop()
	r.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SweepRemovesExpired(t *testing.T) {
	t.Parallel()

	config := DefaultRegistryConfig()
	config.TaskTimeout = time.Minute
	config.MaxActive = 0
	r := NewRegistry(config, testLogger())

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.timeFunc = func() time.Time { return now }

	old, err := r.Create()
	require.NoError(t, err)
	oldDone, err := r.Create()
	require.NoError(t, err)
	oldDone.Complete(nil, "done")

	now = now.Add(90 * time.Second)
	fresh, err := r.Create()
	require.NoError(t, err)

	// Just past 2x the timeout for the first two tasks only.
	now = now.Add(31 * time.Second)
	assert.Equal(t, 2, r.Sweep())

	_, err = r.Get(old.ID())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.Equal(t, domain.StatusCancelled, old.Status(), "running expired task is cancelled")
	_, err = r.Get(oldDone.ID())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = r.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestRegistry_SweepLoop(t *testing.T) {
	t.Parallel()

	config := DefaultRegistryConfig()
	config.TaskTimeout = time.Millisecond
	config.SweepInterval = 10 * time.Millisecond
	r := NewRegistry(config, testLogger())

	_, err := r.Create()
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	config := DefaultRegistryConfig()
	config.MaxActive = 0
	r := NewRegistry(config, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := r.Create()
			if err != nil {
				return
			}
			r.Cancel(task.ID())
			r.ActiveCount()
			r.Remove(task.ID())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

package parsejob

import (
	"context"
	"sync"

	"github.com/phrazzld/docstream/internal/domain"
)

// MockService is a func-field test double for Service.
type MockService struct {
	SubmitFn func(ctx context.Context, input domain.Input) (Handle, error)
	PollFn   func(ctx context.Context, handle Handle) (PollStatus, error)

	mu          sync.Mutex
	SubmitCalls int
	PollCalls   int
}

// Submit implements Service.
func (m *MockService) Submit(ctx context.Context, input domain.Input) (Handle, error) {
	m.mu.Lock()
	m.SubmitCalls++
	m.mu.Unlock()
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, input)
	}
	return Handle{ID: "mock-job"}, nil
}

// Poll implements Service.
func (m *MockService) Poll(ctx context.Context, handle Handle) (PollStatus, error) {
	m.mu.Lock()
	m.PollCalls++
	m.mu.Unlock()
	if m.PollFn != nil {
		return m.PollFn(ctx, handle)
	}
	return PollStatus{Done: true, Result: &domain.ParseResult{}}, nil
}

// Polls returns the number of Poll calls so far.
func (m *MockService) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PollCalls
}

// ScriptedPolls returns a PollFn that replays statuses in order and then
// repeats the last one.
func ScriptedPolls(statuses ...PollStatus) func(context.Context, Handle) (PollStatus, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, Handle) (PollStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		s := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		return s, nil
	}
}

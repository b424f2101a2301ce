package parsejob

import (
	"context"

	"github.com/phrazzld/docstream/internal/domain"
)

// Handle identifies a submitted job at the parse service.
type Handle struct {
	// ID is the service-side task or batch id.
	ID string
	// DataID correlates an uploaded file inside a batch.
	DataID string
	// Batch is true for file uploads, false for URL jobs.
	Batch bool
}

// String renders the handle for logs and task bookkeeping.
func (h Handle) String() string {
	if h.Batch {
		return "batch:" + h.ID
	}
	return "task:" + h.ID
}

// PollStatus is one observation of a running job.
type PollStatus struct {
	// Done is set once the job has finished successfully; Result is then populated.
	Done bool
	// Stage is the visible stage the job is in (parsing or processing).
	Stage domain.Status
	// Percent is the job's own completion estimate, 0..100.
	Percent int
	Message string
	Result  *domain.ParseResult
}

// Service is the black-box external parse job API.
type Service interface {
	// Submit starts a job. Errors wrap domain.ErrJobSubmission or domain.ErrValidation.
	Submit(ctx context.Context, input domain.Input) (Handle, error)

	// Poll observes a job. A failed job is reported as an error wrapping
	// domain.ErrJobFailed; a job that is not ready yet is a non-Done status.
	Poll(ctx context.Context, handle Handle) (PollStatus, error)
}

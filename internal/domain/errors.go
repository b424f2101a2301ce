package domain

import (
	"context"
	"errors"
)

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("%w: ...") and
// inspect with errors.Is.
var (
	// ErrValidation is returned for bad input, before a task is created.
	ErrValidation = errors.New("validation failed")

	// ErrJobSubmission is returned when the external parse service rejects or
	// cannot accept the job.
	ErrJobSubmission = errors.New("parse job submission failed")

	// ErrJobTimeout is returned when the parse job does not finish within the
	// polling budget.
	ErrJobTimeout = errors.New("parse job timed out")

	// ErrJobFailed is returned when the parse service reports the job failed.
	ErrJobFailed = errors.New("parse job failed")

	// ErrPostProcessing marks a degraded optional stage. It never ends a task.
	ErrPostProcessing = errors.New("post-processing degraded")

	// ErrSerialization marks a payload that could not be encoded in full.
	ErrSerialization = errors.New("result serialization failed")

	// ErrTaskNotFound is returned when a task id is unknown or already removed.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTooManyTasks is returned when the active task ceiling is reached.
	ErrTooManyTasks = errors.New("too many active tasks")

	// ErrArtifactNotFound is returned when an artifact id is unknown or evicted.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNotConfigured is returned when a required external credential is missing.
	ErrNotConfigured = errors.New("service not configured")
)

// Wire codes carried on error events.
const (
	CodeValidation    = "validation"
	CodeJobSubmission = "job_submission"
	CodeJobTimeout    = "job_timeout"
	CodeJobFailed     = "job_failed"
	CodeInternal      = "internal"
)

// ErrorCode maps err to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotConfigured):
		return CodeValidation
	case errors.Is(err, ErrJobSubmission):
		return CodeJobSubmission
	case errors.Is(err, ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeJobTimeout
	case errors.Is(err, ErrJobFailed):
		return CodeJobFailed
	default:
		return CodeInternal
	}
}

// IsCancellation reports whether err only signals cooperative cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

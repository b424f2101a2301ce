package parsejob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/docstream/internal/domain"
)

// RunnerConfig bounds the poll loop.
type RunnerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// DefaultRunnerConfig polls every 5s for at most 120 attempts.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{PollInterval: 5 * time.Second, MaxAttempts: 120}
}

// Runner drives one job from submission to completion.
type Runner struct {
	service Service
	config  RunnerConfig
	logger  *slog.Logger
}

// NewRunner creates a Runner for the given service.
func NewRunner(service Service, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultRunnerConfig().PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRunnerConfig().MaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{service: service, config: config, logger: logger.With("component", "parse_job_runner")}
}

// Budget is the wall-clock cap on polling. Submit and each Poll run under a
// context bounded by it, so a hung service cannot outlive it.
func (r *Runner) Budget() time.Duration {
	return r.config.PollInterval * time.Duration(r.config.MaxAttempts)
}

// Run submits input and polls until the job finishes, fails, the attempt or
// time budget is spent (domain.ErrJobTimeout), or ctx is cancelled (ctx.Err()).
// Progress is published to tracker; onSubmit, if set, receives the job handle.
func (r *Runner) Run(
	ctx context.Context,
	input domain.Input,
	tracker *Tracker,
	onSubmit func(Handle),
) (*domain.ParseResult, error) {
	tracker.Set(domain.StatusUploading, 10, "submitting document")

	handle, err := r.submit(ctx, input)
	if err != nil {
		return nil, err
	}

	r.logger.Info("parse job submitted", "job", handle.String())
	if onSubmit != nil {
		onSubmit(handle)
	}
	tracker.Set(domain.StatusParsing, 0, "document submitted")

	// The deadline cuts off a Poll that never returns; one extra interval
	// leaves room for the last scheduled attempt.
	pollCtx, cancel := context.WithTimeout(ctx, r.Budget()+r.config.PollInterval)
	defer cancel()

	timer := time.NewTimer(r.config.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-pollCtx.Done():
			return nil, r.budgetErr(ctx)
		case <-timer.C:
		}
		// select picks at random when both are ready.
		if pollCtx.Err() != nil {
			return nil, r.budgetErr(ctx)
		}

		status, err := r.service.Poll(pollCtx, handle)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, r.budgetErr(ctx)
			}
			r.logger.Warn("parse job poll failed", "job", handle.String(), "attempt", attempt, "error", err)
			return nil, err
		}

		if status.Done {
			if status.Result == nil {
				return nil, fmt.Errorf("%w: job finished without a result", domain.ErrJobFailed)
			}
			r.logger.Info("parse job finished", "job", handle.String(), "attempts", attempt)
			return status.Result, nil
		}

		stage := status.Stage
		if stage != domain.StatusParsing && stage != domain.StatusProcessing {
			stage = domain.StatusProcessing
		}
		tracker.Set(stage, status.Percent, status.Message)

		timer.Reset(r.config.PollInterval)
	}

	return nil, fmt.Errorf("%w: no result after %d attempts", domain.ErrJobTimeout, r.config.MaxAttempts)
}

// submit starts the job. A submission still pending after the poll budget
// is reported as a timeout.
func (r *Runner) submit(ctx context.Context, input domain.Input) (Handle, error) {
	submitCtx, cancel := context.WithTimeout(ctx, r.Budget())
	defer cancel()

	handle, err := r.service.Submit(submitCtx, input)
	if err == nil {
		return handle, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Handle{}, ctxErr
	}
	if errors.Is(submitCtx.Err(), context.DeadlineExceeded) {
		return Handle{}, fmt.Errorf("%w: submission not accepted within %s", domain.ErrJobTimeout, r.Budget())
	}
	if !errors.Is(err, domain.ErrJobSubmission) && !errors.Is(err, domain.ErrValidation) {
		err = fmt.Errorf("%w: %v", domain.ErrJobSubmission, err)
	}
	return Handle{}, err
}

// budgetErr reports why the poll context ended: the caller's cancellation
// wins over the budget.
func (r *Runner) budgetErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: no result after %s", domain.ErrJobTimeout, r.Budget())
}

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/events"
	"github.com/phrazzld/docstream/internal/generation"
	"github.com/phrazzld/docstream/internal/parsejob"
	"github.com/phrazzld/docstream/internal/payload"
	"github.com/phrazzld/docstream/internal/store"
	"github.com/phrazzld/docstream/internal/task"
)

// Task outcomes used in logs and metrics.
const (
	OutcomeComplete  = "complete"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// JobServices resolves the parse job service for a request. An empty key
// selects the configured credential.
type JobServices interface {
	Service(apiKey string) parsejob.Service
}

// JobServicesFunc adapts a function to JobServices.
type JobServicesFunc func(apiKey string) parsejob.Service

// Service calls f.
func (f JobServicesFunc) Service(apiKey string) parsejob.Service {
	return f(apiKey)
}

// Request is one analysis request after validation.
type Request struct {
	Input   domain.Input
	Options domain.Options
	// ParserKey and AnalyzerKey override the configured credentials when set.
	ParserKey   string
	AnalyzerKey string
}

// Config tunes the orchestrator loop.
type Config struct {
	HeartbeatInterval time.Duration
	KeepAliveInterval time.Duration
	RemovalGrace      time.Duration
	PostStageTimeout  time.Duration
	PaperTextBytes    int
	MinPaperTextBytes int
	Runner            parsejob.RunnerConfig
}

// DefaultConfig matches the configuration defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 3 * time.Second,
		KeepAliveInterval: 6 * time.Second,
		RemovalGrace:      30 * time.Second,
		PostStageTimeout:  2 * time.Minute,
		PaperTextBytes:    10000,
		MinPaperTextBytes: 100,
		Runner:            parsejob.DefaultRunnerConfig(),
	}
}

// ConfigFrom derives the orchestrator settings from application configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		HeartbeatInterval: cfg.Task.HeartbeatInterval(),
		KeepAliveInterval: cfg.Task.KeepAliveInterval(),
		RemovalGrace:      cfg.Task.RemovalGrace(),
		PostStageTimeout:  cfg.Task.PostStageTimeout(),
		PaperTextBytes:    cfg.Payload.PaperTextBytes,
		MinPaperTextBytes: cfg.Payload.MinPaperTextBytes,
		Runner: parsejob.RunnerConfig{
			PollInterval: cfg.Parser.PollInterval(),
			MaxAttempts:  cfg.Parser.MaxPollAttempts,
		},
	}
}

// ResultEncoder turns an analysis result into the Complete event payload.
// *payload.Serializer implements it.
type ResultEncoder interface {
	Serialize(result *domain.AnalysisResult) payload.Payload
	Encode(p payload.Payload) (json.RawMessage, error)
}

// Deps are the orchestrator's collaborators. Analyzers may be nil, which
// disables the paper analysis stage.
type Deps struct {
	Registry   *task.Registry
	Jobs       JobServices
	Analyzers  generation.AnalyzerSource
	Artifacts  store.ArtifactStore
	Serializer ResultEncoder
	Metrics    *Metrics
	Logger     *slog.Logger
}

// Orchestrator drives one task from ingress to its terminal event.
type Orchestrator struct {
	config     Config
	registry   *task.Registry
	jobs       JobServices
	analyzers  generation.AnalyzerSource
	artifacts  store.ArtifactStore
	serializer ResultEncoder
	metrics    *Metrics
	logger     *slog.Logger
}

// New creates an Orchestrator. Zero durations in config take their defaults.
func New(config Config, deps Deps) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Jobs == nil || deps.Artifacts == nil {
		return nil, errors.New("analysis: registry, job services and artifact store are required")
	}

	def := DefaultConfig()
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = def.HeartbeatInterval
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = def.KeepAliveInterval
	}
	if config.RemovalGrace < 0 {
		config.RemovalGrace = 0
	}
	if config.PostStageTimeout <= 0 {
		config.PostStageTimeout = def.PostStageTimeout
	}
	if config.PaperTextBytes <= 0 {
		config.PaperTextBytes = def.PaperTextBytes
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var serializer ResultEncoder = deps.Serializer
	if serializer == nil {
		serializer = payload.NewSerializer(payload.DefaultLimits(), logger)
	}

	return &Orchestrator{
		config:     config,
		registry:   deps.Registry,
		jobs:       deps.Jobs,
		analyzers:  deps.Analyzers,
		artifacts:  deps.Artifacts,
		serializer: serializer,
		metrics:    deps.Metrics,
		logger:     logger.With("component", "analysis_orchestrator"),
	}, nil
}

// run carries the per-task state through the stages.
type run struct {
	o        *Orchestrator
	task     *task.Task
	req      Request
	streamer *events.Streamer
	logger   *slog.Logger
}

type jobOutcome struct {
	result *domain.ParseResult
	err    error
}

// Run executes the pipeline for t and streams progress to sink. It returns
// nil on completion, context.Canceled when the task was cancelled or the
// client went away, and the job error otherwise. The terminal transition is
// always performed before Run returns and the task is scheduled for removal.
//
// ctx is the client's request context; its cancellation counts as a disconnect.
func (o *Orchestrator) Run(ctx context.Context, t *task.Task, req Request, sink events.Sink) (err error) {
	log := o.logger.With("task_id", t.ID())
	ctx, span := startSpan(ctx, traceSpanRun, t.ID(), attribute.Bool(traceAttrURLMode, req.Input.IsURL()))

	r := &run{o: o, task: t, req: req, streamer: events.NewStreamer(t, sink, log), logger: log}

	stopWatch := context.AfterFunc(ctx, func() {
		if t.Cancel() {
			log.Info("client disconnected, task cancelled")
		}
	})

	o.metrics.IncActiveTasks()
	started := time.Now()
	log.Info("analysis started", "url_mode", req.Input.IsURL(), "options", fmt.Sprintf("%+v", req.Options))

	defer func() {
		stopWatch()
		r.streamer.Close()
		o.registry.RemoveAfter(t.ID(), o.config.RemovalGrace)
		o.metrics.DecActiveTasks()

		outcome := outcomeOf(t, err)
		o.metrics.IncOutcome(outcome)
		span.SetAttributes(attribute.String(traceAttrOutcome, outcome))
		if outcome == OutcomeError {
			markSpanResult(span, err)
		} else {
			markSpanResult(span, nil)
		}
		span.End()
		log.Info("analysis finished", "outcome", outcome, "terminal_event_sent", r.streamer.Finished(), "duration", time.Since(started))
	}()

	return r.execute(ctx)
}

func outcomeOf(t *task.Task, err error) string {
	switch {
	case t.IsCancelled(), domain.IsCancellation(err):
		return OutcomeCancelled
	case err != nil:
		return OutcomeError
	default:
		return OutcomeComplete
	}
}

func (r *run) execute(ctx context.Context) error {
	if err := r.checkpoint(domain.StatusUploading, BandStart(domain.StatusUploading), "uploading document"); err != nil {
		return err
	}

	parsed, err := r.parse(ctx)
	if err != nil {
		if domain.IsCancellation(err) || r.task.IsCancelled() {
			return context.Canceled
		}
		r.o.metrics.IncStageFailure("parse", domain.ErrorCode(err))
		r.logger.Warn("parse job failed", "error", err)
		r.emit(r.streamer.Fail(err))
		return err
	}

	artifacts, err := r.extract(ctx, parsed)
	if err != nil {
		return err
	}

	paper, err := r.analyze(ctx, parsed.Text)
	if err != nil {
		return err
	}

	return r.complete(ctx, parsed, artifacts, paper)
}

// checkpoint checks cancellation and sends a progress event for the next stage.
func (r *run) checkpoint(stage domain.Status, progress int, message string) error {
	if r.task.IsCancelled() {
		return context.Canceled
	}
	if err := r.streamer.Emit(r.streamer.Progress(stage, progress, message)); err != nil {
		return r.clientGone(err)
	}
	return nil
}

// clientGone cancels the task after a failed write.
func (r *run) clientGone(err error) error {
	if r.task.Cancel() {
		r.logger.Info("client unreachable, task cancelled", "error", err)
	}
	return context.Canceled
}

// emit sends a terminal or best-effort event; the task state is already final.
func (r *run) emit(ev *events.ProgressEvent) {
	if err := r.streamer.Emit(ev); err != nil {
		r.logger.Info("final event not delivered", "error", err)
	}
}

// parse runs the job in the background and relays its progress on each heartbeat.
func (r *run) parse(ctx context.Context) (result *domain.ParseResult, err error) {
	_, span := startSpan(ctx, traceSpanParse, r.task.ID())
	started := time.Now()
	defer func() {
		r.o.metrics.ObserveStageDuration("parse", stageStatus(err), time.Since(started))
		markSpanResult(span, err)
		span.End()
	}()

	jobCtx, cancelJob := context.WithCancel(r.task.Context())
	defer cancelJob()

	tracker := parsejob.NewTracker()
	runner := parsejob.NewRunner(r.o.jobs.Service(r.req.ParserKey), r.o.config.Runner, r.logger)
	done := make(chan jobOutcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("parse job panicked", "panic", p)
				done <- jobOutcome{err: fmt.Errorf("%w: parse job panicked: %v", domain.ErrJobFailed, p)}
			}
		}()
		res, err := runner.Run(jobCtx, r.req.Input, tracker, func(h parsejob.Handle) {
			r.task.SetJobRef(h.String())
		})
		done <- jobOutcome{result: res, err: err}
	}()

	ticker := time.NewTicker(r.o.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			return out.result, out.err
		case <-r.task.Context().Done():
			cancelJob()
			<-done
			return nil, context.Canceled
		case <-ticker.C:
			if r.task.IsCancelled() {
				cancelJob()
				<-done
				return nil, context.Canceled
			}
			if err := r.heartbeat(tracker); err != nil {
				r.clientGone(err)
				cancelJob()
				<-done
				return nil, context.Canceled
			}
		}
	}
}

// heartbeat emits the remapped job progress when it moved forward, otherwise
// a keep-alive once the keep-alive interval has passed without a send.
func (r *run) heartbeat(tracker *parsejob.Tracker) error {
	sample := tracker.Load()
	mapped := Remap(sample.Stage, sample.Percent)

	if mapped > r.streamer.LastProgress() {
		msg := sample.Message
		if msg == "" {
			msg = stageMessage(sample.Stage)
		}
		return r.streamer.Emit(r.streamer.Progress(sample.Stage, mapped, msg))
	}
	if r.streamer.SinceLastSend() >= r.o.config.KeepAliveInterval {
		return r.streamer.Emit(r.streamer.KeepAlive())
	}
	return nil
}

func stageMessage(stage domain.Status) string {
	switch stage {
	case domain.StatusUploading:
		return "uploading document"
	case domain.StatusParsing:
		return "waiting for parser"
	case domain.StatusProcessing:
		return "parsing document"
	default:
		return string(stage)
	}
}

// extract registers the parsed artifacts in the store.
func (r *run) extract(ctx context.Context, parsed *domain.ParseResult) ([]domain.Artifact, error) {
	if err := r.checkpoint(domain.StatusExtracting, BandStart(domain.StatusExtracting), "extracting artifacts"); err != nil {
		return nil, err
	}
	if !r.req.Options.ExtractArtifacts || len(parsed.Artifacts) == 0 {
		return nil, nil
	}

	_, span := startSpan(ctx, traceSpanExtract, r.task.ID())
	started := time.Now()

	artifacts := make([]domain.Artifact, 0, len(parsed.Artifacts))
	for _, a := range parsed.Artifacts {
		if err := r.o.artifacts.Put(r.task.ID(), a); err != nil {
			r.o.metrics.IncStageFailure("extract", "store")
			r.logger.Warn("artifact not registered", "artifact_id", a.ID, "error", err)
			continue
		}
		artifacts = append(artifacts, a)
	}

	span.SetAttributes(attribute.Int(traceAttrCount, len(artifacts)))
	markSpanResult(span, nil)
	span.End()
	r.o.metrics.ObserveStageDuration("extract", "ok", time.Since(started))

	msg := fmt.Sprintf("%d artifacts extracted", len(artifacts))
	if err := r.checkpoint(domain.StatusExtracting, BandEnd(domain.StatusExtracting), msg); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// analyze runs the optional paper analysis. Failures degrade to no analysis.
func (r *run) analyze(ctx context.Context, text string) (*domain.PaperAnalysis, error) {
	if !r.req.Options.AnalyzePaper || r.o.analyzers == nil || len(text) <= r.o.config.MinPaperTextBytes {
		return nil, nil
	}

	analyzer, err := r.o.analyzers.Analyzer(ctx, r.req.AnalyzerKey)
	if err != nil {
		r.o.metrics.IncStageFailure("analyze", "not_configured")
		r.logger.Info("paper analysis skipped", "error", err)
		return nil, nil
	}

	if err := r.checkpoint(domain.StatusAnalyzing, BandStart(domain.StatusAnalyzing), "analyzing paper"); err != nil {
		return nil, err
	}

	spanCtx, span := startSpan(ctx, traceSpanAnalyze, r.task.ID())
	started := time.Now()
	paperText := payload.Cut(text, r.o.config.PaperTextBytes)

	var (
		paper  *domain.PaperAnalysis
		runErr error
	)
	waitErr := r.await(spanCtx, func(stageCtx context.Context) {
		paper, runErr = analyzer.AnalyzePaper(stageCtx, paperText)
	})
	if waitErr != nil {
		markSpanResult(span, nil)
		span.End()
		return nil, waitErr
	}

	if runErr == nil && paper.IsEmpty() {
		runErr = generation.ErrInvalidResponse
	}
	markSpanResult(span, runErr)
	span.End()
	r.o.metrics.ObserveStageDuration("analyze", stageStatus(runErr), time.Since(started))

	if runErr != nil {
		degraded := fmt.Errorf("%w: paper analysis: %v", domain.ErrPostProcessing, runErr)
		r.o.metrics.IncStageFailure("analyze", "degraded")
		r.logger.Warn("paper analysis degraded", "error", degraded)
		return nil, nil
	}

	paper.PaperText = paperText
	if err := r.checkpoint(domain.StatusAnalyzing, BandEnd(domain.StatusAnalyzing), "paper analysis complete"); err != nil {
		return nil, err
	}
	return paper, nil
}

// await runs fn under the post-stage timeout and keeps the stream alive while
// it runs. It returns context.Canceled if the task is cancelled or the client
// goes away first; fn's context is cancelled in that case.
func (r *run) await(ctx context.Context, fn func(ctx context.Context)) error {
	stageCtx, cancel := context.WithTimeout(r.task.Context(), r.o.config.PostStageTimeout)
	defer cancel()
	stageCtx = withSpanFrom(stageCtx, ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(stageCtx)
	}()

	ticker := time.NewTicker(r.o.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-r.task.Context().Done():
			cancel()
			<-done
			return context.Canceled
		case <-ticker.C:
			if r.streamer.SinceLastSend() < r.o.config.KeepAliveInterval {
				continue
			}
			if err := r.streamer.Emit(r.streamer.KeepAlive()); err != nil {
				r.clientGone(err)
				cancel()
				<-done
				return context.Canceled
			}
		}
	}
}

// complete serializes the result and performs the single Complete transition.
func (r *run) complete(ctx context.Context, parsed *domain.ParseResult, artifacts []domain.Artifact, paper *domain.PaperAnalysis) error {
	if r.task.IsCancelled() {
		return context.Canceled
	}

	_, span := startSpan(ctx, traceSpanSerialize, r.task.ID())
	started := time.Now()

	metadata := make(map[string]any, len(parsed.Metadata)+2)
	maps.Copy(metadata, parsed.Metadata)
	metadata["text_length"] = len(parsed.Text)
	metadata["artifact_count"] = len(artifacts)

	p := r.o.serializer.Serialize(&domain.AnalysisResult{
		OriginalText: parsed.Text,
		Artifacts:    artifacts,
		Metadata:     metadata,
		Paper:        paper,
	})
	raw, err := r.o.serializer.Encode(p)

	markSpanResult(span, err)
	span.End()
	r.o.metrics.ObserveStageDuration("serialize", stageStatus(err), time.Since(started))

	if err != nil {
		// The client still gets a successful, empty result.
		r.o.metrics.IncStageFailure("serialize", domain.ErrorCode(err))
		r.logger.Error("result serialization failed, sending empty result", "error", err)
		raw = payload.EmptyResult()
	}

	ev := r.streamer.Complete(raw)
	if ev == nil {
		// Lost the terminal race to a cancel.
		return context.Canceled
	}
	r.emit(ev)
	return nil
}

func stageStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsCancellation(err):
		return "cancelled"
	default:
		return "error"
	}
}

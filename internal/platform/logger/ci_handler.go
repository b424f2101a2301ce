package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
)

// ciEnvVars maps CI provider variables to the attribute names attached to every record.
var ciEnvVars = map[string]string{
	"GITHUB_RUN_ID":   "ci_run_id",
	"GITHUB_SHA":      "ci_commit",
	"GITHUB_REF_NAME": "ci_ref",
	"GITHUB_JOB":      "ci_job",
}

// CIHandler is a slog.Handler that adds CI environment metadata
// and, optionally, source location to log records.
type CIHandler struct {
	handler   slog.Handler
	metadata  map[string]string
	addSource bool
}

// NewCIHandler wraps a JSON handler writing to out.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	handlerOpts := &slog.HandlerOptions{}
	if opts != nil {
		copied := *opts
		handlerOpts = &copied
	}

	return &CIHandler{
		handler:   slog.NewJSONHandler(out, handlerOpts),
		metadata:  getCIMetadata(),
		addSource: handlerOpts.AddSource,
	}
}

// Enabled implements slog.Handler.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements slog.Handler.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{handler: h.handler.WithAttrs(attrs), metadata: h.metadata, addSource: h.addSource}
}

// WithGroup implements slog.Handler.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{handler: h.handler.WithGroup(name), metadata: h.metadata, addSource: h.addSource}
}

// Handle implements slog.Handler.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	enhanced := record.Clone()

	if h.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		frame, _ := frames.Next()
		enhanced.AddAttrs(
			slog.String("source_file", frame.File),
			slog.Int("source_line", frame.Line),
			slog.String("source_func", frame.Function),
		)
	}

	for key, value := range h.metadata {
		enhanced.AddAttrs(slog.String(key, value))
	}

	return h.handler.Handle(ctx, enhanced)
}

func isInCIEnvironment() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

func getCIMetadata() map[string]string {
	metadata := make(map[string]string, len(ciEnvVars))
	for env, attr := range ciEnvVars {
		if value := os.Getenv(env); value != "" {
			metadata[attr] = value
		}
	}
	return metadata
}

package analysis

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "docstream.analysis"

	traceSpanRun       = "docstream.analysis.run"
	traceSpanParse     = "docstream.analysis.parse"
	traceSpanExtract   = "docstream.analysis.extract"
	traceSpanAnalyze   = "docstream.analysis.analyze"
	traceSpanSerialize = "docstream.analysis.serialize"

	traceAttrTaskID  = "docstream.task_id"
	traceAttrURLMode = "docstream.url_mode"
	traceAttrOutcome = "docstream.outcome"
	traceAttrCount   = "docstream.count"
)

func startSpan(ctx context.Context, name, taskID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	spanAttrs := append([]attribute.KeyValue{attribute.String(traceAttrTaskID, taskID)}, attrs...)
	return otel.Tracer(traceScope).Start(ctx, name, trace.WithAttributes(spanAttrs...))
}

func markSpanResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// withSpanFrom carries the span of parent into ctx so stage work nests under it
// while keeping ctx's cancellation.
func withSpanFrom(ctx, parent context.Context) context.Context {
	return trace.ContextWithSpan(ctx, trace.SpanFromContext(parent))
}

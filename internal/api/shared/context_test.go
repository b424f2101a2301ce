package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSetAndGetTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")
}

func TestSetTraceID_ReusesSpanTraceID(t *testing.T) {
	t.Parallel()

	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(SetTraceID(ctx)))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool, 500)
	for i := 0; i < 500; i++ {
		id := generateTraceID()
		require.Len(t, id, 32)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSubject(t *testing.T) {
	t.Parallel()

	_, ok := GetSubject(context.Background())
	assert.False(t, ok)

	_, ok = GetSubject(WithSubject(context.Background(), ""))
	assert.False(t, ok)

	subject, ok := GetSubject(WithSubject(context.Background(), "ingest"))
	assert.True(t, ok)
	assert.Equal(t, "ingest", subject)
}

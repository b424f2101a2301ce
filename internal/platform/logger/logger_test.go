package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &TestLogBuffer{}
	l, err := New(buf, "warn")
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("hidden")
	l.Warn("shown", "task_id", "abc")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["msg"])
	assert.Equal(t, "abc", entries[0]["task_id"])
	assert.Same(t, l, slog.Default())
}

func TestNewRejectsNilWriter(t *testing.T) {
	_, err := New(nil, "info")
	assert.Error(t, err)
}

func TestCIHandlerAddsMetadata(t *testing.T) {
	t.Setenv("GITHUB_RUN_ID", "42")

	var out bytes.Buffer
	l := slog.New(NewCIHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l.With("component", "test").Debug("hello")

	assert.Contains(t, out.String(), `"ci_run_id":"42"`)
	assert.Contains(t, out.String(), `"component":"test"`)
}

func TestContextLogger(t *testing.T) {
	l, buf := NewTestLogger()
	ctx := WithLogger(context.Background(), l)

	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]any{"message": "success", "data": 123})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, float64(123), body["data"])
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(SetTraceID(req.Context()))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusNotFound, "task not found", WithErrorCode("not_found"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "task not found", body.Error)
	assert.Equal(t, "not_found", body.Code)
	assert.Equal(t, GetTraceID(req.Context()), body.TraceID)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "WARN"},
		{name: "elevated client error", status: http.StatusUnauthorized, opts: []ResponseOption{WithElevatedLogLevel()}, wantLevel: "WARN"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "DEBUG"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log, buf := logger.NewTestLogger()
			req := httptest.NewRequest(http.MethodPost, "/api/pdf-analyzer/analyze", nil)
			req = req.WithContext(logger.WithLogger(SetTraceID(req.Context()), log))
			w := httptest.NewRecorder()

			secretErr := errors.New("upstream rejected key sk-abcdefghijklmnopqrstuvwx")
			RespondWithErrorAndLog(w, req, tc.status, "request failed", secretErr, tc.opts...)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "sk-abcdef", "raw error never reaches the client")

			entries, err := buf.GetLogEntries()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.wantLevel, entries[0]["level"])
			assert.Equal(t, "request failed", entries[0]["user_message"])
			assert.NotContains(t, entries[0]["error"], "sk-abcdefghijklmnopqrstuvwx")
		})
	}
}

package testutils

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/api/shared"
	"github.com/phrazzld/docstream/internal/events"
)

// File is an uploaded form file.
type File struct {
	Name string
	Data []byte
}

// MultipartRequest builds a multipart POST to path with the given form
// fields and an optional file in the "file" part.
func MultipartRequest(t *testing.T, path string, fields map[string]string, file *File) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.Name)
		require.NoError(t, err)
		_, err = fw.Write(file.Data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// ParseSSE decodes a text/event-stream body into progress events. Every
// frame must be a single "data:" line.
func ParseSSE(t *testing.T, body string) []events.ProgressEvent {
	t.Helper()

	var out []events.ProgressEvent
	for _, frame := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(frame) == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		line := strings.TrimPrefix(frame, "data: ")
		require.NotContains(t, line, "\n", "each event is a single line")

		var ev events.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		out = append(out, ev)
	}
	return out
}

// AssertNonDecreasing checks that progress never goes backwards.
func AssertNonDecreasing(t *testing.T, evs []events.ProgressEvent) {
	t.Helper()
	for i := 1; i < len(evs); i++ {
		assert.GreaterOrEqual(t, evs[i].Progress, evs[i-1].Progress,
			"event %d (%s) regressed from %d to %d", i, evs[i].Status, evs[i-1].Progress, evs[i].Progress)
	}
}

// AssertErrorResponse checks the status code, wire code and that the message
// contains expectedErrorMsgPart. An empty code or message part is not checked.
func AssertErrorResponse(
	t *testing.T,
	rec *httptest.ResponseRecorder,
	expectedStatus int,
	expectedCode string,
	expectedErrorMsgPart string,
) shared.ErrorResponse {
	t.Helper()

	assert.Equal(t, expectedStatus, rec.Code, "body: %s", rec.Body.String())

	var errResp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp),
		"Failed to unmarshal error response: %s", rec.Body.String())
	assert.False(t, errResp.Success)
	if expectedCode != "" {
		assert.Equal(t, expectedCode, errResp.Code)
	}
	assert.Contains(t, errResp.Error, expectedErrorMsgPart,
		"Error message should contain '%s' but got '%s'", expectedErrorMsgPart, errResp.Error)
	return errResp
}

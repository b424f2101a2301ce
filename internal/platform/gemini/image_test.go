package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/generation"
)

const validImageAnalysis = "```json\n" + `{"category": "line chart", "summary": "Latency drops with streaming", "keyPoints": ["p50 halves", "p99 stable"]}` + "\n```"

func TestAnalyzer_AnalyzeImage(t *testing.T) {
	t.Parallel()

	models := &mockModels{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(validImageAnalysis), nil
	}}

	got, err := newTestAnalyzer(t, models, 1).AnalyzeImage(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, &domain.ImageAnalysis{
		Category:  "line chart",
		Summary:   "Latency drops with streaming",
		KeyPoints: []string{"p50 halves", "p99 stable"},
	}, got)

	require.Len(t, models.contents, 1)
	require.Len(t, models.contents[0], 1)
	parts := models.contents[0][0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, `"keyPoints"`)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("jpeg-bytes"), parts[1].InlineData.Data)
}

func TestAnalyzer_AnalyzeImageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		fn      func(int) (*genai.GenerateContentResponse, error)
		wantErr error
	}{
		{
			name:    "no image data",
			wantErr: generation.ErrEmptyImage,
		},
		{
			name:    "malformed json",
			data:    []byte("png"),
			fn:      func(int) (*genai.GenerateContentResponse, error) { return textResponse(`{"category": }`), nil },
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "api keeps failing",
			data:    []byte("png"),
			fn:      func(int) (*genai.GenerateContentResponse, error) { return nil, errors.New("unavailable") },
			wantErr: generation.ErrTransientFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			models := &mockModels{fn: tt.fn}
			_, err := newTestAnalyzer(t, models, 1).AnalyzeImage(context.Background(), tt.data, "image/png")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseImageAnalysis(t *testing.T) {
	t.Parallel()

	got, err := parseImageAnalysis(`{"category": "table", "summary": "Results"}`)
	require.NoError(t, err)
	assert.Equal(t, "table", got.Category)
	assert.NotNil(t, got.KeyPoints)
	assert.Empty(t, got.KeyPoints)

	long := "This figure shows a comparison of several parsing pipelines across many document sizes."
	got, err = parseImageAnalysis(long)
	require.NoError(t, err)
	assert.Equal(t, fallbackCategory, got.Category)
	assert.Equal(t, []rune(long)[:fallbackSummaryRunes], []rune(got.Summary))
	assert.Empty(t, got.KeyPoints)
}

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/generation"
)

func newTestSource(t *testing.T, defaultKey string) (*Source, *[]string) {
	t.Helper()

	src, err := NewSource(config.LLMConfig{GeminiAPIKey: defaultKey, ModelName: "gemini-test", RetryDelaySeconds: 1}, nil)
	require.NoError(t, err)

	var keys []string
	src.newModels = func(_ context.Context, apiKey string) (contentGenerator, error) {
		keys = append(keys, apiKey)
		if apiKey == "broken" {
			return nil, errors.New("bad key format")
		}
		return &mockModels{fn: func(int) (*genai.GenerateContentResponse, error) { return textResponse(validAnalysis), nil }}, nil
	}
	return src, &keys
}

func TestNewSource_RequiresModel(t *testing.T) {
	t.Parallel()

	_, err := NewSource(config.LLMConfig{}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestSource_Analyzer(t *testing.T) {
	t.Parallel()

	src, keys := newTestSource(t, "default-key")
	assert.True(t, src.Configured())

	a1, err := src.Analyzer(context.Background(), "")
	require.NoError(t, err)
	a2, err := src.Analyzer(context.Background(), "  ")
	require.NoError(t, err)
	assert.Same(t, a1, a2, "clients are cached per key")

	override, err := src.Analyzer(context.Background(), "request-key")
	require.NoError(t, err)
	assert.NotSame(t, a1, override)

	assert.Equal(t, []string{"default-key", "request-key"}, *keys)

	got, err := override.AnalyzePaper(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Parse and stream.", got.OneSentence)
}

func TestSource_ImageAnalyzerSharesClients(t *testing.T) {
	t.Parallel()

	src, keys := newTestSource(t, "default-key")

	paper, err := src.Analyzer(context.Background(), "request-key")
	require.NoError(t, err)
	image, err := src.ImageAnalyzer(context.Background(), "request-key")
	require.NoError(t, err)
	assert.Same(t, paper.(*Analyzer), image.(*Analyzer))
	assert.Equal(t, []string{"request-key"}, *keys)

	unkeyed, _ := newTestSource(t, "")
	_, err = unkeyed.ImageAnalyzer(context.Background(), "")
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestSource_AnalyzerErrors(t *testing.T) {
	t.Parallel()

	src, _ := newTestSource(t, "")
	assert.False(t, src.Configured())

	_, err := src.Analyzer(context.Background(), "")
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = src.Analyzer(context.Background(), "broken")
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/domain"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		maxBytes int
		want     string
	}{
		{"within budget", "hello", 10, "hello"},
		{"exact budget", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello" + TruncationMarker},
		{"does not split rune", "ab日本", 4, "ab" + TruncationMarker},
		{"rune boundary", "ab日本", 5, "ab日" + TruncationMarker},
		{"zero disables", "hello", 0, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Truncate(tt.text, tt.maxBytes)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func artifacts(n int) []domain.Artifact {
	out := make([]domain.Artifact, n)
	for i := range out {
		out[i] = domain.Artifact{
			ID:       fmt.Sprintf("s_%d", i),
			Format:   "png",
			Filename: fmt.Sprintf("%d.png", i),
			Page:     i + 1,
			Data:     []byte("binary"),
		}
	}
	return out
}

func TestSerializer_Serialize(t *testing.T) {
	t.Parallel()

	s := NewSerializer(Limits{MaxTextBytes: 8, MaxArtifacts: 2}, nil)
	paper := &domain.PaperAnalysis{OneSentence: "short"}

	p := s.Serialize(&domain.AnalysisResult{
		OriginalText: "0123456789",
		Artifacts:    artifacts(3),
		Metadata:     map[string]any{"parser": "mineru-api-v4-batch"},
		Paper:        paper,
	})

	assert.True(t, p.Success)
	assert.Equal(t, "01234567"+TruncationMarker, p.OriginalText)
	assert.Empty(t, p.TranslatedText)
	assert.Same(t, paper, p.PaperAnalysis)
	assert.Equal(t, "mineru-api-v4-batch", p.Metadata["parser"])

	require.Len(t, p.Charts, 2)
	assert.Equal(t, "s_0", p.Charts[0].ID)
	assert.Equal(t, "/api/pdf-analyzer/image/s_0", p.Charts[0].ImageURL)
	assert.Equal(t, "image", p.Charts[0].Type)
	assert.Equal(t, 1, p.Charts[0].PageNumber)
	assert.Equal(t, "s_1", p.Charts[1].ID)
}

func TestSerializer_SerializeEmpty(t *testing.T) {
	t.Parallel()

	raw, err := NewSerializer(DefaultLimits(), nil).Encode(NewSerializer(DefaultLimits(), nil).Serialize(nil))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{}, decoded["charts"])
	assert.Equal(t, map[string]any{}, decoded["metadata"])
	assert.Nil(t, decoded["paperAnalysis"])
}

func TestSerializer_EncodeHasNoArtifactBytes(t *testing.T) {
	t.Parallel()

	s := NewSerializer(DefaultLimits(), nil)
	raw, err := s.Encode(s.Serialize(&domain.AnalysisResult{OriginalText: "a <b> & c\nnext", Artifacts: artifacts(1)}))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "binary")
	assert.NotContains(t, string(raw), "\n", "encoded payload fits one SSE data line")
	assert.Contains(t, string(raw), `"originalText":"a <b> & c\nnext"`)
}

func TestSerializer_EncodeFallback(t *testing.T) {
	t.Parallel()

	s := NewSerializer(Limits{MaxTextBytes: 1 << 20, MaxArtifacts: 50, FallbackTextBytes: 4, FallbackArtifacts: 1}, nil)
	p := s.Serialize(&domain.AnalysisResult{
		OriginalText: "abcdefgh",
		Artifacts:    artifacts(3),
		Metadata:     map[string]any{"score": math.NaN()},
		Paper:        &domain.PaperAnalysis{OneSentence: "x"},
	})

	raw, err := s.Encode(p)
	require.NoError(t, err)

	var decoded Payload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Success)
	assert.Equal(t, "abcd", decoded.OriginalText)
	assert.Len(t, decoded.Charts, 1)
	assert.Empty(t, decoded.Metadata)
	assert.Nil(t, decoded.PaperAnalysis)
}

func TestEmptyResult(t *testing.T) {
	t.Parallel()

	var decoded Payload
	require.NoError(t, json.Unmarshal(EmptyResult(), &decoded))
	assert.True(t, decoded.Success)
	assert.Empty(t, decoded.OriginalText)
	assert.NotNil(t, decoded.Charts)
	assert.Empty(t, decoded.Charts)
	assert.Empty(t, decoded.Metadata)
	assert.Nil(t, decoded.PaperAnalysis)
}

func TestNewSerializer_Defaults(t *testing.T) {
	t.Parallel()

	s := NewSerializer(Limits{}, nil)
	assert.Equal(t, DefaultLimits(), s.limits)

	big := strings.Repeat("x", (2<<20)+1)
	p := s.Serialize(&domain.AnalysisResult{OriginalText: big})
	assert.Equal(t, 2<<20+len(TruncationMarker), len(p.OriginalText))
}

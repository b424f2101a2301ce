package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/generation"
)

// fallbackCategory labels a figure the model described without JSON.
const fallbackCategory = "chart"

const fallbackSummaryRunes = 50

// AnalyzeImage sends the image inline with the figure prompt and parses the
// JSON description.
func (a *Analyzer) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*domain.ImageAnalysis, error) {
	if len(data) == 0 {
		return nil, generation.ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: imagePrompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		},
	}}

	a.logger.DebugContext(ctx, "image analysis requested", "mime_type", mimeType, "bytes", len(data))

	text, err := a.generateWithRetry(ctx, contents)
	if err != nil {
		return nil, err
	}

	analysis, err := parseImageAnalysis(text)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "image analysis completed", "category", analysis.Category, "key_points", len(analysis.KeyPoints))
	return analysis, nil
}

// parseImageAnalysis decodes the JSON object in text. A reply without any
// JSON object becomes a generic description built from the reply itself.
func parseImageAnalysis(text string) (*domain.ImageAnalysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		summary := strings.TrimSpace(text)
		if r := []rune(summary); len(r) > fallbackSummaryRunes {
			summary = string(r[:fallbackSummaryRunes])
		}
		return &domain.ImageAnalysis{Category: fallbackCategory, Summary: summary, KeyPoints: []string{}}, nil
	}

	var analysis domain.ImageAnalysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("%w: failed to parse image analysis: %v", generation.ErrInvalidResponse, err)
	}
	if analysis.KeyPoints == nil {
		analysis.KeyPoints = []string{}
	}
	return &analysis, nil
}

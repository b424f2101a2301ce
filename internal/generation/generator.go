package generation

import (
	"context"

	"github.com/phrazzld/docstream/internal/domain"
)

// PaperAnalyzer produces a structured summary of a research paper.
type PaperAnalyzer interface {
	// AnalyzePaper sends paperText to the model and returns the parsed analysis.
	// Errors wrap one of the sentinels in errors.go.
	AnalyzePaper(ctx context.Context, paperText string) (*domain.PaperAnalysis, error)
}

// AnalyzerSource resolves a PaperAnalyzer for a request. apiKey overrides the
// configured credential when non-empty; ErrInvalidConfig is returned when no
// credential is available.
type AnalyzerSource interface {
	Analyzer(ctx context.Context, apiKey string) (PaperAnalyzer, error)
}

// AnalyzerFunc adapts a function to PaperAnalyzer.
type AnalyzerFunc func(ctx context.Context, paperText string) (*domain.PaperAnalysis, error)

// AnalyzePaper calls f.
func (f AnalyzerFunc) AnalyzePaper(ctx context.Context, paperText string) (*domain.PaperAnalysis, error) {
	return f(ctx, paperText)
}

// ImageAnalyzer describes a single figure with a multimodal model.
type ImageAnalyzer interface {
	// AnalyzeImage classifies the image and returns a short summary with key points.
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*domain.ImageAnalysis, error)
}

// ImageAnalyzerSource resolves an ImageAnalyzer the way AnalyzerSource
// resolves a PaperAnalyzer.
type ImageAnalyzerSource interface {
	ImageAnalyzer(ctx context.Context, apiKey string) (ImageAnalyzer, error)
}

// ImageAnalyzerFunc adapts a function to ImageAnalyzer.
type ImageAnalyzerFunc func(ctx context.Context, data []byte, mimeType string) (*domain.ImageAnalysis, error)

// AnalyzeImage calls f.
func (f ImageAnalyzerFunc) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*domain.ImageAnalysis, error) {
	return f(ctx, data, mimeType)
}

package payload

import "github.com/phrazzld/docstream/internal/domain"

// Payload is the final result delivered in the complete event and by the
// blocking analyze endpoint.
type Payload struct {
	Success        bool                  `json:"success"`
	OriginalText   string                `json:"originalText"`
	TranslatedText string                `json:"translatedText"`
	Charts         []ArtifactRef         `json:"charts"`
	Metadata       map[string]any        `json:"metadata"`
	PaperAnalysis  *domain.PaperAnalysis `json:"paperAnalysis"`
}

// ArtifactRef points at an artifact served by the image endpoint. Artifact
// bytes never travel in the payload.
type ArtifactRef struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	PageNumber int      `json:"pageNumber"`
	ImageURL   string   `json:"imageUrl"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"keyPoints"`
	Category   string   `json:"category"`
	Filename   string   `json:"filename"`
}

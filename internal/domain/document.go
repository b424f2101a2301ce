package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Input is the document submitted for analysis: either raw PDF bytes or a URL.
type Input struct {
	Filename string
	Data     []byte
	URL      string
}

// IsURL reports whether the document is fetched by the parse service itself.
func (in Input) IsURL() bool {
	return in.URL != ""
}

// Validate checks the input before any task is created.
// maxBytes bounds uploaded documents; zero disables the check.
func (in Input) Validate(maxBytes int64) error {
	hasData := len(in.Data) > 0
	hasURL := in.URL != ""

	switch {
	case !hasData && !hasURL:
		return fmt.Errorf("%w: either a PDF file or a URL is required", ErrValidation)
	case hasData && hasURL:
		return fmt.Errorf("%w: provide a PDF file or a URL, not both", ErrValidation)
	case hasURL:
		u, err := url.Parse(in.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: URL must be an absolute http(s) URL", ErrValidation)
		}
		return nil
	}

	if !strings.EqualFold(filepath.Ext(in.Filename), ".pdf") {
		return fmt.Errorf("%w: only PDF files are supported", ErrValidation)
	}
	if maxBytes > 0 && int64(len(in.Data)) > maxBytes {
		return fmt.Errorf("%w: file exceeds %d MB limit", ErrValidation, maxBytes/(1024*1024))
	}
	return nil
}

// Options are the per-request feature flags.
type Options struct {
	Translate        bool
	ExtractArtifacts bool
	AnalyzePaper     bool
}

// Artifact is a binary object (usually an image) extracted from a parsed document.
type Artifact struct {
	ID        string
	Format    string
	Filename  string
	Page      int
	Title     string
	Summary   string
	KeyPoints []string
	Category  string
	Data      []byte
}

// ContentType returns the MIME type used when the artifact is served.
func (a Artifact) ContentType() string {
	if a.Format == "" {
		return "application/octet-stream"
	}
	return "image/" + a.Format
}

// ParseResult is the output of a completed parse job.
type ParseResult struct {
	Text      string
	Artifacts []Artifact
	Metadata  map[string]any
}

// AnalysisResult is the aggregated output handed to the serializer.
type AnalysisResult struct {
	OriginalText   string
	TranslatedText string
	Artifacts      []Artifact
	Metadata       map[string]any
	Paper          *PaperAnalysis
}

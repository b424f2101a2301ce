package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/domain"
)

// TruncationMarker is appended to text cut at the byte budget.
const TruncationMarker = "\n\n[text truncated]"

// DefaultImagePath is the URL prefix artifact references point at.
const DefaultImagePath = "/api/pdf-analyzer/image/"

// Limits bounds the payload size.
type Limits struct {
	MaxTextBytes      int
	MaxArtifacts      int
	FallbackTextBytes int
	FallbackArtifacts int
	// ImagePath prefixes artifact ids to form imageUrl.
	ImagePath string
}

// LimitsFromConfig builds Limits from payload configuration.
func LimitsFromConfig(cfg config.PayloadConfig) Limits {
	return Limits{
		MaxTextBytes:      cfg.MaxTextBytes,
		MaxArtifacts:      cfg.MaxArtifacts,
		FallbackTextBytes: cfg.FallbackTextBytes,
		FallbackArtifacts: cfg.FallbackArtifacts,
		ImagePath:         DefaultImagePath,
	}
}

// DefaultLimits are 2 MiB of text and 100 artifacts, falling back to 100000
// bytes and 20 artifacts.
func DefaultLimits() Limits {
	return Limits{
		MaxTextBytes:      2 << 20,
		MaxArtifacts:      100,
		FallbackTextBytes: 100000,
		FallbackArtifacts: 20,
		ImagePath:         DefaultImagePath,
	}
}

// Serializer produces bounded payloads.
type Serializer struct {
	limits Limits
	logger *slog.Logger
}

// NewSerializer creates a Serializer. Zero limits take their defaults.
func NewSerializer(limits Limits, logger *slog.Logger) *Serializer {
	def := DefaultLimits()
	if limits.MaxTextBytes <= 0 {
		limits.MaxTextBytes = def.MaxTextBytes
	}
	if limits.MaxArtifacts <= 0 {
		limits.MaxArtifacts = def.MaxArtifacts
	}
	if limits.FallbackTextBytes <= 0 {
		limits.FallbackTextBytes = def.FallbackTextBytes
	}
	if limits.FallbackArtifacts <= 0 {
		limits.FallbackArtifacts = def.FallbackArtifacts
	}
	if limits.ImagePath == "" {
		limits.ImagePath = def.ImagePath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Serializer{limits: limits, logger: logger.With("component", "payload_serializer")}
}

// Serialize converts result to a Payload within the configured budgets.
func (s *Serializer) Serialize(result *domain.AnalysisResult) Payload {
	if result == nil {
		result = &domain.AnalysisResult{}
	}

	artifacts := result.Artifacts
	if len(artifacts) > s.limits.MaxArtifacts {
		s.logger.Warn("artifact list capped", "artifacts", len(artifacts), "max", s.limits.MaxArtifacts)
		artifacts = artifacts[:s.limits.MaxArtifacts]
	}

	refs := make([]ArtifactRef, 0, len(artifacts))
	for _, a := range artifacts {
		refs = append(refs, s.ref(a))
	}

	metadata := result.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return Payload{
		Success:        true,
		OriginalText:   Truncate(result.OriginalText, s.limits.MaxTextBytes),
		TranslatedText: Truncate(result.TranslatedText, s.limits.MaxTextBytes),
		Charts:         refs,
		Metadata:       metadata,
		PaperAnalysis:  result.Paper,
	}
}

func (s *Serializer) ref(a domain.Artifact) ArtifactRef {
	keyPoints := a.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	return ArtifactRef{
		ID:         a.ID,
		Type:       "image",
		PageNumber: a.Page,
		ImageURL:   s.limits.ImagePath + a.ID,
		Title:      a.Title,
		Summary:    a.Summary,
		KeyPoints:  keyPoints,
		Category:   a.Category,
		Filename:   a.Filename,
	}
}

// Encode marshals p. If that fails it encodes a minimal payload instead: text
// cut to the fallback budget, at most FallbackArtifacts references, empty
// metadata and no paper analysis. An error wraps domain.ErrSerialization and
// is only returned when the minimal payload cannot be encoded either.
func (s *Serializer) Encode(p Payload) (json.RawMessage, error) {
	raw, err := marshal(p)
	if err == nil {
		return raw, nil
	}

	s.logger.Warn("payload encoding failed, using minimal payload", "error", err)

	charts := p.Charts
	if len(charts) > s.limits.FallbackArtifacts {
		charts = charts[:s.limits.FallbackArtifacts]
	}
	if charts == nil {
		charts = []ArtifactRef{}
	}

	minimal := Payload{
		Success:      true,
		OriginalText: Cut(p.OriginalText, s.limits.FallbackTextBytes),
		Charts:       charts,
		Metadata:     map[string]any{},
	}

	raw, err = marshal(minimal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	return raw, nil
}

// EmptyResult is the payload sent when a result cannot be encoded at all.
func EmptyResult() json.RawMessage {
	return json.RawMessage(`{"success":true,"originalText":"","charts":[],"metadata":{}}`)
}

func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Truncate cuts text to at most maxBytes bytes on a rune boundary and appends
// TruncationMarker. Text within budget is returned unchanged.
func Truncate(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	return Cut(text, maxBytes) + TruncationMarker
}

// Cut returns the longest prefix of text that fits maxBytes without splitting a rune.
func Cut(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	i := maxBytes
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return text[:i]
}

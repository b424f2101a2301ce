package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/generation"
)

// contentGenerator is the subset of *genai.Models the analyzer needs.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Analyzer implements generation.PaperAnalyzer using the Gemini API.
type Analyzer struct {
	logger         *slog.Logger
	models         contentGenerator
	model          string
	promptTemplate *template.Template
	maxRetries     int
	baseDelay      time.Duration
}

var (
	_ generation.PaperAnalyzer = (*Analyzer)(nil)
	_ generation.ImageAnalyzer = (*Analyzer)(nil)
)

func newAnalyzer(models contentGenerator, tmpl *template.Template, cfg config.LLMConfig, logger *slog.Logger) *Analyzer {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &Analyzer{
		logger:         logger,
		models:         models,
		model:          cfg.ModelName,
		promptTemplate: tmpl,
		maxRetries:     maxRetries,
		baseDelay:      baseDelay,
	}
}

// AnalyzePaper renders the prompt for paperText and asks the model for a JSON analysis.
func (a *Analyzer) AnalyzePaper(ctx context.Context, paperText string) (*domain.PaperAnalysis, error) {
	prompt, err := renderPrompt(a.promptTemplate, paperText)
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "paper analysis prompt rendered",
		"text_length", len(paperText),
		"prompt_length", len(prompt))

	text, err := a.generateWithRetry(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(text)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "paper analysis completed", "key_steps", len(analysis.KeySteps))
	return analysis, nil
}

// generateWithRetry calls the model up to maxRetries+1 times. Transport errors
// are retried with exponential backoff and jitter; empty, blocked or malformed
// responses are returned immediately.
func (a *Analyzer) generateWithRetry(ctx context.Context, contents []*genai.Content) (string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	for attempt := 0; ; attempt++ {
		a.logger.InfoContext(ctx, "calling Gemini API",
			"attempt", attempt+1,
			"max_attempts", a.maxRetries+1)

		resp, err := a.models.GenerateContent(ctx, a.model, contents, cfg)
		if err == nil {
			return responseText(resp)
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}

		a.logger.WarnContext(ctx, "Gemini API call failed", "attempt", attempt+1, "error", err)

		if attempt >= a.maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, a.maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(a.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case len(resp.Candidates) == 0 || resp.Candidates[0] == nil:
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: response has no text", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}

// summaryEnvelope is the camelCase shape some prompts elicit: {"summary": {...}}.
type summaryEnvelope struct {
	Summary *struct {
		CoreProblem     string                 `json:"coreProblem"`
		PreviousDilemma string                 `json:"previousDilemma"`
		CoreIntuition   string                 `json:"coreIntuition"`
		KeySteps        []string               `json:"keySteps"`
		Innovations     domain.PaperInnovation `json:"innovations"`
		Boundaries      domain.PaperBoundary   `json:"boundaries"`
		OneSentence     string                 `json:"oneSentence"`
	} `json:"summary"`
}

// parseAnalysis decodes the model output, tolerating code fences or prose
// around the JSON object.
func parseAnalysis(text string) (*domain.PaperAnalysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", generation.ErrInvalidResponse)
	}
	raw := []byte(text[start : end+1])

	var analysis domain.PaperAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	if !analysis.IsEmpty() {
		return &analysis, nil
	}

	var env summaryEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Summary != nil {
		s := env.Summary
		analysis = domain.PaperAnalysis{
			CoreProblem:     s.CoreProblem,
			PreviousDilemma: s.PreviousDilemma,
			CoreIntuition:   s.CoreIntuition,
			KeySteps:        s.KeySteps,
			Innovations:     s.Innovations,
			Boundaries:      s.Boundaries,
			OneSentence:     s.OneSentence,
		}
		if !analysis.IsEmpty() {
			return &analysis, nil
		}
	}

	return nil, fmt.Errorf("%w: analysis has no content", generation.ErrInvalidResponse)
}

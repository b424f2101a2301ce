package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/genai"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/generation"
)

const clientCacheSize = 16

// Source builds Analyzers for the configured key or a per-request key.
type Source struct {
	logger *slog.Logger
	config config.LLMConfig
	tmpl   *template.Template

	mu    sync.Mutex
	cache *lru.Cache[string, *Analyzer]

	// newModels creates the API client for a key; replaced in tests.
	newModels func(ctx context.Context, apiKey string) (contentGenerator, error)
}

var (
	_ generation.AnalyzerSource      = (*Source)(nil)
	_ generation.ImageAnalyzerSource = (*Source)(nil)
)

// NewSource validates cfg and loads the prompt template. An empty API key is
// allowed; requests must then bring their own.
func NewSource(cfg config.LLMConfig, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	tmpl, err := loadPromptTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, *Analyzer](clientCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidConfig, err)
	}

	return &Source{
		logger:    logger.With("component", "gemini"),
		config:    cfg,
		tmpl:      tmpl,
		cache:     cache,
		newModels: newGenAIModels,
	}, nil
}

func newGenAIModels(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Configured reports whether a default API key is set.
func (s *Source) Configured() bool {
	return s.config.GeminiAPIKey != ""
}

// Analyzer returns an Analyzer for apiKey, falling back to the configured key.
func (s *Source) Analyzer(ctx context.Context, apiKey string) (generation.PaperAnalyzer, error) {
	a, err := s.analyzer(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ImageAnalyzer returns the same per-key client as Analyzer, used for figures.
func (s *Source) ImageAnalyzer(ctx context.Context, apiKey string) (generation.ImageAnalyzer, error) {
	a, err := s.analyzer(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Source) analyzer(ctx context.Context, apiKey string) (*Analyzer, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = s.config.GeminiAPIKey
	}
	if key == "" {
		return nil, fmt.Errorf("%w: gemini API key is not set", generation.ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.cache.Get(key); ok {
		return a, nil
	}

	models, err := s.newModels(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	a := newAnalyzer(models, s.tmpl, s.config, s.logger)
	s.cache.Add(key, a)
	return a, nil
}

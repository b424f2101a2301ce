package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phrazzld/docstream/internal/api"
	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/payload"
	"github.com/phrazzld/docstream/internal/platform/gemini"
	"github.com/phrazzld/docstream/internal/platform/memstore"
	"github.com/phrazzld/docstream/internal/platform/mineru"
	"github.com/phrazzld/docstream/internal/service/analysis"
	"github.com/phrazzld/docstream/internal/service/auth"
	"github.com/phrazzld/docstream/internal/task"
)

// application holds the shared dependencies of the server.
type application struct {
	config *config.Config
	logger *slog.Logger

	registry  *task.Registry
	artifacts *memstore.ArtifactStore
	parser    *mineru.Client
	analyzers *gemini.Source
	metrics   *prometheus.Registry

	// jwtService is nil when API authentication is disabled.
	jwtService auth.JWTService

	handler *api.AnalysisHandler
}

// newApplication wires every component from cfg. Nothing is started.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: prometheus.NewRegistry(),
	}
	app.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var err error
	if cfg.Auth.JWTSecret != "" {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication enabled",
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	} else {
		logger.Warn("JWT secret not set, API routes are unauthenticated")
	}

	app.artifacts, err = memstore.New(cfg.Artifacts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	app.registry = task.NewRegistry(task.RegistryConfig{
		TaskTimeout:   cfg.Task.Timeout(),
		SweepInterval: cfg.Task.SweepInterval(),
		MaxActive:     cfg.Task.MaxActive,
	}, logger)
	app.registry.OnRemove(func(taskID string) {
		app.artifacts.DeleteOwner(taskID)
	})

	app.parser, err = mineru.NewClient(cfg.Parser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create MinerU client: %w", err)
	}

	app.analyzers, err = gemini.NewSource(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create paper analyzer: %w", err)
	}

	orchestrator, err := analysis.New(analysis.ConfigFrom(cfg), analysis.Deps{
		Registry:   app.registry,
		Jobs:       app.parser,
		Analyzers:  app.analyzers,
		Artifacts:  app.artifacts,
		Serializer: payload.NewSerializer(payload.LimitsFromConfig(cfg.Payload), logger),
		Metrics:    analysis.MustNewMetrics(app.metrics),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	app.handler = api.NewAnalysisHandler(api.AnalysisHandlerDeps{
		Registry:           app.registry,
		Runner:             orchestrator,
		Parser:             app.parser,
		Analyzer:           app.analyzers,
		Artifacts:          app.artifacts,
		Images:             app.analyzers,
		MaxFileBytes:       cfg.Parser.MaxFileSizeBytes,
		ParserBaseURL:      cfg.Parser.BaseURL,
		StreamWriteTimeout: cfg.Server.StreamWriteTimeout(),
	})

	logger.Info("Application initialized",
		"parser_configured", app.parser.Configured(),
		"analyzer_configured", app.analyzers.Configured(),
		"max_active_tasks", cfg.Task.MaxActive)
	return app, nil
}

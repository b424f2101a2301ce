package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/platform/logger"
	"github.com/phrazzld/docstream/internal/service/auth"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "docstream",
		Short:         "PDF analysis service with streamed progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML/JSON/TOML config file; "+config.EnvPrefix+"_* environment variables override it")

	root.AddCommand(newServeCommand(&configPath), newTokenCommand(&configPath))
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromFile(*configPath)
			if err != nil {
				return err
			}

			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			log.Info("Server configuration loaded",
				"port", cfg.Server.Port,
				"log_level", cfg.Server.LogLevel,
				"parser_key_present", cfg.Parser.APIKey != "",
				"gemini_key_present", cfg.LLM.GeminiAPIKey != "",
				"auth_enabled", cfg.Auth.JWTSecret != "")

			app, err := newApplication(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)))
			if err != nil {
				return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
			}
			return app.Serve(cmd.Context(), ln)
		},
	}
}

// newTokenCommand mints a bearer token for the protected API routes.
func newTokenCommand(configPath *string) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an API access token signed with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromFile(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set; API authentication is disabled")
			}

			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, used as the rate limit key")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

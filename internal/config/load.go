package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. DOCSTREAM_SERVER_PORT for server.port.
const EnvPrefix = "DOCSTREAM"

// Load reads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile reads configuration from an optional YAML/JSON/TOML file and the
// environment. Environment variables take precedence over values from the file.
// Returns a populated Config or an error if loading or validation fails.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags on the loaded configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config validation failed: nil config")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers every known key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.stream_write_timeout_seconds", 30)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.prompt_template_path", "")

	v.SetDefault("parser.base_url", "https://mineru.net/api/v4")
	v.SetDefault("parser.api_key", "")
	v.SetDefault("parser.model_version", "vlm")
	v.SetDefault("parser.poll_interval_seconds", 5)
	v.SetDefault("parser.max_poll_attempts", 120)
	v.SetDefault("parser.request_timeout_seconds", 60)
	v.SetDefault("parser.download_timeout_seconds", 120)
	v.SetDefault("parser.max_retries", 3)
	v.SetDefault("parser.max_file_size_bytes", 50*1024*1024)
	v.SetDefault("parser.max_archive_bytes", 200*1024*1024)

	v.SetDefault("task.timeout_seconds", 600)
	v.SetDefault("task.sweep_interval_seconds", 60)
	v.SetDefault("task.removal_grace_seconds", 30)
	v.SetDefault("task.max_active", 5)
	v.SetDefault("task.heartbeat_interval_millis", 3000)
	v.SetDefault("task.keepalive_interval_millis", 6000)
	v.SetDefault("task.post_stage_timeout_seconds", 120)

	v.SetDefault("payload.max_text_bytes", 2*1024*1024)
	v.SetDefault("payload.max_artifacts", 100)
	v.SetDefault("payload.fallback_text_bytes", 100000)
	v.SetDefault("payload.fallback_artifacts", 20)
	v.SetDefault("payload.paper_text_bytes", 10000)
	v.SetDefault("payload.min_paper_text_bytes", 100)

	v.SetDefault("artifacts.max_entries", 2000)

	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 10)
}

package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Parser    ParserConfig    `mapstructure:"parser"     validate:"required"`
	Task      TaskConfig      `mapstructure:"task"       validate:"required"`
	Payload   PayloadConfig   `mapstructure:"payload"    validate:"required"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"  validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
	// StreamWriteTimeoutSeconds bounds each progress event write; a client
	// that stops reading is treated as gone.
	StreamWriteTimeoutSeconds int `mapstructure:"stream_write_timeout_seconds" validate:"gte=1"`
}

// AuthConfig contains authentication settings. An empty JWTSecret disables
// bearer-token authentication on the API routes.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// LLMConfig contains settings for the optional paper-analysis stage.
// An empty GeminiAPIKey means the stage is skipped unless a request supplies its own key.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key"`
	ModelName          string `mapstructure:"model_name"          validate:"required"`
	MaxRetries         int    `mapstructure:"max_retries"         validate:"gte=0,lte=5"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
	PromptTemplatePath string `mapstructure:"prompt_template_path"`
}

// ParserConfig configures the MinerU parse job service.
type ParserConfig struct {
	BaseURL                string `mapstructure:"base_url"                 validate:"required,url"`
	APIKey                 string `mapstructure:"api_key"`
	ModelVersion           string `mapstructure:"model_version"            validate:"required"`
	PollIntervalSeconds    int    `mapstructure:"poll_interval_seconds"    validate:"gte=1"`
	MaxPollAttempts        int    `mapstructure:"max_poll_attempts"        validate:"gte=1"`
	RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds"  validate:"gte=1"`
	DownloadTimeoutSeconds int    `mapstructure:"download_timeout_seconds" validate:"gte=1"`
	MaxRetries             int    `mapstructure:"max_retries"              validate:"gte=0"`
	MaxFileSizeBytes       int64  `mapstructure:"max_file_size_bytes"      validate:"gt=0"`
	MaxArchiveBytes        int64  `mapstructure:"max_archive_bytes"        validate:"gt=0"`
}

// TaskConfig controls task lifetime and the progress heartbeat.
type TaskConfig struct {
	TimeoutSeconds           int `mapstructure:"timeout_seconds"            validate:"gte=1"`
	SweepIntervalSeconds     int `mapstructure:"sweep_interval_seconds"     validate:"gte=1"`
	RemovalGraceSeconds      int `mapstructure:"removal_grace_seconds"      validate:"gte=0"`
	MaxActive                int `mapstructure:"max_active"                 validate:"gte=0"`
	HeartbeatIntervalMillis  int `mapstructure:"heartbeat_interval_millis"  validate:"gte=10"`
	KeepAliveIntervalMillis  int `mapstructure:"keepalive_interval_millis"  validate:"gte=10"`
	PostStageTimeoutSeconds  int `mapstructure:"post_stage_timeout_seconds" validate:"gte=1"`
}

// PayloadConfig bounds the size of the final result payload.
type PayloadConfig struct {
	MaxTextBytes      int `mapstructure:"max_text_bytes"      validate:"gt=0"`
	MaxArtifacts      int `mapstructure:"max_artifacts"       validate:"gt=0"`
	FallbackTextBytes int `mapstructure:"fallback_text_bytes" validate:"gt=0"`
	FallbackArtifacts int `mapstructure:"fallback_artifacts"  validate:"gt=0"`
	PaperTextBytes    int `mapstructure:"paper_text_bytes"    validate:"gt=0"`
	MinPaperTextBytes int `mapstructure:"min_paper_text_bytes" validate:"gte=0"`
}

// ArtifactsConfig sizes the in-memory artifact store.
type ArtifactsConfig struct {
	MaxEntries int `mapstructure:"max_entries" validate:"gt=0"`
}

// RateLimitConfig configures per-client ingress limiting. Zero values disable it.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int `mapstructure:"burst"               validate:"gte=0"`
}

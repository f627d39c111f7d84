// Package config loads bizdir settings from config.yaml and BIZDIR_* environment
// variables and sets up the global logger.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/bizdir/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Waterfall  WaterfallConfig  `yaml:"waterfall" mapstructure:"waterfall"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the admin HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ImportConfig configures the batch importer.
type ImportConfig struct {
	Confidence    int    `yaml:"confidence" mapstructure:"confidence" validate:"gte=0,lte=100"`
	DefaultSource string `yaml:"default_source" mapstructure:"default_source"`
	ImportedBy    string `yaml:"imported_by" mapstructure:"imported_by"`
}

// BatchConfig configures import batch maintenance.
type BatchConfig struct {
	FixWindowMins int `yaml:"fix_window_mins" mapstructure:"fix_window_mins" validate:"gt=0"`
	// FixPendingSchedule is a cron spec; empty disables the job.
	FixPendingSchedule string `yaml:"fix_pending_schedule" mapstructure:"fix_pending_schedule"`
}

// ReviewConfig configures review analysis.
type ReviewConfig struct {
	PageSize            int     `yaml:"page_size" mapstructure:"page_size" validate:"gt=0"`
	MaxPages            int     `yaml:"max_pages" mapstructure:"max_pages" validate:"gt=0"`
	ThrottleEvery       int     `yaml:"throttle_every" mapstructure:"throttle_every" validate:"gte=0"`
	ThrottleDelayMs     int     `yaml:"throttle_delay_ms" mapstructure:"throttle_delay_ms" validate:"gte=0"`
	AnalysisTimeoutSecs int     `yaml:"analysis_timeout_secs" mapstructure:"analysis_timeout_secs" validate:"gt=0"`
	UseLLM              bool    `yaml:"use_llm" mapstructure:"use_llm"`
	RequestsPerSec      float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec" validate:"gt=0"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeocodeConfig configures address geocoding.
type GeocodeConfig struct {
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec" validate:"gte=0"`
	// GoogleFallback retries Census misses with the Google Geocoding API using google.key.
	GoogleFallback bool `yaml:"google_fallback" mapstructure:"google_fallback"`
}

// WaterfallConfig points at an optional source-priority override file.
type WaterfallConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// ResilienceConfig tunes retry and circuit breaking for external calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures import health alerting.
type MonitoringConfig struct {
	// WebhookURL receives alerts as JSON; empty disables the background checker.
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours" validate:"gte=0"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
	MinValidationScore   float64 `yaml:"min_validation_score" mapstructure:"min_validation_score" validate:"gte=0,lte=100"`
	StalePendingMins     int     `yaml:"stale_pending_mins" mapstructure:"stale_pending_mins" validate:"gte=0"`
}

// Settings converts the section for resilience.NewGuard.
func (r ResilienceConfig) Settings() resilience.Settings {
	return resilience.Settings{
		MaxAttempts:      r.MaxAttempts,
		InitialBackoffMs: r.InitialBackoffMs,
		FailureThreshold: r.FailureThreshold,
		ResetTimeoutSecs: r.ResetTimeoutSecs,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BIZDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bizdir.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("import.confidence", 85)
	v.SetDefault("import.default_source", "csv_upload")
	v.SetDefault("import.imported_by", "cli")
	v.SetDefault("batch.fix_window_mins", 10)
	v.SetDefault("batch.fix_pending_schedule", "")
	v.SetDefault("review.page_size", 50)
	v.SetDefault("review.max_pages", 4)
	v.SetDefault("review.throttle_every", 10)
	v.SetDefault("review.throttle_delay_ms", 1000)
	v.SetDefault("review.analysis_timeout_secs", 10)
	v.SetDefault("review.use_llm", false)
	v.SetDefault("review.requests_per_sec", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("resilience.max_attempts", 2)
	v.SetDefault("resilience.initial_backoff_ms", 250)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("geocode.requests_per_sec", 10)
	v.SetDefault("geocode.google_fallback", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.min_validation_score", 70)
	v.SetDefault("monitoring.stale_pending_mins", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "import", "gmb", "geocode", "reviews", "serve" and "maintenance".
func (c *Config) Validate(mode string) error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}

	switch mode {
	case "import", "maintenance":
	case "geocode":
		if c.Geocode.GoogleFallback && c.Google.Key == "" {
			return eris.New("config: google.key is required when geocode.google_fallback is set")
		}
	case "gmb":
		if c.Google.Key == "" {
			return eris.New("config: google.key is required for gmb import")
		}
	case "reviews":
		if c.Review.UseLLM && c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required when review.use_llm is set")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port must be > 0 and <= 65535, got %d", c.Server.Port)
		}
		if c.Review.UseLLM && c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required when review.use_llm is set")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Midtrans   MidtransConfig   `yaml:"midtrans" mapstructure:"midtrans"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Refresh    RefreshConfig    `yaml:"refresh" mapstructure:"refresh"`
	Trust      TrustConfig      `yaml:"trust" mapstructure:"trust"`
	Cleanup    CleanupConfig    `yaml:"cleanup" mapstructure:"cleanup"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApifyConfig holds Apify actor settings for Google Maps scraping.
type ApifyConfig struct {
	Token               string  `yaml:"token" mapstructure:"token"`
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	MaxResultsPerSearch int     `yaml:"max_results_per_search" mapstructure:"max_results_per_search"`
	MaxSearchesPerRun   int     `yaml:"max_searches_per_run" mapstructure:"max_searches_per_run"`
	MinRating           float64 `yaml:"min_rating" mapstructure:"min_rating"`
	PollIntervalSecs    int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	RunTimeoutSecs      int     `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// NotionConfig holds Notion API credentials for the curated contractor DB.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	WorkerDB string `yaml:"worker_db" mapstructure:"worker_db"`
}

// AnthropicConfig holds Anthropic API settings for the fallback classifier.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// MidtransConfig holds Midtrans Snap settings for paid contact unlocks.
type MidtransConfig struct {
	ServerKey      string `yaml:"server_key" mapstructure:"server_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	SnapBaseURL    string `yaml:"snap_base_url" mapstructure:"snap_base_url"`
	UnlockPriceIDR int64  `yaml:"unlock_price_idr" mapstructure:"unlock_price_idr"`
}

// MatchConfig configures the ranking tables.
type MatchConfig struct {
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"`
}

// RefreshConfig configures the background cache refresh job.
type RefreshConfig struct {
	Specializations []string `yaml:"specializations" mapstructure:"specializations"`
	Location        string   `yaml:"location" mapstructure:"location"`
	CacheTTLHours   int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// TrustConfig configures stale trust-score recalculation.
type TrustConfig struct {
	StaleDays  int `yaml:"stale_days" mapstructure:"stale_days"`
	BatchLimit int `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// CleanupConfig configures scrape-job retention.
type CleanupConfig struct {
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ResilienceConfig tunes retry and circuit breaker behavior for external
// service calls.
type ResilienceConfig struct {
	RetryAttempts    int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBaseMs      int     `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	RetryMaxMs       int     `yaml:"retry_max_ms" mapstructure:"retry_max_ms"`
	RetryMultiplier  float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitter      float64 `yaml:"retry_jitter" mapstructure:"retry_jitter"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownS int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RENOVATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "renovation.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("apify.base_url", "https://api.apify.com")
	v.SetDefault("apify.max_results_per_search", 20)
	v.SetDefault("apify.max_searches_per_run", 5)
	v.SetDefault("apify.min_rating", 4.0)
	v.SetDefault("apify.poll_interval_secs", 5)
	v.SetDefault("apify.run_timeout_secs", 300)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("midtrans.base_url", "https://api.sandbox.midtrans.com")
	v.SetDefault("midtrans.snap_base_url", "https://app.sandbox.midtrans.com")
	v.SetDefault("midtrans.unlock_price_idr", 50000)
	v.SetDefault("refresh.specializations", []string{"pool", "bathroom", "kitchen", "general"})
	v.SetDefault("refresh.location", "Bali")
	v.SetDefault("refresh.cache_ttl_hours", 168)
	v.SetDefault("trust.stale_days", 30)
	v.SetDefault("trust.batch_limit", 1000)
	v.SetDefault("cleanup.retention_days", 90)
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.retry_base_ms", 500)
	v.SetDefault("resilience.retry_max_ms", 30000)
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.retry_jitter", 0.25)
	v.SetDefault("resilience.breaker_threshold", 5)
	v.SetDefault("resilience.breaker_cooldown_secs", 30)

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

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full engine configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Features FeaturesConfig `yaml:"features" mapstructure:"features"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Risk     RiskConfig     `yaml:"risk" mapstructure:"risk"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// FeaturesConfig configures feature extraction.
type FeaturesConfig struct {
	// HistoricalWindowDays bounds the lookback for win rates, market shares
	// and institution averages. 0 means all time.
	HistoricalWindowDays int `yaml:"historical_window_days" mapstructure:"historical_window_days"`
	// CoBidMinCount is the minimum number of prior shared tenders for a
	// bidder pair to count as clustered.
	CoBidMinCount int `yaml:"cobid_min_count" mapstructure:"cobid_min_count"`
}

// BatchConfig configures batch extraction.
type BatchConfig struct {
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TenderTimeoutSecs int     `yaml:"tender_timeout_secs" mapstructure:"tender_timeout_secs"`
}

// RiskConfig configures the composite scoring table.
type RiskConfig struct {
	// WeightsFile optionally points at a YAML file overriding the built-in
	// severity weights and level boundaries.
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// CacheConfig configures the optional local feature-vector cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RISKENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("features.historical_window_days", 0)
	v.SetDefault("features.cobid_min_count", 3)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.rate_per_sec", 0)
	v.SetDefault("batch.tender_timeout_secs", 30)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "vectors.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

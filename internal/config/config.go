// Package config loads placesync configuration from config.yaml and
// PLACESYNC_* environment variables.
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
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Yelp       YelpConfig       `yaml:"yelp" mapstructure:"yelp"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GoogleConfig configures the Google Places client.
type GoogleConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	PageDelayMS int     `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
}

// YelpConfig configures the Yelp Fusion client.
type YelpConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxResults int     `yaml:"max_results" mapstructure:"max_results"`
}

// GeocodeConfig configures the Nominatim city lookup.
type GeocodeConfig struct {
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent  string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// PipelineConfig tunes ingestion and combine runs.
type PipelineConfig struct {
	NormalizeWorkers int      `yaml:"normalize_workers" mapstructure:"normalize_workers"`
	UpsertRetries    int      `yaml:"upsert_retries" mapstructure:"upsert_retries"`
	ProviderOrder    []string `yaml:"provider_order" mapstructure:"provider_order"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	SkipRateThreshold    float64 `yaml:"skip_rate_threshold" mapstructure:"skip_rate_threshold"`
	StaleRunMinutes      int     `yaml:"stale_run_minutes" mapstructure:"stale_run_minutes"`
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
	v.SetEnvPrefix("PLACESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "placesync.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("google.key", "")
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("google.rate_per_sec", 5)
	v.SetDefault("google.page_delay_ms", 2000)
	v.SetDefault("google.max_results", 60)
	v.SetDefault("yelp.key", "")
	v.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	v.SetDefault("yelp.rate_per_sec", 5)
	v.SetDefault("yelp.max_results", 100)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "placesync/1.0")
	v.SetDefault("geocode.rate_per_sec", 1)
	v.SetDefault("pipeline.normalize_workers", 4)
	v.SetDefault("pipeline.upsert_retries", 3)
	v.SetDefault("pipeline.provider_order", []string{"google", "yelp"})
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.skip_rate_threshold", 0.5)
	v.SetDefault("monitoring.stale_run_minutes", 60)
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

// Validate checks the settings a command needs. mode is one of "store",
// "ingest:google", "ingest:yelp", "combine", "geocode" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store", "combine":
		errs = c.validateStore(errs)
	case "ingest:google":
		errs = c.validateStore(errs)
		if c.Google.Key == "" {
			errs = append(errs, "google.key is required")
		}
		if c.Google.RatePerSec <= 0 {
			errs = append(errs, "google.rate_per_sec must be > 0")
		}
	case "ingest:yelp":
		errs = c.validateStore(errs)
		if c.Yelp.Key == "" {
			errs = append(errs, "yelp.key is required")
		}
		if c.Yelp.RatePerSec <= 0 {
			errs = append(errs, "yelp.rate_per_sec must be > 0")
		}
	case "geocode":
		errs = c.validateStore(errs)
		if c.Geocode.UserAgent == "" {
			errs = append(errs, "geocode.user_agent is required")
		}
	case "serve":
		errs = c.validateStore(errs)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "combine" {
		if c.Pipeline.NormalizeWorkers <= 0 {
			errs = append(errs, "pipeline.normalize_workers must be > 0")
		}
		if c.Pipeline.UpsertRetries < 0 {
			errs = append(errs, "pipeline.upsert_retries must be >= 0")
		}
		for _, p := range c.Pipeline.ProviderOrder {
			if p != "google" && p != "yelp" {
				errs = append(errs, "pipeline.provider_order: unknown provider "+p)
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore(errs []string) []string {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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

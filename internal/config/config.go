package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/report"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Legacy   LegacyConfig   `yaml:"legacy" mapstructure:"legacy"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CatalogConfig locates the store pages and the product list.
type CatalogConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ProductsCSV string `yaml:"products_csv" mapstructure:"products_csv"`
}

// ScrapeConfig configures the concept page scraper.
type ScrapeConfig struct {
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxEditions    int     `yaml:"max_editions" mapstructure:"max_editions"`
}

// Timeout returns the per-request timeout.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnalysisConfig configures discount detection.
type AnalysisConfig struct {
	LookbackDays    int      `yaml:"lookback_days" mapstructure:"lookback_days"`
	Concurrency     int      `yaml:"concurrency" mapstructure:"concurrency"`
	FreeTokens      []string `yaml:"free_tokens" mapstructure:"free_tokens"`
	DuplicatePolicy string   `yaml:"duplicate_policy" mapstructure:"duplicate_policy"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LegacyConfig configures the legacy database import.
type LegacyConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	MaxLookbackDays int `yaml:"max_lookback_days" mapstructure:"max_lookback_days"`
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
	v.SetEnvPrefix("PSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ps-discounts.db")
	v.SetDefault("catalog.base_url", "https://store.playstation.com/tr-tr/concept/")
	v.SetDefault("catalog.products_csv", "playstation_games_with_concept_id.csv")
	v.SetDefault("scrape.workers", 5)
	v.SetDefault("scrape.timeout_secs", 20)
	v.SetDefault("scrape.requests_per_sec", 2.0)
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("scrape.max_editions", 5)
	v.SetDefault("analysis.lookback_days", 7)
	v.SetDefault("analysis.concurrency", 8)
	v.SetDefault("analysis.free_tokens", []string{})
	v.SetDefault("analysis.duplicate_policy", string(match.LastWins))
	v.SetDefault("report.output", "DISCOUNTS.md")
	v.SetDefault("report.format", string(report.FormatMarkdown))
	v.SetDefault("legacy.path", "playstation_games.db")
	v.SetDefault("legacy.timezone", "Europe/Istanbul")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.max_lookback_days", 90)
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

// Validate checks the settings a command needs. Mode is one of "store",
// "scrape", "analyze", "import" or "serve"; every mode includes "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "store":
	case "scrape":
		if c.Scrape.Workers < 1 {
			errs = append(errs, "scrape.workers must be >= 1")
		}
		if c.Scrape.TimeoutSecs < 1 {
			errs = append(errs, "scrape.timeout_secs must be >= 1")
		}
		if c.Scrape.RequestsPerSec < 0 {
			errs = append(errs, "scrape.requests_per_sec must be >= 0")
		}
		if c.Catalog.BaseURL == "" {
			errs = append(errs, "catalog.base_url is required")
		}
	case "analyze", "serve":
		if c.Analysis.LookbackDays < 1 {
			errs = append(errs, "analysis.lookback_days must be >= 1")
		}
		if c.Analysis.Concurrency < 1 {
			errs = append(errs, "analysis.concurrency must be >= 1")
		}
		if _, err := match.ParsePolicy(c.Analysis.DuplicatePolicy); err != nil {
			errs = append(errs, fmt.Sprintf("analysis.duplicate_policy %q is invalid", c.Analysis.DuplicatePolicy))
		}
		if mode == "analyze" {
			if _, err := report.ParseFormat(c.Report.Format); err != nil {
				errs = append(errs, fmt.Sprintf("report.format %q is invalid", c.Report.Format))
			}
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "import":
		if _, err := time.LoadLocation(c.Legacy.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("legacy.timezone %q is invalid", c.Legacy.Timezone))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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

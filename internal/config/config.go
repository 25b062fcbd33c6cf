// Package config loads application configuration and initializes logging.
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
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Retrieve RetrieveConfig `yaml:"retrieve" mapstructure:"retrieve"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Worker   WorkerConfig   `yaml:"worker" mapstructure:"worker"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the static HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// RenderConfig configures the headless-browser fetcher.
type RenderConfig struct {
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	WaitMillis  int  `yaml:"wait_millis" mapstructure:"wait_millis"`
	Headless    bool `yaml:"headless" mapstructure:"headless"`
}

// RetrieveConfig configures strategy selection. RenderFirstDomains start
// with the rendered strategy when rendering is allowed; NoFallbackDomains
// never escalate from static to rendered. The two lists are deliberately
// separate policies.
type RetrieveConfig struct {
	RenderFirstDomains []string `yaml:"render_first_domains" mapstructure:"render_first_domains"`
	NoFallbackDomains  []string `yaml:"no_fallback_domains" mapstructure:"no_fallback_domains"`
}

// SearchConfig configures the DuckDuckGo search capability.
type SearchConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Region       string  `yaml:"region" mapstructure:"region"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLSecs int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// StoreConfig configures the sqlite database backing the search cache and
// the sitemap registry.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RegistryConfig configures the sitemap registry.
type RegistryConfig struct {
	StalenessDays int `yaml:"staleness_days" mapstructure:"staleness_days"`
}

// WorkerConfig configures the worker transport.
type WorkerConfig struct {
	StartTimeoutSecs int `yaml:"start_timeout_secs" mapstructure:"start_timeout_secs"`
}

// ServerConfig configures the HTTP tool server.
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
	v.SetEnvPrefix("JUSTSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_body_bytes", 512*1024)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; JustScrape/1.0)")
	v.SetDefault("fetch.rate_per_sec", 1.0)
	v.SetDefault("render.timeout_secs", 30)
	v.SetDefault("render.wait_millis", 2000)
	v.SetDefault("render.headless", true)
	v.SetDefault("retrieve.render_first_domains", []string{
		"twitter.com", "x.com", "reddit.com", "youtube.com",
		"instagram.com", "facebook.com", "linkedin.com",
		"medium.com", "substack.com", "discord.com",
	})
	v.SetDefault("retrieve.no_fallback_domains", []string{})
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.region", "wt-wt")
	v.SetDefault("search.timeout_secs", 10)
	v.SetDefault("search.cache_ttl_secs", 300)
	v.SetDefault("search.rate_per_sec", 1.0)
	v.SetDefault("store.path", "justscrape.db")
	v.SetDefault("registry.staleness_days", 7)
	v.SetDefault("worker.start_timeout_secs", 10)
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

// InitLogger initializes the global zap logger. Logs go to stderr so the
// stdout wire protocol stays clean.
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
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Package config provides configuration management for the scholarly
// retrieval service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scholarly retrieval service.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Request contains request handling settings.
	Request RequestConfig `mapstructure:"request"`
	// Cache contains response cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Sources contains scholarly source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Unpaywall contains open-access PDF resolver settings.
	Unpaywall UnpaywallConfig `mapstructure:"unpaywall"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	// Defaults to stderr so stdout stays clean for response envelopes.
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`
	// Namespace is the prefix for all metric names.
	Namespace string `mapstructure:"namespace"`
}

// RequestConfig holds request handling settings.
type RequestConfig struct {
	// Timeout bounds a single request end to end, covering every
	// upstream call made on its behalf.
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// Capacity is the maximum number of entries per cache.
	Capacity int `mapstructure:"capacity"`
	// TTL is how long a cached response stays fresh.
	TTL time.Duration `mapstructure:"ttl"`
}

// SourcesConfig holds configuration for all scholarly source APIs.
type SourcesConfig struct {
	// GoogleScholar contains Google Scholar (SerpAPI) settings.
	GoogleScholar SourceConfig `mapstructure:"google_scholar"`
	// PubMed contains PubMed E-utilities settings.
	PubMed SourceConfig `mapstructure:"pubmed"`
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
	// OpenAIRE contains OpenAIRE API settings.
	OpenAIRE SourceConfig `mapstructure:"openaire"`
}

// SourceConfig holds configuration for a single scholarly source API.
type SourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g.
	// SCHOLARLY_SOURCES_GOOGLE_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// Email is the contact address sent to sources that ask for one.
	Email string `mapstructure:"email"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// UnpaywallConfig holds open-access PDF resolver settings.
type UnpaywallConfig struct {
	// Enabled controls whether PDF resolution is available.
	Enabled bool `mapstructure:"enabled"`
	// Email identifies the caller to Unpaywall (required by the API).
	Email string `mapstructure:"email"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// CacheCapacity bounds the per-DOI resolution cache.
	CacheCapacity int `mapstructure:"cache_capacity"`
	// CacheTTL is how long a resolution stays fresh.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SCHOLARLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scholarly-retrieval-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Sources.GoogleScholar.APIKey = os.Getenv("SCHOLARLY_SOURCES_GOOGLE_SCHOLAR_API_KEY")
	cfg.Sources.PubMed.APIKey = os.Getenv("SCHOLARLY_SOURCES_PUBMED_API_KEY")
	cfg.Sources.ArXiv.APIKey = os.Getenv("SCHOLARLY_SOURCES_ARXIV_API_KEY")
	cfg.Sources.OpenAIRE.APIKey = os.Getenv("SCHOLARLY_SOURCES_OPENAIRE_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "scholarly_retrieval")

	// Request defaults
	v.SetDefault("request.timeout", "60s")

	// Cache defaults
	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.ttl", "15m")

	// Sources defaults - Google Scholar via SerpAPI
	// (disabled until SCHOLARLY_SOURCES_GOOGLE_SCHOLAR_API_KEY is set)
	v.SetDefault("sources.google_scholar.enabled", true)
	v.SetDefault("sources.google_scholar.base_url", "https://serpapi.com/search")
	v.SetDefault("sources.google_scholar.timeout", "30s")
	v.SetDefault("sources.google_scholar.rate_limit", 1.0)
	v.SetDefault("sources.google_scholar.max_results", 20)

	// Sources defaults - PubMed
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.email", "")
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.rate_limit", 3.0) // NCBI allows max 3 req/sec without API key
	v.SetDefault("sources.pubmed.max_results", 100)

	// Sources defaults - arXiv
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 1.0/3.0) // arXiv asks for a 3s gap between calls
	v.SetDefault("sources.arxiv.max_results", 100)

	// Sources defaults - OpenAIRE
	v.SetDefault("sources.openaire.enabled", true)
	v.SetDefault("sources.openaire.base_url", "https://api.openaire.eu")
	v.SetDefault("sources.openaire.timeout", "30s")
	v.SetDefault("sources.openaire.rate_limit", 2.0)
	v.SetDefault("sources.openaire.max_results", 100)

	// Unpaywall defaults (disabled until an email is configured)
	v.SetDefault("unpaywall.enabled", true)
	v.SetDefault("unpaywall.email", "")
	v.SetDefault("unpaywall.base_url", "https://api.unpaywall.org")
	v.SetDefault("unpaywall.timeout", "30s")
	v.SetDefault("unpaywall.rate_limit", 10.0)
	v.SetDefault("unpaywall.cache_capacity", 4096)
	v.SetDefault("unpaywall.cache_ttl", "1h")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Request.Timeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}

	for name, src := range map[string]SourceConfig{
		"google_scholar": c.Sources.GoogleScholar,
		"pubmed":         c.Sources.PubMed,
		"arxiv":          c.Sources.ArXiv,
		"openaire":       c.Sources.OpenAIRE,
	} {
		if !src.Enabled {
			continue
		}
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required when the source is enabled", name)
		}
		if src.RateLimit <= 0 {
			return fmt.Errorf("sources.%s.rate_limit must be positive", name)
		}
	}

	if c.Unpaywall.Enabled && c.Unpaywall.RateLimit <= 0 {
		return fmt.Errorf("unpaywall.rate_limit must be positive")
	}

	return nil
}

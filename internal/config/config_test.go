package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output, "stdout is reserved for response envelopes")

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "scholarly_retrieval", cfg.Metrics.Namespace)

	assert.Equal(t, 60*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 1024, cfg.Cache.Capacity)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)

	assert.True(t, cfg.Sources.GoogleScholar.Enabled)
	assert.Equal(t, "https://serpapi.com/search", cfg.Sources.GoogleScholar.BaseURL)
	assert.Equal(t, 1.0, cfg.Sources.GoogleScholar.RateLimit)

	assert.True(t, cfg.Sources.PubMed.Enabled)
	assert.Equal(t, 3.0, cfg.Sources.PubMed.RateLimit)

	assert.True(t, cfg.Sources.ArXiv.Enabled)
	assert.Equal(t, "https://export.arxiv.org/api", cfg.Sources.ArXiv.BaseURL)
	assert.Equal(t, 1.0/3.0, cfg.Sources.ArXiv.RateLimit,
		"arXiv allows one call every three seconds")

	assert.True(t, cfg.Sources.OpenAIRE.Enabled)
	assert.Equal(t, "https://api.openaire.eu", cfg.Sources.OpenAIRE.BaseURL)

	assert.True(t, cfg.Unpaywall.Enabled)
	assert.Empty(t, cfg.Unpaywall.Email)
	assert.Equal(t, 4096, cfg.Unpaywall.CacheCapacity)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCHOLARLY_LOGGING_LEVEL", "debug")
	t.Setenv("SCHOLARLY_REQUEST_TIMEOUT", "10s")
	t.Setenv("SCHOLARLY_SOURCES_PUBMED_EMAIL", "dev@helixir.dev")
	t.Setenv("SCHOLARLY_UNPAYWALL_EMAIL", "oa@helixir.dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Request.Timeout)
	assert.Equal(t, "dev@helixir.dev", cfg.Sources.PubMed.Email)
	assert.Equal(t, "oa@helixir.dev", cfg.Unpaywall.Email)
}

func TestLoadSecretsFromEnvOnly(t *testing.T) {
	t.Setenv("SCHOLARLY_SOURCES_GOOGLE_SCHOLAR_API_KEY", "serp-key")
	t.Setenv("SCHOLARLY_SOURCES_PUBMED_API_KEY", "ncbi-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "serp-key", cfg.Sources.GoogleScholar.APIKey)
	assert.Equal(t, "ncbi-key", cfg.Sources.PubMed.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero request timeout", func(c *Config) { c.Request.Timeout = 0 }},
		{"zero cache capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"enabled source without base url", func(c *Config) { c.Sources.ArXiv.BaseURL = "" }},
		{"enabled source without rate limit", func(c *Config) { c.Sources.PubMed.RateLimit = 0 }},
		{"unpaywall without rate limit", func(c *Config) { c.Unpaywall.RateLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateSkipsDisabledSources(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Sources.OpenAIRE.Enabled = false
	cfg.Sources.OpenAIRE.BaseURL = ""
	assert.NoError(t, cfg.Validate())
}

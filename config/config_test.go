package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 200, cfg.Scrape.MaxItems)
	assert.Equal(t, 3, cfg.Scrape.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Scrape.BackoffUnit)
	assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Jobs.RetryUnit)
	assert.Equal(t, 25*time.Minute, cfg.Jobs.SoftLimit)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.HardLimit)
	assert.Equal(t, 90, cfg.Upkeep.RetentionDays)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCRAPE_MAX_ITEMS", "50")
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("JOB_SOFT_LIMIT", "10m")
	t.Setenv("VALKEY_TLS", "true")
	t.Setenv("QUEUE_BACKEND", "KAFKA")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")

	cfg := Load()
	assert.Equal(t, 50, cfg.Scrape.MaxItems)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.SoftLimit)
	assert.True(t, cfg.Cache.TLS)
	assert.Equal(t, "kafka", cfg.Queue.Backend)
	assert.Equal(t, 4, cfg.Jobs.Concurrency)
}

func TestLoadSourcesEmbedded(t *testing.T) {
	sources, err := LoadSources("")
	require.NoError(t, err)

	assert.Contains(t, SourceNames(sources), "yelp")
	assert.Equal(t, SourceKindReddit, sources["reddit"].Kind)
	generic := sources["generic"]
	assert.Equal(t, ".review-text", generic.Selectors[0])
	assert.Equal(t, 20, generic.MinLength)
	assert.Equal(t, 2000, generic.MaxLength)
}

func TestLoadSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  shop:
    selectors: [".r"]
    min_length: 5
`), 0o600))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"generic", "shop"}, SourceNames(sources))
	assert.Equal(t, SourceKindHTML, sources["shop"].Kind)
	assert.Equal(t, 5, sources["shop"].MinLength)
	assert.Equal(t, 2000, sources["shop"].MaxLength)
}

func TestParseSourcesRejectsBadDefinitions(t *testing.T) {
	_, err := ParseSources([]byte("sources:\n  x:\n    kind: ftp\n"))
	assert.Error(t, err)

	_, err = ParseSources([]byte("sources:\n  x:\n    min_length: 50\n    max_length: 10\n"))
	assert.Error(t, err)

	_, err = LoadSources("/does/not/exist.yaml")
	assert.Error(t, err)
}

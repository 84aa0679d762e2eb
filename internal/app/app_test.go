package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spacesedan/reviewflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	return config.Config{
		Stores: config.StoreConfig{Jobs: StoreMemory, Reviews: StoreMemory},
		Queue:  config.QueueConfig{Backend: QueueMemory},
		Cache:  config.CacheConfig{Backend: "lru", Size: 16, TTL: time.Minute},
		Model:  config.ModelConfig{Backend: "none"},
		Scrape: config.ScrapeConfig{MaxItems: 50, MaxRetries: 1, FetchTimeout: time.Second},
		Jobs:   config.JobConfig{MaxAttempts: 2, RetryUnit: time.Millisecond, Concurrency: 1},
		Upkeep: config.MaintenanceConfig{RetentionDays: 30, Interval: time.Hour},
	}
}

func TestNew_MemoryMode(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), false)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.True(t, a.InProcessWorkers())
	assert.Same(t, a.Reviews, a.Jobs, "memory mode shares one store")
	assert.NotEmpty(t, a.Extractor.Sources())
	assert.NotNil(t, a.Worker())
	assert.NotNil(t, a.Maintenance())

	e := a.HTTP()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"text":"Wonderful staff and a great experience"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "positive", body["sentiment"])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestNew_RejectsUnknownBackends(t *testing.T) {
	tests := map[string]func(*config.Config){
		"review store": func(c *config.Config) { c.Stores.Reviews = "sqlite" },
		"job store":    func(c *config.Config) { c.Stores.Jobs = "redis" },
		"queue":        func(c *config.Config) { c.Queue.Backend = "sqs" },
		"cache":        func(c *config.Config) { c.Cache.Backend = "memcached" },
		"model":        func(c *config.Config) { c.Model.Backend = "bert" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := memoryConfig()
			mutate(&cfg)
			_, err := New(context.Background(), cfg, false)
			assert.Error(t, err)
		})
	}
}

func TestNew_MissingSourcesFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.Scrape.SourcesFile = t.TempDir() + "/missing.yaml"
	_, err := New(context.Background(), cfg, false)
	assert.ErrorContains(t, err, "sources file")
}

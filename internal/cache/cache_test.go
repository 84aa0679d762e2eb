package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = models.Classification{
	Sentiment:  models.SentimentPositive,
	Emotion:    models.EmotionHappy,
	Confidence: 0.8,
}

func TestLRU(t *testing.T) {
	c := NewLRU(2, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "h1")
	assert.False(t, ok)

	c.Set(ctx, "h1", sample)
	got, ok := c.Get(ctx, "h1")
	require.True(t, ok)
	assert.Equal(t, sample, got)

	c.Set(ctx, "h2", sample)
	c.Set(ctx, "h3", sample)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpires(t *testing.T) {
	c := NewLRU(10, 20*time.Millisecond)
	c.Set(context.Background(), "h", sample)
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get(context.Background(), "h")
	assert.False(t, ok)
}

type mapStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func (m *mapStore) GetString(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func TestValkey(t *testing.T) {
	store := &mapStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
	c := NewValkey(store, 0)
	ctx := context.Background()

	c.Set(ctx, "abc", sample)
	assert.Equal(t, time.Hour, store.ttls[keyPrefix+"abc"])

	got, ok := c.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, sample.Sentiment, got.Sentiment)
	assert.Equal(t, sample.Confidence, got.Confidence)

	store.values[keyPrefix+"bad"] = "{not json"
	_, ok = c.Get(ctx, "bad")
	assert.False(t, ok)
}

func TestValkeyErrorsAreMisses(t *testing.T) {
	store := &mapStore{err: errors.New("connection refused")}
	c := NewValkey(store, time.Minute)

	c.Set(context.Background(), "abc", sample)
	_, ok := c.Get(context.Background(), "abc")
	assert.False(t, ok)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	c.Set(context.Background(), "x", sample)
	_, ok := c.Get(context.Background(), "x")
	assert.False(t, ok)
}

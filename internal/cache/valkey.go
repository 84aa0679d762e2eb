package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spacesedan/reviewflow/internal/models"
)

type stringStore interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// Valkey keeps classifications in a shared Valkey instance so every API
// replica benefits. Store errors are logged and treated as misses.
type Valkey struct {
	store stringStore
	ttl   time.Duration
}

func NewValkey(store stringStore, ttl time.Duration) *Valkey {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Valkey{store: store, ttl: ttl}
}

func (v *Valkey) Get(ctx context.Context, hash string) (models.Classification, bool) {
	raw, found, err := v.store.GetString(ctx, keyPrefix+hash)
	if err != nil {
		slog.Warn("[Cache] Valkey get failed", slog.String("error", err.Error()))
		return models.Classification{}, false
	}
	if !found {
		return models.Classification{}, false
	}

	var c models.Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		slog.Warn("[Cache] Discarding unreadable entry", slog.String("error", err.Error()))
		return models.Classification{}, false
	}
	return c, true
}

func (v *Valkey) Set(ctx context.Context, hash string, c models.Classification) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := v.store.SetString(ctx, keyPrefix+hash, string(raw), v.ttl); err != nil {
		slog.Warn("[Cache] Valkey set failed", slog.String("error", err.Error()))
	}
}

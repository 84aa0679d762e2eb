package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spacesedan/reviewflow/internal/models"
)

type LRU struct {
	entries *expirable.LRU[string, models.Classification]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 10000
	}
	return &LRU{entries: expirable.NewLRU[string, models.Classification](size, nil, ttl)}
}

func (l *LRU) Get(_ context.Context, hash string) (models.Classification, bool) {
	return l.entries.Get(keyPrefix + hash)
}

func (l *LRU) Set(_ context.Context, hash string, c models.Classification) {
	l.entries.Add(keyPrefix+hash, c)
}

func (l *LRU) Len() int {
	return l.entries.Len()
}

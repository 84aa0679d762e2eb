// Package cache memoizes classifications by content hash. A cache miss or a
// cache failure never changes a result, only how long it takes.
package cache

import (
	"context"

	"github.com/spacesedan/reviewflow/internal/models"
)

const keyPrefix = "reviewflow:classification:"

type Cache interface {
	Get(ctx context.Context, hash string) (models.Classification, bool)
	Set(ctx context.Context, hash string, c models.Classification)
}

type Nop struct{}

func (Nop) Get(context.Context, string) (models.Classification, bool) {
	return models.Classification{}, false
}

func (Nop) Set(context.Context, string, models.Classification) {}

// Package dedup identifies review text by content hash.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/models"
)

// HashOf returns the lowercase hex SHA-256 of the raw text bytes.
func HashOf(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type HashLookup interface {
	FindReviewByHash(ctx context.Context, hash string) (models.Review, error)
}

// Index answers "has this exact text been stored before". It is a read-only
// check; the storage unique constraint still has the final say on insert.
type Index struct {
	store HashLookup
}

func NewIndex(store HashLookup) *Index {
	return &Index{store: store}
}

func (i *Index) IsDuplicate(ctx context.Context, text string) (bool, error) {
	return i.Seen(ctx, HashOf(text))
}

func (i *Index) Seen(ctx context.Context, hash string) (bool, error) {
	_, err := i.store.FindReviewByHash(ctx, hash)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("duplicate lookup failed: %w", err)
	}
}

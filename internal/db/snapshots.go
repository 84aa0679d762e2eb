package db

import (
	"context"
	"fmt"
	"time"

	"github.com/spacesedan/reviewflow/internal/models"
)

type SnapshotRepository struct {
	pool PgxPool
}

func NewSnapshotRepository(pool PgxPool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

func (r *SnapshotRepository) SnapshotExists(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM analytics_snapshots WHERE date = $1)`,
		dateOnly(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot: %w", err)
	}
	return exists, nil
}

func (r *SnapshotRepository) InsertSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error {
	query := `
		INSERT INTO analytics_snapshots (date, total_reviews, positive_count, negative_count, neutral_count, avg_confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		dateOnly(s.Date), s.TotalReviews, s.PositiveCount, s.NegativeCount, s.NeutralCount, s.AvgConfidence,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

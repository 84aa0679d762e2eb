// Package maintenance runs the periodic upkeep jobs: the review retention
// sweep and the daily analytics snapshot.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/reviewflow/internal/models"
)

const (
	DefaultRetentionDays = 90
	DefaultInterval      = time.Hour
)

type ReviewPruner interface {
	DeleteReviewsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Snapshotter interface {
	DailySnapshot(ctx context.Context, day time.Time) (*models.AnalyticsSnapshot, error)
}

type Runner struct {
	reviews       ReviewPruner
	snapshots     Snapshotter
	retentionDays int
	interval      time.Duration
	now           func() time.Time
}

func NewRunner(reviews ReviewPruner, snapshots Snapshotter, retentionDays int, interval time.Duration) *Runner {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		reviews:       reviews,
		snapshots:     snapshots,
		retentionDays: retentionDays,
		interval:      interval,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RetentionSweep deletes reviews older than the retention window.
func (r *Runner) RetentionSweep(ctx context.Context) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -r.retentionDays)
	deleted, err := r.reviews.DeleteReviewsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	slog.Info("[Maintenance] Cleaned up old reviews",
		slog.Int64("deleted", deleted),
		slog.Int("retention_days", r.retentionDays))
	return deleted, nil
}

// Tick runs one round of upkeep: the retention sweep and the snapshot of the
// previous UTC day. A failing step is logged and does not stop
// the other.
func (r *Runner) Tick(ctx context.Context) {
	if _, err := r.RetentionSweep(ctx); err != nil {
		slog.Error("[Maintenance] Retention sweep failed", slog.String("error", err.Error()))
	}
	// Only completed days are rolled up; a snapshot is never rewritten.
	if _, err := r.snapshots.DailySnapshot(ctx, r.now().AddDate(0, 0, -1)); err != nil {
		slog.Error("[Maintenance] Daily snapshot failed", slog.String("error", err.Error()))
	}
}

func (r *Runner) Run(ctx context.Context) error {
	slog.Info("[Maintenance] Starting upkeep loop", slog.Duration("interval", r.interval))
	r.Tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Package analytics derives dashboards, trends and source comparisons from
// stored reviews. Nothing here writes reviews.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/models"
)

const (
	DefaultDashboardDays = 7
	MaxDashboardDays     = 90
	DefaultTrendDays     = 30
	MaxTrendDays         = 30

	dayLayout = "2006-01-02"
)

type ReviewReader interface {
	QueryReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error)
}

type SnapshotStore interface {
	SnapshotExists(ctx context.Context, date time.Time) (bool, error)
	InsertSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error
}

type Aggregator struct {
	reviews   ReviewReader
	snapshots SnapshotStore
	now       func() time.Time
}

func NewAggregator(reviews ReviewReader, snapshots SnapshotStore) *Aggregator {
	return &Aggregator{
		reviews:   reviews,
		snapshots: snapshots,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock fixes the aggregator's notion of now.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func clampDays(days, def, max int) int {
	if days <= 0 {
		return def
	}
	return min(days, max)
}

// window loads reviews from the start of the oldest of the last days calendar
// days (UTC, today included) up to now.
func (a *Aggregator) window(ctx context.Context, days int, source string) ([]models.Review, models.DateRange, error) {
	end := a.now()
	start := truncateDay(end).AddDate(0, 0, -(days - 1))
	reviews, err := a.reviews.QueryReviews(ctx, models.ReviewFilter{Start: start, Source: source})
	if err != nil {
		return nil, models.DateRange{}, fmt.Errorf("failed to load reviews: %w", err)
	}
	return reviews, models.DateRange{Start: start, End: end}, nil
}

// Dashboard summarises the last days days (default 7, at most 90).
func (a *Aggregator) Dashboard(ctx context.Context, days int) (models.Dashboard, error) {
	days = clampDays(days, DefaultDashboardDays, MaxDashboardDays)
	reviews, rng, err := a.window(ctx, days, "")
	if err != nil {
		return models.Dashboard{}, err
	}

	d := models.Dashboard{
		TotalReviews: len(reviews),
		SentimentCounts: map[string]int{
			string(models.SentimentPositive): 0,
			string(models.SentimentNegative): 0,
			string(models.SentimentNeutral):  0,
		},
		EmotionCounts: map[string]int{},
		SourceCounts:  map[string]int{},
		DateRange:     rng,
	}

	buckets := make(map[string]*models.DayBucket, days)
	today := truncateDay(rng.End)
	for i := days - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(dayLayout)
		buckets[key] = &models.DayBucket{Date: key}
		d.DailyTrends = append(d.DailyTrends, models.DayBucket{Date: key})
	}

	var confidence float64
	for _, r := range reviews {
		d.SentimentCounts[string(r.Sentiment)]++
		d.EmotionCounts[string(r.Emotion)]++
		if r.Source != nil && *r.Source != "" {
			d.SourceCounts[*r.Source]++
		}
		confidence += r.Confidence
		if b, ok := buckets[r.CreatedAt.UTC().Format(dayLayout)]; ok {
			b.Add(r.Sentiment)
		}
	}
	for i := range d.DailyTrends {
		d.DailyTrends[i] = *buckets[d.DailyTrends[i].Date]
	}

	if d.TotalReviews > 0 {
		d.SatisfactionScore = percent(d.SentimentCounts[string(models.SentimentPositive)], d.TotalReviews)
		d.AvgConfidence = round(confidence/float64(d.TotalReviews), 4)
	}
	return d, nil
}

// Trends reports per-day counts for days that have reviews, oldest first.
func (a *Aggregator) Trends(ctx context.Context, days int, source string) (models.Trends, error) {
	days = clampDays(days, DefaultTrendDays, MaxTrendDays)
	reviews, rng, err := a.window(ctx, days, source)
	if err != nil {
		return models.Trends{}, err
	}

	type acc struct {
		day        models.TrendDay
		confidence float64
	}
	byDay := map[string]*acc{}
	for _, r := range reviews {
		key := r.CreatedAt.UTC().Format(dayLayout)
		e, ok := byDay[key]
		if !ok {
			e = &acc{day: models.TrendDay{DayBucket: models.DayBucket{Date: key}, Emotions: map[string]int{}}}
			byDay[key] = e
		}
		e.day.Add(r.Sentiment)
		e.day.Emotions[string(r.Emotion)]++
		e.confidence += r.Confidence
	}

	out := models.Trends{Source: source, Days: make([]models.TrendDay, 0, len(byDay)), DateRange: rng}
	for _, e := range byDay {
		day := e.day
		day.PositivePct = percent(day.Positive, day.Total)
		day.NegativePct = percent(day.Negative, day.Total)
		day.NeutralPct = percent(day.Neutral, day.Total)
		day.AvgConfidence = round(e.confidence/float64(day.Total), 4)
		out.Days = append(out.Days, day)
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Date < out.Days[j].Date })
	return out, nil
}

// Comparison ranks sources by review volume, largest first. Reviews without
// a source are left out.
func (a *Aggregator) Comparison(ctx context.Context, days int) (models.Comparison, error) {
	days = clampDays(days, DefaultTrendDays, MaxTrendDays)
	reviews, rng, err := a.window(ctx, days, "")
	if err != nil {
		return models.Comparison{}, err
	}

	bySource := map[string]*models.SourceStats{}
	for _, r := range reviews {
		if r.Source == nil || *r.Source == "" {
			continue
		}
		s, ok := bySource[*r.Source]
		if !ok {
			s = &models.SourceStats{Source: *r.Source}
			bySource[*r.Source] = s
		}
		s.Total++
		switch r.Sentiment {
		case models.SentimentPositive:
			s.Positive++
		case models.SentimentNegative:
			s.Negative++
		default:
			s.Neutral++
		}
	}

	out := models.Comparison{Sources: make([]models.SourceStats, 0, len(bySource)), DateRange: rng}
	for _, s := range bySource {
		s.PositivePct = percent(s.Positive, s.Total)
		s.NegativePct = percent(s.Negative, s.Total)
		s.NeutralPct = percent(s.Neutral, s.Total)
		out.Sources = append(out.Sources, *s)
	}
	sort.Slice(out.Sources, func(i, j int) bool {
		if out.Sources[i].Total != out.Sources[j].Total {
			return out.Sources[i].Total > out.Sources[j].Total
		}
		return out.Sources[i].Source < out.Sources[j].Source
	})
	return out, nil
}

// DailySnapshot stores the rollup for the calendar day containing day. It
// returns nil when a snapshot already exists or the day has no reviews.
func (a *Aggregator) DailySnapshot(ctx context.Context, day time.Time) (*models.AnalyticsSnapshot, error) {
	start := truncateDay(day)
	key := start.Format(dayLayout)

	exists, err := a.snapshots.SnapshotExists(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if exists {
		slog.Info("[Analytics] Snapshot already exists", slog.String("date", key))
		return nil, nil
	}

	reviews, err := a.reviews.QueryReviews(ctx, models.ReviewFilter{Start: start, End: start.AddDate(0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	if len(reviews) == 0 {
		slog.Info("[Analytics] No reviews for day", slog.String("date", key))
		return nil, nil
	}

	snap := &models.AnalyticsSnapshot{Date: start, TotalReviews: len(reviews)}
	var confidence float64
	for _, r := range reviews {
		switch r.Sentiment {
		case models.SentimentPositive:
			snap.PositiveCount++
		case models.SentimentNegative:
			snap.NegativeCount++
		default:
			snap.NeutralCount++
		}
		confidence += r.Confidence
	}
	snap.AvgConfidence = round(confidence/float64(len(reviews)), 4)

	if err := a.snapshots.InsertSnapshot(ctx, snap); err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	slog.Info("[Analytics] Generated daily snapshot",
		slog.String("date", key),
		slog.Int("total_reviews", snap.TotalReviews))
	return snap, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

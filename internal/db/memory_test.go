package db

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memReview(text, hashChar string, sentiment models.Sentiment, created time.Time) *models.Review {
	return &models.Review{
		Text:        text,
		Sentiment:   sentiment,
		Emotion:     models.EmotionNeutral,
		Confidence:  0.6,
		ContentHash: strings.Repeat(hashChar, 64),
		CreatedAt:   created,
	}
}

func TestMemoryStore_ReviewUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertReview(ctx, memReview("one", "a", models.SentimentPositive, time.Time{})))
	err := store.InsertReview(ctx, memReview("one again", "a", models.SentimentPositive, time.Time{}))
	assert.ErrorIs(t, err, ErrDuplicateKey)

	got, err := store.FindReviewByHash(ctx, strings.Repeat("a", 64))
	require.NoError(t, err)
	assert.Equal(t, "one", got.Text)

	_, err = store.FindReviewByHash(ctx, strings.Repeat("z", 64))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentInsertSameHash(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	saved, dupes := 0, 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.InsertReview(context.Background(), memReview("same", "c", models.SentimentNeutral, time.Time{}))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				saved++
			} else if assert.ErrorIs(t, err, ErrDuplicateKey) {
				dupes++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, saved)
	assert.Equal(t, 19, dupes)
}

func TestMemoryStore_QueryAndRetention(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertReview(ctx, memReview("old", "1", models.SentimentNegative, now.AddDate(0, 0, -100))))
	require.NoError(t, store.InsertReview(ctx, memReview("recent", "2", models.SentimentPositive, now.AddDate(0, 0, -2))))
	require.NoError(t, store.InsertReview(ctx, memReview("today", "3", models.SentimentPositive, now)))

	got, err := store.QueryReviews(ctx, models.ReviewFilter{Sentiment: models.SentimentPositive})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "today", got[0].Text)

	n, err := store.CountReviews(ctx, models.ReviewFilter{Start: now.AddDate(0, 0, -7), End: now})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := store.QueryReviews(ctx, models.ReviewFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "recent", page[0].Text)

	removed, err := store.DeleteReviewsBefore(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// the hash of a removed review is free again.
	require.NoError(t, store.InsertReview(ctx, memReview("old", "1", models.SentimentNegative, now)))
}

func TestMemoryStore_JobLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &models.ScrapeJob{ID: "j1", TaskHandle: "t1", Source: "yelp", URL: "https://y.io", MaxItems: 10}
	require.NoError(t, store.CreateJob(ctx, job))
	assert.ErrorIs(t, store.CreateJob(ctx, &models.ScrapeJob{ID: "j2", TaskHandle: "t1"}), ErrDuplicateKey)

	assert.ErrorIs(t, store.CompleteJob(ctx, "j1", 3), ErrInvalidTransition)
	require.NoError(t, store.MarkProcessing(ctx, "j1", 1))
	require.NoError(t, store.MarkProcessing(ctx, "j1", 2))
	require.NoError(t, store.CompleteJob(ctx, "j1", 3))

	got, err := store.GetJobByHandle(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.ReviewsCount)
	assert.Equal(t, 2, got.Attempts)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, store.FailJob(ctx, "j1", "too late"), ErrInvalidTransition)
	assert.ErrorIs(t, store.MarkProcessing(ctx, "j1", 3), ErrInvalidTransition)
	assert.ErrorIs(t, store.MarkProcessing(ctx, "missing", 1), ErrNotFound)
}

func TestMemoryStore_ListJobsByUser(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	ctx := context.Background()
	uid := int64(9)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateJob(ctx, &models.ScrapeJob{ID: id, TaskHandle: "t-" + id, UserID: &uid}))
	}
	require.NoError(t, store.CreateJob(ctx, &models.ScrapeJob{ID: "anon", TaskHandle: "t-anon"}))

	jobs, total, err := store.ListJobsByUser(ctx, &uid, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)

	jobs, total, err = store.ListJobsByUser(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "anon", jobs[0].ID)
}

func TestMemoryStore_Snapshots(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2025, 2, 3, 18, 0, 0, 0, time.UTC)

	exists, err := store.SnapshotExists(ctx, day)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.InsertSnapshot(ctx, &models.AnalyticsSnapshot{Date: day, TotalReviews: 2}))
	assert.ErrorIs(t, store.InsertSnapshot(ctx, &models.AnalyticsSnapshot{Date: day.Add(time.Hour)}), ErrDuplicateKey)

	exists, err = store.SnapshotExists(ctx, day.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Len(t, store.Snapshots(), 1)
}

package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spacesedan/reviewflow/internal/cache"
	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/dedup"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/sentiment"
	"github.com/spacesedan/reviewflow/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClassifier struct {
	inner Classifier
	calls int
	err   error
}

func (c *countingClassifier) Classify(ctx context.Context, text string) (models.Classification, error) {
	c.calls++
	if c.err != nil {
		return models.Classification{}, c.err
	}
	return c.inner.Classify(ctx, text)
}

func newClassifier() *countingClassifier {
	return &countingClassifier{inner: sentiment.NewEngineWithScorer(sentiment.NewKeywordScorer())}
}

func TestAnalyze_SavesThenReportsDuplicate(t *testing.T) {
	store := db.NewMemoryStore()
	svc := NewService(newClassifier(), store, nil, nil)
	uid := int64(3)

	first, err := svc.Analyze(context.Background(), "  The pasta was <b>amazing</b>  ", &uid)
	require.NoError(t, err)
	assert.True(t, first.Saved)
	assert.False(t, first.Duplicate)
	assert.Equal(t, models.SentimentPositive, first.Sentiment)
	require.NotNil(t, first.ReviewID)

	stored, err := store.FindReviewByHash(context.Background(), dedup.HashOf("The pasta was amazing"))
	require.NoError(t, err)
	assert.Equal(t, "manual", stored.SourceOrDefault())
	assert.Equal(t, &uid, stored.UserID)

	second, err := svc.Analyze(context.Background(), "The pasta was amazing", nil)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Saved)
	assert.Equal(t, first.Sentiment, second.Sentiment)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestAnalyze_CacheDoesNotChangeResult(t *testing.T) {
	classifier := newClassifier()
	lru := cache.NewLRU(10, time.Hour)
	cached := NewService(classifier, db.NewMemoryStore(), lru, nil)
	plain := NewService(newClassifier(), db.NewMemoryStore(), nil, nil)

	text := "Awful room, terrible smell"
	a, err := cached.Analyze(context.Background(), text, nil)
	require.NoError(t, err)
	b, err := cached.Analyze(context.Background(), text, nil)
	require.NoError(t, err)
	c, err := plain.Analyze(context.Background(), text, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, 1, lru.Len())
	assert.Equal(t, a.Sentiment, b.Sentiment)
	assert.Equal(t, a.Confidence, c.Confidence)
	assert.Equal(t, a.Emotion, c.Emotion)
}

func TestAnalyze_RejectsInvalidText(t *testing.T) {
	svc := NewService(newClassifier(), db.NewMemoryStore(), nil, nil)

	_, err := svc.Analyze(context.Background(), "<p>ok</p>", nil)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "text", verr.Field)
}

func TestAnalyze_ClassifierError(t *testing.T) {
	classifier := newClassifier()
	classifier.err = errors.New("backend down")
	store := db.NewMemoryStore()

	_, err := NewService(classifier, store, nil, nil).Analyze(context.Background(), "Some decent text", nil)
	require.Error(t, err)

	n, err := store.CountReviews(context.Background(), models.ReviewFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

// racingReviews misses on lookup but loses the insert to a concurrent writer.
type racingReviews struct{}

func (racingReviews) FindReviewByHash(context.Context, string) (models.Review, error) {
	return models.Review{}, db.ErrNotFound
}

func (racingReviews) InsertReview(context.Context, *models.Review) error {
	return db.ErrDuplicateKey
}

func TestAnalyze_LateDuplicateOnInsert(t *testing.T) {
	svc := NewService(newClassifier(), racingReviews{}, nil, nil)

	res, err := svc.Analyze(context.Background(), "Great food and amazing staff", nil)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Saved)
	assert.Nil(t, res.ReviewID)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
}

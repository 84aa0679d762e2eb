package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHash = strings.Repeat("a", 64)

func reviewRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "text", "sentiment", "emotion", "confidence", "source", "content_hash", "user_id", "scrape_job_id", "created_at"})
}

func newTestReview() *models.Review {
	src := "yelp"
	return &models.Review{
		Text:        "Great tacos",
		Sentiment:   models.SentimentPositive,
		Emotion:     models.EmotionHappy,
		Confidence:  0.7,
		Source:      &src,
		ContentHash: testHash,
	}
}

func TestReviewRepository_InsertReview(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReviewRepository(mock)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs("Great tacos", "positive", "happy", 0.7, pgxmock.AnyArg(), testHash, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), created))

	review := newTestReview()
	require.NoError(t, repo.InsertReview(context.Background(), review))
	assert.Equal(t, int64(42), review.ID)
	assert.Equal(t, created, review.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_InsertReviewDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReviewRepository(mock)
	mock.ExpectQuery("INSERT INTO reviews").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reviews_content_hash_key"})

	err = repo.InsertReview(context.Background(), newTestReview())
	assert.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_InsertReviewRejectsInvalid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	review := newTestReview()
	review.Confidence = 1.5
	assert.Error(t, NewReviewRepository(mock).InsertReview(context.Background(), review))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_FindReviewByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReviewRepository(mock)
	src := "amazon"
	created := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM reviews WHERE content_hash").
		WithArgs(testHash).
		WillReturnRows(reviewRows().AddRow(int64(7), "Solid", "positive", "neutral", 0.7, &src, testHash, nil, nil, created))

	got, err := repo.FindReviewByHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, models.SentimentPositive, got.Sentiment)
	require.NotNil(t, got.Source)
	assert.Equal(t, "amazon", *got.Source)
	assert.Nil(t, got.UserID)

	mock.ExpectQuery("SELECT (.+) FROM reviews WHERE content_hash").
		WithArgs("missing").
		WillReturnRows(reviewRows())

	_, err = repo.FindReviewByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_QueryReviews(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReviewRepository(mock)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	created := start.Add(time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM reviews WHERE sentiment = \$1 AND created_at >= \$2 ORDER BY created_at DESC, id DESC LIMIT 10`).
		WithArgs("negative", start).
		WillReturnRows(reviewRows().
			AddRow(int64(2), "Cold food", "negative", "sad", 0.7, nil, testHash, nil, nil, created).
			AddRow(int64(1), "Rude staff", "negative", "angry", 0.8, nil, strings.Repeat("b", 64), nil, nil, created))

	got, err := repo.QueryReviews(context.Background(), models.ReviewFilter{
		Sentiment: models.SentimentNegative,
		Start:     start,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.EmotionAngry, got[1].Emotion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_CountReviews(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reviews WHERE source = \$1`).
		WithArgs("yelp").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := NewReviewRepository(mock).CountReviews(context.Background(), models.ReviewFilter{Source: "yelp"})
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_DeleteReview(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReviewRepository(mock)
	mock.ExpectExec("DELETE FROM reviews WHERE id").WithArgs(int64(5)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM reviews WHERE id").WithArgs(int64(6)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteReview(context.Background(), 5))
	assert.ErrorIs(t, repo.DeleteReview(context.Background(), 6), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_DeleteReviewsBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM reviews WHERE created_at").WithArgs(cutoff).WillReturnResult(pgxmock.NewResult("DELETE", 17))

	n, err := NewReviewRepository(mock).DeleteReviewsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, Migrate(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

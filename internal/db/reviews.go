package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/spacesedan/reviewflow/internal/models"
)

const reviewColumns = "id, text, sentiment, emotion, confidence, source, content_hash, user_id, scrape_job_id, created_at"

type ReviewRepository struct {
	pool PgxPool
}

func NewReviewRepository(pool PgxPool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// InsertReview stores r and fills in its ID and CreatedAt. A content hash
// that already exists yields ErrDuplicateKey.
func (r *ReviewRepository) InsertReview(ctx context.Context, review *models.Review) error {
	if err := review.Validate(); err != nil {
		return fmt.Errorf("invalid review: %w", err)
	}

	query := `
		INSERT INTO reviews (text, sentiment, emotion, confidence, source, content_hash, user_id, scrape_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		review.Text,
		string(review.Sentiment),
		string(review.Emotion),
		review.Confidence,
		review.Source,
		review.ContentHash,
		review.UserID,
		review.ScrapeJobID,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) FindReviewByHash(ctx context.Context, hash string) (models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE content_hash = $1`
	review, err := scanReview(r.pool.QueryRow(ctx, query, hash))
	if err != nil {
		if isNoRows(err) {
			return models.Review{}, ErrNotFound
		}
		return models.Review{}, fmt.Errorf("failed to find review by hash: %w", err)
	}
	return review, nil
}

func (r *ReviewRepository) GetReview(ctx context.Context, id int64) (models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return models.Review{}, ErrNotFound
		}
		return models.Review{}, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

func (r *ReviewRepository) DeleteReview(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryReviews returns reviews matching filter, newest first.
func (r *ReviewRepository) QueryReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error) {
	builder := applyReviewFilter(psql.Select(reviewColumns).From("reviews"), filter).
		OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build review query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *ReviewRepository) CountReviews(ctx context.Context, filter models.ReviewFilter) (int, error) {
	query, args, err := applyReviewFilter(psql.Select("COUNT(*)").From("reviews"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return int(count), nil
}

// DeleteReviewsBefore removes reviews created before cutoff and returns how
// many were removed.
func (r *ReviewRepository) DeleteReviewsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reviews: %w", err)
	}
	return tag.RowsAffected(), nil
}

func applyReviewFilter(b sq.SelectBuilder, f models.ReviewFilter) sq.SelectBuilder {
	if f.Sentiment != "" {
		b = b.Where(sq.Eq{"sentiment": string(f.Sentiment)})
	}
	if f.Emotion != "" {
		b = b.Where(sq.Eq{"emotion": string(f.Emotion)})
	}
	if f.Source != "" {
		b = b.Where(sq.Eq{"source": f.Source})
	}
	if f.UserID != nil {
		b = b.Where(sq.Eq{"user_id": *f.UserID})
	}
	if !f.Start.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": f.Start})
	}
	if !f.End.IsZero() {
		b = b.Where(sq.Lt{"created_at": f.End})
	}
	return b
}

func scanReview(row scanner) (models.Review, error) {
	var (
		review    models.Review
		sentiment string
		emotion   string
	)
	err := row.Scan(
		&review.ID,
		&review.Text,
		&sentiment,
		&emotion,
		&review.Confidence,
		&review.Source,
		&review.ContentHash,
		&review.UserID,
		&review.ScrapeJobID,
		&review.CreatedAt,
	)
	if err != nil {
		return models.Review{}, err
	}
	review.Sentiment = models.Sentiment(sentiment)
	review.Emotion = models.Emotion(emotion)
	return review, nil
}

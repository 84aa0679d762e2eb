// Package analysis classifies a single caller-supplied text and stores it
// unless the same text has been stored before.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacesedan/reviewflow/internal/cache"
	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/dedup"
	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/validation"
)

type Classifier interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

type ReviewStore interface {
	InsertReview(ctx context.Context, review *models.Review) error
	FindReviewByHash(ctx context.Context, hash string) (models.Review, error)
}

type Result struct {
	Sentiment  models.Sentiment `json:"sentiment"`
	Emotion    models.Emotion   `json:"emotion"`
	Confidence float64          `json:"confidence"`
	Duplicate  bool             `json:"duplicate,omitempty"`
	Saved      bool             `json:"saved,omitempty"`
	ReviewID   *int64           `json:"review_id,omitempty"`
}

type Service struct {
	classifier Classifier
	reviews    ReviewStore
	index      *dedup.Index
	cache      cache.Cache
	sink       metrics.Sink
}

func NewService(classifier Classifier, reviews ReviewStore, c cache.Cache, sink metrics.Sink) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Service{
		classifier: classifier,
		reviews:    reviews,
		index:      dedup.NewIndex(reviews),
		cache:      c,
		sink:       sink,
	}
}

// Analyze sanitizes and classifies text. A text seen before is classified
// but not stored again.
func (s *Service) Analyze(ctx context.Context, raw string, userID *int64) (Result, error) {
	text, err := validation.Text(raw)
	if err != nil {
		return Result{}, err
	}
	hash := dedup.HashOf(text)

	c, err := s.classify(ctx, hash, text)
	if err != nil {
		return Result{}, err
	}
	res := Result{Sentiment: c.Sentiment, Emotion: c.Emotion, Confidence: c.Confidence}

	dup, err := s.index.Seen(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	if dup {
		slog.Info("[Analysis] Duplicate text detected, skipping save")
		s.sink.ReviewOutcome(metrics.ReviewDuplicate)
		res.Duplicate = true
		return res, nil
	}

	review := &models.Review{
		Text:        text,
		Sentiment:   c.Sentiment,
		Emotion:     c.Emotion,
		Confidence:  c.Confidence,
		ContentHash: hash,
		UserID:      userID,
	}
	switch err := s.reviews.InsertReview(ctx, review); {
	case err == nil:
		s.sink.ReviewOutcome(metrics.ReviewSaved)
		res.Saved = true
		res.ReviewID = &review.ID
	case errors.Is(err, db.ErrDuplicateKey):
		s.sink.ReviewOutcome(metrics.ReviewDuplicate)
		res.Duplicate = true
	default:
		s.sink.ReviewOutcome(metrics.ReviewFailed)
		return Result{}, fmt.Errorf("failed to save review: %w", err)
	}

	slog.Info("[Analysis] Text analyzed",
		slog.String("sentiment", string(res.Sentiment)),
		slog.String("emotion", string(res.Emotion)),
		slog.Float64("confidence", res.Confidence))
	return res, nil
}

func (s *Service) classify(ctx context.Context, hash, text string) (models.Classification, error) {
	if c, ok := s.cache.Get(ctx, hash); ok {
		s.sink.CacheLookup(true)
		return c, nil
	}
	s.sink.CacheLookup(false)

	c, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return models.Classification{}, fmt.Errorf("classification failed: %w", err)
	}
	s.cache.Set(ctx, hash, c)
	return c, nil
}

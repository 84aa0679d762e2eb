// Package pipeline turns a submitted URL into classified, deduplicated
// reviews: Service creates and schedules jobs, Pipeline runs them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/dedup"
	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/queue"
	"github.com/spacesedan/reviewflow/internal/utils"
)

const DefaultScrapeRetries = 3

type JobStore interface {
	CreateJob(ctx context.Context, job *models.ScrapeJob) error
	GetJobByHandle(ctx context.Context, handle string) (models.ScrapeJob, error)
	MarkProcessing(ctx context.Context, id string, attempt int) error
	CompleteJob(ctx context.Context, id string, reviewsCount int) error
	FailJob(ctx context.Context, id string, message string) error
	ListJobsByUser(ctx context.Context, userID *int64, limit, offset int) ([]models.ScrapeJob, int, error)
}

type ReviewStore interface {
	InsertReview(ctx context.Context, review *models.Review) error
	FindReviewByHash(ctx context.Context, hash string) (models.Review, error)
}

type Scraper interface {
	ScrapeWithRetry(ctx context.Context, source, url string, maxItems, maxRetries int) ([]string, error)
}

type Classifier interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

// RunStats counts what happened to the snippets of one run.
type RunStats struct {
	Scraped    int
	Saved      int
	Duplicates int
	Skipped    int
}

type Pipeline struct {
	jobs       JobStore
	reviews    ReviewStore
	index      *dedup.Index
	scraper    Scraper
	classifier Classifier
	maxRetries int
	batchSize  int
	sink       metrics.Sink
}

type Option func(*Pipeline)

func WithScrapeRetries(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

func WithMetrics(sink metrics.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

func NewPipeline(jobs JobStore, reviews ReviewStore, scraper Scraper, classifier Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		jobs:       jobs,
		reviews:    reviews,
		index:      dedup.NewIndex(reviews),
		scraper:    scraper,
		classifier: classifier,
		maxRetries: DefaultScrapeRetries,
		batchSize:  utils.DefaultBatchSize,
		sink:       metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one attempt of a scrape job. It satisfies queue.Runner.
func (p *Pipeline) Run(ctx context.Context, msg queue.JobMessage, lastAttempt bool) error {
	log := slog.With(slog.String("job_id", msg.JobID), slog.Int("attempt", msg.Attempt))

	if err := p.jobs.MarkProcessing(ctx, msg.JobID, msg.Attempt); err != nil {
		if errors.Is(err, db.ErrInvalidTransition) || errors.Is(err, db.ErrNotFound) {
			log.Warn("[Pipeline] Dropping message for job that cannot run", slog.String("error", err.Error()))
			return nil
		}
		return p.failure(ctx, msg, lastAttempt, "failed to start job", err)
	}
	log.Info("[Pipeline] Job started", slog.String("source", msg.Source), slog.String("url", msg.URL))

	snippets, err := p.scraper.ScrapeWithRetry(ctx, msg.Source, msg.URL, msg.MaxItems, p.maxRetries)
	if err != nil {
		return p.failure(ctx, msg, lastAttempt, "scrape failed", err)
	}
	if len(snippets) == 0 {
		return p.fail(ctx, msg.JobID, msgNoContent, nil)
	}

	stats, err := p.process(ctx, msg, snippets)
	if err != nil {
		return p.failure(ctx, msg, lastAttempt, "processing failed", err)
	}

	if err := p.jobs.CompleteJob(ctx, msg.JobID, stats.Saved); err != nil {
		if errors.Is(err, db.ErrInvalidTransition) {
			log.Warn("[Pipeline] Job reached a terminal state before completion")
			return nil
		}
		return p.failure(ctx, msg, lastAttempt, "failed to complete job", err)
	}

	p.sink.JobFinished(string(models.JobStatusCompleted))
	log.Info("[Pipeline] Job completed",
		slog.Int("scraped", stats.Scraped),
		slog.Int("saved", stats.Saved),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("skipped", stats.Skipped))
	return nil
}

// Fail records a final failure for a job. It satisfies queue.Runner.
func (p *Pipeline) Fail(ctx context.Context, jobID, message string) error {
	if err := p.jobs.FailJob(ctx, jobID, message); err != nil {
		if errors.Is(err, db.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	p.sink.JobFinished(string(models.JobStatusFailed))
	return nil
}

func (p *Pipeline) process(ctx context.Context, msg queue.JobMessage, snippets []string) (RunStats, error) {
	stats := RunStats{Scraped: len(snippets)}
	batch := utils.NewBatchBuffer[*models.Review](p.batchSize)
	seen := make(map[string]struct{}, len(snippets))
	source := msg.Source

	for _, text := range snippets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		hash := dedup.HashOf(text)
		if _, ok := seen[hash]; ok {
			stats.Duplicates++
			p.sink.ReviewOutcome(metrics.ReviewDuplicate)
			continue
		}
		seen[hash] = struct{}{}

		dup, err := p.index.Seen(ctx, hash)
		if err != nil {
			return stats, err
		}
		if dup {
			stats.Duplicates++
			p.sink.ReviewOutcome(metrics.ReviewDuplicate)
			continue
		}

		c, err := p.classifier.Classify(ctx, text)
		if err != nil {
			slog.Warn("[Pipeline] Skipping snippet that failed classification",
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()))
			stats.Skipped++
			p.sink.ReviewOutcome(metrics.ReviewFailed)
			continue
		}

		jobID := msg.JobID
		review := &models.Review{
			Text:        text,
			Sentiment:   c.Sentiment,
			Emotion:     c.Emotion,
			Confidence:  c.Confidence,
			Source:      &source,
			ContentHash: hash,
			UserID:      msg.UserID,
			ScrapeJobID: &jobID,
		}
		if err := review.Validate(); err != nil {
			slog.Warn("[Pipeline] Skipping invalid snippet",
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()))
			stats.Skipped++
			p.sink.ReviewOutcome(metrics.ReviewFailed)
			continue
		}
		if batch.Add(review) {
			if err := p.flush(ctx, msg.JobID, batch, &stats); err != nil {
				return stats, err
			}
		}
	}

	return stats, p.flush(ctx, msg.JobID, batch, &stats)
}

func (p *Pipeline) flush(ctx context.Context, jobID string, batch *utils.BatchBuffer[*models.Review], stats *RunStats) error {
	if batch.Len() == 0 {
		return nil
	}
	batch.LogFlush("Pipeline", jobID)
	for _, review := range batch.Drain() {
		err := p.reviews.InsertReview(ctx, review)
		switch {
		case err == nil:
			stats.Saved++
			p.sink.ReviewOutcome(metrics.ReviewSaved)
		case errors.Is(err, db.ErrDuplicateKey):
			stats.Duplicates++
			p.sink.ReviewOutcome(metrics.ReviewDuplicate)
		default:
			return fmt.Errorf("failed to save review: %w", err)
		}
	}
	return nil
}

// failure classifies an unexpected error. Exceeding the hard limit and the
// final attempt are written to the job; anything else is handed back to the
// worker for another attempt.
func (p *Pipeline) failure(ctx context.Context, msg queue.JobMessage, lastAttempt bool, what string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return p.fail(ctx, msg.JobID, msgTimeLimit, err)
	}
	if lastAttempt {
		return p.fail(ctx, msg.JobID, fmt.Sprintf("%s: %v", what, err), err)
	}
	slog.Warn("[Pipeline] Attempt failed, job stays in processing",
		slog.String("job_id", msg.JobID),
		slog.Int("attempt", msg.Attempt),
		slog.String("error", err.Error()))
	return &JobFailure{JobID: msg.JobID, Message: what, Transient: true, Err: err}
}

func (p *Pipeline) fail(ctx context.Context, jobID, message string, cause error) error {
	slog.Error("[Pipeline] Job failed", slog.String("job_id", jobID), slog.String("reason", message))
	if ferr := p.Fail(context.WithoutCancel(ctx), jobID, message); ferr != nil {
		slog.Error("[Pipeline] Could not record job failure",
			slog.String("job_id", jobID),
			slog.String("error", ferr.Error()))
	}
	return &JobFailure{JobID: jobID, Message: message, Err: cause}
}

package db

import (
	"context"
	"fmt"

	"github.com/spacesedan/reviewflow/internal/models"
)

const jobColumns = "id, task_handle, source, url, max_items, status, reviews_count, attempts, error_message, user_id, created_at, started_at, completed_at"

// JobRepository stores scrape jobs in PostgreSQL. Every status change is a
// single guarded UPDATE so a terminal job can never be moved again.
type JobRepository struct {
	pool PgxPool
}

func NewJobRepository(pool PgxPool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	query := `
		INSERT INTO scrape_jobs (id, task_handle, source, url, max_items, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	err := r.pool.QueryRow(ctx, query,
		job.ID, job.TaskHandle, job.Source, job.URL, job.MaxItems, string(job.Status), job.UserID,
	).Scan(&job.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create scrape job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (models.ScrapeJob, error) {
	return r.getBy(ctx, "id", id)
}

func (r *JobRepository) GetJobByHandle(ctx context.Context, handle string) (models.ScrapeJob, error) {
	return r.getBy(ctx, "task_handle", handle)
}

func (r *JobRepository) getBy(ctx context.Context, column, value string) (models.ScrapeJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE ` + column + ` = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if isNoRows(err) {
			return models.ScrapeJob{}, ErrNotFound
		}
		return models.ScrapeJob{}, fmt.Errorf("failed to get scrape job: %w", err)
	}
	return job, nil
}

// MarkProcessing moves a pending job (or re-enters a processing job on
// retry) into processing and records the attempt number.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string, attempt int) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2, attempts = $3, started_at = COALESCE(started_at, NOW())
		WHERE id = $1 AND status = ANY($4)`

	return r.transition(ctx, id, query, models.JobStatusProcessing, attempt)
}

func (r *JobRepository) CompleteJob(ctx context.Context, id string, reviewsCount int) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2, reviews_count = $3, error_message = NULL, completed_at = NOW()
		WHERE id = $1 AND status = ANY($4)`

	return r.transition(ctx, id, query, models.JobStatusCompleted, reviewsCount)
}

func (r *JobRepository) FailJob(ctx context.Context, id string, message string) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1 AND status = ANY($4)`

	return r.transition(ctx, id, query, models.JobStatusFailed, message)
}

func (r *JobRepository) transition(ctx context.Context, id, query string, to models.JobStatus, value any) error {
	from := statusStrings(models.SourcesFor(to))
	tag, err := r.pool.Exec(ctx, query, id, string(to), value, from)
	if err != nil {
		return fmt.Errorf("failed to move job %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetJob(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("job %s to %s: %w", id, to, ErrInvalidTransition)
}

// ListJobsByUser returns a page of jobs, newest first, and the total count.
// A nil userID lists jobs without an owner.
func (r *JobRepository) ListJobsByUser(ctx context.Context, userID *int64, limit, offset int) ([]models.ScrapeJob, int, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM scrape_jobs WHERE user_id IS NOT DISTINCT FROM $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scrape jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM scrape_jobs
		WHERE user_id IS NOT DISTINCT FROM $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scrape jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan scrape job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, int(total), rows.Err()
}

func statusStrings(statuses []models.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanJob(row scanner) (models.ScrapeJob, error) {
	var (
		job    models.ScrapeJob
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.TaskHandle,
		&job.Source,
		&job.URL,
		&job.MaxItems,
		&status,
		&job.ReviewsCount,
		&job.Attempts,
		&job.ErrorMessage,
		&job.UserID,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return models.ScrapeJob{}, err
	}
	job.Status = models.JobStatus(status)
	return job, nil
}

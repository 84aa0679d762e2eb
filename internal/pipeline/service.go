package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/queue"
	"github.com/spacesedan/reviewflow/internal/validation"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type SubmitRequest struct {
	Source   string `json:"source"`
	URL      string `json:"url"`
	MaxItems int    `json:"max_reviews"`
	UserID   *int64 `json:"-"`
}

type JobResult struct {
	JobID        string           `json:"job_id"`
	Status       models.JobStatus `json:"status"`
	ReviewsSaved int              `json:"reviews_saved"`
	Source       string           `json:"source"`
}

// StatusView is what a caller polling a task handle sees.
type StatusView struct {
	TaskID  string           `json:"task_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message,omitempty"`
	Result  *JobResult       `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type HistoryPage struct {
	Jobs        []models.ScrapeJob `json:"jobs"`
	Total       int                `json:"total"`
	Pages       int                `json:"pages"`
	CurrentPage int                `json:"current_page"`
}

type Service struct {
	jobs     JobStore
	queue    queue.Queue
	sources  []string
	maxItems int
}

// NewService builds the submission side. sources lists the accepted source
// tags and maxItems is the hard cap applied to every request.
func NewService(jobs JobStore, q queue.Queue, sources []string, maxItems int) *Service {
	return &Service{jobs: jobs, queue: q, sources: sources, maxItems: maxItems}
}

// Submit validates the request, records a pending job and schedules it.
// It does not wait for the job to run.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (models.ScrapeJob, error) {
	if err := validation.Source(req.Source, s.sources); err != nil {
		return models.ScrapeJob{}, err
	}
	if err := validation.URL(req.URL); err != nil {
		return models.ScrapeJob{}, err
	}

	job := models.ScrapeJob{
		ID:         uuid.NewString(),
		TaskHandle: uuid.NewString(),
		Source:     req.Source,
		URL:        req.URL,
		MaxItems:   validation.MaxItems(req.MaxItems, s.maxItems),
		Status:     models.JobStatusPending,
		UserID:     req.UserID,
	}
	if err := s.jobs.CreateJob(ctx, &job); err != nil {
		return models.ScrapeJob{}, fmt.Errorf("failed to create scrape job: %w", err)
	}

	msg := queue.JobMessage{
		JobID:      job.ID,
		TaskHandle: job.TaskHandle,
		Source:     job.Source,
		URL:        job.URL,
		MaxItems:   job.MaxItems,
		UserID:     job.UserID,
		Attempt:    1,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		slog.Error("[JobService] Failed to enqueue job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		if ferr := s.jobs.FailJob(context.WithoutCancel(ctx), job.ID, msgScheduleFault); ferr != nil {
			slog.Error("[JobService] Failed to record schedule failure",
				slog.String("job_id", job.ID),
				slog.String("error", ferr.Error()))
		}
		return models.ScrapeJob{}, fmt.Errorf("%s: %w", msgScheduleFault, err)
	}

	slog.Info("[JobService] Scrape job submitted",
		slog.String("job_id", job.ID),
		slog.String("task_id", job.TaskHandle),
		slog.String("source", job.Source),
		slog.Int("max_items", job.MaxItems))
	return job, nil
}

func (s *Service) Status(ctx context.Context, handle string) (StatusView, error) {
	job, err := s.jobs.GetJobByHandle(ctx, handle)
	if err != nil {
		return StatusView{}, err
	}

	view := StatusView{TaskID: handle, Status: job.Status}
	switch job.Status {
	case models.JobStatusPending:
		view.Message = "Task is waiting to be processed"
	case models.JobStatusProcessing:
		view.Message = "Task is being processed"
	case models.JobStatusCompleted:
		view.Result = &JobResult{
			JobID:        job.ID,
			Status:       job.Status,
			ReviewsSaved: job.ReviewsCount,
			Source:       job.Source,
		}
	case models.JobStatusFailed:
		view.Error = "unknown error"
		if job.ErrorMessage != nil {
			view.Error = *job.ErrorMessage
		}
	}
	return view, nil
}

// History pages through the caller's jobs, newest first. Pages are 1-based.
func (s *Service) History(ctx context.Context, userID *int64, page, perPage int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)

	jobs, total, err := s.jobs.ListJobsByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("failed to list scrape jobs: %w", err)
	}
	if jobs == nil {
		jobs = []models.ScrapeJob{}
	}
	return HistoryPage{
		Jobs:        jobs,
		Total:       total,
		Pages:       (total + perPage - 1) / perPage,
		CurrentPage: page,
	}, nil
}

package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spacesedan/reviewflow/internal/models"
)

// MemoryStore keeps reviews, jobs and snapshots in process. It enforces the
// same uniqueness and status rules as the PostgreSQL repositories and backs
// local development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	nextID    int64
	reviews   map[int64]models.Review
	byHash    map[string]int64
	jobs      map[string]models.ScrapeJob
	handles   map[string]string
	snapshots map[time.Time]models.AnalyticsSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		reviews:   make(map[int64]models.Review),
		byHash:    make(map[string]int64),
		jobs:      make(map[string]models.ScrapeJob),
		handles:   make(map[string]string),
		snapshots: make(map[time.Time]models.AnalyticsSnapshot),
	}
}

// WithClock replaces the store's time source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) InsertReview(_ context.Context, review *models.Review) error {
	if err := review.Validate(); err != nil {
		return fmt.Errorf("invalid review: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHash[review.ContentHash]; ok {
		return ErrDuplicateKey
	}
	m.nextID++
	review.ID = m.nextID
	if review.CreatedAt.IsZero() {
		review.CreatedAt = m.now()
	}
	m.reviews[review.ID] = *review
	m.byHash[review.ContentHash] = review.ID
	return nil
}

func (m *MemoryStore) FindReviewByHash(_ context.Context, hash string) (models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[hash]
	if !ok {
		return models.Review{}, ErrNotFound
	}
	return m.reviews[id], nil
}

func (m *MemoryStore) GetReview(_ context.Context, id int64) (models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reviews[id]
	if !ok {
		return models.Review{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) DeleteReview(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reviews[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.reviews, id)
	delete(m.byHash, r.ContentHash)
	return nil
}

func (m *MemoryStore) QueryReviews(_ context.Context, filter models.ReviewFilter) ([]models.Review, error) {
	m.mu.RLock()
	matched := m.matchReviews(filter)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MemoryStore) CountReviews(_ context.Context, filter models.ReviewFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matchReviews(filter)), nil
}

func (m *MemoryStore) matchReviews(f models.ReviewFilter) []models.Review {
	var out []models.Review
	for _, r := range m.reviews {
		switch {
		case f.Sentiment != "" && r.Sentiment != f.Sentiment:
		case f.Emotion != "" && r.Emotion != f.Emotion:
		case f.Source != "" && (r.Source == nil || *r.Source != f.Source):
		case f.UserID != nil && (r.UserID == nil || *r.UserID != *f.UserID):
		case !f.Start.IsZero() && r.CreatedAt.Before(f.Start):
		case !f.End.IsZero() && !r.CreatedAt.Before(f.End):
		default:
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryStore) DeleteReviewsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.reviews {
		if r.CreatedAt.Before(cutoff) {
			delete(m.reviews, id)
			delete(m.byHash, r.ContentHash)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateJob(_ context.Context, job *models.ScrapeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return ErrDuplicateKey
	}
	if _, ok := m.handles[job.TaskHandle]; ok {
		return ErrDuplicateKey
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	job.CreatedAt = m.now()
	m.jobs[job.ID] = *job
	m.handles[job.TaskHandle] = job.ID
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (models.ScrapeJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return models.ScrapeJob{}, ErrNotFound
	}
	return job, nil
}

func (m *MemoryStore) GetJobByHandle(ctx context.Context, handle string) (models.ScrapeJob, error) {
	m.mu.RLock()
	id, ok := m.handles[handle]
	m.mu.RUnlock()
	if !ok {
		return models.ScrapeJob{}, ErrNotFound
	}
	return m.GetJob(ctx, id)
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id string, attempt int) error {
	return m.transition(id, models.JobStatusProcessing, func(j *models.ScrapeJob) {
		j.Attempts = attempt
		if j.StartedAt == nil {
			now := m.now()
			j.StartedAt = &now
		}
	})
}

func (m *MemoryStore) CompleteJob(_ context.Context, id string, reviewsCount int) error {
	return m.transition(id, models.JobStatusCompleted, func(j *models.ScrapeJob) {
		now := m.now()
		j.ReviewsCount = reviewsCount
		j.ErrorMessage = nil
		j.CompletedAt = &now
	})
}

func (m *MemoryStore) FailJob(_ context.Context, id string, message string) error {
	return m.transition(id, models.JobStatusFailed, func(j *models.ScrapeJob) {
		now := m.now()
		j.ErrorMessage = &message
		j.CompletedAt = &now
	})
}

func (m *MemoryStore) transition(id string, to models.JobStatus, apply func(*models.ScrapeJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !models.CanTransition(job.Status, to) {
		return fmt.Errorf("job %s %s to %s: %w", id, job.Status, to, ErrInvalidTransition)
	}
	job.Status = to
	apply(&job)
	m.jobs[id] = job
	return nil
}

func (m *MemoryStore) ListJobsByUser(_ context.Context, userID *int64, limit, offset int) ([]models.ScrapeJob, int, error) {
	m.mu.RLock()
	var jobs []models.ScrapeJob
	for _, j := range m.jobs {
		if sameUser(j.UserID, userID) {
			jobs = append(jobs, j)
		}
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	total := len(jobs)
	if offset >= total {
		return nil, total, nil
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, total, nil
}

func sameUser(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *MemoryStore) SnapshotExists(_ context.Context, date time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.snapshots[dateOnly(date)]
	return ok, nil
}

func (m *MemoryStore) InsertSnapshot(_ context.Context, s *models.AnalyticsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dateOnly(s.Date)
	if _, ok := m.snapshots[key]; ok {
		return ErrDuplicateKey
	}
	s.ID = int64(len(m.snapshots) + 1)
	s.Date = key
	s.CreatedAt = m.now()
	m.snapshots[key] = *s
	return nil
}

// Snapshots returns every stored snapshot ordered by date.
func (m *MemoryStore) Snapshots() []models.AnalyticsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AnalyticsSnapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

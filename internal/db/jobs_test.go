package db

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "task_handle", "source", "url", "max_items", "status", "reviews_count", "attempts", "error_message", "user_id", "created_at", "started_at", "completed_at"})
}

func TestJobRepository_CreateJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO scrape_jobs").
		WithArgs("job-1", "task-1", "yelp", "https://example.com", 50, "pending", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	job := &models.ScrapeJob{ID: "job-1", TaskHandle: "task-1", Source: "yelp", URL: "https://example.com", MaxItems: 50}
	require.NoError(t, NewJobRepository(mock).CreateJob(context.Background(), job))
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, created, job.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetJobByHandle(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	msg := "no content found"
	created := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE task_handle").
		WithArgs("task-9").
		WillReturnRows(jobRows().AddRow("job-9", "task-9", "generic", "https://x.io", 100, "failed", 0, 1, &msg, nil, created, &created, &created))

	job, err := NewJobRepository(mock).GetJobByHandle(context.Background(), "task-9")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "no content found", *job.ErrorMessage)
	assert.True(t, job.IsTerminal())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_CompleteJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE scrape_jobs").
		WithArgs("job-1", "completed", 8, []string{"processing"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewJobRepository(mock).CompleteJob(context.Background(), "job-1", 8))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_TerminalJobRejectsTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Now().UTC()
	mock.ExpectExec("UPDATE scrape_jobs").
		WithArgs("job-1", "failed", "late failure", []string{"pending", "processing"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRows().AddRow("job-1", "task-1", "yelp", "https://x.io", 100, "completed", 4, 1, nil, nil, created, &created, &created))

	err = NewJobRepository(mock).FailJob(context.Background(), "job-1", "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_TransitionMissingJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE scrape_jobs").
		WithArgs("ghost", "processing", 1, []string{"pending", "processing"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("ghost").
		WillReturnRows(jobRows())

	err = NewJobRepository(mock).MarkProcessing(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_ListJobsByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	uid := int64(3)
	created := time.Now().UTC()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(&uid).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs").
		WithArgs(&uid, 10, 0).
		WillReturnRows(jobRows().AddRow("job-2", "task-2", "tripadvisor", "https://t.io", 100, "pending", 0, 0, nil, &uid, created, nil, nil))

	jobs, total, err := NewJobRepository(mock).ListJobsByUser(context.Background(), &uid, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, "tripadvisor", jobs[0].Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSnapshotRepository(mock)
	day := time.Date(2025, 4, 2, 15, 30, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO analytics_snapshots").
		WithArgs(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), 10, 6, 3, 1, 0.75).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), day))

	exists, err := repo.SnapshotExists(context.Background(), day)
	require.NoError(t, err)
	assert.False(t, exists)

	snap := &models.AnalyticsSnapshot{Date: day, TotalReviews: 10, PositiveCount: 6, NegativeCount: 3, NeutralCount: 1, AvgConfidence: 0.75}
	require.NoError(t, repo.InsertSnapshot(context.Background(), snap))
	assert.Equal(t, int64(1), snap.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

package models

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ScrapeJob tracks one asynchronous fetch-classify-persist run.
type ScrapeJob struct {
	ID           string     `json:"job_id" dynamodbav:"id"`
	TaskHandle   string     `json:"task_id" dynamodbav:"task_handle"`
	Source       string     `json:"source" dynamodbav:"source"`
	URL          string     `json:"url" dynamodbav:"url"`
	MaxItems     int        `json:"max_items" dynamodbav:"max_items"`
	Status       JobStatus  `json:"status" dynamodbav:"status"`
	ReviewsCount int        `json:"reviews_count" dynamodbav:"reviews_count"`
	Attempts     int        `json:"attempts" dynamodbav:"attempts"`
	ErrorMessage *string    `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	UserID       *int64     `json:"user_id,omitempty" dynamodbav:"user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at" dynamodbav:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (j ScrapeJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// CanTransition reports whether a job may move from one status to another.
// processing -> processing is a retry re-entry. pending -> failed covers jobs
// that could not be scheduled at all.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusProcessing || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// SourcesFor lists the statuses a job may leave to reach the target status.
func SourcesFor(to JobStatus) []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

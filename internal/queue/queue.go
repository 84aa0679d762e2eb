// Package queue moves scrape job messages from the API to workers and
// applies the retry policy when a run fails.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("queue closed")

type JobMessage struct {
	JobID      string    `json:"job_id"`
	TaskHandle string    `json:"task_handle"`
	Source     string    `json:"source"`
	URL        string    `json:"url"`
	MaxItems   int       `json:"max_items"`
	UserID     *int64    `json:"user_id,omitempty"`
	Attempt    int       `json:"attempt"`
	NotBefore  time.Time `json:"not_before,omitempty"`
}

// Handler processes one message. Its error is logged by the queue; retries
// are the handler's own business.
type Handler func(ctx context.Context, msg JobMessage) error

type Queue interface {
	Enqueue(ctx context.Context, msg JobMessage) error
	// Consume blocks, delivering messages to h until ctx is done or the
	// queue is closed.
	Consume(ctx context.Context, h Handler) error
	Close() error
}

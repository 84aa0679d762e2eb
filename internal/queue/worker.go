package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/reviewflow/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryUnit   = 60 * time.Second
	DefaultSoftLimit   = 25 * time.Minute
	DefaultHardLimit   = 30 * time.Minute
)

// RetryPolicy bounds how often a job run is attempted and how long to wait
// before attempt n+1 after attempt n failed.
type RetryPolicy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
}

func LinearRetryPolicy(maxAttempts int, unit time.Duration) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if unit <= 0 {
		unit = DefaultRetryUnit
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay: func(attempt int) time.Duration {
			return time.Duration(attempt) * unit
		},
	}
}

// Runner executes one attempt of a job. An error exposing Retryable() true
// asks for another attempt; anything else is final.
type Runner interface {
	Run(ctx context.Context, msg JobMessage, lastAttempt bool) error
	Fail(ctx context.Context, jobID, message string) error
}

type retryable interface {
	Retryable() bool
}

type Worker struct {
	queue     Queue
	runner    Runner
	policy    RetryPolicy
	softLimit time.Duration
	hardLimit time.Duration
	sink      metrics.Sink
	now       func() time.Time
}

type WorkerOption func(*Worker)

func WithLimits(soft, hard time.Duration) WorkerOption {
	return func(w *Worker) {
		if soft > 0 {
			w.softLimit = soft
		}
		if hard > 0 {
			w.hardLimit = hard
		}
	}
}

func WithMetrics(sink metrics.Sink) WorkerOption {
	return func(w *Worker) { w.sink = sink }
}

func NewWorker(q Queue, runner Runner, policy RetryPolicy, opts ...WorkerOption) *Worker {
	if policy.MaxAttempts < 1 || policy.Delay == nil {
		policy = LinearRetryPolicy(policy.MaxAttempts, 0)
	}
	w := &Worker{
		queue:     q,
		runner:    runner,
		policy:    policy,
		softLimit: DefaultSoftLimit,
		hardLimit: DefaultHardLimit,
		sink:      metrics.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Start(ctx context.Context) error {
	slog.Info("[Worker] Consuming scrape jobs",
		slog.Int("max_attempts", w.policy.MaxAttempts),
		slog.Duration("soft_limit", w.softLimit),
		slog.Duration("hard_limit", w.hardLimit))
	return w.queue.Consume(ctx, w.Handle)
}

// Handle runs one attempt under the hard time limit and schedules the next
// attempt when the failure is retryable and attempts remain.
func (w *Worker) Handle(ctx context.Context, msg JobMessage) error {
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}
	if err := w.waitUntil(ctx, msg.NotBefore); err != nil {
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.hardLimit)
	defer cancel()

	soft := time.AfterFunc(w.softLimit, func() {
		slog.Warn("[Worker] Job passed soft time limit",
			slog.String("job_id", msg.JobID),
			slog.Duration("soft_limit", w.softLimit))
	})
	defer soft.Stop()

	last := msg.Attempt >= w.policy.MaxAttempts
	err := w.runner.Run(jobCtx, msg, last)
	if err == nil {
		return nil
	}

	var r retryable
	if last || !errors.As(err, &r) || !r.Retryable() {
		return err
	}

	next := msg
	next.Attempt = msg.Attempt + 1
	delay := w.policy.Delay(msg.Attempt)
	next.NotBefore = w.now().Add(delay)

	slog.Warn("[Worker] Scheduling retry",
		slog.String("job_id", msg.JobID),
		slog.Int("next_attempt", next.Attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()))

	if qerr := w.queue.Enqueue(context.WithoutCancel(ctx), next); qerr != nil {
		reason := fmt.Sprintf("failed to schedule retry: %v", qerr)
		if ferr := w.runner.Fail(context.WithoutCancel(ctx), msg.JobID, reason); ferr != nil {
			slog.Error("[Worker] Failed to record abandoned job",
				slog.String("job_id", msg.JobID),
				slog.String("error", ferr.Error()))
		}
		return fmt.Errorf("%s: %w", reason, err)
	}
	w.sink.JobFinished("retried")
	return nil
}

func (w *Worker) waitUntil(ctx context.Context, at time.Time) error {
	d := at.Sub(w.now())
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue served by a fixed number of consumer
// goroutines. Messages with a future NotBefore are held back until due.
type MemoryQueue struct {
	ch        chan JobMessage
	consumers int
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewMemoryQueue(capacity, consumers int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 100
	}
	if consumers <= 0 {
		consumers = 1
	}
	return &MemoryQueue{
		ch:        make(chan JobMessage, capacity),
		consumers: consumers,
		done:      make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg JobMessage) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.mu.Unlock()

	if delay := time.Until(msg.NotBefore); delay > 0 {
		time.AfterFunc(delay, func() {
			if err := q.push(context.Background(), msg); err != nil {
				slog.Warn("[MemoryQueue] Dropped delayed message",
					slog.String("job_id", msg.JobID),
					slog.String("error", err.Error()))
			}
		})
		return nil
	}
	return q.push(ctx, msg)
}

func (q *MemoryQueue) push(ctx context.Context, msg JobMessage) error {
	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.consumers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case msg := <-q.ch:
					if err := h(ctx, msg); err != nil {
						slog.Error("[MemoryQueue] Handler failed",
							slog.Int("consumer", id),
							slog.String("job_id", msg.JobID),
							slog.String("error", err.Error()))
					}
				}
			}
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// Len reports messages waiting for a consumer, excluding delayed ones.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

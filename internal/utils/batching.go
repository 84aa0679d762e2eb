package utils

import (
	"log/slog"
	"sync"
)

const DefaultBatchSize = 25

// BatchBuffer collects items until the owner drains them. Add reports when
// the buffer has reached its size so callers can flush early.
type BatchBuffer[T any] struct {
	buffer     []T
	size       int
	bufferLock sync.Mutex
}

func NewBatchBuffer[T any](size int) *BatchBuffer[T] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchBuffer[T]{
		buffer: make([]T, 0, size),
		size:   size,
	}
}

func (b *BatchBuffer[T]) Add(item T) bool {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()

	b.buffer = append(b.buffer, item)
	return len(b.buffer) >= b.size
}

// Drain returns the buffered items in insertion order and empties the buffer.
func (b *BatchBuffer[T]) Drain() []T {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()

	if len(b.buffer) == 0 {
		return nil
	}

	batch := b.buffer
	b.buffer = make([]T, 0, b.size)
	return batch
}

func (b *BatchBuffer[T]) Len() int {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()
	return len(b.buffer)
}

func (b *BatchBuffer[T]) Peek() []T {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()

	return append([]T(nil), b.buffer...)
}

func (b *BatchBuffer[T]) LogFlush(component string, jobID string) {
	slog.Debug("["+component+"] Flushing batch",
		slog.String("job_id", jobID),
		slog.Int("batch_size", b.Len()))
}

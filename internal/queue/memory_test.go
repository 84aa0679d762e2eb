package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_DeliversToConsumers(t *testing.T) {
	q := NewMemoryQueue(10, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		_ = q.Consume(ctx, func(_ context.Context, msg JobMessage) error {
			mu.Lock()
			seen[msg.JobID] = true
			mu.Unlock()
			wg.Done()
			return nil
		})
	}()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.Enqueue(ctx, JobMessage{JobID: id}))
	}
	wg.Wait()
	assert.Len(t, seen, 5)
}

func TestMemoryQueue_HoldsDelayedMessages(t *testing.T) {
	q := NewMemoryQueue(10, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan time.Time, 1)
	go func() {
		_ = q.Consume(ctx, func(context.Context, JobMessage) error {
			got <- time.Now()
			return nil
		})
	}()

	start := time.Now()
	require.NoError(t, q.Enqueue(ctx, JobMessage{JobID: "later", NotBefore: start.Add(50 * time.Millisecond)}))
	assert.Equal(t, 0, q.Len())

	select {
	case at := <-got:
		assert.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed message was never delivered")
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(1, 1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), JobMessage{JobID: "x"}), ErrClosed)

	done := make(chan struct{})
	go func() {
		_ = q.Consume(context.Background(), func(context.Context, JobMessage) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after Close")
	}
}

func TestMemoryQueue_EnqueueRespectsContextWhenFull(t *testing.T) {
	q := NewMemoryQueue(1, 1)
	require.NoError(t, q.Enqueue(context.Background(), JobMessage{JobID: "1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, JobMessage{JobID: "2"}), context.DeadlineExceeded)
}

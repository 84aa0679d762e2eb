package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	topic, key string
	value      any
	closed     bool
}

func (f *fakePublisher) PublishJSON(_ context.Context, topic, key string, value any) error {
	f.topic, f.key, f.value = topic, key, value
	return nil
}

func (f *fakePublisher) Close() { f.closed = true }

type fakeSource struct {
	msgs []*kafka.Message
}

func (f *fakeSource) Next(context.Context) (*kafka.Message, error) {
	if len(f.msgs) == 0 {
		return nil, errors.New("drained")
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

type fakeCommitter struct {
	committed []*kafka.Message
}

func (f *fakeCommitter) Commit(_ context.Context, msg *kafka.Message) error {
	f.committed = append(f.committed, msg)
	return nil
}

func kafkaMessage(t *testing.T, v any) *kafka.Message {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return &kafka.Message{Value: b}
}

func TestKafkaQueue_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	q := newKafkaQueue("scrape-jobs", pub, nil, nil)

	msg := JobMessage{JobID: "job-1", Source: "yelp", Attempt: 1}
	require.NoError(t, q.Enqueue(context.Background(), msg))
	assert.Equal(t, "scrape-jobs", pub.topic)
	assert.Equal(t, "job-1", pub.key)
	assert.Equal(t, msg, pub.value)

	require.NoError(t, q.Close())
	assert.True(t, pub.closed)
}

func TestKafkaQueue_ConsumeCommitsEveryMessage(t *testing.T) {
	src := &fakeSource{msgs: []*kafka.Message{
		kafkaMessage(t, JobMessage{JobID: "ok"}),
		{Value: []byte("not json")},
		kafkaMessage(t, JobMessage{JobID: "fails"}),
	}}
	commits := &fakeCommitter{}
	q := newKafkaQueue("scrape-jobs", &fakePublisher{}, src, commits)

	var handled []string
	err := q.Consume(context.Background(), func(_ context.Context, msg JobMessage) error {
		handled = append(handled, msg.JobID)
		if msg.JobID == "fails" {
			return errors.New("boom")
		}
		return nil
	})

	assert.EqualError(t, err, "drained")
	assert.Equal(t, []string{"ok", "fails"}, handled)
	assert.Len(t, commits.committed, 3)
}

package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/reviewflow/internal/clients/kafka_client"
)

type publisher interface {
	PublishJSON(ctx context.Context, topic, key string, value any) error
	Close()
}

type messageSource interface {
	Next(ctx context.Context) (*kafka.Message, error)
}

type committer interface {
	Commit(ctx context.Context, msg *kafka.Message) error
}

// KafkaQueue publishes job messages transactionally and consumes them one at
// a time, committing each offset after its handler returns.
type KafkaQueue struct {
	topic  string
	pub    publisher
	src    messageSource
	commit committer
	close  func()
}

// NewKafkaQueue connects a producer and, when consume is set, a consumer.
func NewKafkaQueue(ctx context.Context, cfg kafka_client.KafkaConfig, consume bool) (*KafkaQueue, error) {
	if cfg.Topic == "" {
		cfg.Topic = kafka_client.KAFKA_TOPIC_SCRAPE_JOBS
	}
	p, err := kafka_client.NewProducer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	q := &KafkaQueue{topic: cfg.Topic, pub: p}
	if !consume {
		return q, nil
	}

	c, err := kafka_client.NewConsumer(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	q.src = kafka_client.NewKafkaMessageIterator(c)
	q.commit = kafka_client.NewCommitHandler(c)
	q.close = func() {
		if err := c.Close(); err != nil {
			slog.Warn("[KafkaQueue] Failed to close consumer", slog.String("error", err.Error()))
		}
	}
	return q, nil
}

func newKafkaQueue(topic string, pub publisher, src messageSource, commit committer) *KafkaQueue {
	return &KafkaQueue{topic: topic, pub: pub, src: src, commit: commit}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, msg JobMessage) error {
	return q.pub.PublishJSON(ctx, q.topic, msg.JobID, msg)
}

func (q *KafkaQueue) Consume(ctx context.Context, h Handler) error {
	if q.src == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		raw, err := q.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg JobMessage
		if err := json.Unmarshal(raw.Value, &msg); err != nil {
			slog.Error("[KafkaQueue] Dropping undecodable message",
				slog.String("offset", raw.TopicPartition.Offset.String()),
				slog.String("error", err.Error()))
		} else if err := h(ctx, msg); err != nil {
			slog.Error("[KafkaQueue] Handler failed",
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()))
		}

		if err := q.commit.Commit(ctx, raw); err != nil {
			return err
		}
	}
}

func (q *KafkaQueue) Close() error {
	if q.close != nil {
		q.close()
	}
	q.pub.Close()
	return nil
}

package kafka_client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type KafkaMessageIterator struct {
	consumer *kafka.Consumer
}

func NewKafkaMessageIterator(consumer *kafka.Consumer) *KafkaMessageIterator {
	return &KafkaMessageIterator{consumer: consumer}
}

// Next blocks until a message arrives or ctx is done. Poll timeouts are not
// failures; other read errors are retried a bounded number of times.
func (it *KafkaMessageIterator) Next(ctx context.Context) (*kafka.Message, error) {
	if it.consumer == nil {
		return nil, errors.New("[KafkaIterator] Kafka consumer has not been initialized")
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			slog.Warn("[KafkaIterator] Context cancelled, stopping iterator")
			return nil, ctx.Err()
		default:
		}

		msg, err := it.consumer.ReadMessage(POLL_INTERVAL)
		if err == nil {
			return msg, nil
		}

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) {
			switch kafkaErr.Code() {
			case kafka.ErrTimedOut:
				continue
			case kafka.ErrAllBrokersDown:
				slog.Error("[KafkaIterator] All Kafka brokers are down. Aborting")
				return nil, err
			}
		}

		failures++
		if failures >= MAX_RETRIES {
			return nil, errors.New("[KafkaIterator] Failed to read message after retries")
		}
		slog.Warn("[KafkaIterator] Failed to read message, retrying...",
			slog.Int("attempt", failures),
			slog.Int("max_retries", MAX_RETRIES),
			slog.String("error", err.Error()))
		time.Sleep(RETRY_DELAY)
	}
}

package kafka_client

type KafkaConfig struct {
	Broker          string
	GroupID         string
	Topic           string
	TransactionalID string
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Broker == "" {
		c.Broker = "localhost:29092"
	}
	if c.GroupID == "" {
		c.GroupID = "reviewflow-workers"
	}
	if c.Topic == "" {
		c.Topic = KAFKA_TOPIC_SCRAPE_JOBS
	}
	if c.TransactionalID == "" {
		c.TransactionalID = "reviewflow-producer-1"
	}
	return c
}

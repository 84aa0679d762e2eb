package kafka_client

import "time"

const KAFKA_TOPIC_SCRAPE_JOBS = "scrape-jobs" // job messages consumed by workers

const (
	MAX_RETRIES   = 5
	RETRY_DELAY   = 2 * time.Second
	POLL_INTERVAL = 500 * time.Millisecond
	FLUSH_TIMEOUT = 5000
)

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	Database DatabaseConfig
	Stores   StoreConfig
	AWS      AWSConfig
	Queue    QueueConfig
	Cache    CacheConfig
	Model    ModelConfig
	Reddit   RedditConfig
	Scrape   ScrapeConfig
	Jobs     JobConfig
	Upkeep   MaintenanceConfig
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// StoreConfig selects the storage backends: postgres, dynamodb (jobs only) or memory.
type StoreConfig struct {
	Jobs       string
	Reviews    string
	JobsTable  string
	AutoCreate bool
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

type QueueConfig struct {
	Backend string
	Broker  string
	GroupID string
	Topic   string
}

type CacheConfig struct {
	Backend  string
	Address  string
	Password string
	TLS      bool
	TTL      time.Duration
	Size     int
}

type ModelConfig struct {
	Backend           string
	Dir               string
	Sentiment         string
	Emotion           string
	SentimentEndpoint string
	EmotionEndpoint   string
	APIToken          string
	OpenAIKey         string
	OpenAIModel       string
	Timeout           time.Duration
}

type RedditConfig struct {
	ClientID     string
	ClientSecret string
}

type ScrapeConfig struct {
	SourcesFile  string
	MaxItems     int
	MaxRetries   int
	BackoffUnit  time.Duration
	FetchTimeout time.Duration
	HostInterval time.Duration
}

type JobConfig struct {
	MaxAttempts int
	RetryUnit   time.Duration
	SoftLimit   time.Duration
	HardLimit   time.Duration
	Concurrency int
}

type MaintenanceConfig struct {
	RetentionDays int
	Interval      time.Duration
}

// Load reads the process configuration from the environment. Call LoadEnv
// first to pull in the per-environment .env file.
func Load() Config {
	return Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "reviewflow"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "reviewflow"),
		},
		Stores: StoreConfig{
			Jobs:       strings.ToLower(getEnv("JOB_STORE", "postgres")),
			Reviews:    strings.ToLower(getEnv("REVIEW_STORE", "postgres")),
			JobsTable:  getEnv("DYNAMODB_JOBS_TABLE", "ScrapeJobs"),
			AutoCreate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		AWS: AWSConfig{
			Region:   getEnv("AWS_REGION", "us-west-2"),
			Endpoint: getEnv("AWS_ENDPOINT", ""),
		},
		Queue: QueueConfig{
			Backend: strings.ToLower(getEnv("QUEUE_BACKEND", "memory")),
			Broker:  getEnv("KAFKA_BROKER", "localhost:29092"),
			GroupID: getEnv("KAFKA_CONSUMER_GROUP_ID", "reviewflow-workers"),
			Topic:   getEnv("KAFKA_JOBS_TOPIC", "scrape-jobs"),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getEnv("CACHE_BACKEND", "lru")),
			Address:  getEnv("VALKEY_INIT_ADDRESS", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TLS:      getEnvBool("VALKEY_TLS", false),
			TTL:      getEnvDuration("CACHE_TTL", time.Hour),
			Size:     getEnvInt("CACHE_SIZE", 10000),
		},
		Model: ModelConfig{
			Backend:           strings.ToLower(getEnv("MODEL_BACKEND", "none")),
			Dir:               getEnv("MODEL_DIR", "./models"),
			Sentiment:         getEnv("MODEL_SENTIMENT", "distilbert/distilbert-base-uncased-finetuned-sst-2-english"),
			Emotion:           getEnv("MODEL_EMOTION", "j-hartmann/emotion-english-distilroberta-base"),
			SentimentEndpoint: getEnv("MODEL_ENDPOINT", ""),
			EmotionEndpoint:   getEnv("MODEL_EMOTION_ENDPOINT", ""),
			APIToken:          getEnv("MODEL_API_TOKEN", ""),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:           getEnvDuration("MODEL_TIMEOUT", 30*time.Second),
		},
		Reddit: RedditConfig{
			ClientID:     getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		},
		Scrape: ScrapeConfig{
			SourcesFile:  getEnv("SOURCES_FILE", ""),
			MaxItems:     getEnvInt("SCRAPE_MAX_ITEMS", 200),
			MaxRetries:   getEnvInt("SCRAPE_MAX_RETRIES", 3),
			BackoffUnit:  getEnvDuration("SCRAPE_BACKOFF_UNIT", 5*time.Second),
			FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			HostInterval: getEnvDuration("FETCH_HOST_INTERVAL", time.Second),
		},
		Jobs: JobConfig{
			MaxAttempts: getEnvInt("JOB_MAX_ATTEMPTS", 3),
			RetryUnit:   getEnvDuration("JOB_RETRY_UNIT", 60*time.Second),
			SoftLimit:   getEnvDuration("JOB_SOFT_LIMIT", 25*time.Minute),
			HardLimit:   getEnvDuration("JOB_HARD_LIMIT", 30*time.Minute),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		},
		Upkeep: MaintenanceConfig{
			RetentionDays: getEnvInt("RETENTION_DAYS", 90),
			Interval:      getEnvDuration("MAINTENANCE_INTERVAL", time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

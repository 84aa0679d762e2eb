// Package app assembles the service's components from configuration. Both
// binaries build on it so they agree on storage, queue and engine wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spacesedan/reviewflow/config"
	"github.com/spacesedan/reviewflow/internal/analysis"
	"github.com/spacesedan/reviewflow/internal/analytics"
	"github.com/spacesedan/reviewflow/internal/api"
	"github.com/spacesedan/reviewflow/internal/cache"
	"github.com/spacesedan/reviewflow/internal/clients"
	"github.com/spacesedan/reviewflow/internal/clients/kafka_client"
	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/extractor"
	"github.com/spacesedan/reviewflow/internal/maintenance"
	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/monitoring"
	"github.com/spacesedan/reviewflow/internal/pipeline"
	"github.com/spacesedan/reviewflow/internal/queue"
	"github.com/spacesedan/reviewflow/internal/scraper"
	"github.com/spacesedan/reviewflow/internal/sentiment"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"

	QueueMemory = "memory"
	QueueKafka  = "kafka"
)

var ErrNoSharedQueue = errors.New("worker needs QUEUE_BACKEND=kafka, the memory queue is served by the api process")

// ReviewStore is everything the process needs from review storage.
type ReviewStore interface {
	pipeline.ReviewStore
	api.ReviewStore
	analytics.ReviewReader
	maintenance.ReviewPruner
}

// App holds every long-lived component of one process.
type App struct {
	Config    config.Config
	Reviews   ReviewStore
	Jobs      pipeline.JobStore
	Snapshots analytics.SnapshotStore
	Queue     queue.Queue
	Cache     cache.Cache
	Engine    *sentiment.Engine
	Extractor *extractor.Registry
	Metrics   *metrics.Prometheus
	Registry  *prometheus.Registry
	Health    *monitoring.Monitor

	closers []func()
}

// New connects to every configured backend. consume controls whether a
// Kafka queue also joins the consumer group.
func New(ctx context.Context, cfg config.Config, consume bool) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Health:   monitoring.NewMonitor(monitoring.HEALTHCHECK_TIMER * time.Second),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewPrometheus(a.Registry)

	steps := []func(context.Context) error{
		a.openStores,
		func(ctx context.Context) error { return a.openQueue(ctx, consume) },
		a.openCache,
		a.buildEngine,
		a.buildExtractor,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	var mem *db.MemoryStore
	memory := func() *db.MemoryStore {
		if mem == nil {
			slog.Warn("[App] Using in-memory storage, data is lost on restart")
			mem = db.NewMemoryStore()
		}
		return mem
	}

	needsPostgres := cfg.Stores.Reviews == StorePostgres || cfg.Stores.Jobs == StorePostgres
	var pool db.PgxPool
	if needsPostgres {
		dsn := cfg.Database.URL
		if dsn == "" {
			dsn = db.DSN(cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
		}
		p, err := db.NewPool(ctx, dsn)
		if err != nil {
			return err
		}
		a.onClose(p.Close)
		a.Health.Register("database", p.Ping)
		if cfg.Stores.AutoCreate {
			if err := db.Migrate(ctx, p); err != nil {
				return err
			}
		}
		pool = p
	}

	switch cfg.Stores.Reviews {
	case StorePostgres:
		a.Reviews = db.NewReviewRepository(pool)
		a.Snapshots = db.NewSnapshotRepository(pool)
	case StoreMemory:
		a.Reviews = memory()
		a.Snapshots = memory()
	default:
		return fmt.Errorf("unknown REVIEW_STORE %q", cfg.Stores.Reviews)
	}

	switch cfg.Stores.Jobs {
	case StorePostgres:
		a.Jobs = db.NewJobRepository(pool)
	case StoreDynamo:
		client, err := clients.NewDynamoDBClient(ctx, clients.AWSSettings{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint})
		if err != nil {
			return err
		}
		a.Jobs = db.NewDynamoJobRepository(client, cfg.Stores.JobsTable)
	case StoreMemory:
		a.Jobs = memory()
	default:
		return fmt.Errorf("unknown JOB_STORE %q", cfg.Stores.Jobs)
	}
	return nil
}

func (a *App) openQueue(ctx context.Context, consume bool) error {
	switch a.Config.Queue.Backend {
	case QueueMemory:
		q := queue.NewMemoryQueue(0, a.Config.Jobs.Concurrency)
		a.Queue = q
		a.onClose(func() { _ = q.Close() })
	case QueueKafka:
		q, err := queue.NewKafkaQueue(ctx, kafka_client.KafkaConfig{
			Broker:  a.Config.Queue.Broker,
			GroupID: a.Config.Queue.GroupID,
			Topic:   a.Config.Queue.Topic,
		}, consume)
		if err != nil {
			return err
		}
		a.Queue = q
		a.onClose(func() { _ = q.Close() })
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", a.Config.Queue.Backend)
	}
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "none", "":
		a.Cache = cache.Nop{}
	case "lru":
		a.Cache = cache.NewLRU(cfg.Size, cfg.TTL)
	case "valkey":
		vc, err := clients.NewValkeyClient(ctx, clients.ValkeySettings{
			Address:  cfg.Address,
			Password: cfg.Password,
			TLS:      cfg.TLS,
		})
		if err != nil {
			return err
		}
		a.onClose(vc.Close)
		a.Health.Register("cache", vc.Ping)
		a.Cache = cache.NewValkey(vc, cfg.TTL)
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", cfg.Backend)
	}
	return nil
}

func (a *App) buildEngine(context.Context) error {
	m := a.Config.Model
	backend, err := sentiment.NewBackend(sentiment.BackendConfig{
		Kind:              m.Backend,
		ModelDir:          m.Dir,
		SentimentModel:    m.Sentiment,
		EmotionModel:      m.Emotion,
		SentimentEndpoint: m.SentimentEndpoint,
		EmotionEndpoint:   m.EmotionEndpoint,
		APIToken:          m.APIToken,
		OpenAIKey:         m.OpenAIKey,
		OpenAIModel:       m.OpenAIModel,
		Timeout:           m.Timeout,
	})
	if err != nil {
		return err
	}
	a.Engine = sentiment.NewEngine(sentiment.NewKeywordScorer(), backend, a.Metrics)
	a.onClose(func() {
		if err := a.Engine.Close(); err != nil {
			slog.Warn("[App] Failed to release model", slog.String("error", err.Error()))
		}
	})
	return nil
}

func (a *App) buildExtractor(context.Context) error {
	sources, err := config.LoadSources(a.Config.Scrape.SourcesFile)
	if err != nil {
		return err
	}
	var reddit *clients.RedditClient
	if a.Config.Reddit.ClientID != "" && a.Config.Reddit.ClientSecret != "" {
		reddit = clients.NewRedditClient(a.Config.Reddit.ClientID, a.Config.Reddit.ClientSecret, a.Config.Scrape.FetchTimeout)
	}
	a.Extractor = extractor.NewRegistryFromConfig(sources, extractor.Options{
		Timeout:      a.Config.Scrape.FetchTimeout,
		HostInterval: a.Config.Scrape.HostInterval,
		Reddit:       reddit,
	})
	slog.Info("[App] Extractors registered", slog.Any("sources", a.Extractor.Sources()))
	return nil
}

func (a *App) Aggregator() *analytics.Aggregator {
	return analytics.NewAggregator(a.Reviews, a.Snapshots)
}

func (a *App) JobService() *pipeline.Service {
	return pipeline.NewService(a.Jobs, a.Queue, a.Extractor.Sources(), a.Config.Scrape.MaxItems)
}

func (a *App) Pipeline() *pipeline.Pipeline {
	s := scraper.NewService(a.Extractor, a.Config.Scrape.BackoffUnit)
	return pipeline.NewPipeline(a.Jobs, a.Reviews, s, a.Engine,
		pipeline.WithScrapeRetries(a.Config.Scrape.MaxRetries),
		pipeline.WithMetrics(a.Metrics))
}

func (a *App) Worker() *queue.Worker {
	return queue.NewWorker(a.Queue, a.Pipeline(),
		queue.LinearRetryPolicy(a.Config.Jobs.MaxAttempts, a.Config.Jobs.RetryUnit),
		queue.WithLimits(a.Config.Jobs.SoftLimit, a.Config.Jobs.HardLimit),
		queue.WithMetrics(a.Metrics))
}

func (a *App) Maintenance() *maintenance.Runner {
	return maintenance.NewRunner(a.Reviews, a.Aggregator(), a.Config.Upkeep.RetentionDays, a.Config.Upkeep.Interval)
}

func (a *App) HTTP() *echo.Echo {
	return api.NewServer(api.Deps{
		Analyzer:  analysis.NewService(a.Engine, a.Reviews, a.Cache, a.Metrics),
		Jobs:      a.JobService(),
		Reviews:   a.Reviews,
		Analytics: a.Aggregator(),
		Health:    a.Health,
		Sink:      a.Metrics,
		Gatherer:  a.Registry,
	})
}

// InProcessWorkers reports whether jobs must be consumed by the process
// that accepts them.
func (a *App) InProcessWorkers() bool {
	return a.Config.Queue.Backend == QueueMemory
}

// Package api exposes the review service over HTTP with echo.
package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/reviewflow/internal/analysis"
	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/pipeline"
)

type Analyzer interface {
	Analyze(ctx context.Context, text string, userID *int64) (analysis.Result, error)
}

type JobService interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (models.ScrapeJob, error)
	Status(ctx context.Context, handle string) (pipeline.StatusView, error)
	History(ctx context.Context, userID *int64, page, perPage int) (pipeline.HistoryPage, error)
}

type ReviewStore interface {
	GetReview(ctx context.Context, id int64) (models.Review, error)
	DeleteReview(ctx context.Context, id int64) error
	QueryReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error)
	CountReviews(ctx context.Context, filter models.ReviewFilter) (int, error)
}

type Analytics interface {
	Dashboard(ctx context.Context, days int) (models.Dashboard, error)
	Trends(ctx context.Context, days int, source string) (models.Trends, error)
	Comparison(ctx context.Context, days int) (models.Comparison, error)
	ExportCSV(ctx context.Context, w io.Writer, days int) (int, error)
}

type HealthReporter interface {
	Status() (map[string]bool, bool)
}

type Deps struct {
	Analyzer  Analyzer
	Jobs      JobService
	Reviews   ReviewStore
	Analytics Analytics
	Health    HealthReporter
	Sink      metrics.Sink
	Gatherer  prometheus.Gatherer
}

type handlers struct {
	Deps
	now func() time.Time
}

// NewServer wires every route onto a fresh echo instance.
func NewServer(d Deps) *echo.Echo {
	if d.Sink == nil {
		d.Sink = metrics.Nop{}
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	h := &handlers{Deps: d, now: time.Now}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(observeRequests(d.Sink))
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	g := e.Group("/api")
	g.POST("/analyze", h.analyze)

	g.POST("/scrape", h.submitScrape)
	g.GET("/scrape/status/:task_id", h.scrapeStatus)
	g.GET("/scrape/history", h.scrapeHistory)

	g.GET("/reviews", h.listReviews)
	g.GET("/reviews/:id", h.getReview)
	g.DELETE("/reviews/:id", h.deleteReview)

	g.GET("/analytics/dashboard", h.dashboard)
	g.GET("/analytics/sentiment-trends", h.trends)
	g.GET("/analytics/comparison", h.comparison)
	g.GET("/analytics/export", h.export)

	slog.Debug("[API] Routes registered", slog.Int("count", len(e.Routes())))
	return e
}

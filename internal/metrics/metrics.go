// Package metrics defines the counters the service reports and a Prometheus
// implementation. Components receive a Sink; nothing here is global.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Sink interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
	JobFinished(status string)
	ReviewOutcome(outcome string)
	ModelFallback(reason string)
	CacheLookup(hit bool)
}

const (
	ReviewSaved     = "saved"
	ReviewDuplicate = "duplicate"
	ReviewFailed    = "failed"
)

type Prometheus struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	jobs      *prometheus.CounterVec
	reviews   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	cache     *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reviewflow",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "scrape_jobs_total",
			Help:      "Scrape jobs that reached a terminal status.",
		}, []string{"status"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "reviews_total",
			Help:      "Review outcomes: saved, duplicate or failed.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "model_fallbacks_total",
			Help:      "Classifications served by the keyword scorer instead of the model.",
		}, []string{"reason"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "classification_cache_lookups_total",
			Help:      "Classification cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(p.requests, p.latency, p.jobs, p.reviews, p.fallbacks, p.cache)
	return p
}

func (p *Prometheus) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	p.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (p *Prometheus) JobFinished(status string) {
	p.jobs.WithLabelValues(status).Inc()
}

func (p *Prometheus) ReviewOutcome(outcome string) {
	p.reviews.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ModelFallback(reason string) {
	p.fallbacks.WithLabelValues(reason).Inc()
}

func (p *Prometheus) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cache.WithLabelValues(result).Inc()
}

type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) JobFinished(string)                                {}
func (Nop) ReviewOutcome(string)                              {}
func (Nop) ModelFallback(string)                              {}
func (Nop) CacheLookup(bool)                                  {}

// Package scraper wraps an extractor with bounded retries and linear backoff.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultBackoffUnit = 5 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, source, url string, maxItems int) ([]string, error)
}

// FetchError is returned once every attempt has failed.
type FetchError struct {
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to scrape after %d attempts: %v", e.Attempts, e.Last)
}

func (e *FetchError) Unwrap() error { return e.Last }

type Sleeper func(ctx context.Context, d time.Duration) error

type Service struct {
	fetcher Fetcher
	unit    time.Duration
	sleep   Sleeper
}

func NewService(fetcher Fetcher, unit time.Duration) *Service {
	if unit <= 0 {
		unit = DefaultBackoffUnit
	}
	return &Service{fetcher: fetcher, unit: unit, sleep: sleepContext}
}

// WithSleeper replaces the backoff wait. Tests use it to record delays.
func (s *Service) WithSleeper(fn Sleeper) *Service {
	s.sleep = fn
	return s
}

// ScrapeWithRetry calls the extractor up to maxRetries times. An empty
// result is retried without waiting, except on the last attempt where it is
// returned as is. A failed attempt waits attempt*unit before the next one.
func (s *Service) ScrapeWithRetry(ctx context.Context, source, url string, maxItems, maxRetries int) ([]string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		slog.Info("[Scraper] Scraping attempt",
			slog.String("source", source),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxRetries))

		snippets, err := s.fetcher.Fetch(ctx, source, url, maxItems)
		if err == nil {
			if len(snippets) > 0 {
				if maxItems > 0 && len(snippets) > maxItems {
					snippets = snippets[:maxItems]
				}
				slog.Info("[Scraper] Scraped snippets",
					slog.String("source", source),
					slog.Int("count", len(snippets)))
				return snippets, nil
			}
			if attempt == maxRetries {
				slog.Warn("[Scraper] No content on final attempt", slog.String("source", source))
				return []string{}, nil
			}
			slog.Warn("[Scraper] No content found, retrying", slog.Int("attempt", attempt))
			continue
		}

		lastErr = err
		slog.Error("[Scraper] Scraping attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt < maxRetries {
			wait := time.Duration(attempt) * s.unit
			slog.Info("[Scraper] Waiting before retry", slog.Duration("backoff", wait))
			if serr := s.sleep(ctx, wait); serr != nil {
				return nil, &FetchError{Attempts: attempt, Last: serr}
			}
		}
	}

	return nil, &FetchError{Attempts: maxRetries, Last: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

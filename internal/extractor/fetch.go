package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/spacesedan/reviewflow/internal/clients"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const (
	maxPageBytes  = 5 << 20
	maxRobotBytes = 512 << 10
)

var ErrDisallowed = errors.New("fetch disallowed by robots.txt")

// PageFetcher downloads pages politely: one request per host per interval,
// robots.txt honoured and cached per host, bodies capped in size.
type PageFetcher struct {
	client   *http.Client
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	robots   map[string]*robotstxt.RobotsData
}

func NewPageFetcher(client *http.Client, interval time.Duration) *PageFetcher {
	return &PageFetcher{
		client:   client,
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		robots:   make(map[string]*robotstxt.RobotsData),
	}
}

func (f *PageFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	robots := f.robotsFor(ctx, u)
	if robots != nil && !robots.TestAgent(u.EscapedPath(), clients.USER_AGENT) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}

	body, status, err := f.do(ctx, u.String(), maxPageBytes)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &clients.StatusError{URL: rawURL, Code: status}
	}
	return body, nil
}

func (f *PageFetcher) do(ctx context.Context, target string, limit int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", clients.USER_AGENT)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("[Extractor] request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("[Extractor] failed to read %s: %w", target, err)
	}
	return body, resp.StatusCode, nil
}

func (f *PageFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.interval > 0 {
			limit = rate.Every(f.interval)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

// robotsFor returns the cached rules for the host. Unreachable or broken
// robots files allow everything.
func (f *PageFetcher) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	f.mu.Lock()
	data, ok := f.robots[key]
	f.mu.Unlock()
	if ok {
		return data
	}

	body, status, err := f.do(ctx, key+"/robots.txt", maxRobotBytes)
	if err != nil {
		slog.Debug("[Extractor] robots.txt unavailable", slog.String("host", u.Host), slog.String("error", err.Error()))
		return nil
	}
	data, err = robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		slog.Debug("[Extractor] robots.txt unparsable", slog.String("host", u.Host), slog.String("error", err.Error()))
		data = nil
	}

	f.mu.Lock()
	f.robots[key] = data
	f.mu.Unlock()
	return data
}

package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	REDDIT_AUTH_URL   = "https://www.reddit.com/api/v1/access_token"
	REDDIT_API_URL    = "https://oauth.reddit.com"
	REDDIT_PUBLIC_URL = "https://www.reddit.com"
)

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Transient reports whether retrying the same request may succeed.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RedditClient reads thread listings. With client credentials it goes
// through the OAuth API, otherwise through the public JSON endpoints.
type RedditClient struct {
	config  *clientcredentials.Config
	client  *http.Client
	baseURL string
	timeout time.Duration
	mu      sync.Mutex
}

func NewRedditClient(clientID, clientSecret string, timeout time.Duration) *RedditClient {
	rc := &RedditClient{timeout: timeout}
	if clientID == "" || clientSecret == "" {
		slog.Info("[RedditClient] No credentials configured, using public endpoints")
		rc.client = &http.Client{Timeout: timeout}
		rc.baseURL = REDDIT_PUBLIC_URL
		return rc
	}

	rc.config = &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     REDDIT_AUTH_URL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	rc.baseURL = REDDIT_API_URL
	rc.RefreshClient()
	return rc
}

// WithBaseURL points the client at another host. Used by tests.
func (rc *RedditClient) WithBaseURL(base string) *RedditClient {
	rc.baseURL = strings.TrimRight(base, "/")
	return rc
}

func (rc *RedditClient) RefreshClient() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.config == nil {
		return
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: rc.timeout})
	rc.client = rc.config.Client(ctx)
}

func (rc *RedditClient) httpClient() *http.Client {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.client
}

// FetchThread returns the raw JSON listing for a thread permalink, which
// may be a full reddit URL or a bare path.
func (rc *RedditClient) FetchThread(ctx context.Context, permalink string, limit int) ([]byte, error) {
	endpoint, err := rc.threadURL(permalink, limit)
	if err != nil {
		return nil, err
	}

	body, err := rc.get(ctx, endpoint)
	var se *StatusError
	if err != nil && errors.As(err, &se) && se.Code == http.StatusUnauthorized && rc.config != nil {
		slog.Warn("[RedditClient] Token expired - Refreshing and Retrying...")
		rc.RefreshClient()
		return rc.get(ctx, endpoint)
	}
	return body, err
}

func (rc *RedditClient) threadURL(permalink string, limit int) (string, error) {
	u, err := url.Parse(permalink)
	if err != nil {
		return "", fmt.Errorf("[RedditClient] Failed to parse URL: %w", err)
	}
	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("[RedditClient] permalink %q has no path", permalink)
	}
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}

	out, err := url.Parse(rc.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("[RedditClient] Failed to build URL: %w", err)
	}
	q := out.Query()
	q.Set("raw_json", "1")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	out.RawQuery = q.Encode()
	return out.String(), nil
}

func (rc *RedditClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := rc.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("[RedditClient] request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("[RedditClient] 429 Too Many Requests", slog.String("url", endpoint))
		}
		return nil, &StatusError{URL: endpoint, Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

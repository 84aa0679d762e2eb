// Package extractor pulls review-like text snippets out of web pages. Each
// source tag maps to an Extractor; unknown tags use the generic one.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/spacesedan/reviewflow/config"
	"github.com/spacesedan/reviewflow/internal/clients"
)

const GenericSource = "generic"

type Extractor interface {
	Fetch(ctx context.Context, url string, maxItems int) ([]string, error)
}

type Registry struct {
	extractors map[string]Extractor
	timeout    time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
		timeout:    timeout,
	}
}

func (r *Registry) Register(source string, e Extractor) {
	r.extractors[source] = e
}

func (r *Registry) Has(source string) bool {
	_, ok := r.extractors[source]
	return ok
}

func (r *Registry) Sources() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch runs the extractor for source under the per-call timeout and
// returns at most maxItems snippets in page order.
func (r *Registry) Fetch(ctx context.Context, source, url string, maxItems int) ([]string, error) {
	e, ok := r.extractors[source]
	if !ok {
		e, ok = r.extractors[GenericSource]
		if !ok {
			return nil, fmt.Errorf("[Extractor] no extractor for source %q", source)
		}
		slog.Debug("[Extractor] Unknown source, using generic", slog.String("source", source))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	snippets, err := e.Fetch(ctx, url, maxItems)
	if err != nil {
		return nil, err
	}
	if maxItems > 0 && len(snippets) > maxItems {
		snippets = snippets[:maxItems]
	}
	return snippets, nil
}

type Options struct {
	Timeout      time.Duration
	HostInterval time.Duration
	Reddit       *clients.RedditClient
}

// NewRegistryFromConfig builds one extractor per configured source. All html
// sources share one fetcher so pacing and robots rules apply per host.
func NewRegistryFromConfig(sources map[string]config.SourceConfig, opts Options) *Registry {
	reg := NewRegistry(opts.Timeout)
	fetcher := NewPageFetcher(&http.Client{Timeout: opts.Timeout}, opts.HostInterval)

	for name, src := range sources {
		switch src.Kind {
		case config.SourceKindReddit:
			if opts.Reddit == nil {
				slog.Warn("[Extractor] Reddit source configured without a client", slog.String("source", name))
				continue
			}
			reg.Register(name, NewRedditExtractor(opts.Reddit, src))
		default:
			reg.Register(name, NewHTMLExtractor(fetcher, src))
		}
	}
	return reg
}

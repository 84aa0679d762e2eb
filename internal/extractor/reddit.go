package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/spacesedan/reviewflow/config"
	"github.com/spacesedan/reviewflow/internal/clients"
	"github.com/spacesedan/reviewflow/internal/preprocess"
)

type redditListing struct {
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string `json:"kind"`
	Data struct {
		Selftext string          `json:"selftext"`
		Body     string          `json:"body"`
		Replies  json.RawMessage `json:"replies"`
	} `json:"data"`
}

// RedditExtractor turns a thread into snippets: the post body first, then
// comments depth first.
type RedditExtractor struct {
	client *clients.RedditClient
	source config.SourceConfig
}

func NewRedditExtractor(client *clients.RedditClient, source config.SourceConfig) *RedditExtractor {
	return &RedditExtractor{client: client, source: source}
}

func (r *RedditExtractor) Fetch(ctx context.Context, url string, maxItems int) ([]string, error) {
	raw, err := r.client.FetchThread(ctx, url, maxItems)
	if err != nil {
		return nil, err
	}

	var listings []redditListing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, fmt.Errorf("[Extractor] failed to decode reddit thread: %w", err)
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(markdown string) bool {
		text := preprocess.ConvertMarkdownToText(markdown)
		n := utf8.RuneCountInString(text)
		if n < r.source.MinLength || n > r.source.MaxLength {
			return true
		}
		if _, dup := seen[text]; dup {
			return true
		}
		seen[text] = struct{}{}
		out = append(out, text)
		return maxItems <= 0 || len(out) < maxItems
	}

	for _, listing := range listings {
		if !walkThings(listing.Data.Children, add) {
			break
		}
	}
	return out, nil
}

// walkThings visits posts and comments in order; it stops when visit
// returns false.
func walkThings(things []redditThing, visit func(string) bool) bool {
	for _, t := range things {
		var text string
		switch t.Kind {
		case "t3":
			text = t.Data.Selftext
		case "t1":
			text = t.Data.Body
		default:
			continue
		}
		if text != "" && !visit(text) {
			return false
		}

		// replies is "" when empty, a listing otherwise.
		if len(t.Data.Replies) > 0 && t.Data.Replies[0] == '{' {
			var nested redditListing
			if err := json.Unmarshal(t.Data.Replies, &nested); err == nil {
				if !walkThings(nested.Data.Children, visit) {
					return false
				}
			}
		}
	}
	return true
}

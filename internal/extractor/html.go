package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/spacesedan/reviewflow/config"
)

const fallbackSelector = "p"

var noiseSelectors = "script, style, noscript, nav, footer, header, iframe, form"

type HTMLExtractor struct {
	fetcher *PageFetcher
	source  config.SourceConfig
}

func NewHTMLExtractor(fetcher *PageFetcher, source config.SourceConfig) *HTMLExtractor {
	return &HTMLExtractor{fetcher: fetcher, source: source}
}

func (h *HTMLExtractor) Fetch(ctx context.Context, url string, maxItems int) ([]string, error) {
	body, err := h.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("[Extractor] failed to parse %s: %w", url, err)
	}
	return ExtractSnippets(doc, h.source, maxItems), nil
}

// ExtractSnippets tries each configured selector in order and keeps the
// results of the first one that yields anything, falling back to paragraphs.
// Snippets are whitespace-collapsed, length-bounded and unique per page.
func ExtractSnippets(doc *goquery.Document, source config.SourceConfig, maxItems int) []string {
	doc.Find(noiseSelectors).Remove()

	selectors := append(append([]string(nil), source.Selectors...), fallbackSelector)
	for _, sel := range selectors {
		if found := collect(doc, sel, source, maxItems); len(found) > 0 {
			return found
		}
	}
	return nil
}

func collect(doc *goquery.Document, selector string, source config.SourceConfig, maxItems int) []string {
	seen := make(map[string]struct{})
	var out []string

	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		n := utf8.RuneCountInString(text)
		if n < source.MinLength || n > source.MaxLength {
			return true
		}
		if _, dup := seen[text]; dup {
			return true
		}
		seen[text] = struct{}{}
		out = append(out, text)
		return maxItems <= 0 || len(out) < maxItems
	})
	return out
}

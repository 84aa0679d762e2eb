// Package preprocess turns raw review text into the canonical form the
// classifiers score. Every function here is pure and total.
package preprocess

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+|www\.\S+|http\S+`)
	nonWordPattern      = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	nonASCIIWordPattern = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// Normalize strips URLs, drops punctuation and symbols, collapses runs of
// whitespace and lowercases. Used ahead of model inference.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	out := urlPattern.ReplaceAllString(text, "")
	out = nonWordPattern.ReplaceAllString(out, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizeLight lowercases and keeps only a-z, 0-9 and spaces. Anything
// else becomes a word break. Used by the keyword scorer.
func NormalizeLight(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	out := urlPattern.ReplaceAllString(strings.ToLower(text), "")
	out = nonASCIIWordPattern.ReplaceAllString(out, " ")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Tokens splits already-normalized text into its unique words.
func Tokens(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// RemoveLinks keeps the label of markdown links and drops bare URLs.
func RemoveLinks(input string) string {
	input = markdownLinkPattern.ReplaceAllString(input, "$1")
	input = urlPattern.ReplaceAllString(input, "")
	return input
}

// ConvertMarkdownToText renders markdown, strips the resulting tags and
// links, and flattens whitespace.
func ConvertMarkdownToText(input string) string {
	input = RemoveLinks(input)
	rendered := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := htmlTagPattern.ReplaceAllString(string(rendered), " ")
	plain = unescapeEntities(plain)
	return strings.Join(strings.Fields(plain), " ")
}

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	entityReplacer = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}

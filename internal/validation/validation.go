// Package validation checks and cleans caller input before it reaches the
// classification engine or the job pipeline.
package validation

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MinTextLength    = 5
	MaxTextLength    = 5000
	DefaultMaxItems  = 100
	DefaultHardLimit = 200
)

var strict = bluemonday.StrictPolicy()

type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SanitizeText removes all markup and collapses whitespace.
func SanitizeText(raw string) string {
	clean := html.UnescapeString(strict.Sanitize(raw))
	return strings.Join(strings.Fields(clean), " ")
}

// Text sanitizes raw and checks its length in characters.
func Text(raw string) (string, error) {
	text := SanitizeText(raw)
	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return "", invalid("text", "text is required")
	case n < MinTextLength:
		return "", invalid("text", "text must be at least %d characters long", MinTextLength)
	case n > MaxTextLength:
		return "", invalid("text", "text must not exceed %d characters", MaxTextLength)
	}
	return text, nil
}

func URL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return invalid("url", "url is required")
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("url", "invalid url")
	}
	return nil
}

func Source(source string, known []string) error {
	if source == "" {
		return invalid("source", "source is required")
	}
	for _, k := range known {
		if k == source {
			return nil
		}
	}
	return invalid("source", "invalid source, must be one of: %s", strings.Join(known, ", "))
}

// MaxItems applies the default when unset and clamps to the hard limit.
func MaxItems(requested, hardLimit int) int {
	if hardLimit <= 0 {
		hardLimit = DefaultHardLimit
	}
	if requested <= 0 {
		requested = DefaultMaxItems
	}
	return min(requested, hardLimit)
}

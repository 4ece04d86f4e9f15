// Package identity derives the stable keys under which fetched artifacts are
// persisted. Paper identifiers are deduplicated; URL and search keys carry an
// acquisition timestamp so every crawl and search is kept as its own record.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidIdentifier is returned when no accepted arXiv identifier pattern
// matches the input. User error, not retryable.
var ErrInvalidIdentifier = errors.New("could not extract an arXiv identifier")

// Accepted forms, first match wins: /abs/ URL, /pdf/ URL, bare identifier.
var arxivPatterns = []*regexp.Regexp{
	regexp.MustCompile(`arxiv\.org/abs/([\w.-]+)`),
	regexp.MustCompile(`arxiv\.org/pdf/([\w.-]+)`),
	regexp.MustCompile(`^([\w.-]+)$`),
}

var unsafeChars = regexp.MustCompile(`[^\w]`)

// ArxivID extracts an arXiv identifier from a URL or a bare id string.
func ArxivID(input string) (string, error) {
	input = strings.TrimSpace(input)
	for _, pattern := range arxivPatterns {
		if m := pattern.FindStringSubmatch(input); m != nil {
			return strings.TrimSuffix(m[1], ".pdf"), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, input)
}

// URLKey builds a filename-safe key for one crawl of a URL. The timestamp
// suffix keeps every crawl of the same page as a separate record.
func URLKey(rawURL string, now time.Time) string {
	stripped := rawURL
	if i := strings.Index(stripped, "//"); i >= 0 {
		stripped = stripped[i+2:]
	}
	return fmt.Sprintf("%s_%d", slug(stripped), now.Unix())
}

// SearchKey builds a filename-safe key for one search execution.
func SearchKey(query string, now time.Time) string {
	return fmt.Sprintf("%s_%d", slug(query), now.Unix())
}

func slug(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PageFetcher retrieves the raw content of one web page and extracts its
// readable text. A page the server refuses to serve is reported as absent
// (empty string), not as an error.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
	ExtractText(html, pageURL string) string
}

// Crawler fetches pages over HTTP and extracts their readable text.
type Crawler struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBody  int64
	maxChars int
	logger   *zap.Logger
}

func NewCrawler(timeout time.Duration, limiter *rate.Limiter, maxBody int64, maxChars int, logger *zap.Logger) *Crawler {
	if maxBody <= 0 {
		maxBody = 10 * 1024 * 1024
	}
	if maxChars <= 0 {
		maxChars = 15000
	}
	return &Crawler{
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		maxBody:  maxBody,
		maxChars: maxChars,
		logger:   logger,
	}
}

// FetchPage downloads one page, size-limited. Non-200 answers come back as
// absent so a dead link inside a multi-URL directive never aborts the rest.
func (c *Crawler) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build crawl request: %w", err)
	}
	req.Header.Set("User-Agent", "teacher-bot/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ConnectionError{Source: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Page fetch refused",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode))
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return "", &ConnectionError{Source: pageURL, Err: err}
	}
	return string(body), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ExtractText pulls the readable text out of an HTML page, capped at the
// crawler's character ceiling. Extraction failures fall back to stripping
// tags so a misbehaving page still yields something usable.
func (c *Crawler) ExtractText(html, pageURL string) string {
	if html == "" {
		return ""
	}

	opts := trafilatura.Options{}
	if parsed, err := url.Parse(pageURL); err == nil {
		opts.OriginalURL = parsed
	}
	result, err := trafilatura.Extract(strings.NewReader(html), opts)
	if err == nil && result != nil && result.ContentText != "" {
		return c.truncate(result.ContentText)
	}
	if err != nil {
		c.logger.Warn("Content extraction failed, falling back to tag stripping",
			zap.Error(err),
			zap.String("url", pageURL))
	}

	text := scriptRe.ReplaceAllString(html, "")
	text = styleRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return c.truncate(strings.TrimSpace(text))
}

func (c *Crawler) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= c.maxChars {
		return text
	}
	return string(runes[:c.maxChars]) + "..."
}

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xaenox/teacher-bot/internal/store"
)

const ddgAPIURL = "https://api.duckduckgo.com/"

// SearchResult is one executed search: the persistable record plus a
// rendered summary for the user.
type SearchResult struct {
	Record    store.Row
	Formatted string
}

// SearchFetcher runs one text search against the search collaborator.
type SearchFetcher interface {
	Search(ctx context.Context, query string, maxResults int) (*SearchResult, error)
}

// DuckDuckGoClient queries the DuckDuckGo instant-answer API.
type DuckDuckGoClient struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewDuckDuckGoClient(timeout time.Duration, limiter *rate.Limiter, logger *zap.Logger) *DuckDuckGoClient {
	return &DuckDuckGoClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: ddgAPIURL,
		limiter: limiter,
		logger:  logger,
	}
}

type ddgResponse struct {
	AbstractText  string     `json:"AbstractText"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

// Search runs the query and returns the raw payload for persistence along
// with a markdown rendering capped at maxResults related topics.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) (*SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("pretty", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{Source: "DuckDuckGo API", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectionError{Source: "DuckDuckGo API", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Source: "DuckDuckGo API", Err: err}
	}

	var parsed ddgResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ParseError{Source: "DuckDuckGo API", Err: err}
	}

	c.logger.Info("Search completed", zap.String("query", query))
	return &SearchResult{
		Record: store.Row{
			"query":       query,
			"raw_results": string(body),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		},
		Formatted: formatSearchResults(query, &parsed, maxResults),
	}, nil
}

func formatSearchResults(query string, parsed *ddgResponse, maxResults int) string {
	var b strings.Builder
	b.WriteString("# DuckDuckGo Search Results\n\n")
	if parsed.AbstractText != "" {
		fmt.Fprintf(&b, "## Summary\n%s\n\n", parsed.AbstractText)
	}

	topics := flattenTopics(parsed.RelatedTopics)
	if len(topics) > 0 {
		b.WriteString("## Related Topics\n\n")
		count := 0
		for _, topic := range topics {
			if count >= maxResults {
				break
			}
			if topic.Text == "" || topic.FirstURL == "" {
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", topic.Text, topic.FirstURL)
			count++
		}
	}
	if b.Len() == len("# DuckDuckGo Search Results\n\n") {
		fmt.Fprintf(&b, "No instant answer available for %q.", query)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Related topics may nest one level under category headers.
func flattenTopics(topics []ddgTopic) []ddgTopic {
	var flat []ddgTopic
	for _, topic := range topics {
		if len(topic.Topics) > 0 {
			flat = append(flat, flattenTopics(topic.Topics)...)
			continue
		}
		flat = append(flat, topic)
	}
	return flat
}

// Package fetch holds the category-specific adapters the pipeline calls on
// cache miss: arXiv paper metadata, DuckDuckGo search and web page crawling.
// Every call takes a context and shares one outbound rate limiter.
package fetch

import (
	"context"
	"encoding/xml"
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

const arxivAPIURL = "http://export.arxiv.org/api/query"

// PaperFetcher retrieves metadata for one paper identifier.
type PaperFetcher interface {
	FetchPaper(ctx context.Context, arxivID string) (store.Row, error)
}

// ArxivClient fetches paper metadata from the arXiv Atom API.
type ArxivClient struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewArxivClient(timeout time.Duration, limiter *rate.Limiter, logger *zap.Logger) *ArxivClient {
	return &ArxivClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: arxivAPIURL,
		limiter: limiter,
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint. Call before first use.
func (c *ArxivClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// atom feed shapes; arXiv-namespaced extras match on local element name.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Comment    string `xml:"comment"`
	JournalRef string `xml:"journal_ref"`
	DOI        string `xml:"doi"`
}

// FetchPaper queries the arXiv API for one identifier and returns the paper
// as a persistable record. An entry without a title is treated as not found;
// the API answers an empty feed for unknown ids.
func (c *ArxivClient) FetchPaper(ctx context.Context, arxivID string) (store.Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("id_list", arxivID)
	query.Set("max_results", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build arXiv request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{Source: "arXiv API", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectionError{Source: "arXiv API", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Source: "arXiv API", Err: err}
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &ParseError{Source: "arXiv API", Err: err}
	}
	if len(feed.Entries) == 0 || strings.TrimSpace(feed.Entries[0].Title) == "" {
		return nil, fmt.Errorf("paper %s: %w", arxivID, ErrNotFound)
	}
	entry := feed.Entries[0]

	authors := make([]string, 0, len(entry.Authors))
	for _, author := range entry.Authors {
		authors = append(authors, strings.TrimSpace(author.Name))
	}
	categories := make([]string, 0, len(entry.Categories))
	for _, category := range entry.Categories {
		categories = append(categories, category.Term)
	}

	var pdfLink, absLink string
	for _, link := range entry.Links {
		switch {
		case link.Type == "application/pdf":
			pdfLink = link.Href
		case link.Rel == "alternate":
			absLink = link.Href
		}
	}

	row := store.Row{
		"arxiv_id":   arxivID,
		"title":      strings.TrimSpace(entry.Title),
		"authors":    authors,
		"abstract":   strings.TrimSpace(entry.Summary),
		"published":  entry.Published,
		"categories": categories,
		"pdf_link":   pdfLink,
		"arxiv_url":  absLink,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if entry.Comment != "" {
		row["comment"] = strings.TrimSpace(entry.Comment)
	}
	if entry.JournalRef != "" {
		row["journal_ref"] = strings.TrimSpace(entry.JournalRef)
	}
	if entry.DOI != "" {
		row["doi"] = strings.TrimSpace(entry.DOI)
	}

	c.logger.Info("Fetched paper metadata",
		zap.String("arxiv_id", arxivID),
		zap.String("title", rowTitle(row)))
	return row, nil
}

func rowTitle(row store.Row) string {
	title, _ := row["title"].(string)
	return title
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/teacher-bot/internal/query"
	"github.com/xaenox/teacher-bot/internal/store"
)

// categoryFor picks the dataset a free-text query is about. The heuristic
// mirrors the intent sniffing of the query engine itself: substrings, first
// match wins.
func categoryFor(queryText string) (category, description string, ok bool) {
	q := strings.ToLower(queryText)
	switch {
	case strings.Contains(q, "arxiv") || strings.Contains(q, "paper"):
		return store.CategoryPapers, "ArXiv papers", true
	case strings.Contains(q, "crawl") || strings.Contains(q, "web"):
		return store.CategoryCrawls, "crawled pages", true
	case strings.Contains(q, "search") || strings.Contains(q, "duck") || strings.Contains(q, "ddg"):
		return store.CategorySearches, "DuckDuckGo searches", true
	case strings.Contains(q, "link"):
		return store.CategoryLinks, "collected links", true
	default:
		return "", "", false
	}
}

// handleQuery runs a natural-language query against one dataset category.
// Point-in-time: the scan reflects whatever has been persisted so far.
func (p *Pipeline) handleQuery(ctx context.Context, d Directive) error {
	queryText := strings.TrimSpace(strings.Join(d.Args, " ") + " " + d.Question)
	if queryText == "" {
		return p.dispatcher.Send(ctx, d.Target, "Usage: /query <question about stored data>", d.Reply)
	}

	category, description, ok := categoryFor(queryText)
	if !ok {
		return p.dispatcher.Send(ctx, d.Target,
			"Tell me which dataset to look at: papers, searches, crawls or links.", d.Reply)
	}

	rows := p.store.ScanCategory(category)
	result := query.Execute(rows, queryText)

	p.recordTurn(ctx, d, "Queried stored data: "+queryText, false)

	response := fmt.Sprintf(`# 📊 Data Query Results: %s

**Your query:** %s

%s

%s

## Tips
- Try "/query show searches from today"
- Try "/query count searches by date"
- Try "/query show most recent 5 searches"`,
		description, queryText, result.Rendered, result.Explanation)
	return p.dispatcher.Send(ctx, d.Target, response, d.Reply)
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/teacher-bot/internal/fetch"
	"github.com/xaenox/teacher-bot/internal/identity"
	"github.com/xaenox/teacher-bot/internal/store"
)

// handleSearch runs one DuckDuckGo search, persists the result and either
// echoes it or answers a question over it. Searches are historized, never
// deduplicated: each execution is a new record.
func (p *Pipeline) handleSearch(ctx context.Context, d Directive) error {
	if len(d.Args) == 0 {
		return p.dispatcher.Send(ctx, d.Target, "Usage: /ddg <query> [question]", d.Reply)
	}
	query := strings.Join(d.Args, " ")

	result, err := p.searcher.Search(ctx, query, p.cfg.SearchMaxHits)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}

	key := identity.SearchKey(query, time.Now().UTC())
	if err := p.store.Put(store.CategorySearches, key, result.Record); err != nil {
		p.logger.Error("Failed to persist search",
			zap.Error(err),
			zap.String("query", query))
	}
	if err := p.store.AppendRollup(store.CategorySearches, result.Record); err != nil {
		p.logger.Error("Failed to append search rollup",
			zap.Error(err),
			zap.String("query", query))
	}

	p.recordTurn(ctx, d, fmt.Sprintf("Searched for %q", query), false)

	if d.Question == "" {
		return p.dispatcher.Send(ctx, d.Target, result.Formatted, d.Reply)
	}

	prompt := fmt.Sprintf(`I searched for information about %q and got these results:

%s

My question is: %s

Please provide a detailed answer formatted in markdown, with relevant information from the search results.
Include code examples if applicable.`, query, result.Formatted, d.Question)

	answer, err := p.completeFresh(ctx, p.cfg.SystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("search analysis: %w", err)
	}
	p.recordTurn(ctx, d, answer, true)
	return p.dispatcher.Send(ctx, d.Target, answer, d.Reply)
}

// crawlContentCeiling caps how much of each crawled page goes into a prompt.
const crawlContentCeiling = 5000

// handleCrawl fetches one or more pages, persists each crawl as a new record
// and answers a question over all of them or summarizes each. A dead URL is
// skipped; it never aborts the rest.
func (p *Pipeline) handleCrawl(ctx context.Context, d Directive) error {
	if len(d.Args) == 0 {
		return p.dispatcher.Send(ctx, d.Target, "Usage: /crawl <url> [more urls...] [question]", d.Reply)
	}

	type page struct {
		url  string
		text string
	}
	var pages []page
	for _, pageURL := range d.Args {
		html, err := p.crawler.FetchPage(ctx, pageURL)
		if err != nil {
			p.logger.Error("Failed to crawl page",
				zap.Error(err),
				zap.String("url", pageURL))
			p.notify(ctx, d, fmt.Sprintf("Error with %s: %s", pageURL, userMessage(err)))
			continue
		}
		if html == "" {
			p.notify(ctx, d, fmt.Sprintf("No content at %s", pageURL))
			continue
		}

		// PyPI project pages get structured extraction: package metadata and
		// documentation instead of a flat text dump.
		text := ""
		if name, ok := fetch.PyPIPackageName(pageURL); ok {
			text, _ = fetch.FormatPyPIPackage(html, name)
		}
		if text == "" {
			text = p.crawler.ExtractText(html, pageURL)
		}

		now := time.Now().UTC()
		record := store.Row{
			"url":       pageURL,
			"content":   text,
			"timestamp": now.Format(time.RFC3339),
		}
		key := identity.URLKey(pageURL, now)
		if err := p.store.Put(store.CategoryCrawls, key, record); err != nil {
			p.logger.Error("Failed to persist crawl",
				zap.Error(err),
				zap.String("url", pageURL))
		}
		if err := p.store.AppendRollup(store.CategoryCrawls, record); err != nil {
			p.logger.Error("Failed to append crawl rollup",
				zap.Error(err),
				zap.String("url", pageURL))
		}
		pages = append(pages, page{url: pageURL, text: text})
	}
	if len(pages) == 0 {
		return p.dispatcher.Send(ctx, d.Target,
			"Could not fetch content from any of the provided URLs.", d.Reply)
	}

	urls := make([]string, len(pages))
	for i, crawled := range pages {
		urls[i] = crawled.url
	}
	p.recordTurn(ctx, d, "Crawled pages: "+strings.Join(urls, ", "), false)

	if d.Question != "" {
		var prompt strings.Builder
		prompt.WriteString("I've gathered information from multiple sources:\n\n")
		for _, crawled := range pages {
			fmt.Fprintf(&prompt, "From %s:\n%s\n\n", crawled.url, clipRunes(crawled.text, crawlContentCeiling))
		}
		fmt.Fprintf(&prompt, "\nMy question is: %s\n\nPlease provide a detailed answer using information from all sources.", d.Question)

		answer, err := p.completeFresh(ctx, p.cfg.SystemPrompt, prompt.String())
		if err != nil {
			return fmt.Errorf("crawl analysis: %w", err)
		}
		p.recordTurn(ctx, d, answer, true)
		return p.dispatcher.Send(ctx, d.Target, answer, d.Reply)
	}

	for _, crawled := range pages {
		summary, err := p.completeFresh(ctx, p.cfg.SystemPrompt,
			"Summarize this content:\n"+clipRunes(crawled.text, crawlContentCeiling))
		if err != nil {
			p.logger.Error("Failed to summarize page",
				zap.Error(err),
				zap.String("url", crawled.url))
			p.notify(ctx, d, fmt.Sprintf("Error summarizing %s: %s", crawled.url, userMessage(err)))
			continue
		}
		header := fmt.Sprintf("# 🌐 Summary: %s\n\n", crawled.url)
		if err := p.dispatcher.Send(ctx, d.Target, header+summary, d.Reply); err != nil {
			return err
		}
	}
	return nil
}

func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

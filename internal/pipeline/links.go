package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/teacher-bot/internal/store"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`)

// Link categories, checked in order; the first match wins.
var linkCategories = []struct {
	name    string
	matches func(url string) bool
}{
	{"models", func(u string) bool {
		return strings.Contains(u, "ollama.com/library") || strings.Contains(u, "/models/") ||
			strings.Contains(u, "modelscope") || strings.Contains(u, "modelzoo")
	}},
	{"huggingface", func(u string) bool { return strings.Contains(u, "huggingface.co") }},
	{"github", func(u string) bool { return strings.Contains(u, "github.com") }},
	{"documentation", func(u string) bool {
		return strings.Contains(u, "docs.") || strings.Contains(u, "documentation") ||
			strings.Contains(u, "readthedocs") || strings.Contains(u, "wiki")
	}},
	{"research", func(u string) bool {
		return strings.Contains(u, "arxiv.org") || strings.Contains(u, "research") ||
			strings.Contains(u, "paper") || strings.Contains(u, "journal")
	}},
	{"social", func(u string) bool {
		return strings.Contains(u, "twitter.com") || strings.Contains(u, "linkedin.com") ||
			strings.Contains(u, "discord.com")
	}},
}

func categorizeLink(url string) string {
	lower := strings.ToLower(url)
	for _, category := range linkCategories {
		if category.matches(lower) {
			return category.name
		}
	}
	return "other"
}

const linkContextExcerpt = 200

// handleLinks harvests URLs from recently observed channel messages,
// persists them as link records and renders them grouped by category.
func (p *Pipeline) handleLinks(ctx context.Context, d Directive) error {
	limit := p.cfg.HistoryDefault
	if len(d.Args) > 0 {
		parsed, err := strconv.Atoi(d.Args[0])
		if err != nil || parsed <= 0 {
			return p.dispatcher.Send(ctx, d.Target, "Usage: /links [message limit]", d.Reply)
		}
		limit = parsed
	}

	messages := p.history.Recent(d.Target, limit)

	type foundLink struct {
		url      string
		category string
		author   string
		when     time.Time
	}
	var found []foundLink
	byCategory := make(map[string][]foundLink)

	for _, message := range messages {
		for _, raw := range linkPattern.FindAllString(message.Content, -1) {
			url := raw
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				url = "https://" + url
			}
			category := categorizeLink(url)

			record := store.Row{
				"id":          uuid.New().String(),
				"url":         url,
				"category":    category,
				"author_name": message.AuthorName,
				"author_id":   message.AuthorID,
				"message_id":  message.MessageID,
				"context":     clipRunes(message.Content, linkContextExcerpt),
				"timestamp":   message.Timestamp.UTC().Format(time.RFC3339),
			}
			key := fmt.Sprintf("link_%s", record["id"])
			if err := p.store.Put(store.CategoryLinks, key, record); err != nil {
				p.logger.Error("Failed to persist link",
					zap.Error(err),
					zap.String("url", url))
				continue
			}
			if err := p.store.AppendRollup(store.CategoryLinks, record); err != nil {
				p.logger.Error("Failed to append link rollup",
					zap.Error(err),
					zap.String("url", url))
			}

			link := foundLink{url: url, category: category, author: message.AuthorName, when: message.Timestamp}
			found = append(found, link)
			byCategory[category] = append(byCategory[category], link)
		}
	}

	if len(found) == 0 {
		return p.dispatcher.Send(ctx, d.Target, "No links found in the messages searched.", d.Reply)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("# 🔗 Links Collected\n\n")
	fmt.Fprintf(&b, "- Messages searched: %d\n", len(messages))
	fmt.Fprintf(&b, "- Links found: %d\n\n", len(found))
	for _, category := range categories {
		links := byCategory[category]
		sort.Slice(links, func(i, j int) bool { return links[i].when.After(links[j].when) })
		fmt.Fprintf(&b, "## %s (%d)\n\n", titleCase(category), len(links))
		for _, link := range links {
			fmt.Fprintf(&b, "- %s shared by %s on %s\n",
				link.url, link.author, link.when.UTC().Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}
	b.WriteString(`Use "/query count links by date" to query the collected links later!`)

	p.recordTurn(ctx, d, fmt.Sprintf("Collected %d links from channel history", len(found)), false)
	return p.dispatcher.Send(ctx, d.Target, b.String(), d.Reply)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

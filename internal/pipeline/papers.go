package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/teacher-bot/internal/identity"
	"github.com/xaenox/teacher-bot/internal/store"
)

// lookupPaper resolves one paper through the cache hierarchy: hot cache,
// then the on-disk store, then the external fetcher. Concurrent requests
// for the same identifier share one fetch-and-persist flight; the flight
// re-checks the store so a request that queued behind a finished fetch
// reuses the persisted record.
func (p *Pipeline) lookupPaper(ctx context.Context, arxivID string) (store.Row, error) {
	if hit, ok := p.paperHot.Get(arxivID); ok {
		return hit.(store.Row), nil
	}
	if row, ok := p.store.Get(store.CategoryPapers, arxivID); ok {
		p.paperHot.Set(arxivID, row, 0)
		return row, nil
	}

	result, err, _ := p.flight.Do(arxivID, func() (interface{}, error) {
		if row, ok := p.store.Get(store.CategoryPapers, arxivID); ok {
			return row, nil
		}
		row, err := p.papers.FetchPaper(ctx, arxivID)
		if err != nil {
			return nil, err
		}
		// Persistence failures are reported but do not lose the fetched
		// record for this response.
		if err := p.store.Put(store.CategoryPapers, arxivID, row); err != nil {
			p.logger.Error("Failed to persist paper",
				zap.Error(err),
				zap.String("arxiv_id", arxivID))
		}
		if err := p.store.AppendRollup(store.CategoryPapers, row); err != nil {
			p.logger.Error("Failed to append paper rollup",
				zap.Error(err),
				zap.String("arxiv_id", arxivID))
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	row := result.(store.Row)
	p.paperHot.Set(arxivID, row, 0)
	return row, nil
}

// handleArxiv fetches one or more papers, answering an optional question
// over all of them. A bad identifier in the batch is reported and skipped;
// it never aborts the other items.
func (p *Pipeline) handleArxiv(ctx context.Context, d Directive) error {
	if len(d.Args) == 0 {
		return p.dispatcher.Send(ctx, d.Target,
			"Usage: /arxiv <id or URL> [more ids...] [--memory] [question]", d.Reply)
	}

	previous := ""
	if d.UseMemory {
		previous = p.memory.Slot(d.UserKey, "arxiv")
	}

	type paper struct {
		id   string
		text string
	}
	var papers []paper
	for _, arg := range d.Args {
		arxivID, err := identity.ArxivID(arg)
		if err != nil {
			p.logger.Warn("Skipping invalid identifier",
				zap.Error(err),
				zap.String("input", arg))
			p.notify(ctx, d, fmt.Sprintf("Error with %s: %s", arg, userMessage(err)))
			continue
		}
		row, err := p.lookupPaper(ctx, arxivID)
		if err != nil {
			p.logger.Error("Failed to fetch paper",
				zap.Error(err),
				zap.String("arxiv_id", arxivID))
			p.notify(ctx, d, fmt.Sprintf("Error with %s: %s", arxivID, userMessage(err)))
			continue
		}
		text := formatPaper(row)
		papers = append(papers, paper{id: arxivID, text: text})
		if d.UseMemory {
			p.memory.SetSlot(d.UserKey, "paper_"+arxivID, text)
		}
	}
	if len(papers) == 0 {
		return p.dispatcher.Send(ctx, d.Target,
			"Could not process any of the provided arXiv papers.", d.Reply)
	}

	ids := make([]string, len(papers))
	for i, paper := range papers {
		ids[i] = paper.id
	}
	p.recordTurn(ctx, d, describeArxivRequest(ids, d.Question), false)

	if d.Question == "" {
		for _, paper := range papers {
			header := ""
			if d.UseMemory {
				header = "🧠 Memory Stored: "
			}
			if err := p.dispatcher.Send(ctx, d.Target, header+paper.text, d.Reply); err != nil {
				return err
			}
		}
		return nil
	}

	var prompt strings.Builder
	if d.UseMemory && previous != "" {
		fmt.Fprintf(&prompt, "Previous context:\n%s\n\nNew papers to analyze:\n", previous)
	}
	prompt.WriteString("I want to learn from these research papers:\n\n")
	for _, paper := range papers {
		fmt.Fprintf(&prompt, "Paper %s:\n%s\n\n", paper.id, paper.text)
	}
	fmt.Fprintf(&prompt, "\nMy question is: %s\n\nPlease provide a detailed answer using information from all papers.", d.Question)
	if d.UseMemory {
		prompt.WriteString("\n\nIncorporate relevant information from previously discussed papers if available.")
	}

	answer, err := p.completeFresh(ctx, p.cfg.SystemPrompt, prompt.String())
	if err != nil {
		return fmt.Errorf("paper analysis: %w", err)
	}
	if d.UseMemory {
		p.memory.SetSlot(d.UserKey, "arxiv", prompt.String()+"\n\nAnswer: "+answer)
	}
	p.recordTurn(ctx, d, answer, true)

	memoryNote := "> Add --memory flag to enable persistent memory"
	memoryHeader := ""
	if d.UseMemory {
		memoryNote = "> Use /reset to clear your memory context"
		if previous != "" {
			memoryHeader = "🧠 Using Memory: Previous context incorporated\n\n"
		}
	}
	response := fmt.Sprintf("%s# ArXiv Paper Analysis\n\n**Papers analyzed:** %s\n\n%s\n\n%s",
		memoryHeader, strings.Join(ids, ", "), answer, memoryNote)
	return p.dispatcher.Send(ctx, d.Target, response, d.Reply)
}

func describeArxivRequest(ids []string, question string) string {
	described := "Asked about ArXiv papers: " + strings.Join(ids, ", ")
	if question != "" {
		described += " with question: " + question
	}
	return described
}

// formatPaper renders a persisted paper record as study material.
func formatPaper(row store.Row) string {
	published := rowString(row, "published")
	if len(published) > 10 {
		published = published[:10]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rowString(row, "title"))
	fmt.Fprintf(&b, "**Authors:** %s\n\n", strings.Join(rowList(row, "authors"), ", "))
	fmt.Fprintf(&b, "**Published:** %s\n\n", published)
	fmt.Fprintf(&b, "**Categories:** %s\n\n", strings.Join(rowList(row, "categories"), ", "))
	fmt.Fprintf(&b, "## Abstract\n%s\n\n", rowString(row, "abstract"))
	fmt.Fprintf(&b, "**Links:**\n- [ArXiv Page](%s)\n- [PDF Download](%s)\n",
		rowString(row, "arxiv_url"), rowString(row, "pdf_link"))

	if comment := rowString(row, "comment"); comment != "" {
		fmt.Fprintf(&b, "\n**Comments:** %s\n", comment)
	}
	if journal := rowString(row, "journal_ref"); journal != "" {
		fmt.Fprintf(&b, "\n**Journal Reference:** %s\n", journal)
	}
	if doi := rowString(row, "doi"); doi != "" {
		fmt.Fprintf(&b, "\n**DOI:** %s\n", doi)
	}
	return b.String()
}

func rowString(row store.Row, name string) string {
	s, _ := row[name].(string)
	return s
}

func rowList(row store.Row, name string) []string {
	list, _ := row[name].([]string)
	return list
}


package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/teacher-bot/internal/models"
)

// handleProfile shows the user's profile document, or answers a question
// about their learning history from the profile plus recent transcript.
// Readers never mutate the profile; only the synthesizer writes it.
func (p *Pipeline) handleProfile(ctx context.Context, d Directive) error {
	doc, err := p.profiles.Get(ctx, d.UserKey)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if doc == nil {
		return p.dispatcher.Send(ctx, d.Target,
			fmt.Sprintf("⚠️ No profile found for %s. Interact with me more to build your profile!", d.UserName),
			d.Reply)
	}

	if d.Question == "" {
		// The activity count covers the whole retained transcript, not the
		// prompt excerpt used for questions.
		total := len(p.lastUserMessages(d.UserKey, 0))
		first := "N/A"
		if entries := p.memory.Context(d.UserKey); len(entries) > 1 {
			for _, entry := range entries {
				if entry.Role == models.RoleUser {
					first = entry.Timestamp.UTC().Format("2006-01-02 15:04")
					break
				}
			}
		}
		text := fmt.Sprintf(`# 👤 Profile for %s

## Activity Summary
- Messages: %d
- First Interaction: %s
- Last Active: %s

## Learning Analysis
%s`,
			d.UserName, total, first,
			doc.Timestamp.UTC().Format("2006-01-02 15:04"), doc.Analysis)
		return p.dispatcher.Send(ctx, d.Target, text, d.Reply)
	}

	recent := p.lastUserMessages(d.UserKey, 10)

	prompt := fmt.Sprintf(`User Profile Information:
%s

Recent Conversations:
%s

Question about the user: %s

Please provide a detailed, personalized answer based on the user's profile and conversation history.
Address the user by name (%s) in your response.`,
		doc.Analysis, "- "+strings.Join(recent, "\n- "), d.Question, d.UserName)

	answer, err := p.completeFresh(ctx, p.cfg.SystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("profile query: %w", err)
	}
	return p.dispatcher.Send(ctx, d.Target, "# 🔍 Profile Query\n\n"+answer, d.Reply)
}

func (p *Pipeline) lastUserMessages(userKey string, limit int) []string {
	return p.memory.UserMessages(userKey, limit)
}

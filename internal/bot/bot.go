// Package bot binds the Telegram update stream to the pipeline's directive
// surface. Command parsing lives here; everything after a parsed directive
// belongs to the pipeline.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/teacher-bot/internal/chat"
	"github.com/xaenox/teacher-bot/internal/identity"
	"github.com/xaenox/teacher-bot/internal/pipeline"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	pipeline *pipeline.Pipeline
	history  *HistoryBuffer
	admins   map[int64]bool
	logger   *zap.Logger
}

func New(api *tgbotapi.BotAPI, p *pipeline.Pipeline, history *HistoryBuffer, adminIDs []int64, logger *zap.Logger) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Bot{
		api:      api,
		pipeline: p,
		history:  history,
		admins:   admins,
		logger:   logger,
	}
}

// Start consumes the update stream until ctx is cancelled. Each message is
// handled in its own goroutine; shared state lives behind the pipeline's
// own synchronization.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil || update.Message.From.IsBot {
				continue
			}
			message := update.Message
			b.history.Observe(message)
			go b.pipeline.Handle(ctx, b.directiveFor(message))
		}
	}
}

// userKey scopes conversation state to (chat, user) so the same person gets
// independent context in different groups.
func userKey(message *tgbotapi.Message) string {
	return fmt.Sprintf("%d_%d", message.Chat.ID, message.From.ID)
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func (b *Bot) directiveFor(message *tgbotapi.Message) pipeline.Directive {
	d := pipeline.Directive{
		UserKey:  userKey(message),
		UserName: displayName(message.From),
		Admin:    b.admins[message.From.ID],
		Target:   chat.Target{ChatID: message.Chat.ID},
		Reply:    &chat.ReplyRef{MessageID: message.MessageID},
	}

	if !message.IsCommand() {
		d.Name = "chat"
		content := message.Text
		if message.Caption != "" {
			content = message.Caption
		}
		d.Question = content
		return d
	}

	d.Name = message.Command()
	rest := strings.TrimSpace(message.CommandArguments())

	tokens := strings.Fields(rest)
	if idx := indexOf(tokens, "--memory"); idx >= 0 {
		d.UseMemory = true
		tokens = append(tokens[:idx], tokens[idx+1:]...)
	}

	switch d.Name {
	case "arxiv":
		// Leading tokens that resolve as identifiers form the batch; the
		// remainder is the question.
		for len(tokens) > 0 {
			if !looksLikeArxivID(tokens[0]) {
				break
			}
			d.Args = append(d.Args, tokens[0])
			tokens = tokens[1:]
		}
		d.Question = strings.Join(tokens, " ")
	case "crawl":
		for len(tokens) > 0 && looksLikeURL(tokens[0]) {
			d.Args = append(d.Args, tokens[0])
			tokens = tokens[1:]
		}
		d.Question = strings.Join(tokens, " ")
	case "ddg":
		var query string
		query, tokens = takeQuery(tokens)
		if query != "" {
			d.Args = []string{query}
		}
		d.Question = strings.Join(tokens, " ")
	case "links":
		if len(tokens) > 0 {
			if _, err := strconv.Atoi(tokens[0]); err == nil {
				d.Args = []string{tokens[0]}
				tokens = tokens[1:]
			}
		}
		d.Question = strings.Join(tokens, " ")
	default:
		// query, profile, reset, help, learn: free text only.
		d.Question = strings.Join(tokens, " ")
	}
	return d
}

func indexOf(tokens []string, want string) int {
	for i, token := range tokens {
		if token == want {
			return i
		}
	}
	return -1
}

// looksLikeArxivID accepts arXiv URLs and bare ids that contain a digit, so
// a question's first word is not mistaken for an identifier.
func looksLikeArxivID(token string) bool {
	if strings.Contains(token, "arxiv.org/") {
		return true
	}
	if _, err := identity.ArxivID(token); err != nil {
		return false
	}
	return strings.ContainsAny(token, "0123456789")
}

func looksLikeURL(token string) bool {
	return strings.HasPrefix(token, "http://") ||
		strings.HasPrefix(token, "https://") ||
		strings.HasPrefix(token, "www.")
}

// takeQuery pulls the search phrase off the front of the tokens: either a
// quoted phrase or the first token.
func takeQuery(tokens []string) (string, []string) {
	if len(tokens) == 0 {
		return "", nil
	}
	if strings.HasPrefix(tokens[0], `"`) {
		for i := range tokens {
			if strings.HasSuffix(tokens[i], `"`) {
				phrase := strings.Join(tokens[:i+1], " ")
				return strings.Trim(phrase, `"`), tokens[i+1:]
			}
		}
	}
	return tokens[0], tokens[1:]
}

// messageTime converts the Telegram unix timestamp.
func messageTime(message *tgbotapi.Message) time.Time {
	return time.Unix(int64(message.Date), 0).UTC()
}

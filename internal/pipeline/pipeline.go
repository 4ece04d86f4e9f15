// Package pipeline orchestrates the retrieval-cache-query flow: resolve the
// identity of a fetch request, hit the artifact store, call the matching
// fetch adapter on miss, persist what came back and deliver the rendered
// answer through the dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xaenox/teacher-bot/internal/chat"
	"github.com/xaenox/teacher-bot/internal/fetch"
	"github.com/xaenox/teacher-bot/internal/identity"
	"github.com/xaenox/teacher-bot/internal/llm"
	"github.com/xaenox/teacher-bot/internal/memory"
	"github.com/xaenox/teacher-bot/internal/models"
	"github.com/xaenox/teacher-bot/internal/profile"
	"github.com/xaenox/teacher-bot/internal/store"
)

// Directive is one parsed user command handed in by the chat front-end.
// Admin is resolved by the front-end against its configured administrators.
type Directive struct {
	Name      string
	Args      []string
	Question  string
	UseMemory bool
	Admin     bool

	UserKey  string
	UserName string
	Target   chat.Target
	Reply    *chat.ReplyRef
}

// History exposes recently observed channel messages for link harvesting.
type History interface {
	Recent(target chat.Target, limit int) []models.HistoryMessage
}

// Config carries the pipeline's tunables.
type Config struct {
	SystemPrompt       string
	LLMTimeout         time.Duration
	Temperature        float32
	SearchMaxHits      int
	HistoryDefault     int
	ProfilePlaceholder string
}

// Pipeline wires the stores, adapters and dispatcher behind the directive
// surface. One Pipeline serves the whole process; per-directive handling is
// concurrent.
type Pipeline struct {
	store      *store.Store
	profiles   profile.Store
	memory     *memory.Memory
	completer  llm.Completer
	papers     fetch.PaperFetcher
	searcher   fetch.SearchFetcher
	crawler    fetch.PageFetcher
	dispatcher *chat.Dispatcher
	history    History
	logger     *zap.Logger
	cfg        Config

	// Papers are immutable once published, so fetched metadata also lives in
	// a no-expiry hot cache in front of the on-disk store.
	paperHot *cache.Cache
	flight   singleflight.Group
}

func New(artifacts *store.Store, profiles profile.Store, mem *memory.Memory,
	completer llm.Completer, papers fetch.PaperFetcher, searcher fetch.SearchFetcher,
	crawler fetch.PageFetcher, dispatcher *chat.Dispatcher, history History,
	cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.SearchMaxHits <= 0 {
		cfg.SearchMaxHits = 5
	}
	if cfg.HistoryDefault <= 0 {
		cfg.HistoryDefault = 1000
	}
	if cfg.ProfilePlaceholder == "" {
		cfg.ProfilePlaceholder = "Profile is being built as you interact more."
	}
	return &Pipeline{
		store:      artifacts,
		profiles:   profiles,
		memory:     mem,
		completer:  completer,
		papers:     papers,
		searcher:   searcher,
		crawler:    crawler,
		dispatcher: dispatcher,
		history:    history,
		logger:     logger,
		cfg:        cfg,
		paperHot:   cache.New(cache.NoExpiration, 0),
	}
}

// Handle is the single top-level boundary per inbound directive: any failure
// that escapes a handler becomes a user-visible notice plus a log entry.
func (p *Pipeline) Handle(ctx context.Context, d Directive) {
	var err error
	switch d.Name {
	case "arxiv":
		err = p.handleArxiv(ctx, d)
	case "ddg":
		err = p.handleSearch(ctx, d)
	case "crawl":
		err = p.handleCrawl(ctx, d)
	case "query":
		err = p.handleQuery(ctx, d)
	case "links":
		err = p.handleLinks(ctx, d)
	case "profile":
		err = p.handleProfile(ctx, d)
	case "reset":
		err = p.handleReset(ctx, d)
	case "globalreset":
		err = p.handleGlobalReset(ctx, d)
	case "help":
		err = p.dispatcher.Send(ctx, d.Target, helpText, d.Reply)
	case "learn":
		err = p.dispatcher.Send(ctx, d.Target, learnText, d.Reply)
	case "chat":
		err = p.handleChat(ctx, d)
	default:
		err = p.dispatcher.Send(ctx, d.Target,
			"Unknown command. Use /help to see available commands.", d.Reply)
	}
	if err != nil {
		p.logger.Error("Directive failed",
			zap.Error(err),
			zap.String("directive", d.Name),
			zap.String("user_key", d.UserKey))
		p.notify(ctx, d, userMessage(err))
	}
}

// notify delivers a short failure notice; a failing transport at this point
// is only logged, the directive is already over.
func (p *Pipeline) notify(ctx context.Context, d Directive, text string) {
	if err := p.dispatcher.Send(ctx, d.Target, "⚠️ "+text, d.Reply); err != nil {
		p.logger.Error("Failed to deliver failure notice",
			zap.Error(err),
			zap.String("directive", d.Name))
	}
}

// userMessage maps the failure taxonomy onto short user-visible notices.
func userMessage(err error) string {
	var connErr *fetch.ConnectionError
	var parseErr *fetch.ParseError
	switch {
	case errors.Is(err, identity.ErrInvalidIdentifier):
		return err.Error()
	case errors.Is(err, fetch.ErrNotFound):
		return err.Error()
	case errors.Is(err, llm.ErrTimeout):
		return "The request timed out. Please try again."
	case errors.Is(err, llm.ErrCircuitOpen):
		return "The assistant is temporarily unavailable. Please try again in a moment."
	case errors.As(err, &connErr):
		return connErr.Error()
	case errors.As(err, &parseErr):
		return parseErr.Error()
	default:
		return "Something went wrong handling that request. Please try again."
	}
}

// recordTurn stores one conversation turn and makes sure the user has at
// least a placeholder profile document.
func (p *Pipeline) recordTurn(ctx context.Context, d Directive, content string, fromBot bool) {
	role := models.RoleUser
	if fromBot {
		role = models.RoleAssistant
	}
	p.memory.Append(d.UserKey, role, content)
	p.memory.SetName(d.UserKey, d.UserName)

	if fromBot {
		return
	}
	existing, err := p.profiles.Get(ctx, d.UserKey)
	if err != nil {
		p.logger.Error("Failed to check profile",
			zap.Error(err),
			zap.String("user_key", d.UserKey))
		return
	}
	if existing != nil {
		return
	}
	doc := &profile.Document{
		Timestamp: time.Now().UTC(),
		Analysis:  p.cfg.ProfilePlaceholder,
		Username:  d.UserName,
	}
	if err := p.profiles.Put(ctx, d.UserKey, doc); err != nil {
		p.logger.Error("Failed to create initial profile",
			zap.Error(err),
			zap.String("user_key", d.UserKey))
	}
}

// complete calls the completion service with the mandatory timeout.
func (p *Pipeline) complete(ctx context.Context, messages []llm.Message) (string, error) {
	return p.completer.Complete(ctx, messages, llm.Options{
		Temperature: p.cfg.Temperature,
		Timeout:     p.cfg.LLMTimeout,
	})
}

// completeFresh runs a one-shot prompt without prior conversation context.
func (p *Pipeline) completeFresh(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return p.complete(ctx, []llm.Message{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: prompt},
	})
}

func contextMessages(entries []models.ConversationEntry) []llm.Message {
	messages := make([]llm.Message, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, llm.Message{Role: entry.Role, Content: entry.Content})
	}
	return messages
}

// handleChat answers a free-form mention using the user's rolling transcript
// as completion context.
func (p *Pipeline) handleChat(ctx context.Context, d Directive) error {
	p.recordTurn(ctx, d, d.Question, false)

	answer, err := p.complete(ctx, contextMessages(p.memory.Context(d.UserKey)))
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	p.recordTurn(ctx, d, answer, true)

	greeting := ""
	if d.UserName != "" {
		greeting = fmt.Sprintf("Hi %s! ", d.UserName)
	}
	return p.dispatcher.Send(ctx, d.Target, greeting+answer, d.Reply)
}

// handleReset is total: a fresh transcript, no memory slots left behind.
func (p *Pipeline) handleReset(ctx context.Context, d Directive) error {
	p.memory.Reset(d.UserKey)
	return p.dispatcher.Send(ctx, d.Target, "✅ Your conversation context has been reset.", d.Reply)
}

// handleGlobalReset clears every user's transcript and memory slots. Only
// configured administrators may run it.
func (p *Pipeline) handleGlobalReset(ctx context.Context, d Directive) error {
	if !d.Admin {
		return p.dispatcher.Send(ctx, d.Target,
			"⚠️ Only administrators can use this command.", d.Reply)
	}
	p.memory.ResetAll()
	p.logger.Info("Global conversation reset", zap.String("user_key", d.UserKey))
	return p.dispatcher.Send(ctx, d.Target, "🔄 Global conversation context has been reset.", d.Reply)
}

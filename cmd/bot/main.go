package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xaenox/teacher-bot/internal/bot"
	"github.com/xaenox/teacher-bot/internal/chat"
	"github.com/xaenox/teacher-bot/internal/fetch"
	"github.com/xaenox/teacher-bot/internal/llm"
	"github.com/xaenox/teacher-bot/internal/memory"
	"github.com/xaenox/teacher-bot/internal/pipeline"
	"github.com/xaenox/teacher-bot/internal/profile"
	"github.com/xaenox/teacher-bot/internal/store"
	"github.com/xaenox/teacher-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Artifact store for fetched papers, searches, crawls and links
	artifacts, err := store.New(cfg.Data.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	// Profile documents live in files by default, in PostgreSQL when a
	// database is configured.
	var profiles profile.Store
	if cfg.Database.UseFiles {
		logger.Info("Using file-backed profile store")
		profiles, err = profile.NewFileStore(filepath.Join(cfg.Data.Dir, "profiles"), logger)
	} else {
		logger.Info("Using PostgreSQL profile store")
		profiles, err = profile.NewPostgresStore(profile.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	}
	if err != nil {
		logger.Fatal("Failed to initialize profile store", zap.Error(err))
	}
	defer profiles.Close()

	// Completion client behind a circuit breaker
	completer := llm.NewBreaker(
		llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, 0, logger),
		logger,
	)

	// Outbound fetchers share one rate limiter so external services see a
	// bounded request rate regardless of how many users are active.
	limiter := rate.NewLimiter(rate.Limit(cfg.Fetch.RequestsPerSec), 1)
	papers := fetch.NewArxivClient(cfg.OpenAI.Timeout, limiter, logger)
	if cfg.Fetch.ArxivBaseURL != "" {
		papers.SetBaseURL(cfg.Fetch.ArxivBaseURL)
	}
	searcher := fetch.NewDuckDuckGoClient(cfg.OpenAI.Timeout, limiter, logger)
	crawler := fetch.NewCrawler(cfg.OpenAI.Timeout, limiter, 0, cfg.Fetch.CrawlMaxChars, logger)

	mem := memory.New(cfg.Memory.SystemPrompt, cfg.Memory.MaxEntries)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create Telegram client", zap.Error(err))
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	dispatcher := chat.NewDispatcher(chat.NewTelegramTransport(api, logger), cfg.Chat.ChunkSize, logger)
	history := bot.NewHistoryBuffer(cfg.Chat.HistoryDefault)

	p := pipeline.New(artifacts, profiles, mem, completer, papers, searcher, crawler,
		dispatcher, history, pipeline.Config{
			SystemPrompt:   cfg.Memory.SystemPrompt,
			LLMTimeout:     cfg.OpenAI.Timeout,
			Temperature:    float32(cfg.OpenAI.Temperature),
			SearchMaxHits:  cfg.Fetch.SearchMaxHits,
			HistoryDefault: cfg.Chat.HistoryDefault,
		}, logger)

	synthesizer := profile.NewSynthesizer(mem, completer, profiles,
		cfg.Profile.AnalysisInterval, cfg.OpenAI.Timeout, float32(cfg.OpenAI.Temperature), logger)
	if err := synthesizer.Start(); err != nil {
		logger.Fatal("Failed to start profile synthesizer", zap.Error(err))
	}
	defer synthesizer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bot.New(api, p, history, cfg.Telegram.AdminIDs, logger)
	if err := b.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Shutting down")
}

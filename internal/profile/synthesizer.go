package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/xaenox/teacher-bot/internal/llm"
	"github.com/xaenox/teacher-bot/internal/models"
)

const maxAnalyzedMessages = 50

// Transcripts is the slice of conversation memory the synthesizer reads.
type Transcripts interface {
	UserKeys() []string
	UserMessages(userKey string, limit int) []string
	DisplayName(userKey string) string
}

// Synthesizer periodically folds each user's recent transcript into a short
// profile document. Cycles run on a singleton timer: a tick that fires while
// the previous cycle is still running is dropped, not queued.
type Synthesizer struct {
	transcripts Transcripts
	completer   llm.Completer
	profiles    Store
	interval    time.Duration
	timeout     time.Duration
	temperature float32
	logger      *zap.Logger

	scheduler gocron.Scheduler
}

func NewSynthesizer(transcripts Transcripts, completer llm.Completer, profiles Store,
	interval, timeout time.Duration, temperature float32, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		transcripts: transcripts,
		completer:   completer,
		profiles:    profiles,
		interval:    interval,
		timeout:     timeout,
		temperature: temperature,
		logger:      logger,
	}
}

// Start schedules the periodic cycle. Stop it with Stop.
func (s *Synthesizer) Start() error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.RunCycle(context.Background())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("profile-synthesis"),
	)
	if err != nil {
		return fmt.Errorf("schedule synthesis job: %w", err)
	}
	s.scheduler = scheduler
	scheduler.Start()
	s.logger.Info("Profile synthesizer started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Synthesizer) Stop() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Error("Failed to stop synthesizer", zap.Error(err))
		}
	}
}

// RunCycle synthesizes one profile per known user. A failure for one user is
// logged and skipped; it never aborts the rest of the cycle.
func (s *Synthesizer) RunCycle(ctx context.Context) {
	for _, userKey := range s.transcripts.UserKeys() {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Synthesis cycle cancelled", zap.Error(err))
			return
		}
		if err := s.synthesizeUser(ctx, userKey); err != nil {
			s.logger.Error("Profile synthesis failed for user",
				zap.Error(err),
				zap.String("user_key", userKey))
		}
	}
}

func (s *Synthesizer) synthesizeUser(ctx context.Context, userKey string) error {
	messages := s.transcripts.UserMessages(userKey, maxAnalyzedMessages)
	if len(messages) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(`Analyze these user messages and extract key information:
%s

Please identify:
1. Main topics of interest
2. Technical skill level
3. Common questions or patterns
4. Learning progress
5. Key concepts discussed

Format the response as concise bullet points.`, strings.Join(messages, "\n"))

	analysis, err := s.completer.Complete(ctx, []llm.Message{
		{Role: models.RoleUser, Content: prompt},
	}, llm.Options{Temperature: s.temperature, Timeout: s.timeout})
	if err != nil {
		return fmt.Errorf("analyze transcript: %w", err)
	}

	doc := &Document{
		Timestamp: time.Now().UTC(),
		Analysis:  analysis,
		Username:  s.transcripts.DisplayName(userKey),
	}
	if err := s.profiles.Put(ctx, userKey, doc); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}

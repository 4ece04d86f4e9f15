package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects completion calls
// after repeated collaborator failures.
var ErrCircuitOpen = errors.New("completion service temporarily unavailable")

// Breaker shields the pipeline from a failing completion service. Timeouts
// and service errors trip it open; after a cool-down it lets test requests
// through again.
type Breaker struct {
	inner   Completer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewBreaker(inner Completer, logger *zap.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:    "completion",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Completion breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (b *Breaker) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, messages, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}
	return result.(string), nil
}

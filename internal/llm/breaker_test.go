package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyCompleter struct {
	err   error
	calls int
}

func (c *flakyCompleter) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "ok", nil
}

func TestBreaker_PassesThrough(t *testing.T) {
	inner := &flakyCompleter{}
	b := NewBreaker(inner, zap.NewNop())

	answer, err := b.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, 1, inner.calls)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyCompleter{err: errors.New("upstream down")}
	b := NewBreaker(inner, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Complete(ctx, nil, Options{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	// Fourth call is rejected without reaching the service.
	_, err := b.Complete(ctx, nil, Options{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, inner.calls)
}

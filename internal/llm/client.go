// Package llm wraps the text-completion collaborator. The service is a black
// box: messages in, text out, with a mandatory timeout on every call.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that the completion service was too slow. Surfaced to
// the user as a "try again" message.
var ErrTimeout = errors.New("completion request timed out")

// Message is one turn of completion context.
type Message struct {
	Role    string
	Content string
}

// Options tune one completion call.
type Options struct {
	Temperature float32
	Timeout     time.Duration
}

// Completer produces a text completion for the given messages.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

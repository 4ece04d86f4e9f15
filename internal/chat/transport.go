// Package chat delivers generated text back to the chat platform. The
// transport itself is a collaborator behind an interface; the dispatcher
// owns the chunking protocol.
package chat

import "context"

// Target identifies the destination channel or chat.
type Target struct {
	ChatID int64
}

// ReplyRef threads an outgoing message onto the message that triggered it.
type ReplyRef struct {
	MessageID int
}

// Transport emits one message. A failed emission is surfaced to the caller;
// messages already sent are not rolled back.
type Transport interface {
	Send(ctx context.Context, target Target, text string, replyTo *ReplyRef) error
}

package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultChunkSize is the per-message ceiling of the chat platform.
const DefaultChunkSize = 2000

const emptyNotice = "⚠️ No content to display. The result was empty."

// Dispatcher splits long text into transport-safe chunks and emits them
// strictly in order. Only the first emitted chunk carries the caller's
// reply reference.
type Dispatcher struct {
	transport Transport
	chunkSize int
	logger    *zap.Logger
}

func NewDispatcher(transport Transport, chunkSize int, logger *zap.Logger) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Dispatcher{
		transport: transport,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Send delivers text in fixed-size chunks. Chunk boundaries may fall
// mid-word; no look-ahead is attempted. Whitespace-only chunks are skipped
// without renumbering the rest. Empty input yields a single notice so the
// user always sees a response.
func (d *Dispatcher) Send(ctx context.Context, target Target, text string, replyTo *ReplyRef) error {
	if strings.TrimSpace(text) == "" {
		if err := d.transport.Send(ctx, target, emptyNotice, replyTo); err != nil {
			return fmt.Errorf("send empty notice: %w", err)
		}
		return nil
	}

	runes := []rune(text)
	first := true
	for start := 0; start < len(runes); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		var ref *ReplyRef
		if first {
			ref = replyTo
		}
		if err := d.transport.Send(ctx, target, chunk, ref); err != nil {
			d.logger.Error("Failed to send chunk",
				zap.Error(err),
				zap.Int64("chat_id", target.ChatID),
				zap.Int("offset", start))
			return fmt.Errorf("send chunk at offset %d: %w", start, err)
		}
		first = false
	}
	return nil
}

package chat

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramTransport emits messages through the Telegram Bot API.
type TelegramTransport struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewTelegramTransport(api *tgbotapi.BotAPI, logger *zap.Logger) *TelegramTransport {
	return &TelegramTransport{api: api, logger: logger}
}

func (t *TelegramTransport) Send(ctx context.Context, target Target, text string, replyTo *ReplyRef) error {
	// The bot API client has no context plumbing; honor cancellation at the
	// suspension point before the call.
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(target.ChatID, text)
	if replyTo != nil {
		msg.ReplyToMessageID = replyTo.MessageID
	}
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", target.ChatID))
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

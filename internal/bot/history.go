package bot

import (
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xaenox/teacher-bot/internal/chat"
	"github.com/xaenox/teacher-bot/internal/models"
)

// HistoryBuffer keeps a bounded per-chat ring of recently observed messages
// so the links directive has channel history to harvest. The bot API offers
// no backfill; only messages seen while running are available.
type HistoryBuffer struct {
	capacity int

	mu    sync.RWMutex
	chats map[int64][]models.HistoryMessage
}

func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &HistoryBuffer{
		capacity: capacity,
		chats:    make(map[int64][]models.HistoryMessage),
	}
}

func (h *HistoryBuffer) Observe(message *tgbotapi.Message) {
	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if content == "" {
		return
	}

	entry := models.HistoryMessage{
		MessageID:  strconv.Itoa(message.MessageID),
		AuthorID:   fmt.Sprintf("%d", message.From.ID),
		AuthorName: displayName(message.From),
		Content:    content,
		Timestamp:  messageTime(message),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	buffer := append(h.chats[message.Chat.ID], entry)
	if len(buffer) > h.capacity {
		buffer = buffer[len(buffer)-h.capacity:]
	}
	h.chats[message.Chat.ID] = buffer
}

// Recent returns up to limit of the newest observed messages for a chat,
// newest first.
func (h *HistoryBuffer) Recent(target chat.Target, limit int) []models.HistoryMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	buffer := h.chats[target.ChatID]
	if limit > 0 && len(buffer) > limit {
		buffer = buffer[len(buffer)-limit:]
	}
	out := make([]models.HistoryMessage, len(buffer))
	for i, entry := range buffer {
		out[len(buffer)-1-i] = entry
	}
	return out
}

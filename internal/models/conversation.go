package models

import "time"

// Conversation roles, matching the roles the completion service accepts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationEntry is one turn of a user's rolling transcript.
type ConversationEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryMessage is one message observed on a channel, used by the links
// directive to harvest shared URLs.
type HistoryMessage struct {
	MessageID  string    `json:"message_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

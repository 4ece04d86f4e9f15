// Package memory owns per-user conversational state for the process
// lifetime: a bounded rolling transcript per user key plus opt-in memory
// slots per (user, command). Nothing here touches disk; durable profile
// snapshots live in the profile package.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/xaenox/teacher-bot/internal/models"
)

// Memory holds every user's transcript, command slots and display name.
// All mutation is serialized behind one lock; per-user operations never
// observe another user's partial update.
type Memory struct {
	systemPrompt string
	maxEntries   int

	mu    sync.RWMutex
	logs  map[string][]models.ConversationEntry
	slots map[string]map[string]string
	names map[string]string
}

func New(systemPrompt string, maxEntries int) *Memory {
	if maxEntries < 2 {
		// Room for the system entry plus at least one turn.
		maxEntries = 2
	}
	return &Memory{
		systemPrompt: systemPrompt,
		maxEntries:   maxEntries,
		logs:         make(map[string][]models.ConversationEntry),
		slots:        make(map[string]map[string]string),
		names:        make(map[string]string),
	}
}

func (m *Memory) freshLog() []models.ConversationEntry {
	return []models.ConversationEntry{{
		Role:      models.RoleSystem,
		Content:   m.systemPrompt,
		Timestamp: time.Now().UTC(),
	}}
}

// Append pushes one turn onto the user's transcript, then evicts the oldest
// non-system entries until the log fits the bound. The leading system entry
// is never evicted.
func (m *Memory) Append(userKey, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log, ok := m.logs[userKey]
	if !ok {
		log = m.freshLog()
	}
	log = append(log, models.ConversationEntry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	for len(log) > m.maxEntries {
		log = append(log[:1], log[2:]...)
	}
	m.logs[userKey] = log
}

// Context returns a copy of the user's transcript for completion calls.
func (m *Memory) Context(userKey string) []models.ConversationEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.logs[userKey]
	if !ok {
		return m.freshLog()
	}
	out := make([]models.ConversationEntry, len(log))
	copy(out, log)
	return out
}

// UserMessages returns the content of up to limit of the user's most recent
// user-authored entries, oldest first.
func (m *Memory) UserMessages(userKey string, limit int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var contents []string
	for _, entry := range m.logs[userKey] {
		if entry.Role == models.RoleUser {
			contents = append(contents, entry.Content)
		}
	}
	if limit > 0 && len(contents) > limit {
		contents = contents[len(contents)-limit:]
	}
	return contents
}

// UserKeys lists every user with a transcript, in stable order.
func (m *Memory) UserKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.logs))
	for key := range m.logs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Reset replaces the user's transcript with a single fresh system entry and
// clears every memory slot for that user.
func (m *Memory) Reset(userKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs[userKey] = m.freshLog()
	delete(m.slots, userKey)
}

// ResetAll drops every user's transcript and memory slots. Administrative
// operation; display names survive so profile synthesis keeps working.
func (m *Memory) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = make(map[string][]models.ConversationEntry)
	m.slots = make(map[string]map[string]string)
}

// Slot returns the stored context for (user, command), or "".
func (m *Memory) Slot(userKey, command string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[userKey][command]
}

// SetSlot overwrites the stored context for (user, command). Last write
// wins; this is single-slot memory, not a history.
func (m *Memory) SetSlot(userKey, command, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slots, ok := m.slots[userKey]
	if !ok {
		slots = make(map[string]string)
		m.slots[userKey] = slots
	}
	slots[command] = content
}

// SetName records the user's display name for profile synthesis.
func (m *Memory) SetName(userKey, name string) {
	if name == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[userKey] = name
}

// DisplayName resolves the user's display name, or "Unknown".
func (m *Memory) DisplayName(userKey string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name, ok := m.names[userKey]; ok {
		return name
	}
	return "Unknown"
}

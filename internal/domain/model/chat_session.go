package model

import (
	"time"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Valid reports whether r is one of the two conversational roles.
func (r ChatRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage represents one turn within a chat session. Immutable once appended.
type ChatMessage struct {
	Role      ChatRole
	Content   string
	Timestamp time.Time
}

// ChatSession is the aggregate root for an ongoing conversation.
type ChatSession struct {
	ID        string
	Messages  []ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewChatSession(id string, now time.Time) *ChatSession {
	return &ChatSession{
		ID:        id,
		Messages:  make([]ChatMessage, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a turn and advances UpdatedAt. UpdatedAt never moves
// backwards even if the clock does.
func (s *ChatSession) AddMessage(role ChatRole, content string, now time.Time) ChatMessage {
	if now.Before(s.UpdatedAt) {
		now = s.UpdatedAt
	}
	m := ChatMessage{Role: role, Content: content, Timestamp: now}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = now
	return m
}

// GetRecentMessages returns the last n messages in chronological order, or
// all of them when n <= 0.
func (s *ChatSession) GetRecentMessages(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *ChatSession) Clone() *ChatSession {
	cp := *s
	cp.Messages = make([]ChatMessage, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return &cp
}

// HistoryEntry is the serialized view of a ChatMessage.
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// HistoryTimeFormat is fixed width, so serialized timestamps sort as
// strings, and round-trips through time.Parse.
const HistoryTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func (m ChatMessage) Entry() HistoryEntry {
	return HistoryEntry{
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(HistoryTimeFormat),
	}
}

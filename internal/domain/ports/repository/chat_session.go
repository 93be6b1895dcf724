package repository

import (
	"context"

	"rag-pipeline/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

// ChatSessionRepository owns every session. Returned sessions are copies;
// callers never hold a reference into the store. Unknown ids yield
// domain.ErrNotFound without side effects.
type ChatSessionRepository interface {
	CreateSession(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, sessionID string, role model.ChatRole, content string) (*model.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	// GetChatHistory returns the last limit messages (all when limit <= 0)
	// in chronological order.
	GetChatHistory(ctx context.Context, sessionID string, limit int) ([]model.HistoryEntry, error)
	// DeleteSession reports whether the session existed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// File: internal/usecase/history_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/repository"
)

// Compile-time check
var _ HistoryUseCase = (*historyUC)(nil)

type ChatHistory struct {
	SessionID string               `json:"session_id"`
	Messages  []model.HistoryEntry `json:"messages"`
	CreatedAt string               `json:"created_at"`
	UpdatedAt string               `json:"updated_at"`
}

type HistoryUseCase interface {
	CreateSession(ctx context.Context) (string, error)
	// History returns the last limit messages, or all of them when limit <= 0.
	History(ctx context.Context, sessionID string, limit int) (*ChatHistory, error)
	// Delete fails with domain.ErrNotFound for unknown ids.
	Delete(ctx context.Context, sessionID string) error
}

type historyUC struct {
	sessions repository.ChatSessionRepository
}

func NewHistoryUseCase(sessions repository.ChatSessionRepository) *historyUC {
	return &historyUC{sessions: sessions}
}

func (h *historyUC) CreateSession(ctx context.Context) (string, error) {
	return h.sessions.CreateSession(ctx)
}

func (h *historyUC) History(ctx context.Context, sessionID string, limit int) (*ChatHistory, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrNotFound
	}
	s, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msgs := s.GetRecentMessages(limit)
	entries := make([]model.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, m.Entry())
	}
	return &ChatHistory{
		SessionID: s.ID,
		Messages:  entries,
		CreatedAt: formatTime(s.CreatedAt),
		UpdatedAt: formatTime(s.UpdatedAt),
	}, nil
}

func (h *historyUC) Delete(ctx context.Context, sessionID string) error {
	ok, err := h.sessions.DeleteSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(model.HistoryTimeFormat) }

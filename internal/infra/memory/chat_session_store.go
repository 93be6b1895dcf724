// File: internal/infra/memory/chat_session_store.go
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/repository"
	"rag-pipeline/internal/infra/metrics"
)

var _ repository.ChatSessionRepository = (*ChatSessionStore)(nil)

// ChatSessionStore is the process-lifetime session registry. The map lock
// guards membership only; each session has its own lock so appends to
// different sessions never contend.
type ChatSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
	newID    func() string
}

type entry struct {
	mu      sync.Mutex
	deleted bool
	s       *model.ChatSession
}

func NewChatSessionStore() *ChatSessionStore {
	return &ChatSessionStore{
		sessions: make(map[string]*entry),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (c *ChatSessionStore) CreateSession(ctx context.Context) (string, error) {
	e := &entry{}
	c.mu.Lock()
	id := c.newID()
	for _, taken := c.sessions[id]; taken; _, taken = c.sessions[id] {
		id = c.newID()
	}
	e.s = model.NewChatSession(id, c.now())
	c.sessions[id] = e
	n := len(c.sessions)
	c.mu.Unlock()

	metrics.SetLiveSessions(n)
	return id, nil
}

func (c *ChatSessionStore) lookup(id string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[id]
}

func (c *ChatSessionStore) AddMessage(ctx context.Context, sessionID string, role model.ChatRole, content string) (*model.ChatSession, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	e := c.lookup(sessionID)
	if e == nil {
		return nil, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// lost a race with DeleteSession
	if e.deleted {
		return nil, domain.ErrNotFound
	}
	e.s.AddMessage(role, content, c.now())
	return e.s.Clone(), nil
}

func (c *ChatSessionStore) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	e := c.lookup(sessionID)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrNotFound
	}
	return e.s.Clone(), nil
}

func (c *ChatSessionStore) GetChatHistory(ctx context.Context, sessionID string, limit int) ([]model.HistoryEntry, error) {
	e := c.lookup(sessionID)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrNotFound
	}

	msgs := e.s.GetRecentMessages(limit)
	out := make([]model.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Entry())
	}
	return out, nil
}

func (c *ChatSessionStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	e, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
	}
	n := len(c.sessions)
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()

	metrics.SetLiveSessions(n)
	return true, nil
}

// Len is the number of live sessions.
func (c *ChatSessionStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

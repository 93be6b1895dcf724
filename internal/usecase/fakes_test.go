// File: internal/usecase/fakes_test.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/adapters/ai"
	"rag-pipeline/internal/infra/memory"
	"rag-pipeline/internal/infra/splitter"
	"rag-pipeline/internal/infra/vectorstore/file"
)

// ---- Fakes ----

// funcGen answers every prompt through fn and remembers the prompts.
type funcGen struct {
	mu      sync.Mutex
	prompts []string
	opts    []adapter.GenerateOptions
	fn      func(prompt string) (string, error)
}

func (f *funcGen) Generate(ctx context.Context, prompt string, opts adapter.GenerateOptions) (adapter.Generation, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return adapter.Generation{}, err
	}
	out, err := f.fn(prompt)
	return adapter.Generation{Text: out, Model: opts.Model}, err
}

func (f *funcGen) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *funcGen) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

var errUpstream = errors.New("upstream 503")

// extractGen behaves like an extraction model: it returns the context when
// it mentions keyword and NO_OUTPUT otherwise. Answer prompts are echoed.
func extractGen(keyword string) *funcGen {
	return &funcGen{fn: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "Extracted relevant parts:") {
			return "ANSWER", nil
		}
		ctx := between(prompt, ">>>\n", "\n>>>")
		if strings.Contains(ctx, keyword) {
			return ctx, nil
		}
		return NoOutput, nil
	}}
}

func between(s, from, to string) string {
	i := strings.Index(s, from)
	if i < 0 {
		return ""
	}
	s = s[i+len(from):]
	if j := strings.Index(s, to); j >= 0 {
		return s[:j]
	}
	return s
}

// pipeline wires the real store, file index and splitter around gen.
type pipeline struct {
	sessions *memory.ChatSessionStore
	index    *file.Index
	gateway  *retrievalGateway
	rag      *ragUC
	history  *historyUC
	ingest   *ingestUC
}

func newPipeline(t *testing.T, gen adapter.TextGenerator, rerank bool) *pipeline {
	t.Helper()
	noop := ai.NewNoopAIAdapter()
	sessions := memory.NewChatSessionStore()
	index := file.NewIndex(t.TempDir())
	gw := NewRetrievalGateway(index, noop, "", RetrievalOptions{}, nil)
	rr := NewReranker(gen, RerankOptions{Enabled: rerank, Parallelism: 2}, nil)
	ans := NewAnswerSynthesizer(gen, adapter.GenerateOptions{Model: "test-model"}, nil)
	return &pipeline{
		sessions: sessions,
		index:    index,
		gateway:  gw,
		rag:      NewRAGUseCase(sessions, gw, rr, ans, RetrievalOptions{K: 5}, nil, true),
		history:  NewHistoryUseCase(sessions),
		ingest:   NewIngestUseCase(index, noop, splitter.New(200, 0), nil, "", 2, nil),
	}
}

func (p *pipeline) seed(t *testing.T, collection string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	h, err := p.index.Open(ctx, collection)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	recs := make([]adapter.VectorRecord, len(texts))
	for i, s := range texts {
		recs[i] = adapter.VectorRecord{ID: s, Text: s, Embedding: ai.HashEmbedding(s)}
	}
	if err := h.Add(ctx, recs); err != nil {
		t.Fatalf("add: %v", err)
	}
}

// File: internal/usecase/rag_uc_test.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/adapters/ai"
	"rag-pipeline/internal/infra/vectorstore/file"
)

func TestAsk_NewSessionRecordsBothTurns(t *testing.T) {
	ctx := context.Background()
	gen := extractGen("golang")
	p := newPipeline(t, gen, true)
	p.seed(t, model.DefaultCollection,
		"golang has goroutines for concurrency",
		"bananas are yellow fruit",
		"golang channels connect goroutines",
	)

	res, err := p.rag.Ask(ctx, AskRequest{Question: "how does golang do concurrency"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if res.Answer != "ANSWER" {
		t.Fatalf("answer = %q", res.Answer)
	}
	if strings.Contains(res.Context, "bananas") || !strings.Contains(res.Context, "goroutines") {
		t.Fatalf("context not filtered by reranker: %q", res.Context)
	}

	h, err := p.history.History(ctx, res.SessionID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h.Messages) != 2 {
		t.Fatalf("want 2 messages, got %d", len(h.Messages))
	}
	if h.Messages[0].Role != "user" || h.Messages[0].Content != "how does golang do concurrency" {
		t.Fatalf("first message = %+v", h.Messages[0])
	}
	if h.Messages[1].Role != "assistant" || h.Messages[1].Content != "ANSWER" {
		t.Fatalf("second message = %+v", h.Messages[1])
	}
}

func TestAsk_EmptyContextStillAnswers(t *testing.T) {
	ctx := context.Background()
	gen := extractGen("never-mentioned")
	p := newPipeline(t, gen, true)
	p.seed(t, model.DefaultCollection, "alpha beta", "gamma delta")

	res, err := p.rag.Ask(ctx, AskRequest{Question: "anything"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Context != "" {
		t.Fatalf("want empty context, got %q", res.Context)
	}
	if !strings.Contains(gen.lastPrompt(), "Information: \nQuestion: anything") {
		t.Fatalf("answer prompt did not use empty context: %q", gen.lastPrompt())
	}
}

func TestAsk_EmptyCollectionStillAnswers(t *testing.T) {
	p := newPipeline(t, extractGen("x"), true)
	res, err := p.rag.Ask(context.Background(), AskRequest{Question: "hello"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Context != "" || res.Answer != "ANSWER" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAsk_UnknownSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	gen := extractGen("x")
	p := newPipeline(t, gen, true)

	_, err := p.rag.Ask(ctx, AskRequest{Question: "hi", SessionID: "never-created"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if st, ok := FailedStage(err); !ok || st != StageUserTurnRecorded {
		t.Fatalf("failed stage = %q", st)
	}
	if p.sessions.Len() != 0 {
		t.Fatal("a session was fabricated")
	}
	if gen.calls() != 0 {
		t.Fatal("generator must not be called")
	}
}

func TestAsk_DeletedSessionHistoryIsNotFound(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, extractGen("x"), false)
	res, err := p.rag.Ask(ctx, AskRequest{Question: "hi"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if err := p.history.Delete(ctx, res.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := p.history.History(ctx, res.SessionID, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := p.history.Delete(ctx, res.SessionID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestAsk_ExistingSessionAppends(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, extractGen("x"), false)
	id, _ := p.history.CreateSession(ctx)

	for _, q := range []string{"one", "two"} {
		res, err := p.rag.Ask(ctx, AskRequest{Question: q, SessionID: id})
		if err != nil {
			t.Fatalf("Ask: %v", err)
		}
		if res.SessionID != id {
			t.Fatalf("session id changed to %q", res.SessionID)
		}
	}
	h, _ := p.history.History(ctx, id, 0)
	if len(h.Messages) != 4 {
		t.Fatalf("want 4 messages, got %d", len(h.Messages))
	}
	last2, _ := p.history.History(ctx, id, 2)
	if last2.Messages[0].Content != "two" || last2.Messages[1].Role != "assistant" {
		t.Fatalf("limit=2 history = %+v", last2.Messages)
	}
}

func TestAsk_GenerationFailureKeepsUserTurn(t *testing.T) {
	ctx := context.Background()
	gen := &funcGen{fn: func(string) (string, error) { return "", errUpstream }}
	p := newPipeline(t, gen, false)
	id, _ := p.history.CreateSession(ctx)

	_, err := p.rag.Ask(ctx, AskRequest{Question: "q", SessionID: id})
	if !errors.Is(err, domain.ErrGeneration) || !errors.Is(err, errUpstream) {
		t.Fatalf("want ErrGeneration wrapping upstream, got %v", err)
	}
	if st, _ := FailedStage(err); st != StageAnswered {
		t.Fatalf("failed stage = %q", st)
	}
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("kind = %q", domain.KindOf(err))
	}
	h, _ := p.history.History(ctx, id, 0)
	if len(h.Messages) != 1 || h.Messages[0].Role != "user" {
		t.Fatalf("user turn should stay recorded: %+v", h.Messages)
	}
}

func TestAsk_RerankFailureAborts(t *testing.T) {
	ctx := context.Background()
	gen := &funcGen{fn: func(string) (string, error) { return "", errUpstream }}
	p := newPipeline(t, gen, true)
	p.seed(t, model.DefaultCollection, "some passage")

	_, err := p.rag.Ask(ctx, AskRequest{Question: "q"})
	if !errors.Is(err, domain.ErrRerank) {
		t.Fatalf("want ErrRerank, got %v", err)
	}
	if st, _ := FailedStage(err); st != StageReranked {
		t.Fatalf("failed stage = %q", st)
	}
}

func TestAsk_MissingPersistDirIsConfigurationError(t *testing.T) {
	p := newPipeline(t, extractGen("x"), false)
	p.rag.retrieval = NewRetrievalGateway(file.NewIndex(""), ai.NewNoopAIAdapter(), "", RetrievalOptions{}, nil)

	_, err := p.rag.Ask(context.Background(), AskRequest{Question: "q"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
	if st, _ := FailedStage(err); st != StageRetrieved {
		t.Fatalf("failed stage = %q", st)
	}
}

func TestAsk_ValidatesInput(t *testing.T) {
	p := newPipeline(t, extractGen("x"), false)
	ctx := context.Background()

	if _, err := p.rag.Ask(ctx, AskRequest{Question: "   "}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("blank question: %v", err)
	}
	bad := float32(3)
	_, err := p.rag.Ask(ctx, AskRequest{Question: "q", Options: adapter.GenerateOptions{Temperature: &bad}})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad temperature: %v", err)
	}
	if p.sessions.Len() != 0 {
		t.Fatal("invalid requests must not create sessions")
	}
}

func TestAsk_RecordsQuestionVerbatim(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, extractGen("x"), false)
	question := "  what is a goroutine?\n"

	res, err := p.rag.Ask(ctx, AskRequest{Question: question})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	h, err := p.history.History(ctx, res.SessionID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if got := h.Messages[0].Content; got != question {
		t.Fatalf("user turn = %q, want %q", got, question)
	}
}

func TestAsk_PassesCustomPromptAndOptions(t *testing.T) {
	gen := extractGen("x")
	p := newPipeline(t, gen, false)
	temp := float32(0.2)

	_, err := p.rag.Ask(context.Background(), AskRequest{
		Question:     "why",
		CustomPrompt: "Q={question} C={context}",
		Options:      adapter.GenerateOptions{MaxTokens: 64, Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := gen.lastPrompt(); got != "Q=why C=" {
		t.Fatalf("prompt = %q", got)
	}
	o := gen.opts[len(gen.opts)-1]
	if o.MaxTokens != 64 || o.Temperature == nil || *o.Temperature != 0.2 || o.Model != "test-model" {
		t.Fatalf("options = %+v", o)
	}
}

func TestBuildContext(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Fatalf("nil passages: %q", got)
	}
	got := BuildContext([]model.Passage{{Text: "a"}, {Text: "b"}})
	if got != "a\nb" {
		t.Fatalf("got %q", got)
	}
}

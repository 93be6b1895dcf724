package ai

import (
	"context"

	"rag-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

// limitedAI caps concurrent provider calls. Waiting for a slot honours ctx.
type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   chan struct{}
}

func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) release() { <-l.sem }

func (l *limitedAI) Provider() string { return l.inner.Provider() }

func (l *limitedAI) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedAI) Generate(ctx context.Context, prompt string, opts adapter.GenerateOptions) (adapter.Generation, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.Generation{}, err
	}
	defer l.release()
	return l.inner.Generate(ctx, prompt, opts)
}

func (l *limitedAI) Embed(ctx context.Context, texts []string, task adapter.EmbedTask) ([][]float32, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.Embed(ctx, texts, task)
}

func (l *limitedAI) CountTokens(ctx context.Context, model, text string) (int, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer l.release()
	return l.inner.CountTokens(ctx, model, text)
}

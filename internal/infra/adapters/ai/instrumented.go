package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*instrumentedAI)(nil)

// instrumentedAI records latency/token metrics and a debug log line for
// every provider call.
type instrumentedAI struct {
	inner adapter.AIServiceAdapter
	log   *zerolog.Logger
}

func NewInstrumentedAI(inner adapter.AIServiceAdapter, logger *zerolog.Logger) adapter.AIServiceAdapter {
	return &instrumentedAI{inner: inner, log: logger}
}

func (i *instrumentedAI) Provider() string { return i.inner.Provider() }

func (i *instrumentedAI) ListModels(ctx context.Context) ([]string, error) {
	return i.inner.ListModels(ctx)
}

func (i *instrumentedAI) CountTokens(ctx context.Context, model, text string) (int, error) {
	return i.inner.CountTokens(ctx, model, text)
}

func (i *instrumentedAI) Generate(ctx context.Context, prompt string, opts adapter.GenerateOptions) (adapter.Generation, error) {
	start := time.Now()
	gen, err := i.inner.Generate(ctx, prompt, opts)
	ms := int(time.Since(start).Milliseconds())

	u := gen.Usage
	if err == nil && u.PromptTokens == 0 {
		// some providers omit usage; fall back to local counting
		if n, cerr := i.inner.CountTokens(ctx, gen.Model, prompt); cerr == nil {
			u.PromptTokens = n
			u.TotalTokens = n + u.CompletionTokens
		}
	}
	model := gen.Model
	if model == "" {
		model = opts.Model
	}
	metrics.ObserveGeneration(i.inner.Provider(), model, u.PromptTokens, u.CompletionTokens, u.TotalTokens, ms, err == nil)

	l := logging.With(ctx, i.log)
	if err != nil {
		l.Warn().Err(err).Str("provider", i.inner.Provider()).Str("model", model).Int("latency_ms", ms).Msg("ai generate failed")
		return gen, err
	}
	l.Debug().Str("provider", i.inner.Provider()).Str("model", model).
		Int("prompt_tokens", u.PromptTokens).Int("completion_tokens", u.CompletionTokens).
		Int("latency_ms", ms).Msg("ai generate")
	gen.Usage = u
	return gen, nil
}

func (i *instrumentedAI) Embed(ctx context.Context, texts []string, task adapter.EmbedTask) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.inner.Embed(ctx, texts, task)
	ms := int(time.Since(start).Milliseconds())
	metrics.ObserveEmbedding(i.inner.Provider(), len(texts), ms, err == nil)
	if err != nil {
		logging.With(ctx, i.log).Warn().Err(err).Str("provider", i.inner.Provider()).Int("texts", len(texts)).Msg("ai embed failed")
	}
	return vecs, err
}

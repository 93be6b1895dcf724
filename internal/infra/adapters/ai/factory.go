package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/domain/ports/adapter"
)

// NewFromConfig builds every provider that has credentials, routes them
// through a MultiAIAdapter and wraps the result with the concurrency cap and
// instrumentation. cfg.Provider selects the default (and embedding) provider.
func NewFromConfig(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	byProvider := map[string]adapter.AIServiceAdapter{}

	if cfg.GeminiKey != "" {
		g, err := NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, geminiModel(cfg), geminiEmbedding(cfg), cfg.MaxOutputTokens, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = g
	}
	if cfg.OpenAIKey != "" {
		o, err := NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, openAIModel(cfg), openAIEmbedding(cfg), cfg.MaxOutputTokens, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = o
	}
	if cfg.Provider == "noop" {
		byProvider["noop"] = NewNoopAIAdapter()
	}
	if byProvider[cfg.Provider] == nil {
		return nil, fmt.Errorf("ai provider %q has no credentials", cfg.Provider)
	}

	var svc adapter.AIServiceAdapter = NewMultiAIAdapter(cfg.Provider, byProvider, nil)
	svc = NewLimitedAI(svc, cfg.ConcurrentLimit)
	return NewInstrumentedAI(svc, logger), nil
}

// A model name configured for one provider is not valid for the other, so a
// secondary provider falls back to its own default.
func geminiModel(cfg config.AIConfig) string {
	if cfg.Provider == "gemini" {
		return cfg.DefaultModel
	}
	return "gemini-2.0-flash-001"
}

func geminiEmbedding(cfg config.AIConfig) string {
	if cfg.Provider == "gemini" {
		return cfg.EmbeddingModel
	}
	return "text-embedding-004"
}

func openAIModel(cfg config.AIConfig) string {
	if cfg.Provider == "openai" {
		return cfg.DefaultModel
	}
	return ""
}

func openAIEmbedding(cfg config.AIConfig) string {
	if cfg.Provider == "openai" {
		return cfg.EmbeddingModel
	}
	return ""
}

package adapter

import (
	"context"
	"fmt"

	"rag-pipeline/internal/domain"
)

// Usage for a single generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateOptions are the enumerated per-call knobs passed to a provider.
// Zero values mean "provider default".
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float32
}

// Validate rejects options no provider accepts.
func (o GenerateOptions) Validate() error {
	if o.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be >= 0, got %d", domain.ErrInvalidArgument, o.MaxTokens)
	}
	if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be within [0, 2], got %v", domain.ErrInvalidArgument, *o.Temperature)
	}
	return nil
}

// Generation is the provider's answer for one prompt.
type Generation struct {
	Text  string
	Model string
	Usage Usage
}

// EmbedTask hints the provider how the vectors will be used.
type EmbedTask string

const (
	EmbedQuery    EmbedTask = "RETRIEVAL_QUERY"
	EmbedDocument EmbedTask = "RETRIEVAL_DOCUMENT"
)

// TextGenerator is the port for single-prompt text completion.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (Generation, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string, task EmbedTask) ([][]float32, error)
}

// AIServiceAdapter is the full provider port.
type AIServiceAdapter interface {
	TextGenerator
	Embedder

	Provider() string
	ListModels(ctx context.Context) ([]string, error)

	// CountTokens returns prompt tokens for text (provider-specific counting;
	// best-effort when exact isn't available).
	CountTokens(ctx context.Context, model, text string) (int, error)
}

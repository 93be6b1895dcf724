package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"rag-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopDim is the vector size produced by NoopAIAdapter.Embed.
const NoopDim = 64

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// Generation echoes a short preview of the prompt; embeddings are hashed
// bags of words, so texts sharing words land close together.
type NoopAIAdapter struct{}

// NewNoopAIAdapter constructs the noop adapter.
func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-ai-model"}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model, text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (a *NoopAIAdapter) Generate(ctx context.Context, prompt string, opts adapter.GenerateOptions) (adapter.Generation, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Generation{}, err
	}
	if err := opts.Validate(); err != nil {
		return adapter.Generation{}, err
	}
	words := strings.Fields(prompt)
	preview := words
	if len(preview) > 24 {
		preview = preview[len(preview)-24:]
	}
	text := fmt.Sprintf("This is a noop AI response to: %s", strings.Join(preview, " "))
	in := len(words)
	out := len(strings.Fields(text))
	return adapter.Generation{
		Text:  text,
		Model: modelOrDefault(opts.Model, "noop-ai-model"),
		Usage: adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

func (a *NoopAIAdapter) Embed(ctx context.Context, texts []string, task adapter.EmbedTask) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashEmbedding(t)
	}
	return out, nil
}

// HashEmbedding is a unit-length bag-of-words vector of size NoopDim.
// Empty input yields the zero vector.
func HashEmbedding(text string) []float32 {
	v := make([]float32, NoopDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%NoopDim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// File: internal/usecase/answer.go
package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/logging"
)

// Compile-time check
var _ AnswerSynthesizer = (*answerSynth)(nil)

const (
	DefaultAnswerPrompt = `Based on the following information, answer the question.
Information: {context}
Question: {question}
Answer:`

	SummaryPrompt = `Summarize the following text in about {max_length} words:
{text}
Summary:`

	DefaultSummaryLength = 200
)

// AnswerSynthesizer produces the final text from a filled template. Any
// provider failure is reported as domain.ErrGeneration.
type AnswerSynthesizer interface {
	Generate(ctx context.Context, question, contextText, customPrompt string, opts adapter.GenerateOptions) (string, error)
	Summarize(ctx context.Context, text string, maxLength int, opts adapter.GenerateOptions) (string, error)
}

type answerSynth struct {
	gen      adapter.TextGenerator
	defaults adapter.GenerateOptions
	log      *zerolog.Logger
}

func NewAnswerSynthesizer(gen adapter.TextGenerator, defaults adapter.GenerateOptions, logger *zerolog.Logger) *answerSynth {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &answerSynth{gen: gen, defaults: defaults, log: logger}
}

func (a *answerSynth) Generate(ctx context.Context, question, contextText, customPrompt string, opts adapter.GenerateOptions) (string, error) {
	tmpl := customPrompt
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultAnswerPrompt
	}
	prompt := strings.NewReplacer("{context}", contextText, "{question}", question).Replace(tmpl)
	return a.call(ctx, "answer", prompt, opts)
}

func (a *answerSynth) Summarize(ctx context.Context, text string, maxLength int, opts adapter.GenerateOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", domain.ErrInvalidArgument)
	}
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}
	prompt := strings.NewReplacer("{text}", text, "{max_length}", strconv.Itoa(maxLength)).Replace(SummaryPrompt)
	return a.call(ctx, "summarize", prompt, opts)
}

func (a *answerSynth) call(ctx context.Context, op, prompt string, opts adapter.GenerateOptions) (string, error) {
	opts = a.merge(opts)
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if a.gen == nil {
		return "", fmt.Errorf("%w: %w: no text generator", domain.ErrGeneration, domain.ErrConfiguration)
	}
	out, err := a.gen.Generate(ctx, prompt, opts)
	if err != nil {
		logging.With(ctx, a.log).Error().Err(err).Str("op", op).Str("model", opts.Model).Msg("generation failed")
		return "", fmt.Errorf("%w: %s: %w", domain.ErrGeneration, op, err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (a *answerSynth) merge(o adapter.GenerateOptions) adapter.GenerateOptions {
	if o.Model == "" {
		o.Model = a.defaults.Model
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = a.defaults.MaxTokens
	}
	if o.Temperature == nil {
		o.Temperature = a.defaults.Temperature
	}
	return o
}

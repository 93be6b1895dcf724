// File: internal/usecase/rerank.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/logging"
)

// Compile-time check
var _ Reranker = (*llmExtractor)(nil)

// NoOutput is what the extractor answers when a passage has nothing relevant.
const NoOutput = "NO_OUTPUT"

// DefaultExtractionPrompt asks the model to copy the relevant parts of one
// passage verbatim. {question} and {context} are substituted per call.
const DefaultExtractionPrompt = `Given the following question and context, extract any part of the context *AS IS* that is relevant to answer the question. If none of the context is relevant return ` + NoOutput + `.

Remember, *DO NOT* edit the extracted parts of the context.

> Question: {question}
> Context:
>>>
{context}
>>>
Extracted relevant parts:`

// Reranker compresses each candidate to its relevant excerpt and drops the
// ones with none. Survivors keep their input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []model.Passage, prompt string) ([]model.Passage, error)
}

type RerankOptions struct {
	Enabled     bool
	Parallelism int
	Prompt      string
	Model       string
}

type llmExtractor struct {
	gen  adapter.TextGenerator
	opts RerankOptions
	log  *zerolog.Logger
}

func NewReranker(gen adapter.TextGenerator, opts RerankOptions, logger *zerolog.Logger) *llmExtractor {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &llmExtractor{gen: gen, opts: opts, log: logger}
}

func (r *llmExtractor) Rerank(ctx context.Context, query string, candidates []model.Passage, prompt string) ([]model.Passage, error) {
	if !r.opts.Enabled || len(candidates) == 0 {
		return candidates, nil
	}
	if r.gen == nil {
		return nil, fmt.Errorf("%w: %w: no text generator", domain.ErrRerank, domain.ErrConfiguration)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = r.opts.Prompt
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultExtractionPrompt
	}
	log := logging.With(ctx, r.log)

	type result struct {
		text string
		err  error
	}
	results := make([]result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for i, c := range candidates {
		g.Go(func() error {
			p := strings.NewReplacer("{question}", query, "{context}", c.Text).Replace(prompt)
			out, err := r.gen.Generate(gctx, p, adapter.GenerateOptions{Model: r.opts.Model})
			if err != nil {
				// only cancellation aborts the batch
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i] = result{err: err}
				return nil
			}
			results[i] = result{text: strings.TrimSpace(out.Text)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerank, err)
	}

	var (
		kept   = make([]model.Passage, 0, len(candidates))
		failed int
		errs   []error
	)
	for i, res := range results {
		c := candidates[i]
		switch {
		case res.err != nil:
			failed++
			errs = append(errs, res.err)
			log.Warn().Err(res.err).Str("passage", c.ID).Msg("rerank extraction failed; keeping passage as is")
			kept = append(kept, c)
		case res.text == "" || strings.EqualFold(res.text, NoOutput):
			// nothing relevant
		default:
			c.Text = res.text
			kept = append(kept, c)
		}
	}
	if failed == len(candidates) {
		return nil, fmt.Errorf("%w: all %d extractions failed: %w", domain.ErrRerank, failed, errors.Join(errs...))
	}
	log.Debug().Int("candidates", len(candidates)).Int("kept", len(kept)).Int("failed", failed).Msg("reranked")
	return kept, nil
}

// File: internal/usecase/answer_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/ports/adapter"
)

func TestGenerate_DefaultTemplate(t *testing.T) {
	gen := &funcGen{fn: func(string) (string, error) { return " Paris \n", nil }}
	temp := float32(0.7)
	a := NewAnswerSynthesizer(gen, adapter.GenerateOptions{Model: "m", MaxTokens: 2048, Temperature: &temp}, nil)

	got, err := a.Generate(context.Background(), "capital of France?", "France's capital is Paris.", "", adapter.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("got %q", got)
	}
	want := "Based on the following information, answer the question.\nInformation: France's capital is Paris.\nQuestion: capital of France?\nAnswer:"
	if gen.lastPrompt() != want {
		t.Fatalf("prompt:\n%q\nwant:\n%q", gen.lastPrompt(), want)
	}
	o := gen.opts[0]
	if o.Model != "m" || o.MaxTokens != 2048 || *o.Temperature != 0.7 {
		t.Fatalf("defaults not applied: %+v", o)
	}
}

func TestGenerate_OverridesDefaults(t *testing.T) {
	gen := &funcGen{fn: func(string) (string, error) { return "ok", nil }}
	def := float32(0.7)
	a := NewAnswerSynthesizer(gen, adapter.GenerateOptions{Model: "m", MaxTokens: 2048, Temperature: &def}, nil)
	zero := float32(0)
	if _, err := a.Generate(context.Background(), "q", "c", "", adapter.GenerateOptions{MaxTokens: 10, Temperature: &zero}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	o := gen.opts[0]
	if o.MaxTokens != 10 || *o.Temperature != 0 {
		t.Fatalf("overrides lost: %+v", o)
	}
}

func TestGenerate_FailureIsGenerationError(t *testing.T) {
	gen := &funcGen{fn: func(string) (string, error) { return "", errUpstream }}
	a := NewAnswerSynthesizer(gen, adapter.GenerateOptions{}, nil)
	_, err := a.Generate(context.Background(), "q", "c", "", adapter.GenerateOptions{})
	if !errors.Is(err, domain.ErrGeneration) || !errors.Is(err, errUpstream) {
		t.Fatalf("got %v", err)
	}
	if gen.calls() != 1 {
		t.Fatalf("no retries expected, got %d calls", gen.calls())
	}
}

func TestGenerate_RejectsBadOptions(t *testing.T) {
	gen := &funcGen{fn: func(string) (string, error) { return "ok", nil }}
	a := NewAnswerSynthesizer(gen, adapter.GenerateOptions{}, nil)
	_, err := a.Generate(context.Background(), "q", "c", "", adapter.GenerateOptions{MaxTokens: -1})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("got %v", err)
	}
	if gen.calls() != 0 {
		t.Fatal("invalid options must not reach the provider")
	}
}

func TestSummarize(t *testing.T) {
	gen := &funcGen{fn: func(string) (string, error) { return "short", nil }}
	a := NewAnswerSynthesizer(gen, adapter.GenerateOptions{}, nil)

	got, err := a.Summarize(context.Background(), "a long text", 0, adapter.GenerateOptions{})
	if err != nil || got != "short" {
		t.Fatalf("Summarize: %q %v", got, err)
	}
	want := "Summarize the following text in about 200 words:\na long text\nSummary:"
	if gen.lastPrompt() != want {
		t.Fatalf("prompt = %q", gen.lastPrompt())
	}

	_, _ = a.Summarize(context.Background(), "x", 50, adapter.GenerateOptions{})
	if gen.lastPrompt() != "Summarize the following text in about 50 words:\nx\nSummary:" {
		t.Fatalf("prompt = %q", gen.lastPrompt())
	}

	if _, err := a.Summarize(context.Background(), "  ", 10, adapter.GenerateOptions{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("blank text: %v", err)
	}
}

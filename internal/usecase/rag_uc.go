// File: internal/usecase/rag_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/domain/ports/repository"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/infra/metrics"
)

// Compile-time check
var _ RAGUseCase = (*ragUC)(nil)

// Stage names one state of a question request. A request moves through them
// in declaration order and ends in StageDone or StageFailed.
type Stage string

const (
	StageStart                 Stage = "START"
	StageSessionResolved       Stage = "SESSION_RESOLVED"
	StageUserTurnRecorded      Stage = "USER_TURN_RECORDED"
	StageRetrieved             Stage = "RETRIEVED"
	StageReranked              Stage = "RERANKED"
	StageContextBuilt          Stage = "CONTEXT_BUILT"
	StageAnswered              Stage = "ANSWERED"
	StageAssistantTurnRecorded Stage = "ASSISTANT_TURN_RECORDED"
	StageDone                  Stage = "DONE"
	StageFailed                Stage = "FAILED"
)

// StageError reports the transition that failed. The wrapped error keeps its
// sentinel for errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage carried by err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

type AskRequest struct {
	Question     string
	SessionID    string
	Collection   string
	CustomPrompt string
	Options      adapter.GenerateOptions
}

type AskResult struct {
	Answer    string `json:"answer"`
	Context   string `json:"context"`
	SessionID string `json:"session_id"`
}

type RAGUseCase interface {
	Ask(ctx context.Context, req AskRequest) (*AskResult, error)
	Summarize(ctx context.Context, text string, maxLength int) (string, error)
}

type ragUC struct {
	sessions  repository.ChatSessionRepository
	retrieval RetrievalGateway
	reranker  Reranker
	answers   AnswerSynthesizer
	retrieve  RetrievalOptions
	log       *zerolog.Logger
	devMode   bool
}

func NewRAGUseCase(sessions repository.ChatSessionRepository, retrieval RetrievalGateway, reranker Reranker, answers AnswerSynthesizer, retrieve RetrievalOptions, logger *zerolog.Logger, devMode bool) *ragUC {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ragUC{
		sessions:  sessions,
		retrieval: retrieval,
		reranker:  reranker,
		answers:   answers,
		retrieve:  retrieve,
		log:       logger,
		devMode:   devMode,
	}
}

// Ask runs one question through the pipeline. The first failing step ends
// the request; turns already recorded stay recorded.
func (r *ragUC) Ask(ctx context.Context, req AskRequest) (res *AskResult, err error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidArgument)
	}
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}

	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "RAG.Ask")()

	state := StageStart
	defer func() {
		if err != nil {
			metrics.IncRAGRequest("failed", string(state))
			log.Warn().Err(err).Str("state", string(StageFailed)).Str("failed_stage", string(state)).Msg("rag request failed")
			err = &StageError{Stage: state, Err: err}
			return
		}
		metrics.IncRAGRequest("done", "")
	}()
	// step runs fn as the transition into next; state stays on the failing
	// transition's target so the error names what could not be reached.
	step := func(next Stage, fn func() error) error {
		state = next
		start := time.Now()
		e := fn()
		metrics.ObserveStage(string(next), time.Since(start).Milliseconds())
		return e
	}

	sessionID := req.SessionID
	if err = step(StageSessionResolved, func() error {
		if sessionID != "" {
			return nil
		}
		id, e := r.sessions.CreateSession(ctx)
		sessionID = id
		return e
	}); err != nil {
		return nil, err
	}
	ctx = logging.WithSessID(ctx, sessionID)
	log = logging.With(ctx, r.log)

	if err = step(StageUserTurnRecorded, func() error {
		_, e := r.sessions.AddMessage(ctx, sessionID, model.RoleUser, req.Question)
		return e
	}); err != nil {
		return nil, err
	}

	var passages []model.Passage
	if err = step(StageRetrieved, func() error {
		if e := r.retrieval.Load(ctx, req.Collection); e != nil {
			return e
		}
		var e error
		passages, e = r.retrieval.Retrieve(ctx, req.Collection, req.Question, r.retrieve)
		return e
	}); err != nil {
		return nil, err
	}

	if err = step(StageReranked, func() error {
		var e error
		passages, e = r.reranker.Rerank(ctx, req.Question, passages, "")
		return e
	}); err != nil {
		return nil, err
	}

	var contextText string
	_ = step(StageContextBuilt, func() error {
		contextText = BuildContext(passages)
		metrics.ObserveContextPassages(len(passages))
		return nil
	})

	var answer string
	if err = step(StageAnswered, func() error {
		var e error
		answer, e = r.answers.Generate(ctx, req.Question, contextText, req.CustomPrompt, req.Options)
		return e
	}); err != nil {
		return nil, err
	}

	if err = step(StageAssistantTurnRecorded, func() error {
		_, e := r.sessions.AddMessage(ctx, sessionID, model.RoleAssistant, answer)
		return e
	}); err != nil {
		return nil, err
	}

	state = StageDone
	log.Info().
		Str("question", logging.Redact(req.Question, r.devMode)).
		Int("passages", len(passages)).
		Msg("rag request done")
	return &AskResult{Answer: answer, Context: contextText, SessionID: sessionID}, nil
}

func (r *ragUC) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	defer logging.TraceDuration(logging.With(ctx, r.log), "RAG.Summarize")()
	return r.answers.Summarize(ctx, text, maxLength, adapter.GenerateOptions{})
}

// BuildContext joins passage texts with newlines; no passages is "".
func BuildContext(passages []model.Passage) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

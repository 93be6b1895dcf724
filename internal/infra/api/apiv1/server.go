// Package apiv1 serves the question, history and ingestion endpoints under
// /api/v1.
package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/usecase"
)

type Server struct {
	rag       usecase.RAGUseCase
	history   usecase.HistoryUseCase
	ingest    usecase.IngestUseCase
	retrieval usecase.RetrievalGateway
	maxUpload int64
	log       *zerolog.Logger
}

type Deps struct {
	RAG       usecase.RAGUseCase
	History   usecase.HistoryUseCase
	Ingest    usecase.IngestUseCase
	Retrieval usecase.RetrievalGateway
	MaxUpload int64
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if d.MaxUpload <= 0 {
		d.MaxUpload = 32 << 20
	}
	return &Server{
		rag:       d.RAG,
		history:   d.History,
		ingest:    d.Ingest,
		retrieval: d.Retrieval,
		maxUpload: d.MaxUpload,
		log:       logger,
	}
}

// RegisterAPIV1 mounts every route on r under /api/v1.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Post("/message-generator", s.handleMessage)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/chat-history/{session_id}", s.handleGetHistory)
		r.Delete("/chat-history/{session_id}", s.handleDeleteHistory)
		r.Post("/upload", s.handleUpload)
		r.Post("/summarize", s.handleSummarize)
		r.Get("/collections", s.handleCollections)
	})
}

type messageRequest struct {
	Question       string   `json:"question"`
	SessionID      string   `json:"session_id,omitempty"`
	CustomPrompt   string   `json:"custom_prompt,omitempty"`
	MaxTokens      *int     `json:"max_tokens,omitempty"`
	CollectionName string   `json:"collection_name,omitempty"`
	Temperature    *float32 `json:"temperature,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidArgument, err))
			return
		}
	} else if err := r.ParseForm(); err == nil {
		req.Question = r.PostFormValue("question")
		req.SessionID = r.PostFormValue("session_id")
	}

	// query and form parameters fill whatever the body left out
	if err := fillParams(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := adapter.GenerateOptions{Temperature: req.Temperature}
	if req.MaxTokens != nil {
		opts.MaxTokens = *req.MaxTokens
	}
	res, err := s.rag.Ask(r.Context(), usecase.AskRequest{
		Question:     req.Question,
		SessionID:    strings.TrimSpace(req.SessionID),
		Collection:   strings.TrimSpace(req.CollectionName),
		CustomPrompt: req.CustomPrompt,
		Options:      opts,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func fillParams(r *http.Request, req *messageRequest) error {
	get := func(k string) string {
		if v := r.URL.Query().Get(k); v != "" {
			return v
		}
		if r.PostForm != nil {
			return r.PostForm.Get(k)
		}
		return ""
	}
	if req.CustomPrompt == "" {
		req.CustomPrompt = get("custom_prompt")
	}
	if req.CollectionName == "" {
		req.CollectionName = get("collection_name")
	}
	if req.MaxTokens == nil {
		if v := get("max_tokens"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: max_tokens must be an integer", domain.ErrInvalidArgument)
			}
			req.MaxTokens = &n
		}
	}
	if req.Temperature == nil {
		if v := get("temperature"); v != "" {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return fmt.Errorf("%w: temperature must be a number", domain.ErrInvalidArgument)
			}
			t := float32(f)
			req.Temperature = &t
		}
	}
	return nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.history.CreateSession(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidArgument))
			return
		}
		limit = n
	}
	h, err := s.history.History(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if err := s.history.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "chat history deleted",
		"session_id": id,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidArgument, tooBig.Limit))
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: expected multipart form with a file field", domain.ErrInvalidArgument))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: file is required", domain.ErrInvalidArgument))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.ingest.Upload(r.Context(), usecase.UploadRequest{
		Filename:    hdr.Filename,
		Collection:  r.FormValue("collection_name"),
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.retrieval != nil {
		s.retrieval.Invalidate(res.Collection)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "file uploaded and indexed",
		"filename":   res.Filename,
		"collection": res.Collection,
		"chunks":     res.Chunks,
	})
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidArgument, err))
			return
		}
	} else {
		req.Text = r.FormValue("text")
		if v := r.FormValue("max_length"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.writeError(w, r, fmt.Errorf("%w: max_length must be a non-negative integer", domain.ErrInvalidArgument))
				return
			}
			req.MaxLength = n
		}
	}
	out, err := s.rag.Summarize(r.Context(), req.Text, req.MaxLength)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": out})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.retrieval.Collections(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"collections": names})
}

// ---- helpers ----

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error's kind to the HTTP status clients see.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	l := logging.With(r.Context(), s.log)
	ev := l.Debug()
	if status >= http.StatusInternalServerError {
		ev = l.Error()
	}
	ev.Err(err).Str("kind", string(domain.KindOf(err))).Int("status", status).Msg("request failed")

	msg := err.Error()
	if status == http.StatusNotFound {
		msg = "session not found"
	}
	writeJSON(w, status, map[string]string{"detail": msg})
}

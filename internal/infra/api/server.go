package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/infra/api/apiv1"
)

type RouterOptions struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	Auth           *AuthManager
	Limiter        Limiter
}

// NewRouter wires the shared middleware stack, /health, /metrics and the
// v1 API. Auth and rate limiting only guard /api/v1.
func NewRouter(opts RouterOptions, v1 *apiv1.Server, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(logger))
	r.Use(Recover(logger))
	r.Use(CORS(opts.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	guards := apiGuards(opts, logger)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return Chain(next, guards...) })
		apiv1.RegisterAPIV1(r, v1)
	})
	return r
}

// apiGuards lists the /api/v1 middlewares, outermost first.
func apiGuards(opts RouterOptions, logger *zerolog.Logger) []Middleware {
	var mws []Middleware
	if opts.RequestTimeout > 0 {
		mws = append(mws, Timeout(opts.RequestTimeout))
	}
	if opts.Auth != nil {
		mws = append(mws, Auth(opts.Auth, logger))
	}
	if opts.Limiter != nil {
		mws = append(mws, RateLimit(opts.Limiter, "api_v1", logger))
	}
	return mws
}

// Server owns the listening http.Server.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(cfg config.ServerConfig, h http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

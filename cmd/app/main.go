// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/domain/ports/adapter"
	aiAdapters "rag-pipeline/internal/infra/adapters/ai"
	"rag-pipeline/internal/infra/api"
	"rag-pipeline/internal/infra/api/apiv1"
	"rag-pipeline/internal/infra/blob"
	pg "rag-pipeline/internal/infra/db/postgres"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/infra/memory"
	"rag-pipeline/internal/infra/metrics"
	red "rag-pipeline/internal/infra/redis"
	"rag-pipeline/internal/infra/splitter"
	"rag-pipeline/internal/infra/vectorstore/file"
	"rag-pipeline/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: noop AI without keys, console logs, unredacted questions")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- AI providers ----
	ai, err := aiAdapters.NewFromConfig(ctx, cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	logger.Info().Str("provider", ai.Provider()).Str("model", cfg.AI.DefaultModel).
		Str("embedding_model", cfg.AI.EmbeddingModel).Msg("ai adapter ready")
	if cfg.AI.Provider != "noop" {
		checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
		missing, err := aiAdapters.CheckModels(checkCtx, ai, cfg.AI.DefaultModel, cfg.AI.RerankModel, cfg.AI.EmbeddingModel)
		checkCancel()
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("could not verify configured models")
		case len(missing) > 0:
			logger.Warn().Strs("missing", missing).Msg("configured models are not offered by the provider")
		}
	}

	// ---- Vector index ----
	var index adapter.VectorIndex
	switch cfg.VectorStore.Backend {
	case "postgres":
		pool, err := pg.ConnectPostgres(ctx, cfg.VectorStore.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)

		pgIndex := pg.NewPostgresVectorIndex(pool)
		if err := pgIndex.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		index = pgIndex
	default:
		index = file.NewIndex(cfg.VectorStore.PersistDir)
	}
	logger.Info().Str("backend", cfg.VectorStore.Backend).Str("persist_dir", cfg.VectorStore.PersistDir).Msg("vector index ready")

	// ---- Upload storage ----
	blobs, err := blob.FromConfig(ctx, cfg.Blob, cfg.Ingest.UploadDir)
	if err != nil {
		return err
	}

	// ---- Redis (optional rate limiting) ----
	var limiter api.Limiter
	if cfg.Redis.URL != "" && cfg.Redis.RateLimit > 0 {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		limiter = red.NewRateLimiter(rc, cfg.Redis.RateLimit, cfg.Redis.Window)
		logger.Info().Int("limit", cfg.Redis.RateLimit).Dur("window", cfg.Redis.Window).Msg("rate limiting enabled")
	}

	// ---- Use cases ----
	sessions := memory.NewChatSessionStore()
	retrieveOpts := usecase.RetrievalOptions{
		K:        cfg.Retrieval.K,
		FetchK:   cfg.Retrieval.FetchK,
		Lambda:   cfg.Retrieval.Lambda,
		Strategy: usecase.SearchStrategy(cfg.Retrieval.SearchType),
	}
	gateway := usecase.NewRetrievalGateway(index, ai, cfg.VectorStore.DefaultCollection, retrieveOpts, logger)
	reranker := usecase.NewReranker(ai, usecase.RerankOptions{
		Enabled:     *cfg.Rerank.Enabled,
		Parallelism: cfg.Rerank.Parallelism,
		Prompt:      cfg.Rerank.Prompt,
		Model:       cfg.AI.RerankModel,
	}, logger)
	answers := usecase.NewAnswerSynthesizer(ai, adapter.GenerateOptions{
		Model:       cfg.AI.DefaultModel,
		MaxTokens:   cfg.AI.MaxOutputTokens,
		Temperature: cfg.AI.Temperature,
	}, logger)

	ragUC := usecase.NewRAGUseCase(sessions, gateway, reranker, answers, retrieveOpts, logger, cfg.Runtime.Dev)
	historyUC := usecase.NewHistoryUseCase(sessions)
	ingestUC := usecase.NewIngestUseCase(index, ai, splitter.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		blobs, cfg.VectorStore.DefaultCollection, cfg.Ingest.Workers, logger)

	// ---- Seed documents ----
	if cfg.Ingest.SeedDir != "" {
		go func() {
			rep, err := ingestUC.Seed(ctx, cfg.Ingest.SeedDir, cfg.Ingest.SeedGlob)
			if err != nil {
				logger.Error().Err(err).Str("dir", cfg.Ingest.SeedDir).Msg("seeding failed")
				return
			}
			if rep.Files > 0 {
				gateway.Invalidate(cfg.VectorStore.DefaultCollection)
			}
		}()
	}

	// ---- HTTP ----
	var auth *api.AuthManager
	if cfg.Auth.JWTSecret != "" {
		auth = api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	} else if !cfg.Runtime.Dev {
		logger.Warn().Msg("auth.jwt_secret not set; API is unauthenticated")
	}
	v1 := apiv1.NewServer(apiv1.Deps{
		RAG:       ragUC,
		History:   historyUC,
		Ingest:    ingestUC,
		Retrieval: gateway,
		MaxUpload: cfg.Server.MaxUploadBytes,
	}, logger)
	router := api.NewRouter(api.RouterOptions{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Auth:           auth,
		Limiter:        limiter,
	}, v1, logger)
	server := api.NewServer(cfg.Server, router, logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

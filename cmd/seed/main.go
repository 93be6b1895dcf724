package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/domain/ports/adapter"
	aiAdapters "rag-pipeline/internal/infra/adapters/ai"
	"rag-pipeline/internal/infra/blob"
	pg "rag-pipeline/internal/infra/db/postgres"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/infra/splitter"
	"rag-pipeline/internal/infra/vectorstore/file"
	"rag-pipeline/internal/usecase"
)

// seed ingests a directory of documents into the configured vector index
// without starting the HTTP server.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	dir := flag.String("dir", "", "directory to ingest (defaults to ingest.seed_dir)")
	pattern := flag.String("glob", "", "doublestar pattern relative to dir (defaults to ingest.seed_glob)")
	dev := flag.Bool("dev", false, "developer mode: noop AI without keys")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall deadline")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, *dev)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *dir == "" {
		*dir = cfg.Ingest.SeedDir
	}
	if *pattern == "" {
		*pattern = cfg.Ingest.SeedGlob
	}
	if *dir == "" {
		log.Fatalf("no directory: pass -dir or set ingest.seed_dir")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ai, err := aiAdapters.NewFromConfig(ctx, cfg.AI, logger)
	if err != nil {
		log.Fatalf("ai: %v", err)
	}

	var index adapter.VectorIndex
	if cfg.VectorStore.Backend == "postgres" {
		pool, err := pg.ConnectPostgres(ctx, cfg.VectorStore.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		pgIndex := pg.NewPostgresVectorIndex(pool)
		if err := pgIndex.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		index = pgIndex
	} else {
		index = file.NewIndex(cfg.VectorStore.PersistDir)
	}

	blobs, err := blob.FromConfig(ctx, cfg.Blob, cfg.Ingest.UploadDir)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	ingest := usecase.NewIngestUseCase(index, ai,
		splitter.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		blobs, cfg.VectorStore.DefaultCollection, cfg.Ingest.Workers, logger)

	start := time.Now()
	rep, err := ingest.Seed(ctx, *dir, *pattern)
	if err != nil {
		log.Fatalf("seed %s: %v", *dir, err)
	}
	fmt.Printf("seeded %s into %q: files=%d chunks=%d skipped=%d failed=%d (%s)\n",
		*dir, cfg.VectorStore.DefaultCollection, rep.Files, rep.Chunks, rep.Skipped, rep.Failed,
		time.Since(start).Round(time.Millisecond))
	if rep.Failed > 0 {
		log.Fatalf("%d files failed", rep.Failed)
	}
}

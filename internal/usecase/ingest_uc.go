// File: internal/usecase/ingest_uc.go
package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/infra/metrics"
	"rag-pipeline/internal/infra/worker"
)

// Compile-time check
var _ IngestUseCase = (*ingestUC)(nil)

// embedBatch bounds texts per embedding call; Gemini rejects more than 100.
const embedBatch = 100

type UploadRequest struct {
	Filename    string
	Collection  string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	Filename   string `json:"filename"`
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
	Location   string `json:"-"`
}

type SeedReport struct {
	Files   int
	Skipped int
	Failed  int
	Chunks  int
}

type IngestUseCase interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	// Seed ingests every file under dir matching pattern into the default
	// collection. Empty or unreadable files are skipped, never fatal.
	Seed(ctx context.Context, dir, pattern string) (SeedReport, error)
}

type ingestUC struct {
	index       adapter.VectorIndex
	embedder    adapter.Embedder
	splitter    adapter.DocumentSplitter
	blobs       adapter.BlobStore
	defaultColl string
	workers     int
	log         *zerolog.Logger
}

func NewIngestUseCase(index adapter.VectorIndex, embedder adapter.Embedder, splitter adapter.DocumentSplitter, blobs adapter.BlobStore, defaultCollection string, workers int, logger *zerolog.Logger) *ingestUC {
	if defaultCollection == "" {
		defaultCollection = model.DefaultCollection
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ingestUC{
		index:       index,
		embedder:    embedder,
		splitter:    splitter,
		blobs:       blobs,
		defaultColl: defaultCollection,
		workers:     workers,
		log:         logger,
	}
}

func (u *ingestUC) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidArgument)
	}
	coll, err := u.collectionFor(req.Collection, name)
	if err != nil {
		return nil, err
	}

	n, loc, err := u.ingest(ctx, "upload", coll, name, req.ContentType, req.Data)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().
		Str("file", name).Str("collection", coll).Int("chunks", n).Str("location", loc).
		Msg("document ingested")
	return &UploadResult{Filename: name, Collection: coll, Chunks: n, Location: loc}, nil
}

// collectionFor validates an explicit name or derives one from the file stem.
func (u *ingestUC) collectionFor(requested, filename string) (string, error) {
	if c := strings.TrimSpace(requested); c != "" {
		if !model.ValidCollectionName(c) {
			return "", fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidArgument, c)
		}
		return c, nil
	}
	if c := model.SanitizeCollectionName(strings.TrimSuffix(filename, filepath.Ext(filename))); c != "" {
		return c, nil
	}
	return u.defaultColl, nil
}

func (u *ingestUC) ingest(ctx context.Context, source, coll, name, contentType string, data []byte) (int, string, error) {
	if u.index == nil {
		return 0, "", fmt.Errorf("%w: no vector index configured", domain.ErrConfiguration)
	}
	chunks, err := u.splitter.Split(ctx, name, data)
	if err != nil {
		metrics.IncIngestFile(source, "rejected")
		return 0, "", err
	}

	var loc string
	if u.blobs != nil {
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(name))
		}
		key := path.Join(coll, ulid.Make().String()+"-"+name)
		loc, err = u.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			metrics.IncIngestFile(source, "failed")
			return 0, "", fmt.Errorf("store upload: %w", err)
		}
	}

	records, err := u.embed(ctx, chunks, loc)
	if err != nil {
		metrics.IncIngestFile(source, "failed")
		return 0, "", err
	}

	h, err := u.index.Open(ctx, coll)
	if err != nil {
		metrics.IncIngestFile(source, "failed")
		return 0, "", fmt.Errorf("open collection %q: %w", coll, err)
	}
	if err := h.Add(ctx, records); err != nil {
		metrics.IncIngestFile(source, "failed")
		return 0, "", fmt.Errorf("add to collection %q: %w", coll, err)
	}
	metrics.IncIngestFile(source, "ok")
	metrics.AddIngestChunks(coll, len(records))
	return len(records), loc, nil
}

func (u *ingestUC) embed(ctx context.Context, chunks []model.Chunk, location string) ([]adapter.VectorRecord, error) {
	records := make([]adapter.VectorRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatch {
		batch := chunks[start:min(start+embedBatch, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := u.embedder.Embed(ctx, texts, adapter.EmbedDocument)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vecs), len(batch))
		}
		for i, c := range batch {
			meta := make(map[string]string, len(c.Metadata)+1)
			for k, v := range c.Metadata {
				meta[k] = v
			}
			if location != "" {
				meta["location"] = location
			}
			records = append(records, adapter.VectorRecord{
				ID:        ulid.Make().String(),
				Text:      c.Text,
				Metadata:  meta,
				Embedding: vecs[i],
			})
		}
	}
	return records, nil
}

func (u *ingestUC) Seed(ctx context.Context, dir, pattern string) (SeedReport, error) {
	var rep SeedReport
	if strings.TrimSpace(dir) == "" {
		return rep, nil
	}
	if pattern == "" {
		pattern = "*.*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return rep, fmt.Errorf("%w: invalid seed pattern %q", domain.ErrInvalidArgument, pattern)
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		u.log.Info().Str("dir", dir).Msg("seed directory missing; nothing to ingest")
		return rep, nil
	}
	if err != nil {
		return rep, fmt.Errorf("seed dir: %w", err)
	}
	if !info.IsDir() {
		return rep, fmt.Errorf("%w: seed path %s is not a directory", domain.ErrInvalidArgument, dir)
	}

	fsys := os.DirFS(dir)
	var files []string
	err = doublestar.GlobWalk(fsys, pattern, func(p string, d fs.DirEntry) error {
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("seed glob: %w", err)
	}
	if len(files) == 0 {
		return rep, nil
	}

	// workers outlive ctx so every queued task runs and marks the group done;
	// tasks themselves bail out once ctx is cancelled
	pool := worker.NewPool("seed", u.workers, u.log)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Stop()

	var (
		wg                    sync.WaitGroup
		done, skipped, failed atomic.Int64
		chunks                atomic.Int64
	)
	for _, p := range files {
		wg.Add(1)
		task := func(context.Context) error {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := u.seedFile(ctx, fsys, p)
			switch {
			case errors.Is(err, errSkip):
				skipped.Add(1)
				return nil
			case err != nil:
				failed.Add(1)
				return fmt.Errorf("seed %s: %w", p, err)
			}
			done.Add(1)
			chunks.Add(int64(n))
			return nil
		}
		if err := pool.SubmitWait(ctx, task); err != nil {
			wg.Done()
			wg.Wait()
			return rep, err
		}
	}
	wg.Wait()

	rep = SeedReport{
		Files:   int(done.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
		Chunks:  int(chunks.Load()),
	}
	u.log.Info().
		Int("files", rep.Files).Int("skipped", rep.Skipped).Int("failed", rep.Failed).Int("chunks", rep.Chunks).
		Str("collection", u.defaultColl).
		Msg("seed ingestion finished")
	return rep, ctx.Err()
}

var errSkip = errors.New("skip")

func (u *ingestUC) seedFile(ctx context.Context, fsys fs.FS, p string) (int, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		u.log.Warn().Err(err).Str("file", p).Msg("seed file unreadable; skipped")
		metrics.IncIngestFile("seed", "skipped")
		return 0, errSkip
	}
	if len(bytes.TrimSpace(data)) == 0 {
		u.log.Warn().Str("file", p).Msg("seed file empty; skipped")
		metrics.IncIngestFile("seed", "skipped")
		return 0, errSkip
	}
	n, _, err := u.ingest(ctx, "seed", u.defaultColl, p, "", data)
	if errors.Is(err, domain.ErrInvalidArgument) {
		u.log.Warn().Err(err).Str("file", p).Msg("seed file not ingestible; skipped")
		return 0, errSkip
	}
	return n, err
}

// File: internal/usecase/ingest_uc_test.go
package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/infra/adapters/ai"
	"rag-pipeline/internal/infra/blob"
	"rag-pipeline/internal/infra/splitter"
	"rag-pipeline/internal/infra/vectorstore/file"
)

func TestUpload_IndexesChunksIntoStemCollection(t *testing.T) {
	ctx := context.Background()
	index := file.NewIndex(t.TempDir())
	blobs := blob.NewLocalStore(t.TempDir())
	uc := NewIngestUseCase(index, ai.NewNoopAIAdapter(), splitter.New(30, 0), blobs, "", 2, nil)

	res, err := uc.Upload(ctx, UploadRequest{
		Filename: "Team Handbook.md",
		Data:     []byte("# Vacation\n\nEveryone gets thirty days of leave.\n\n# Laptops\n\nLaptops are replaced every three years."),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Collection != "Team_Handbook" || res.Filename != "Team Handbook.md" {
		t.Fatalf("result = %+v", res)
	}
	if res.Chunks < 2 || res.Location == "" {
		t.Fatalf("result = %+v", res)
	}

	h, _ := index.Open(ctx, "Team_Handbook")
	n, _ := h.Count(ctx)
	if n != res.Chunks {
		t.Fatalf("collection has %d records, want %d", n, res.Chunks)
	}
	top, _ := h.Query(ctx, ai.HashEmbedding("laptops replaced"), 1)
	if top[0].Metadata["source"] != "Team Handbook.md" || top[0].Metadata["location"] != res.Location {
		t.Fatalf("metadata = %+v", top[0].Metadata)
	}
}

func TestUpload_ExplicitCollection(t *testing.T) {
	uc := NewIngestUseCase(file.NewIndex(t.TempDir()), ai.NewNoopAIAdapter(), splitter.New(100, 0), nil, "", 1, nil)
	res, err := uc.Upload(context.Background(), UploadRequest{Filename: "a.txt", Collection: "kb", Data: []byte("hello")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Collection != "kb" || res.Chunks != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestUpload_Rejects(t *testing.T) {
	uc := NewIngestUseCase(file.NewIndex(t.TempDir()), ai.NewNoopAIAdapter(), splitter.New(100, 0), nil, "", 1, nil)
	ctx := context.Background()
	cases := []UploadRequest{
		{Filename: "", Data: []byte("x")},
		{Filename: "scan.pdf", Data: []byte("%PDF-1.4")},
		{Filename: "empty.txt", Data: []byte("   ")},
		{Filename: "a.txt", Collection: "../up", Data: []byte("x")},
	}
	for _, c := range cases {
		if _, err := uc.Upload(ctx, c); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("%+v: want ErrInvalidArgument, got %v", c, err)
		}
	}
}

func TestUpload_NoPersistDir(t *testing.T) {
	uc := NewIngestUseCase(file.NewIndex(""), ai.NewNoopAIAdapter(), splitter.New(100, 0), nil, "", 1, nil)
	_, err := uc.Upload(context.Background(), UploadRequest{Filename: "a.txt", Data: []byte("x")})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("got %v", err)
	}
}

func TestSeed_IngestsDirectoryIntoDefaultCollection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.txt", "first document")
	write("b.md", "# second\n\ndocument")
	write("empty.txt", " \n ")
	write("image.png", "not text")
	write("nested/c.txt", "nested is outside *.*")

	index := file.NewIndex(t.TempDir())
	uc := NewIngestUseCase(index, ai.NewNoopAIAdapter(), splitter.New(1000, 200), nil, "", 2, nil)

	rep, err := uc.Seed(ctx, dir, "")
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if rep.Files != 2 || rep.Skipped != 2 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	h, _ := index.Open(ctx, model.DefaultCollection)
	if n, _ := h.Count(ctx); n != 2 {
		t.Fatalf("default collection has %d records", n)
	}

	rep, err = uc.Seed(ctx, dir, "**/*.txt")
	if err != nil {
		t.Fatalf("Seed recursive: %v", err)
	}
	if rep.Files != 2 || rep.Skipped != 1 {
		t.Fatalf("recursive report = %+v", rep)
	}
}

func TestSeed_MissingDirIsNoop(t *testing.T) {
	uc := NewIngestUseCase(file.NewIndex(t.TempDir()), ai.NewNoopAIAdapter(), splitter.New(100, 0), nil, "", 1, nil)
	rep, err := uc.Seed(context.Background(), filepath.Join(t.TempDir(), "absent"), "*.*")
	if err != nil || rep != (SeedReport{}) {
		t.Fatalf("got %+v %v", rep, err)
	}
	if _, err := uc.Seed(context.Background(), t.TempDir(), "[bad"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad pattern: %v", err)
	}
}

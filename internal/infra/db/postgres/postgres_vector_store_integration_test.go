//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/ports/adapter"
)

func TestPostgresVectorIndex_AddQuery(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer pool.Close()

	idx := NewPostgresVectorIndex(pool)
	if err := idx.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	name := "it_" + uuid.NewString()[:8]
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM rag_chunks WHERE collection=$1;`, name) })

	c, err := idx.Open(ctx, name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	recs := []adapter.VectorRecord{
		{ID: name + "-a", Text: "alpha", Metadata: map[string]string{"source": "a.txt"}, Embedding: []float32{1, 0}},
		{ID: name + "-b", Text: "beta", Embedding: []float32{0, 1}},
	}
	if err := c.Add(ctx, recs); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n, _ := c.Count(ctx); n != 2 {
		t.Fatalf("count: %d", n)
	}
	got, err := c.Query(ctx, []float32{1, 0}, 1)
	if err != nil || len(got) != 1 || got[0].Text != "alpha" || got[0].Metadata["source"] != "a.txt" {
		t.Fatalf("query: %+v (%v)", got, err)
	}

	if err := c.Add(ctx, recs[:1]); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("duplicate id should be invalid argument, got %v", err)
	}

	names, err := idx.Collections(ctx)
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	found := false
	for _, n := range names {
		found = found || n == name
	}
	if !found {
		t.Fatalf("collection %s not listed in %v", name, names)
	}
}

package adapter

import "context"

// VectorRecord is one embedded chunk stored in a collection.
type VectorRecord struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// ScoredRecord is a VectorRecord with its cosine similarity to a query.
type ScoredRecord struct {
	VectorRecord
	Score float32
}

// VectorIndex opens named collections. Opening an unknown collection yields
// an empty one; it is created on first Add.
type VectorIndex interface {
	Open(ctx context.Context, name string) (VectorCollection, error)
	Collections(ctx context.Context) ([]string, error)
}

// VectorCollection is a handle to one opened collection. Handles are safe for
// concurrent use.
type VectorCollection interface {
	Name() string
	Add(ctx context.Context, records []VectorRecord) error
	// Query returns up to n records ordered by descending similarity, with
	// embeddings populated.
	Query(ctx context.Context, embedding []float32, n int) ([]ScoredRecord, error)
	Count(ctx context.Context) (int, error)
}

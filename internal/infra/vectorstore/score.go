// Package vectorstore holds helpers shared by the collection backends.
package vectorstore

import (
	"math"
	"sort"

	"rag-pipeline/internal/domain/ports/adapter"
)

// Cosine similarity of a and b; 0 when either is the zero vector or the
// dimensions differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// TopN scores every record against query and keeps the n best, highest
// first. Ties keep insertion order.
func TopN(records []adapter.VectorRecord, query []float32, n int) []adapter.ScoredRecord {
	if n <= 0 || len(records) == 0 {
		return nil
	}
	scored := make([]adapter.ScoredRecord, len(records))
	for i, r := range records {
		scored[i] = adapter.ScoredRecord{VectorRecord: r, Score: Cosine(query, r.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/ports/adapter"
)

func rec(id, text string, v ...float32) adapter.VectorRecord {
	return adapter.VectorRecord{ID: id, Text: text, Metadata: map[string]string{"source": "t"}, Embedding: v}
}

func TestOpen_NoDirIsConfigurationError(t *testing.T) {
	idx := NewIndex("")
	_, err := idx.Open(context.Background(), "default_collection")
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = idx.Collections(context.Background())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOpen_InvalidName(t *testing.T) {
	idx := NewIndex(t.TempDir())
	for _, name := range []string{"", "../etc", "a/b", ".hidden"} {
		_, err := idx.Open(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, name)
	}
}

func TestAddQuery_PersistsAcrossIndexes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx := NewIndex(dir)
	c, err := idx.Open(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []adapter.VectorRecord{
		rec("a", "alpha", 1, 0),
		rec("b", "beta", 0, 1),
		rec("c", "gamma", 0.7, 0.7),
	}))

	_, err = os.Stat(filepath.Join(dir, "docs.json"))
	require.NoError(t, err)

	// a fresh index reads the same data back
	c2, err := NewIndex(dir).Open(ctx, "docs")
	require.NoError(t, err)
	n, _ := c2.Count(ctx)
	assert.Equal(t, 3, n)

	got, err := c2.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, []float32{1, 0}, got[0].Embedding)
	assert.Equal(t, "t", got[0].Metadata["source"])
}

func TestAdd_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	c, err := NewIndex(t.TempDir()).Open(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []adapter.VectorRecord{rec("a", "x", 1, 0)}))

	err = c.Add(ctx, []adapter.VectorRecord{rec("b", "y", 1, 0, 0)})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	n, _ := c.Count(ctx)
	assert.Equal(t, 1, n, "failed add must not change the collection")

	_, err = c.Query(ctx, []float32{1, 2, 3}, 1)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestQuery_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	c, err := NewIndex(t.TempDir()).Open(ctx, "empty")
	require.NoError(t, err)
	got, err := c.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollections_ListsPersisted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx := NewIndex(dir)

	a, _ := idx.Open(ctx, "alpha")
	require.NoError(t, a.Add(ctx, []adapter.VectorRecord{rec("1", "x", 1)}))
	_, _ = idx.Open(ctx, "never_written")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	names, err := idx.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, names)
}

func TestAdd_TwoIndexesInterleaved(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	app, err := NewIndex(dir).Open(ctx, "docs")
	require.NoError(t, err)
	seed, err := NewIndex(dir).Open(ctx, "docs")
	require.NoError(t, err)

	require.NoError(t, app.Add(ctx, []adapter.VectorRecord{rec("r1", "one", 1, 0)}))
	require.NoError(t, seed.Add(ctx, []adapter.VectorRecord{rec("r2", "two", 0, 1)}))
	require.NoError(t, app.Add(ctx, []adapter.VectorRecord{rec("r3", "three", 1, 1)}))

	fresh, err := NewIndex(dir).Open(ctx, "docs")
	require.NoError(t, err)
	n, err := fresh.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// the handle that did not write last still sees everything
	n, err = seed.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	got, err := seed.Query(ctx, []float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r3", got[0].ID)
}

func TestAdd_ConcurrentHandles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	const writers, each = 4, 5

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		c, err := NewIndex(dir).Open(ctx, "docs")
		require.NoError(t, err)
		wg.Add(1)
		go func(w int, c adapter.VectorCollection) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, c.Add(ctx, []adapter.VectorRecord{rec(fmt.Sprintf("%d-%d", w, i), "x", 1, 0)}))
			}
		}(w, c)
	}
	wg.Wait()

	c, err := NewIndex(dir).Open(ctx, "docs")
	require.NoError(t, err)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*each, n)
}

func TestQuery_SeesRemovedFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewIndex(dir).Open(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []adapter.VectorRecord{rec("a", "x", 1, 0)}))

	require.NoError(t, os.Remove(filepath.Join(dir, "docs.json")))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

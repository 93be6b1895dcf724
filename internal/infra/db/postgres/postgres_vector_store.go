// File: internal/infra/db/postgres/postgres_vector_store.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/vectorstore"
)

var (
	_ adapter.VectorIndex      = (*VectorIndex)(nil)
	_ adapter.VectorCollection = (*pgCollection)(nil)
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rag_chunks (
  id          TEXT PRIMARY KEY,
  collection  TEXT NOT NULL,
  text        TEXT NOT NULL,
  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
  embedding   FLOAT8[] NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS rag_chunks_collection_idx ON rag_chunks (collection, created_at);`

// VectorIndex stores every collection in the rag_chunks table. Similarity is
// computed in process over the collection's rows.
type VectorIndex struct {
	pool *pgxpool.Pool
}

func NewPostgresVectorIndex(pool *pgxpool.Pool) *VectorIndex {
	return &VectorIndex{pool: pool}
}

// EnsureSchema creates the table and index if they are missing.
func (v *VectorIndex) EnsureSchema(ctx context.Context) error {
	if v.pool == nil {
		return fmt.Errorf("%w: no database pool", domain.ErrConfiguration)
	}
	if _, err := v.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (v *VectorIndex) Open(ctx context.Context, name string) (adapter.VectorCollection, error) {
	if v.pool == nil {
		return nil, fmt.Errorf("%w: no database pool", domain.ErrConfiguration)
	}
	if !model.ValidCollectionName(name) {
		return nil, fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidArgument, name)
	}
	// handles hold no state beyond the name
	return &pgCollection{pool: v.pool, name: name}, nil
}

func (v *VectorIndex) Collections(ctx context.Context) ([]string, error) {
	if v.pool == nil {
		return nil, fmt.Errorf("%w: no database pool", domain.ErrConfiguration)
	}
	rows, err := v.pool.Query(ctx, `SELECT DISTINCT collection FROM rag_chunks ORDER BY collection;`)
	if err != nil {
		return nil, wrapPgErr("list collections", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type pgCollection struct {
	pool *pgxpool.Pool
	name string
}

func (c *pgCollection) Name() string { return c.name }

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rag_chunks WHERE collection=$1;`, c.name).Scan(&n); err != nil {
		return 0, wrapPgErr("count", err)
	}
	return n, nil
}

func (c *pgCollection) Add(ctx context.Context, records []adapter.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	const q = `
INSERT INTO rag_chunks (id, collection, text, metadata, embedding)
VALUES ($1,$2,$3,$4,$5);`

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("%w: record %s has no embedding", domain.ErrInvalidArgument, r.ID)
		}
		meta, err := json.Marshal(orEmpty(r.Metadata))
		if err != nil {
			return err
		}
		b.Queue(q, r.ID, c.name, r.Text, meta, toFloat64(r.Embedding))
	}
	br := tx.SendBatch(ctx, b)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return wrapPgErr("insert chunk", err)
		}
	}
	if err := br.Close(); err != nil {
		return wrapPgErr("insert chunks", err)
	}
	return tx.Commit(ctx)
}

func (c *pgCollection) Query(ctx context.Context, embedding []float32, n int) ([]adapter.ScoredRecord, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, text, metadata, embedding FROM rag_chunks WHERE collection=$1 ORDER BY created_at, id;`, c.name)
	if err != nil {
		return nil, wrapPgErr("query chunks", err)
	}
	defer rows.Close()

	var recs []adapter.VectorRecord
	for rows.Next() {
		var (
			r    adapter.VectorRecord
			meta []byte
			emb  []float64
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &emb); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
			}
		}
		r.Embedding = toFloat32(emb)
		if len(r.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: query dim %d, collection %s uses %d", domain.ErrInvalidArgument, len(embedding), c.name, len(r.Embedding))
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.TopN(recs, embedding, n), nil
}

// wrapPgErr maps the Postgres error codes callers can act on.
func wrapPgErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: duplicate id", op, domain.ErrInvalidArgument)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: %w: rag_chunks table missing", op, domain.ErrConfiguration)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

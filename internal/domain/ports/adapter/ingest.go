package adapter

import (
	"context"
	"io"

	"rag-pipeline/internal/domain/model"
)

// DocumentSplitter turns raw file bytes into ordered chunks.
type DocumentSplitter interface {
	Split(ctx context.Context, filename string, data []byte) ([]model.Chunk, error)
}

// BlobStore keeps the raw uploaded files.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (location string, err error)
}

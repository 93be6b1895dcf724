package blob

import (
	"context"
	"fmt"
	"path/filepath"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/domain/ports/adapter"
)

// FromConfig builds the configured upload store. The local backend keeps
// files under <uploadDir>/files.
func FromConfig(ctx context.Context, cfg config.BlobConfig, uploadDir string) (adapter.BlobStore, error) {
	switch cfg.Backend {
	case "minio":
		m := cfg.MinIO
		s, err := NewMinIOStore(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.Secure)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return s, nil
	case "", "local":
		return NewLocalStore(filepath.Join(uploadDir, "files")), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

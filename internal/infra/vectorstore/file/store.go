// Package file persists vector collections as one JSON document per
// collection under a directory. Several processes may share the directory:
// writers serialise on a lock file next to each collection and readers pick
// up changes by re-reading the document when it changes on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/vectorstore"
)

var (
	_ adapter.VectorIndex      = (*Index)(nil)
	_ adapter.VectorCollection = (*collection)(nil)
)

const (
	ext       = ".json"
	lockExt   = ".lock"
	lockRetry = 20 * time.Millisecond
	dirPerm   = 0o755
)

type Index struct {
	dir string
}

// NewIndex does no I/O. An empty dir is accepted; every Open then fails
// with domain.ErrConfiguration.
func NewIndex(dir string) *Index {
	return &Index{dir: dir}
}

type diskFormat struct {
	Name    string       `json:"name"`
	Dim     int          `json:"dim"`
	Records []diskRecord `json:"records"`
}

type diskRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
}

// Open returns a handle backed by the collection file. The file is not
// created until the first Add.
func (i *Index) Open(ctx context.Context, name string) (adapter.VectorCollection, error) {
	if strings.TrimSpace(i.dir) == "" {
		return nil, fmt.Errorf("%w: vector store persist dir is not set", domain.ErrConfiguration)
	}
	if !model.ValidCollectionName(name) {
		return nil, fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidArgument, name)
	}
	if err := os.MkdirAll(i.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: persist dir %s: %v", domain.ErrConfiguration, i.dir, err)
	}
	c := &collection{name: name, path: filepath.Join(i.dir, name+ext)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

func (i *Index) Collections(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(i.dir) == "" {
		return nil, fmt.Errorf("%w: vector store persist dir is not set", domain.ErrConfiguration)
	}
	entries, err := os.ReadDir(i.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ext) {
			continue
		}
		if name := strings.TrimSuffix(n, ext); model.ValidCollectionName(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// stamp identifies the on-disk version last loaded into memory.
type stamp struct {
	size    int64
	modTime time.Time
}

type collection struct {
	name string
	path string

	mu      sync.Mutex
	loaded  stamp
	dim     int
	records []adapter.VectorRecord
}

// refresh reloads the document when it differs from the loaded stamp.
// Callers hold c.mu.
func (c *collection) refresh() error {
	fi, err := os.Stat(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.loaded, c.dim, c.records = stamp{}, 0, nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat collection %s: %w", c.name, err)
	}
	st := stamp{size: fi.Size(), modTime: fi.ModTime()}
	if st == c.loaded {
		return nil
	}
	if err := c.load(); err != nil {
		return err
	}
	c.loaded = st
	return nil
}

func (c *collection) load() error {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.dim, c.records = 0, nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read collection %s: %w", c.name, err)
	}
	var df diskFormat
	if err := json.Unmarshal(b, &df); err != nil {
		return fmt.Errorf("decode collection %s: %w", c.name, err)
	}
	c.dim = df.Dim
	c.records = make([]adapter.VectorRecord, 0, len(df.Records))
	for _, r := range df.Records {
		c.records = append(c.records, adapter.VectorRecord(r))
	}
	return nil
}

// snapshot returns the current records and dimension after a refresh.
func (c *collection) snapshot() (int, []adapter.VectorRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refresh(); err != nil {
		return 0, nil, err
	}
	return c.dim, c.records, nil
}

func (c *collection) Name() string { return c.name }

func (c *collection) Count(ctx context.Context) (int, error) {
	_, recs, err := c.snapshot()
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Add appends under the collection's lock file. The document is re-read
// inside the lock so records written by other handles or processes since
// this handle last looked are kept.
func (c *collection) Add(ctx context.Context, records []adapter.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("%w: record %s has no embedding", domain.ErrInvalidArgument, r.ID)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fl := flock.New(c.path + lockExt)
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock collection %s: %w", c.name, err)
	}
	if !ok {
		return fmt.Errorf("lock collection %s: not acquired", c.name)
	}
	defer fl.Unlock()

	if err := c.load(); err != nil {
		return err
	}
	dim := c.dim
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: embedding dim %d, collection %s uses %d", domain.ErrInvalidArgument, len(r.Embedding), c.name, dim)
		}
	}

	next := make([]adapter.VectorRecord, 0, len(c.records)+len(records))
	next = append(next, c.records...)
	next = append(next, records...)
	if err := c.persist(dim, next); err != nil {
		return err
	}
	c.dim = dim
	c.records = next
	if fi, err := os.Stat(c.path); err == nil {
		c.loaded = stamp{size: fi.Size(), modTime: fi.ModTime()}
	}
	return nil
}

// persist writes to a temp file and renames it over the old one so a crash
// never leaves a half-written collection.
func (c *collection) persist(dim int, records []adapter.VectorRecord) error {
	df := diskFormat{Name: c.name, Dim: dim, Records: make([]diskRecord, len(records))}
	for i, r := range records {
		df.Records[i] = diskRecord(r)
	}
	b, err := json.Marshal(df)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), c.name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("persist collection %s: %w", c.name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("persist collection %s: %w", c.name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist collection %s: %w", c.name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist collection %s: %w", c.name, err)
	}
	return os.Rename(tmp.Name(), c.path)
}

func (c *collection) Query(ctx context.Context, embedding []float32, n int) ([]adapter.ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dim, recs, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if dim != 0 && len(embedding) != dim {
		return nil, fmt.Errorf("%w: query dim %d, collection %s uses %d", domain.ErrInvalidArgument, len(embedding), c.name, dim)
	}
	return vectorstore.TopN(recs, embedding, n), nil
}

// File: internal/usecase/retrieval.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
	"rag-pipeline/internal/infra/logging"
	"rag-pipeline/internal/infra/metrics"
	"rag-pipeline/internal/infra/vectorstore"
)

// Compile-time check
var _ RetrievalGateway = (*retrievalGateway)(nil)

type SearchStrategy string

const (
	SearchMMR        SearchStrategy = "mmr"
	SearchSimilarity SearchStrategy = "similarity"
)

// RetrievalOptions tune one Retrieve call. Zero values take the gateway's
// configured defaults.
type RetrievalOptions struct {
	K        int
	FetchK   int
	Lambda   *float32
	Strategy SearchStrategy
}

// handleCacheSize bounds the non-default handles kept by a gateway. The
// default collection's handle is held outside the cache and never evicted.
const handleCacheSize = 64

// RetrievalGateway keeps one opened handle per collection. Every call names
// its collection explicitly; an empty name means the default collection.
type RetrievalGateway interface {
	Load(ctx context.Context, collection string) error
	Retrieve(ctx context.Context, collection, query string, opts RetrievalOptions) ([]model.Passage, error)
	Collections(ctx context.Context) ([]string, error)
	// Invalidate drops the cached handle so the next Load reopens it.
	Invalidate(collection string)
}

type retrievalGateway struct {
	index    adapter.VectorIndex
	embedder adapter.Embedder
	defaults RetrievalOptions
	defName  string
	log      *zerolog.Logger

	mu      sync.RWMutex
	def     adapter.VectorCollection
	handles *lru.Cache[string, adapter.VectorCollection]
}

func NewRetrievalGateway(index adapter.VectorIndex, embedder adapter.Embedder, defaultCollection string, defaults RetrievalOptions, logger *zerolog.Logger) *retrievalGateway {
	if defaultCollection == "" {
		defaultCollection = model.DefaultCollection
	}
	if defaults.K <= 0 {
		defaults.K = 5
	}
	if defaults.FetchK < defaults.K {
		defaults.FetchK = max(20, defaults.K)
	}
	if defaults.Lambda == nil {
		l := float32(0.5)
		defaults.Lambda = &l
	}
	if defaults.Strategy == "" {
		defaults.Strategy = SearchMMR
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	// New only fails for a non-positive size.
	handles, _ := lru.New[string, adapter.VectorCollection](handleCacheSize)
	return &retrievalGateway{
		index:    index,
		embedder: embedder,
		defaults: defaults,
		defName:  defaultCollection,
		log:      logger,
		handles:  handles,
	}
}

func (g *retrievalGateway) name(collection string) string {
	if c := strings.TrimSpace(collection); c != "" {
		return c
	}
	return g.defName
}

func (g *retrievalGateway) Load(ctx context.Context, collection string) error {
	if g.index == nil {
		return fmt.Errorf("%w: no vector index configured", domain.ErrConfiguration)
	}
	name := g.name(collection)

	if _, ok := g.handle(name); ok {
		metrics.IncCollectionCache(true)
		return nil
	}
	metrics.IncCollectionCache(false)

	h, err := g.index.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("load collection %q: %w", name, err)
	}
	n, err := h.Count(ctx)
	if err != nil {
		return fmt.Errorf("load collection %q: %w", name, err)
	}
	g.store(name, h)
	logging.With(ctx, g.log).Debug().Str("collection", name).Int("records", n).Msg("collection loaded")
	return nil
}

func (g *retrievalGateway) Invalidate(collection string) {
	name := g.name(collection)
	if name == g.defName {
		g.mu.Lock()
		g.def = nil
		g.mu.Unlock()
		return
	}
	g.handles.Remove(name)
}

func (g *retrievalGateway) handle(name string) (adapter.VectorCollection, bool) {
	if name == g.defName {
		g.mu.RLock()
		defer g.mu.RUnlock()
		return g.def, g.def != nil
	}
	return g.handles.Get(name)
}

// store keeps the first handle opened for a name.
func (g *retrievalGateway) store(name string, h adapter.VectorCollection) {
	if name == g.defName {
		g.mu.Lock()
		if g.def == nil {
			g.def = h
		}
		g.mu.Unlock()
		return
	}
	if _, evicted := g.handles.ContainsOrAdd(name, h); evicted {
		g.log.Debug().Str("collection", name).Msg("collection handle cache full, evicted least recently used")
	}
}

func (g *retrievalGateway) Retrieve(ctx context.Context, collection, query string, opts RetrievalOptions) ([]model.Passage, error) {
	if g.index == nil {
		return nil, fmt.Errorf("%w: no vector index configured", domain.ErrConfiguration)
	}
	name := g.name(collection)
	h, ok := g.handle(name)
	if !ok {
		return nil, fmt.Errorf("%w: collection %q is not loaded", domain.ErrState, name)
	}
	opts = g.withDefaults(opts)
	if opts.Strategy != SearchMMR && opts.Strategy != SearchSimilarity {
		return nil, fmt.Errorf("%w: unknown search strategy %q", domain.ErrInvalidArgument, opts.Strategy)
	}

	vecs, err := g.embedder.Embed(ctx, []string{query}, adapter.EmbedQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	qv := vecs[0]

	fetch := opts.K
	if opts.Strategy == SearchMMR {
		fetch = opts.FetchK
	}
	scored, err := h.Query(ctx, qv, fetch)
	if err != nil {
		return nil, fmt.Errorf("query collection %q: %w", name, err)
	}

	if opts.Strategy == SearchMMR && len(scored) > opts.K {
		cands := make([][]float32, len(scored))
		for i, s := range scored {
			cands[i] = s.Embedding
		}
		picked := vectorstore.MMR(qv, cands, opts.K, *opts.Lambda)
		sel := make([]adapter.ScoredRecord, 0, len(picked))
		for _, i := range picked {
			sel = append(sel, scored[i])
		}
		scored = sel
	} else if len(scored) > opts.K {
		scored = scored[:opts.K]
	}

	out := make([]model.Passage, 0, len(scored))
	for _, s := range scored {
		out = append(out, model.Passage{ID: s.ID, Text: s.Text, Metadata: s.Metadata, Score: s.Score})
	}
	return out, nil
}

func (g *retrievalGateway) withDefaults(o RetrievalOptions) RetrievalOptions {
	if o.K <= 0 {
		o.K = g.defaults.K
	}
	if o.FetchK <= 0 {
		o.FetchK = g.defaults.FetchK
	}
	if o.FetchK < o.K {
		o.FetchK = o.K
	}
	if o.Lambda == nil {
		o.Lambda = g.defaults.Lambda
	}
	if o.Strategy == "" {
		o.Strategy = g.defaults.Strategy
	}
	return o
}

func (g *retrievalGateway) Collections(ctx context.Context) ([]string, error) {
	if g.index == nil {
		return nil, fmt.Errorf("%w: no vector index configured", domain.ErrConfiguration)
	}
	return g.index.Collections(ctx)
}

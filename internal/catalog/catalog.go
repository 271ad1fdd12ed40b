package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrNotLoaded = errors.New("category store not loaded")
	ErrLoad      = errors.New("category load failed")
)

// Generation is one immutable load of the category set together with the
// embeddings computed for it. Readers holding a Generation never observe a
// later load.
type Generation struct {
	seq        uint64
	loadedAt   time.Time
	model      string
	dim        int
	categories []domain.Category
	vectors    [][]float32
	norms      []float64
	byID       map[int]int
}

func (g *Generation) Seq() uint64         { return g.seq }
func (g *Generation) LoadedAt() time.Time { return g.loadedAt }
func (g *Generation) Dimension() int      { return g.dim }
func (g *Generation) Model() string       { return g.model }
func (g *Generation) Len() int            { return len(g.categories) }

// At returns the i-th category in load order. The returned value shares
// slices with the generation and must not be modified.
func (g *Generation) At(i int) *domain.Category {
	return &g.categories[i]
}

func (g *Generation) Vector(i int) []float32 { return g.vectors[i] }
func (g *Generation) Norm(i int) float64     { return g.norms[i] }

func (g *Generation) Lookup(id int) (*domain.Category, bool) {
	i, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return &g.categories[i], true
}

type Stats struct {
	Loaded     bool                        `json:"loaded"`
	Generation uint64                      `json:"generation"`
	Count      int                         `json:"count"`
	ByType     map[domain.CategoryType]int `json:"by_type"`
	Dimension  int                         `json:"dimension"`
	Model      string                      `json:"model,omitempty"`
	LoadedAt   *time.Time                  `json:"loaded_at,omitempty"`
}

// Store holds the live category generation. Loads build a complete new
// generation off to the side and swap it in with a single pointer store.
type Store struct {
	embedder domain.Embedder
	logger   *zap.Logger
	metrics  *metrics.Metrics

	current atomic.Pointer[Generation]
	loadMu  sync.Mutex
	seq     uint64
}

func New(embedder domain.Embedder, logger *zap.Logger, m *metrics.Metrics) *Store {
	return &Store{
		embedder: embedder,
		logger:   logger,
		metrics:  m,
	}
}

// Load encodes categories and installs them as the live generation. On any
// failure the previous generation stays in place and the returned error wraps
// ErrLoad. An empty list installs an empty generation without calling the
// embedder. Inactive categories are skipped.
func (s *Store) Load(ctx context.Context, categories []domain.Category) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	gen, err := s.build(ctx, categories)
	if err != nil {
		s.metrics.ObserveCatalogLoadError()
		s.logger.Error("category load failed, keeping previous generation",
			zap.Int("categories", len(categories)),
			zap.Error(err))
		return err
	}

	s.seq++
	gen.seq = s.seq
	gen.loadedAt = time.Now()
	s.current.Store(gen)

	s.metrics.SetCatalog(gen.Len(), gen.seq)
	s.logger.Info("category generation loaded",
		zap.Uint64("generation", gen.seq),
		zap.Int("categories", gen.Len()),
		zap.Int("dimension", gen.dim))
	return nil
}

func (s *Store) build(ctx context.Context, categories []domain.Category) (*Generation, error) {
	gen := &Generation{
		model:      s.embedder.Model(),
		categories: make([]domain.Category, 0, len(categories)),
		byID:       make(map[int]int, len(categories)),
	}

	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: category %d: %w", ErrLoad, c.ID, err)
		}
		if _, dup := gen.byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category id %d", ErrLoad, c.ID)
		}
		gen.byID[c.ID] = len(gen.categories)
		gen.categories = append(gen.categories, c.Clone())
	}

	if len(gen.categories) == 0 {
		return gen, nil
	}

	texts := make([]string, len(gen.categories))
	for i := range gen.categories {
		texts[i] = gen.categories[i].EmbeddingText()
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: encode categories: %w", ErrLoad, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrLoad, len(texts), len(vecs))
	}

	gen.dim = len(vecs[0])
	gen.vectors = vecs
	gen.norms = make([]float64, len(vecs))
	for i, v := range vecs {
		if len(v) == 0 || len(v) != gen.dim {
			return nil, fmt.Errorf("%w: category %d has embedding length %d, want %d",
				ErrLoad, gen.categories[i].ID, len(v), gen.dim)
		}
		n := vectorNorm(v)
		if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: category %d has a degenerate embedding", ErrLoad, gen.categories[i].ID)
		}
		gen.norms[i] = n
	}
	return gen, nil
}

// UpdateUsage installs a new generation in which the usage counters of the
// given categories are replaced. Vectors are shared with the previous
// generation, so nothing is re-encoded. Categories that are not live are
// ignored; it returns how many were updated.
func (s *Store) UpdateUsage(updates []domain.Category) int {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	prev := s.current.Load()
	if prev == nil {
		return 0
	}
	cats := make([]domain.Category, len(prev.categories))
	copy(cats, prev.categories)

	n := 0
	for _, u := range updates {
		i, ok := prev.byID[u.ID]
		if !ok {
			continue
		}
		cats[i].SuccessCount = u.SuccessCount
		cats[i].TotalUsageCount = u.TotalUsageCount
		n++
	}
	if n == 0 {
		return 0
	}

	gen := *prev
	gen.categories = cats
	s.seq++
	gen.seq = s.seq
	gen.loadedAt = time.Now()
	s.current.Store(&gen)

	s.metrics.SetCatalog(gen.Len(), gen.seq)
	s.logger.Debug("category usage refreshed",
		zap.Uint64("generation", gen.seq),
		zap.Int("categories", n))
	return n
}

// Snapshot returns the live generation, or ErrNotLoaded before the first
// successful load.
func (s *Store) Snapshot() (*Generation, error) {
	gen := s.current.Load()
	if gen == nil {
		return nil, ErrNotLoaded
	}
	return gen, nil
}

func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}

func (s *Store) GetByID(id int) (domain.Category, bool) {
	gen := s.current.Load()
	if gen == nil {
		return domain.Category{}, false
	}
	c, ok := gen.Lookup(id)
	if !ok {
		return domain.Category{}, false
	}
	return c.Clone(), true
}

// GetByType returns copies of the categories of type t in load order.
func (s *Store) GetByType(t domain.CategoryType) []domain.Category {
	out := []domain.Category{}
	gen := s.current.Load()
	if gen == nil {
		return out
	}
	for i := range gen.categories {
		if gen.categories[i].Type == t {
			out = append(out, gen.categories[i].Clone())
		}
	}
	return out
}

func (s *Store) All() []domain.Category {
	gen := s.current.Load()
	if gen == nil {
		return []domain.Category{}
	}
	out := make([]domain.Category, len(gen.categories))
	for i := range gen.categories {
		out[i] = gen.categories[i].Clone()
	}
	return out
}

func (s *Store) Stats() Stats {
	gen := s.current.Load()
	if gen == nil {
		return Stats{ByType: map[domain.CategoryType]int{}}
	}
	st := Stats{
		Loaded:     true,
		Generation: gen.seq,
		Count:      gen.Len(),
		ByType:     make(map[domain.CategoryType]int),
		Dimension:  gen.dim,
		Model:      gen.model,
	}
	loadedAt := gen.loadedAt
	st.LoadedAt = &loadedAt
	for i := range gen.categories {
		st.ByType[gen.categories[i].Type]++
	}
	return st
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/metrics"
	"go.uber.org/zap"
)

// refinementFanout is how many extra candidates refinement considers per
// requested result before exclusions and penalties.
const refinementFanout = 3

type MatchRequest struct {
	Input       string
	Types       []domain.CategoryType
	TopK        int
	RejectedIDs []int
}

type MatchResult struct {
	Type       domain.InteractionType
	Matches    []domain.CategoryMatch
	Embedding  []float32
	Generation uint64
	Elapsed    time.Duration
}

type MatcherService struct {
	catalog  *catalog.Store
	embedder domain.Embedder
	scorer   *MatchScorer
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewMatcherService(cat *catalog.Store, emb domain.Embedder, scorer *MatchScorer, logger *zap.Logger, m *metrics.Metrics) (*MatcherService, error) {
	if scorer == nil {
		scorer = NewMatchScorer()
	}
	if err := scorer.Validate(); err != nil {
		return nil, err
	}
	return &MatcherService{
		catalog:  cat,
		embedder: emb,
		scorer:   scorer,
		logger:   logger,
		metrics:  m,
	}, nil
}

// FindMatches returns up to topK categories ranked by confidence.
func (s *MatcherService) FindMatches(ctx context.Context, input string, types []domain.CategoryType, topK int) ([]domain.CategoryMatch, error) {
	res, err := s.Match(ctx, MatchRequest{Input: input, Types: types, TopK: topK})
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// RefineMatches re-ranks after the user rejected some categories. Rejected
// categories never appear in the result and similar categories are demoted.
func (s *MatcherService) RefineMatches(ctx context.Context, input string, rejected []int, types []domain.CategoryType, topK int) ([]domain.CategoryMatch, error) {
	res, err := s.Match(ctx, MatchRequest{Input: input, Types: types, TopK: topK, RejectedIDs: rejected})
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// Match runs a plain match, or a refinement when RejectedIDs is set. The
// whole request reads a single category generation.
func (s *MatcherService) Match(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	start := time.Now()
	res := &MatchResult{Type: domain.InteractionCategoryMatch, Matches: []domain.CategoryMatch{}}
	if len(req.RejectedIDs) > 0 {
		res.Type = domain.InteractionRefinement
	}

	gen, err := s.catalog.Snapshot()
	if err != nil {
		return nil, err
	}
	res.Generation = gen.Seq()

	if req.TopK <= 0 {
		return res, nil
	}

	vec, qnorm, err := s.encode(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	res.Embedding = vec

	if gen.Len() == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}
	if len(vec) != gen.Dimension() {
		return nil, fmt.Errorf("%w: query dimension %d does not match category dimension %d",
			domain.ErrEncoding, len(vec), gen.Dimension())
	}

	lowerInput := strings.ToLower(req.Input)
	if res.Type == domain.InteractionRefinement {
		res.Matches = s.refine(gen, vec, qnorm, lowerInput, req)
	} else {
		res.Matches = s.rank(gen, vec, qnorm, lowerInput, req.Types, req.TopK)
	}
	res.Elapsed = time.Since(start)

	confidences := make([]float64, len(res.Matches))
	for i, m := range res.Matches {
		confidences[i] = m.ConfidenceScore
	}
	s.metrics.ObserveMatch(string(res.Type), res.Elapsed, confidences)

	s.logger.Debug("matched input",
		zap.String("type", string(res.Type)),
		zap.Int("matches", len(res.Matches)),
		zap.Uint64("generation", res.Generation),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Similar returns every category whose raw similarity to text is at least
// minSimilarity, most similar first, ignoring confidence thresholds.
func (s *MatcherService) Similar(ctx context.Context, text string, minSimilarity float64) ([]domain.CategoryMatch, error) {
	gen, err := s.catalog.Snapshot()
	if err != nil {
		return nil, err
	}
	out := []domain.CategoryMatch{}
	if gen.Len() == 0 {
		return out, nil
	}

	vec, qnorm, err := s.encode(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != gen.Dimension() {
		return nil, fmt.Errorf("%w: dimension mismatch", domain.ErrEncoding)
	}

	for i := 0; i < gen.Len(); i++ {
		sim := cosine(vec, qnorm, gen.Vector(i), gen.Norm(i))
		if sim < minSimilarity {
			continue
		}
		m := toMatch(gen.At(i), sim, sim, nil)
		out = append(out, m)
	}
	rankMatches(out)
	return out, nil
}

func (s *MatcherService) encode(ctx context.Context, text string) ([]float32, float64, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEncoding) {
			err = fmt.Errorf("%w: %w", domain.ErrEncoding, err)
		}
		return nil, 0, err
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	qnorm := math.Sqrt(sum)
	if len(vec) == 0 || qnorm == 0 || math.IsNaN(qnorm) {
		return nil, 0, fmt.Errorf("%w: degenerate query embedding", domain.ErrEncoding)
	}
	return vec, qnorm, nil
}

func (s *MatcherService) rank(gen *catalog.Generation, vec []float32, qnorm float64, lowerInput string, types []domain.CategoryType, limit int) []domain.CategoryMatch {
	var allowed map[domain.CategoryType]bool
	if len(types) > 0 {
		allowed = make(map[domain.CategoryType]bool, len(types))
		for _, t := range types {
			allowed[t] = true
		}
	}

	matches := []domain.CategoryMatch{}
	for i := 0; i < gen.Len(); i++ {
		c := gen.At(i)
		if allowed != nil && !allowed[c.Type] {
			continue
		}

		sim := cosine(vec, qnorm, gen.Vector(i), gen.Norm(i))
		if sim < s.scorer.MinSimilarity {
			continue
		}

		conf, breakdown := s.scorer.Score(c, sim, lowerInput)
		if conf < s.scorer.MinConfidence {
			continue
		}
		matches = append(matches, toMatch(c, sim, conf, &breakdown))
	}

	rankMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (s *MatcherService) refine(gen *catalog.Generation, vec []float32, qnorm float64, lowerInput string, req MatchRequest) []domain.CategoryMatch {
	candidates := s.rank(gen, vec, qnorm, lowerInput, req.Types, req.TopK*refinementFanout)

	excluded := make(map[int]bool, len(req.RejectedIDs))
	var rejected []*domain.Category
	for _, id := range req.RejectedIDs {
		if excluded[id] {
			continue
		}
		excluded[id] = true
		if c, ok := gen.Lookup(id); ok {
			rejected = append(rejected, c)
		}
	}

	out := make([]domain.CategoryMatch, 0, len(candidates))
	for _, m := range candidates {
		if excluded[m.CategoryID] {
			continue
		}
		c, _ := gen.Lookup(m.CategoryID)
		if penalty := RefinementPenalty(c, rejected); penalty > 0 {
			m.ConfidenceScore = clamp01(m.ConfidenceScore * (1 - penalty))
			if m.Breakdown != nil {
				m.Breakdown.Penalty = penalty
			}
		}
		out = append(out, m)
	}

	rankMatches(out)
	if len(out) > req.TopK {
		out = out[:req.TopK]
	}
	return out
}

func toMatch(c *domain.Category, sim, conf float64, breakdown *domain.MatchBreakdown) domain.CategoryMatch {
	cp := c.Clone()
	return domain.CategoryMatch{
		CategoryID:      c.ID,
		CategoryName:    c.Name,
		CategoryType:    c.Type,
		SimilarityScore: sim,
		ConfidenceScore: conf,
		Keywords:        cp.Keywords,
		Metadata:        cp.Metadata,
		Breakdown:       breakdown,
	}
}

// cosine returns the similarity of a and b clamped to [0,1].
func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return clamp01(dot / (normA * normB))
}

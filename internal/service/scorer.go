package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/voterprime/catmatch/internal/domain"
)

const (
	DefaultSimilarityWeight = 0.6
	DefaultKeywordWeight    = 0.2
	DefaultHistoryWeight    = 0.2
	DefaultMinSimilarity    = 0.15
	DefaultMinConfidence    = 0.25

	// Refinement penalty terms, per rejected category.
	sameTypePenalty       = 0.1
	keywordOverlapPenalty = 0.2
	maxRefinementPenalty  = 0.5

	weightTolerance = 1e-6
)

var ErrInvalidScorer = errors.New("invalid matcher configuration")

// MatchScorer blends semantic similarity, keyword hits and historical
// success into a single confidence score.
type MatchScorer struct {
	SimilarityWeight float64
	KeywordWeight    float64
	HistoryWeight    float64
	MinSimilarity    float64
	MinConfidence    float64
}

func NewMatchScorer() *MatchScorer {
	return &MatchScorer{
		SimilarityWeight: DefaultSimilarityWeight,
		KeywordWeight:    DefaultKeywordWeight,
		HistoryWeight:    DefaultHistoryWeight,
		MinSimilarity:    DefaultMinSimilarity,
		MinConfidence:    DefaultMinConfidence,
	}
}

// Validate rejects negative weights, weights that do not sum to 1, and
// thresholds outside [0,1].
func (s *MatchScorer) Validate() error {
	for name, w := range map[string]float64{
		"similarity weight": s.SimilarityWeight,
		"keyword weight":    s.KeywordWeight,
		"history weight":    s.HistoryWeight,
		"min similarity":    s.MinSimilarity,
		"min confidence":    s.MinConfidence,
	} {
		if w < 0 || w > 1 || math.IsNaN(w) {
			return fmt.Errorf("%w: %s %v out of range", ErrInvalidScorer, name, w)
		}
	}
	sum := s.SimilarityWeight + s.KeywordWeight + s.HistoryWeight
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidScorer, sum)
	}
	return nil
}

// Score returns the confidence for a category given its similarity to the
// input. lowerInput must already be lowercased.
func (s *MatchScorer) Score(c *domain.Category, similarity float64, lowerInput string) (float64, domain.MatchBreakdown) {
	kw := KeywordBonus(lowerInput, c.Keywords)
	hist := c.SuccessRate()
	conf := s.SimilarityWeight*similarity + s.KeywordWeight*kw + s.HistoryWeight*hist

	return clamp01(conf), domain.MatchBreakdown{
		Similarity:   similarity,
		KeywordBonus: kw,
		SuccessRate:  hist,
	}
}

// KeywordBonus is the share of a category's keywords that occur in the input
// as case-insensitive substrings, over the raw keyword list. A category with
// no keywords gets 0.
func KeywordBonus(lowerInput string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lowerInput, strings.ToLower(kw)) {
			found++
		}
	}
	return math.Min(1, float64(found)/float64(len(keywords)))
}

// RefinementPenalty sums, over every rejected category, 0.1 for sharing c's
// type plus 0.2 times the Jaccard overlap of the keyword sets. The total is
// capped at 0.5.
func RefinementPenalty(c *domain.Category, rejected []*domain.Category) float64 {
	var penalty float64
	for _, r := range rejected {
		if r.Type == c.Type {
			penalty += sameTypePenalty
		}
		penalty += keywordOverlapPenalty * keywordJaccard(c.Keywords, r.Keywords)
	}
	return math.Min(penalty, maxRefinementPenalty)
}

func keywordJaccard(a, b []string) float64 {
	setA := keywordSet(a)
	setB := keywordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var inter int
	for k := range setA {
		if setB[k] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func keywordSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			set[kw] = true
		}
	}
	return set
}

// rankMatches sorts by confidence, highest first. The sort is stable so
// equal confidences keep the category load order.
func rankMatches(matches []domain.CategoryMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ConfidenceScore > matches[j].ConfidenceScore
	})
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type InteractionType string

const (
	InteractionCategoryMatch InteractionType = "category_match"
	InteractionRefinement    InteractionType = "refinement"
)

func ValidInteractionType(t string) bool {
	switch InteractionType(t) {
	case InteractionCategoryMatch, InteractionRefinement:
		return true
	}
	return false
}

// SnapshotSize is how many top matches an interaction keeps.
const SnapshotSize = 5

// MatchSnapshot is the score a category received when it was shown to the
// user. Feedback reuses these values instead of recomputing them.
type MatchSnapshot struct {
	CategoryID      int     `json:"category_id"`
	CategoryName    string  `json:"category_name"`
	ConfidenceScore float64 `json:"confidence_score"`
	SimilarityScore float64 `json:"similarity_score"`
	Rank            int     `json:"rank"`
}

type InteractionMetadata struct {
	TotalMatches        int             `json:"total_matches"`
	TopConfidence       float64         `json:"top_confidence"`
	Matches             []MatchSnapshot `json:"matches"`
	RejectedCategoryIDs []int           `json:"rejected_category_ids,omitempty"`
	CategoryTypes       []CategoryType  `json:"category_types,omitempty"`
	Generation          uint64          `json:"generation,omitempty"`
}

// Interaction is one matching request. It is immutable once stored.
type Interaction struct {
	ID               uuid.UUID           `json:"id"`
	SessionID        string              `json:"session_id"`
	Type             InteractionType     `json:"interaction_type"`
	UserInput        string              `json:"user_input"`
	Embedding        []float32           `json:"-"`
	ProcessingTimeMS int64               `json:"processing_time_ms"`
	Metadata         InteractionMetadata `json:"metadata"`
	CreatedAt        time.Time           `json:"created_at"`
}

// Snapshot returns the stored scores for a category shown in this
// interaction.
func (i *Interaction) Snapshot(categoryID int) (MatchSnapshot, bool) {
	for _, m := range i.Metadata.Matches {
		if m.CategoryID == categoryID {
			return m, true
		}
	}
	return MatchSnapshot{}, false
}

// SnapshotMatches builds the stored snapshot from a ranked match list.
func SnapshotMatches(matches []CategoryMatch) InteractionMetadata {
	meta := InteractionMetadata{TotalMatches: len(matches), Matches: []MatchSnapshot{}}
	if len(matches) > 0 {
		meta.TopConfidence = matches[0].ConfidenceScore
	}
	for i, m := range matches {
		if i >= SnapshotSize {
			break
		}
		meta.Matches = append(meta.Matches, MatchSnapshot{
			CategoryID:      m.CategoryID,
			CategoryName:    m.CategoryName,
			ConfidenceScore: m.ConfidenceScore,
			SimilarityScore: m.SimilarityScore,
			Rank:            i + 1,
		})
	}
	return meta
}

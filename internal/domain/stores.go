package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEncoding is returned when text cannot be turned into an embedding.
var ErrEncoding = errors.New("embedding encoding failed")

// Embedder turns text into fixed-length vectors. Every vector produced by one
// Embedder has the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// KeywordSuggester proposes category edits with an LLM.
type KeywordSuggester interface {
	SuggestKeywords(ctx context.Context, c Category, hint string) ([]string, error)
	DraftCategory(ctx context.Context, description string) (*CategoryDraft, error)
}

type CategoryRepository interface {
	// ListActive returns active categories ordered by id.
	ListActive(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int) (*Category, error)
	// Create assigns the next id (max over all rows + 1).
	Create(ctx context.Context, c *Category) error
	// Update writes the editable fields of c (name, description, keywords,
	// metadata) and stamps actor as the last editor.
	Update(ctx context.Context, c *Category, actor string) error
	UpdateKeywords(ctx context.Context, id int, keywords []string, actor string) error
	SetActive(ctx context.Context, id int, active bool, actor string) error
	IncrementUsage(ctx context.Context, id int, success bool) error
	// Transform deactivates sources and creates replacements in one transaction.
	Transform(ctx context.Context, deactivate []int, create []*Category, actor string) error
}

type InteractionStore interface {
	Create(ctx context.Context, i *Interaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Interaction, error)
}

type FeedbackStore interface {
	// CreateBatch writes every item or none. An item whose (interaction,
	// category) pair is already in the ledger is not written and keeps a nil
	// ID.
	CreateBatch(ctx context.Context, items []*FeedbackItem) error
	// JudgedCategories lists the categories that already have feedback for
	// the interaction.
	JudgedCategories(ctx context.Context, interactionID uuid.UUID) ([]int, error)
	ListSince(ctx context.Context, since time.Time, categoryID *int) ([]FeedbackItem, error)
	// LowConfidenceInputs returns inputs whose feedback confidence is below
	// threshold, newest first.
	LowConfidenceInputs(ctx context.Context, threshold float64, since time.Time, limit int) ([]LowConfidenceInput, error)
}

// ActivityStore reads session and interaction activity for analytics.
type ActivityStore interface {
	// SessionActivity lists sessions with interactions since the cutoff,
	// most recently seen first.
	SessionActivity(ctx context.Context, since time.Time, limit int) ([]SessionActivity, error)
	CountActivity(ctx context.Context, since time.Time) (ActivityCounts, error)
}

type LearningMetricStore interface {
	Upsert(ctx context.Context, m *LearningMetric) error
	ListByCategory(ctx context.Context, categoryID int, since time.Time) ([]LearningMetric, error)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/store"
	"go.uber.org/zap"
)

var (
	ErrCategoryNotFound     = errors.New("category not found")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrSuggesterUnavailable = errors.New("keyword suggester not configured")
)

// RedundancyThreshold is the similarity at which a proposed category is
// reported as overlapping an existing one.
const RedundancyThreshold = 0.85

const provenanceSourceAdmin = "admin"

type SimilarityWarning struct {
	CategoryID   int     `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Similarity   float64 `json:"similarity"`
}

type CategoryPreview struct {
	Draft    domain.CategoryDraft `json:"draft"`
	Warnings []SimilarityWarning  `json:"warnings"`
}

// CategoryService edits the stored category set and refreshes the live
// catalog after every change.
type CategoryService struct {
	repo      domain.CategoryRepository
	reloader  *Reloader
	matcher   *MatcherService
	suggester domain.KeywordSuggester
	logger    *zap.Logger
}

func NewCategoryService(repo domain.CategoryRepository, reloader *Reloader, matcher *MatcherService, logger *zap.Logger) *CategoryService {
	return &CategoryService{
		repo:     repo,
		reloader: reloader,
		matcher:  matcher,
		logger:   logger,
	}
}

// SetSuggester enables Enhance and Preview.
func (s *CategoryService) SetSuggester(sg domain.KeywordSuggester) {
	s.suggester = sg
}

func (s *CategoryService) Get(ctx context.Context, id int) (*domain.Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

func (s *CategoryService) Create(ctx context.Context, draft domain.CategoryDraft, actor string) (*domain.Category, error) {
	c := draft.ToCategory()
	c.Keywords = mergeKeywords(nil, c.Keywords)
	c.CreatedBy = actor
	c.UpdatedBy = actor
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}

	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("category created",
		zap.Int("category_id", c.ID),
		zap.String("name", c.Name),
		zap.String("actor", actor))
	s.reload(ctx)
	return &c, nil
}

// Update applies a partial edit to a category. Keywords, when given,
// replace the list; metadata keys are merged into the stored metadata.
func (s *CategoryService) Update(ctx context.Context, id int, patch domain.CategoryPatch, actor string) (*domain.Category, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidCategory)
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		c.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Keywords != nil {
		c.Keywords = mergeKeywords(nil, patch.Keywords)
	}
	if len(patch.Metadata) > 0 {
		meta, err := c.Metadata.WithPatch(patch.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
		}
		c.Metadata = meta
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}

	if err := s.repo.Update(ctx, c, actor); err != nil {
		return nil, mapNotFound(err)
	}
	s.logger.Info("category updated",
		zap.Int("category_id", id),
		zap.String("name", c.Name),
		zap.String("actor", actor))
	s.reload(ctx)
	return s.Get(ctx, id)
}

// UpdateKeywords replaces the keyword list of a category.
func (s *CategoryService) UpdateKeywords(ctx context.Context, id int, keywords []string, actor string) (*domain.Category, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.writeKeywords(ctx, id, mergeKeywords(nil, keywords), actor)
}

// AddKeywords merges keywords into the existing list, ignoring case
// duplicates and keeping the original order.
func (s *CategoryService) AddKeywords(ctx context.Context, id int, keywords []string, actor string) (*domain.Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.writeKeywords(ctx, id, mergeKeywords(c.Keywords, keywords), actor)
}

// Enhance asks the suggester for additional keywords and appends the ones
// the category does not have yet. It returns the updated category and the
// keywords that were added.
func (s *CategoryService) Enhance(ctx context.Context, id int, hint, actor string) (*domain.Category, []string, error) {
	if s.suggester == nil {
		return nil, nil, ErrSuggesterUnavailable
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	suggested, err := s.suggester.SuggestKeywords(ctx, *c, hint)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest keywords: %w", err)
	}

	base := mergeKeywords(nil, c.Keywords)
	merged := mergeKeywords(base, suggested)
	added := merged[len(base):]
	if len(added) == 0 {
		return c, []string{}, nil
	}

	updated, err := s.writeKeywords(ctx, id, merged, actor)
	if err != nil {
		return nil, nil, err
	}
	return updated, added, nil
}

// Preview drafts a category from a free-form description and reports
// existing categories that are already very similar to it.
func (s *CategoryService) Preview(ctx context.Context, description string) (*CategoryPreview, error) {
	if s.suggester == nil {
		return nil, ErrSuggesterUnavailable
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidCategory)
	}

	draft, err := s.suggester.DraftCategory(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("draft category: %w", err)
	}
	draft.Keywords = mergeKeywords(nil, draft.Keywords)

	preview := &CategoryPreview{Draft: *draft, Warnings: []SimilarityWarning{}}
	c := draft.ToCategory()
	similar, err := s.matcher.Similar(ctx, c.EmbeddingText(), RedundancyThreshold)
	if err != nil {
		if errors.Is(err, catalog.ErrNotLoaded) {
			return preview, nil
		}
		return nil, err
	}
	for _, m := range similar {
		preview.Warnings = append(preview.Warnings, SimilarityWarning{
			CategoryID:   m.CategoryID,
			CategoryName: m.CategoryName,
			Similarity:   m.SimilarityScore,
		})
	}
	return preview, nil
}

func (s *CategoryService) Deactivate(ctx context.Context, id int, actor string) error {
	return s.setActive(ctx, id, false, actor)
}

// Reactivate makes a deactivated category matchable again under its
// original id.
func (s *CategoryService) Reactivate(ctx context.Context, id int, actor string) error {
	return s.setActive(ctx, id, true, actor)
}

// Split replaces one category with several narrower ones.
func (s *CategoryService) Split(ctx context.Context, sourceID int, drafts []domain.CategoryDraft, actor string) ([]domain.Category, error) {
	if len(drafts) < 2 {
		return nil, fmt.Errorf("%w: split needs at least two categories", ErrInvalidCategory)
	}
	return s.transform(ctx, domain.TransformSplit, []int{sourceID}, drafts, actor)
}

// Merge replaces several categories with a single broader one.
func (s *CategoryService) Merge(ctx context.Context, sourceIDs []int, draft domain.CategoryDraft, actor string) (*domain.Category, error) {
	ids := dedupeIDs(sourceIDs)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two distinct categories", ErrInvalidCategory)
	}
	created, err := s.transform(ctx, domain.TransformMerge, ids, []domain.CategoryDraft{draft}, actor)
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

func (s *CategoryService) transform(ctx context.Context, kind domain.TransformType, sourceIDs []int, drafts []domain.CategoryDraft, actor string) ([]domain.Category, error) {
	for _, id := range sourceIDs {
		c, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !c.IsActive {
			return nil, fmt.Errorf("%w: category %d is inactive", ErrInvalidCategory, id)
		}
	}

	created := make([]*domain.Category, len(drafts))
	for i, d := range drafts {
		c := d.ToCategory()
		c.Keywords = mergeKeywords(nil, c.Keywords)
		c.CreatedBy = actor
		c.UpdatedBy = actor
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: draft %d: %v", ErrInvalidCategory, i, err)
		}
		c.Metadata.Provenance = &domain.Provenance{
			Source:    provenanceSourceAdmin,
			Transform: kind,
			SourceIDs: append([]int(nil), sourceIDs...),
		}
		created[i] = &c
	}

	if err := s.repo.Transform(ctx, sourceIDs, created, actor); err != nil {
		return nil, mapNotFound(err)
	}

	out := make([]domain.Category, len(created))
	for i, c := range created {
		out[i] = *c
	}
	s.logger.Info("categories transformed",
		zap.String("transform", string(kind)),
		zap.Ints("source_ids", sourceIDs),
		zap.Int("created", len(out)),
		zap.String("actor", actor))
	s.reload(ctx)
	return out, nil
}

func (s *CategoryService) writeKeywords(ctx context.Context, id int, keywords []string, actor string) (*domain.Category, error) {
	if err := s.repo.UpdateKeywords(ctx, id, keywords, actor); err != nil {
		return nil, mapNotFound(err)
	}
	s.reload(ctx)
	return s.Get(ctx, id)
}

func (s *CategoryService) setActive(ctx context.Context, id int, active bool, actor string) error {
	if err := s.repo.SetActive(ctx, id, active, actor); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("category activation changed",
		zap.Int("category_id", id),
		zap.Bool("active", active),
		zap.String("actor", actor))
	s.reload(ctx)
	return nil
}

// reload refreshes the catalog after an edit. The edit itself is already
// committed, so a failure only delays visibility until the next reload.
func (s *CategoryService) reload(ctx context.Context) {
	if s.reloader == nil {
		return
	}
	if err := s.reloader.Reload(ctx); err != nil {
		s.logger.Warn("catalog reload after edit failed", zap.Error(err))
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrCategoryNotFound
	}
	return err
}

// mergeKeywords appends add to existing, trimming blanks and skipping
// entries already present ignoring case.
func mergeKeywords(existing, add []string) []string {
	out := make([]string, 0, len(existing)+len(add))
	seen := make(map[string]bool, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, kw := range list {
			kw = strings.TrimSpace(kw)
			key := strings.ToLower(kw)
			if kw == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, kw)
		}
	}
	return out
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

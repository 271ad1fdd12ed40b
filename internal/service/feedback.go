package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/metrics"
	"github.com/voterprime/catmatch/internal/store"
	"go.uber.org/zap"
)

var (
	ErrInteractionIDMissing = errors.New("interaction_id is required")
	ErrEmptyFeedback        = errors.New("at least one category feedback is required")
	ErrInvalidFeedbackType  = errors.New("invalid feedback_type")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrInteractionNotFound  = errors.New("interaction not found")
	ErrInvalidInteraction   = errors.New("invalid interaction")
)

const (
	minRating = 1
	maxRating = 5

	// metricsWindowDays is the window recomputed after each submission.
	metricsWindowDays = 30

	reasonNotInInteraction = "category not in interaction"
	reasonDuplicateItem    = "duplicate category in submission"
	reasonAlreadyJudged    = "feedback already recorded for category"
)

type RecordInteractionParams struct {
	SessionID   string
	Result      *MatchResult
	UserInput   string
	RejectedIDs []int
	Types       []domain.CategoryType
}

type FeedbackService struct {
	feedbackStore    domain.FeedbackStore
	interactionStore domain.InteractionStore
	categoryRepo     domain.CategoryRepository
	learning         *LearningService
	reloader         *Reloader
	logger           *zap.Logger
	metrics          *metrics.Metrics
}

func NewFeedbackService(fs domain.FeedbackStore, is domain.InteractionStore, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		feedbackStore:    fs,
		interactionStore: is,
		logger:           logger,
	}
}

// SetCategoryRepository enables usage counter updates after feedback.
func (s *FeedbackService) SetCategoryRepository(r domain.CategoryRepository) {
	s.categoryRepo = r
}

// SetLearningService enables metric recomputation after feedback.
func (s *FeedbackService) SetLearningService(l *LearningService) {
	s.learning = l
}

// SetReloader makes new usage counters visible to matching right after
// feedback is stored.
func (s *FeedbackService) SetReloader(r *Reloader) {
	s.reloader = r
}

func (s *FeedbackService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// RecordInteraction stores a match or refinement together with a snapshot of
// the top matches, so later feedback can reuse the scores that were shown.
func (s *FeedbackService) RecordInteraction(ctx context.Context, p RecordInteractionParams) (*domain.Interaction, error) {
	if p.Result == nil {
		return nil, fmt.Errorf("%w: missing match result", ErrInvalidInteraction)
	}
	if strings.TrimSpace(p.UserInput) == "" {
		return nil, fmt.Errorf("%w: empty user input", ErrInvalidInteraction)
	}

	meta := domain.SnapshotMatches(p.Result.Matches)
	meta.RejectedCategoryIDs = p.RejectedIDs
	meta.CategoryTypes = p.Types
	meta.Generation = p.Result.Generation

	i := &domain.Interaction{
		SessionID:        p.SessionID,
		Type:             p.Result.Type,
		UserInput:        p.UserInput,
		Embedding:        p.Result.Embedding,
		ProcessingTimeMS: p.Result.Elapsed.Milliseconds(),
		Metadata:         meta,
	}
	if err := s.interactionStore.Create(ctx, i); err != nil {
		return nil, fmt.Errorf("record interaction: %w", err)
	}
	return i, nil
}

// Submit validates every item before anything is read or written, then
// stores the items whose category was shown in the interaction in a single
// batch. The ledger keeps one judgment per (interaction, category): repeated
// categories in a submission and categories judged earlier are skipped per
// item. Counter and metric updates run afterwards and only produce warnings.
func (s *FeedbackService) Submit(ctx context.Context, sub domain.FeedbackSubmission) (*domain.FeedbackResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	interaction, err := s.interactionStore.GetByID(ctx, sub.InteractionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInteractionNotFound
		}
		return nil, err
	}

	judged, err := s.feedbackStore.JudgedCategories(ctx, sub.InteractionID)
	if err != nil {
		return nil, fmt.Errorf("list judged categories: %w", err)
	}
	done := make(map[int]bool, len(judged)+len(sub.Items))
	for _, id := range judged {
		done[id] = true
	}

	result := &domain.FeedbackResult{
		InteractionID: sub.InteractionID,
		Items:         make([]domain.FeedbackItemResult, 0, len(sub.Items)),
	}
	skip := func(categoryID int, reason string) {
		result.Items = append(result.Items, domain.FeedbackItemResult{
			CategoryID: categoryID,
			Status:     domain.ItemSkipped,
			Reason:     reason,
		})
	}

	var items []*domain.FeedbackItem
	var slots []int
	seen := make(map[int]bool, len(sub.Items))
	for _, in := range sub.Items {
		snap, ok := interaction.Snapshot(in.CategoryID)
		switch {
		case !ok:
			skip(in.CategoryID, reasonNotInInteraction)
			continue
		case seen[in.CategoryID]:
			skip(in.CategoryID, reasonDuplicateItem)
			continue
		case done[in.CategoryID]:
			seen[in.CategoryID] = true
			skip(in.CategoryID, reasonAlreadyJudged)
			continue
		}
		seen[in.CategoryID] = true

		items = append(items, &domain.FeedbackItem{
			InteractionID:       sub.InteractionID,
			CategoryID:          in.CategoryID,
			CategoryName:        snap.CategoryName,
			FeedbackType:        in.FeedbackType,
			ConfidenceScore:     snap.ConfidenceScore,
			SimilarityScore:     snap.SimilarityScore,
			MatchRank:           snap.Rank,
			UserRating:          in.UserRating,
			FeedbackReason:      trimmedOrNil(in.FeedbackReason),
			OverallSatisfaction: sub.OverallSatisfaction,
			AdditionalComments:  trimmedOrNil(sub.AdditionalComments),
		})
		slots = append(slots, len(result.Items))
		result.Items = append(result.Items, domain.FeedbackItemResult{
			CategoryID: in.CategoryID,
			Status:     domain.ItemStored,
		})
	}

	if len(items) > 0 {
		if err := s.feedbackStore.CreateBatch(ctx, items); err != nil {
			return nil, fmt.Errorf("store feedback: %w", err)
		}
	}

	// A concurrent submission may have judged a pair after the check above;
	// the store leaves those items unwritten.
	written := items[:0:0]
	for i, it := range items {
		slot := &result.Items[slots[i]]
		if it.ID == uuid.Nil {
			slot.Status = domain.ItemSkipped
			slot.Reason = reasonAlreadyJudged
			continue
		}
		id := it.ID
		slot.FeedbackID = &id
		written = append(written, it)
	}

	result.Stored = len(written)
	switch {
	case result.Stored == 0:
		result.Status = domain.SubmissionRejected
		return result, nil
	case result.Stored < len(sub.Items):
		result.Status = domain.SubmissionPartial
	default:
		result.Status = domain.SubmissionSuccess
	}

	for _, it := range written {
		s.metrics.ObserveFeedback(string(it.FeedbackType))
	}
	result.Warnings = s.afterStore(ctx, written)

	s.logger.Info("feedback stored",
		zap.String("interaction_id", sub.InteractionID.String()),
		zap.Int("stored", result.Stored),
		zap.Int("skipped", len(sub.Items)-result.Stored))
	return result, nil
}

func (s *FeedbackService) afterStore(ctx context.Context, items []*domain.FeedbackItem) []string {
	var warnings []string
	var touched []int
	seen := make(map[int]bool)

	for _, it := range items {
		if !seen[it.CategoryID] {
			seen[it.CategoryID] = true
			touched = append(touched, it.CategoryID)
		}
		if s.categoryRepo == nil {
			continue
		}
		if err := s.categoryRepo.IncrementUsage(ctx, it.CategoryID, it.FeedbackType.IsSuccess()); err != nil {
			s.logger.Warn("failed to update category usage",
				zap.Int("category_id", it.CategoryID),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("usage counters not updated for category %d", it.CategoryID))
		}
	}

	if s.categoryRepo != nil && s.reloader != nil {
		if err := s.reloader.RefreshUsage(ctx, touched); err != nil {
			s.logger.Warn("failed to refresh live usage counters", zap.Error(err))
			warnings = append(warnings, "live usage counters not refreshed")
		}
	}

	if s.learning == nil {
		return warnings
	}
	for _, id := range touched {
		if _, err := s.learning.RecomputeMetrics(ctx, id, metricsWindowDays); err != nil {
			s.logger.Warn("failed to recompute learning metrics",
				zap.Int("category_id", id),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("learning metrics not updated for category %d", id))
		}
	}
	return warnings
}

func validateSubmission(sub domain.FeedbackSubmission) error {
	if sub.InteractionID == uuid.Nil {
		return ErrInteractionIDMissing
	}
	if len(sub.Items) == 0 {
		return ErrEmptyFeedback
	}
	for i, in := range sub.Items {
		if !domain.ValidFeedbackType(string(in.FeedbackType)) {
			return fmt.Errorf("%w: %q at index %d", ErrInvalidFeedbackType, in.FeedbackType, i)
		}
		if err := validateRating(in.UserRating); err != nil {
			return fmt.Errorf("user_rating at index %d: %w", i, err)
		}
	}
	if err := validateRating(sub.OverallSatisfaction); err != nil {
		return fmt.Errorf("overall_satisfaction: %w", err)
	}
	return nil
}

func validateRating(r *int) error {
	if r == nil {
		return nil
	}
	if *r < minRating || *r > maxRating {
		return ErrInvalidRating
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// sessionWindow is the bucket size used to derive anonymous session ids.
const sessionWindow = time.Hour

// SessionID derives a stable anonymous session id from the client address,
// user agent and the current hour.
func SessionID(ip, userAgent string, now time.Time) string {
	bucket := now.UTC().Truncate(sessionWindow).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", ip, userAgent, bucket)))
	return hex.EncodeToString(sum[:])
}

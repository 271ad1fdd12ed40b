package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voterprime/catmatch/internal/domain"
)

type FeedbackStore struct {
	db *pgxpool.Pool
}

func NewFeedbackStore(db *pgxpool.Pool) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// CreateBatch inserts all items in one transaction. Pairs that already have
// a row are skipped by the unique constraint and leave f.ID nil.
func (s *FeedbackStore) CreateBatch(ctx context.Context, items []*domain.FeedbackItem) error {
	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, f := range items {
			err := tx.QueryRow(ctx,
				`INSERT INTO category_feedback (interaction_id, category_id, category_name, feedback_type,
					confidence_score, similarity_score, match_rank, user_rating, feedback_reason,
					overall_satisfaction, additional_comments)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				 ON CONFLICT (interaction_id, category_id) DO NOTHING
				 RETURNING id, created_at`,
				f.InteractionID, f.CategoryID, f.CategoryName, f.FeedbackType,
				f.ConfidenceScore, f.SimilarityScore, f.MatchRank, f.UserRating, f.FeedbackReason,
				f.OverallSatisfaction, f.AdditionalComments,
			).Scan(&f.ID, &f.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				f.ID = uuid.Nil
				continue
			}
			if err != nil {
				return fmt.Errorf("insert feedback for category %d: %w", f.CategoryID, err)
			}
		}
		return nil
	})
}

func (s *FeedbackStore) JudgedCategories(ctx context.Context, interactionID uuid.UUID) ([]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT category_id FROM category_feedback WHERE interaction_id = $1 ORDER BY category_id`,
		interactionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSince returns feedback created at or after since, oldest first. A nil
// categoryID returns every category.
func (s *FeedbackStore) ListSince(ctx context.Context, since time.Time, categoryID *int) ([]domain.FeedbackItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, interaction_id, category_id, category_name, feedback_type, confidence_score, similarity_score,
			match_rank, user_rating, feedback_reason, overall_satisfaction, additional_comments, created_at
		 FROM category_feedback
		 WHERE created_at >= $1 AND ($2::integer IS NULL OR category_id = $2)
		 ORDER BY created_at, id`,
		since, categoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.FeedbackItem
	for rows.Next() {
		var f domain.FeedbackItem
		if err := rows.Scan(&f.ID, &f.InteractionID, &f.CategoryID, &f.CategoryName, &f.FeedbackType,
			&f.ConfidenceScore, &f.SimilarityScore, &f.MatchRank, &f.UserRating, &f.FeedbackReason,
			&f.OverallSatisfaction, &f.AdditionalComments, &f.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (s *FeedbackStore) LowConfidenceInputs(ctx context.Context, threshold float64, since time.Time, limit int) ([]domain.LowConfidenceInput, error) {
	rows, err := s.db.Query(ctx,
		`SELECT ui.user_input, cf.category_name, cf.confidence_score, cf.created_at
		 FROM category_feedback cf
		 JOIN user_interactions ui ON ui.id = cf.interaction_id
		 WHERE cf.confidence_score < $1 AND cf.created_at >= $2
		 ORDER BY cf.created_at DESC
		 LIMIT $3`,
		threshold, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inputs []domain.LowConfidenceInput
	for rows.Next() {
		var in domain.LowConfidenceInput
		if err := rows.Scan(&in.UserInput, &in.CategoryName, &in.ConfidenceScore, &in.CreatedAt); err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

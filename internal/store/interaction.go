package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/voterprime/catmatch/internal/domain"
)

type InteractionStore struct {
	db *pgxpool.Pool
}

func NewInteractionStore(db *pgxpool.Pool) *InteractionStore {
	return &InteractionStore{db: db}
}

// Create records the interaction and bumps the session's counters.
func (s *InteractionStore) Create(ctx context.Context, i *domain.Interaction) error {
	var embedding *pgvector.Vector
	if len(i.Embedding) > 0 {
		v := pgvector.NewVector(i.Embedding)
		embedding = &v
	}

	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_sessions (session_id, interaction_count)
			 VALUES ($1, 1)
			 ON CONFLICT (session_id) DO UPDATE SET
				interaction_count = user_sessions.interaction_count + 1,
				last_seen_at = NOW()`,
			i.SessionID,
		)
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx,
			`INSERT INTO user_interactions (session_id, interaction_type, user_input, input_embedding, processing_time_ms, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			i.SessionID, i.Type, i.UserInput, embedding, i.ProcessingTimeMS, i.Metadata,
		).Scan(&i.ID, &i.CreatedAt)
	})
}

func (s *InteractionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Interaction, error) {
	i := &domain.Interaction{}
	var embedding *pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT id, session_id, interaction_type, user_input, input_embedding, processing_time_ms, metadata, created_at
		 FROM user_interactions WHERE id = $1`,
		id,
	).Scan(&i.ID, &i.SessionID, &i.Type, &i.UserInput, &embedding, &i.ProcessingTimeMS, &i.Metadata, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if embedding != nil {
		i.Embedding = embedding.Slice()
	}
	return i, nil
}

func (s *InteractionStore) SessionActivity(ctx context.Context, since time.Time, limit int) ([]domain.SessionActivity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT s.session_id, s.first_seen_at, s.last_seen_at, COUNT(DISTINCT i.id), s.interaction_count,
		        COUNT(f.id), AVG(f.user_rating)::float8
		 FROM user_sessions s
		 JOIN user_interactions i ON i.session_id = s.session_id AND i.created_at >= $1
		 LEFT JOIN category_feedback f ON f.interaction_id = i.id
		 GROUP BY s.session_id
		 ORDER BY s.last_seen_at DESC
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.SessionActivity{}
	for rows.Next() {
		var a domain.SessionActivity
		if err := rows.Scan(&a.SessionID, &a.FirstSeen, &a.LastSeen, &a.InteractionCount, &a.TotalInteractions,
			&a.FeedbackCount, &a.AvgRating); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *InteractionStore) CountActivity(ctx context.Context, since time.Time) (domain.ActivityCounts, error) {
	var c domain.ActivityCounts
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT session_id), COUNT(*)
		 FROM user_interactions WHERE created_at >= $1`,
		since,
	).Scan(&c.Sessions, &c.Interactions)
	return c, err
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voterprime/catmatch/internal/domain"
)

const categoryColumns = `id, name, type, description, keywords, success_count, total_usage_count,
	metadata, is_active, created_by, updated_by, created_at, updated_at`

type CategoryStore struct {
	db *pgxpool.Pool
}

func NewCategoryStore(db *pgxpool.Pool) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(row pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Description, &c.Keywords, &c.SuccessCount, &c.TotalUsageCount,
		&c.Metadata, &c.IsActive, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	return c, err
}

func (s *CategoryStore) ListActive(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+categoryColumns+`
		 FROM political_categories WHERE is_active
		 ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *CategoryStore) GetByID(ctx context.Context, id int) (*domain.Category, error) {
	c, err := scanCategory(s.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM political_categories WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts c with the next free id.
func (s *CategoryStore) Create(ctx context.Context, c *domain.Category) error {
	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		return insertCategory(ctx, tx, c)
	})
}

// insertCategory assigns max(id)+1 inside the INSERT. The table lock keeps
// concurrent creators from picking the same id.
func insertCategory(ctx context.Context, tx pgx.Tx, c *domain.Category) error {
	if _, err := tx.Exec(ctx, `LOCK TABLE political_categories IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock categories: %w", err)
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	return tx.QueryRow(ctx,
		`INSERT INTO political_categories (id, name, type, description, keywords, success_count, total_usage_count,
			metadata, is_active, created_by, updated_by)
		 SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		 FROM political_categories
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Type, c.Description, c.Keywords, c.SuccessCount, c.TotalUsageCount,
		c.Metadata, c.IsActive, c.CreatedBy, c.UpdatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Upsert writes c under its own id. Used for seeding from a category file.
func (s *CategoryStore) Upsert(ctx context.Context, c *domain.Category) error {
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO political_categories (id, name, type, description, keywords, success_count, total_usage_count,
			metadata, is_active, created_by, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			keywords = EXCLUDED.keywords,
			metadata = EXCLUDED.metadata,
			is_active = EXCLUDED.is_active,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
		 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Type, c.Description, c.Keywords, c.SuccessCount, c.TotalUsageCount,
		c.Metadata, c.IsActive, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *CategoryStore) Update(ctx context.Context, c *domain.Category, actor string) error {
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	err := s.db.QueryRow(ctx,
		`UPDATE political_categories
		 SET name = $2, description = $3, keywords = $4, metadata = $5,
		     updated_by = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Name, c.Description, c.Keywords, c.Metadata, actor,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	c.UpdatedBy = actor
	return nil
}

func (s *CategoryStore) UpdateKeywords(ctx context.Context, id int, keywords []string, actor string) error {
	if keywords == nil {
		keywords = []string{}
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE political_categories
		 SET keywords = $2, updated_by = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, keywords, actor,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CategoryStore) SetActive(ctx context.Context, id int, active bool, actor string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE political_categories
		 SET is_active = $2, updated_by = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, active, actor,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CategoryStore) IncrementUsage(ctx context.Context, id int, success bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE political_categories
		 SET total_usage_count = total_usage_count + 1,
		     success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, success,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transform deactivates the source categories and inserts their
// replacements in a single transaction.
func (s *CategoryStore) Transform(ctx context.Context, deactivate []int, create []*domain.Category, actor string) error {
	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, id := range deactivate {
			tag, err := tx.Exec(ctx,
				`UPDATE political_categories
				 SET is_active = FALSE, updated_by = $2, updated_at = NOW()
				 WHERE id = $1`,
				id, actor,
			)
			if err != nil {
				return fmt.Errorf("deactivate category %d: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		for _, c := range create {
			c.CreatedBy = actor
			c.UpdatedBy = actor
			if err := insertCategory(ctx, tx, c); err != nil {
				return fmt.Errorf("insert category %q: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (s *CategoryStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM political_categories`).Scan(&n)
	return n, err
}

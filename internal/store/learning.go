package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voterprime/catmatch/internal/domain"
)

type LearningMetricStore struct {
	db *pgxpool.Pool
}

func NewLearningMetricStore(db *pgxpool.Pool) *LearningMetricStore {
	return &LearningMetricStore{db: db}
}

// Upsert keeps one row per category, metric type, period and day.
func (s *LearningMetricStore) Upsert(ctx context.Context, m *domain.LearningMetric) error {
	if m.CalculatedAt.IsZero() {
		m.CalculatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO learning_metrics (category_id, metric_type, metric_value, sample_size, time_period, period_day, calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::timestamptz::date, $6)
		 ON CONFLICT (category_id, metric_type, time_period, period_day) DO UPDATE SET
			metric_value = EXCLUDED.metric_value,
			sample_size = EXCLUDED.sample_size,
			calculated_at = EXCLUDED.calculated_at`,
		m.CategoryID, m.MetricType, m.MetricValue, m.SampleSize, m.TimePeriod, m.CalculatedAt,
	)
	return err
}

func (s *LearningMetricStore) ListByCategory(ctx context.Context, categoryID int, since time.Time) ([]domain.LearningMetric, error) {
	rows, err := s.db.Query(ctx,
		`SELECT category_id, metric_type, metric_value, sample_size, time_period, calculated_at
		 FROM learning_metrics
		 WHERE category_id = $1 AND calculated_at >= $2
		 ORDER BY calculated_at DESC, metric_type`,
		categoryID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []domain.LearningMetric
	for rows.Next() {
		var m domain.LearningMetric
		if err := rows.Scan(&m.CategoryID, &m.MetricType, &m.MetricValue, &m.SampleSize, &m.TimePeriod, &m.CalculatedAt); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/voterprime/catmatch/internal/catalog"
	"go.uber.org/zap"
)

const (
	defaultSnapshotWindow = 30
	snapshotTimeout       = 2 * time.Minute
)

// MetricsSnapshotter periodically recomputes the daily learning metrics of
// every category in the live generation.
type MetricsSnapshotter struct {
	learning *LearningService
	catalog  *catalog.Store
	logger   *zap.Logger

	interval time.Duration
	window   int
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewMetricsSnapshotter(ls *LearningService, cat *catalog.Store, logger *zap.Logger) *MetricsSnapshotter {
	return &MetricsSnapshotter{
		learning: ls,
		catalog:  cat,
		logger:   logger,
		window:   defaultSnapshotWindow,
		stopCh:   make(chan struct{}),
	}
}

// SetInterval enables periodic snapshots. Zero disables them.
func (s *MetricsSnapshotter) SetInterval(d time.Duration) {
	s.interval = d
}

// SetWindow sets how many days of feedback each snapshot aggregates.
func (s *MetricsSnapshotter) SetWindow(days int) {
	if days > 0 {
		s.window = days
	}
}

// Start runs Run on a periodic schedule in a background goroutine.
func (s *MetricsSnapshotter) Start() {
	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("learning metrics snapshotter started",
			zap.Duration("interval", s.interval),
			zap.Int("window_days", s.window))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
				s.Run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("learning metrics snapshotter stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the snapshotter.
func (s *MetricsSnapshotter) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Run recomputes metrics for each loaded category and returns how many
// categories had feedback. Failures are logged per category and do not stop
// the pass.
func (s *MetricsSnapshotter) Run(ctx context.Context) int {
	if !s.catalog.Loaded() {
		return 0
	}

	updated := 0
	for _, c := range s.catalog.All() {
		if ctx.Err() != nil {
			s.logger.Warn("learning metrics snapshot interrupted", zap.Error(ctx.Err()))
			break
		}
		metrics, err := s.learning.RecomputeMetrics(ctx, c.ID, s.window)
		if err != nil {
			s.logger.Error("failed to recompute learning metrics",
				zap.Int("category_id", c.ID),
				zap.Error(err))
			continue
		}
		if len(metrics) > 0 {
			updated++
		}
	}

	if updated > 0 {
		s.logger.Info("learning metrics snapshot complete", zap.Int("categories", updated))
	}
	return updated
}

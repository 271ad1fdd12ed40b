package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"go.uber.org/zap"
)

const reloadTimeout = 30 * time.Second

// Reloader refreshes the live category generation from the repository.
type Reloader struct {
	repo    domain.CategoryRepository
	catalog *catalog.Store
	logger  *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReloader(repo domain.CategoryRepository, cat *catalog.Store, logger *zap.Logger) *Reloader {
	return &Reloader{
		repo:    repo,
		catalog: cat,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// SetInterval enables periodic reloads. Zero disables them.
func (r *Reloader) SetInterval(d time.Duration) {
	r.interval = d
}

// Reload loads every active category into the catalog. On failure the
// previous generation keeps serving.
func (r *Reloader) Reload(ctx context.Context) error {
	cats, err := r.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active categories: %w", err)
	}
	return r.catalog.Load(ctx, cats)
}

// RefreshUsage copies the stored usage counters of ids into the live
// generation without re-encoding any category.
func (r *Reloader) RefreshUsage(ctx context.Context, ids []int) error {
	updates := make([]domain.Category, 0, len(ids))
	for _, id := range ids {
		c, err := r.repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get category %d: %w", id, err)
		}
		updates = append(updates, *c)
	}
	r.catalog.UpdateUsage(updates)
	return nil
}

// Start runs Reload on a periodic schedule in a background goroutine.
func (r *Reloader) Start() {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("category reloader started", zap.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
				if err := r.Reload(ctx); err != nil {
					r.logger.Error("category reload failed", zap.Error(err))
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("category reloader stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the reloader.
func (r *Reloader) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/store"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type memCategories struct {
	mu   sync.Mutex
	cats map[int]*domain.Category
}

func newMemCategories(cats ...domain.Category) *memCategories {
	r := &memCategories{cats: make(map[int]*domain.Category)}
	for i := range cats {
		c := cats[i]
		c.IsActive = true
		r.cats[c.ID] = &c
	}
	return r
}

func (r *memCategories) ListActive(ctx context.Context) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Category
	for _, c := range r.cats {
		if c.IsActive {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCategories) GetByID(ctx context.Context, id int) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (r *memCategories) Create(ctx context.Context, c *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 1
	for id := range r.cats {
		if id >= next {
			next = id + 1
		}
	}
	c.ID = next
	c.IsActive = true
	stored := c.Clone()
	r.cats[c.ID] = &stored
	return nil
}

func (r *memCategories) Upsert(ctx context.Context, c *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := c.Clone()
	stored.IsActive = true
	r.cats[c.ID] = &stored
	return nil
}

func (r *memCategories) Update(ctx context.Context, c *domain.Category, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cats[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	edited := c.Clone()
	stored.Name = edited.Name
	stored.Description = edited.Description
	stored.Keywords = edited.Keywords
	stored.Metadata = edited.Metadata
	stored.UpdatedBy = actor
	stored.UpdatedAt = time.Now()
	c.UpdatedBy = actor
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memCategories) UpdateKeywords(ctx context.Context, id int, keywords []string, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Keywords = append([]string(nil), keywords...)
	c.UpdatedBy = actor
	return nil
}

func (r *memCategories) SetActive(ctx context.Context, id int, active bool, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok {
		return store.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedBy = actor
	return nil
}

func (r *memCategories) IncrementUsage(ctx context.Context, id int, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok {
		return store.ErrNotFound
	}
	c.TotalUsageCount++
	if success {
		c.SuccessCount++
	}
	return nil
}

func (r *memCategories) Transform(ctx context.Context, deactivate []int, create []*domain.Category, actor string) error {
	for _, id := range deactivate {
		if err := r.SetActive(ctx, id, false, actor); err != nil {
			return err
		}
	}
	for _, c := range create {
		if err := r.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

type memInteractions struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Interaction
	err   error
}

func newMemInteractions() *memInteractions {
	return &memInteractions{items: make(map[uuid.UUID]*domain.Interaction)}
}

func (s *memInteractions) Create(ctx context.Context, i *domain.Interaction) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = uuid.New()
	i.CreatedAt = time.Now()
	stored := *i
	s.items[i.ID] = &stored
	return nil
}

func (s *memInteractions) GetByID(ctx context.Context, id uuid.UUID) (*domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *i
	return &out, nil
}

func (s *memInteractions) CountActivity(ctx context.Context, since time.Time) (domain.ActivityCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c domain.ActivityCounts
	sessions := make(map[string]bool)
	for _, i := range s.items {
		if i.CreatedAt.Before(since) {
			continue
		}
		c.Interactions++
		sessions[i.SessionID] = true
	}
	c.Sessions = len(sessions)
	return c, nil
}

func (s *memInteractions) SessionActivity(ctx context.Context, since time.Time, limit int) ([]domain.SessionActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySession := make(map[string]*domain.SessionActivity)
	for _, i := range s.items {
		if i.CreatedAt.Before(since) {
			continue
		}
		a, ok := bySession[i.SessionID]
		if !ok {
			a = &domain.SessionActivity{SessionID: i.SessionID, FirstSeen: i.CreatedAt, LastSeen: i.CreatedAt}
			bySession[i.SessionID] = a
		}
		a.InteractionCount++
		a.TotalInteractions++
		if i.CreatedAt.Before(a.FirstSeen) {
			a.FirstSeen = i.CreatedAt
		}
		if i.CreatedAt.After(a.LastSeen) {
			a.LastSeen = i.CreatedAt
		}
	}
	out := make([]domain.SessionActivity, 0, len(bySession))
	for _, a := range bySession {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memFeedback struct {
	mu    sync.Mutex
	items []domain.FeedbackItem
}

func (s *memFeedback) CreateBatch(ctx context.Context, items []*domain.FeedbackItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range items {
		if s.has(f.InteractionID, f.CategoryID) {
			f.ID = uuid.Nil
			continue
		}
		f.ID = uuid.New()
		f.CreatedAt = time.Now()
		s.items = append(s.items, *f)
	}
	return nil
}

func (s *memFeedback) JudgedCategories(ctx context.Context, interactionID uuid.UUID) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, f := range s.items {
		if f.InteractionID == interactionID {
			out = append(out, f.CategoryID)
		}
	}
	return out, nil
}

func (s *memFeedback) has(interactionID uuid.UUID, categoryID int) bool {
	for _, f := range s.items {
		if f.InteractionID == interactionID && f.CategoryID == categoryID {
			return true
		}
	}
	return false
}

func (s *memFeedback) ListSince(ctx context.Context, since time.Time, categoryID *int) ([]domain.FeedbackItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FeedbackItem
	for _, f := range s.items {
		if f.CreatedAt.Before(since) {
			continue
		}
		if categoryID != nil && f.CategoryID != *categoryID {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *memFeedback) LowConfidenceInputs(ctx context.Context, threshold float64, since time.Time, limit int) ([]domain.LowConfidenceInput, error) {
	return nil, nil
}

type memMetrics struct {
	mu      sync.Mutex
	metrics []domain.LearningMetric
}

func (s *memMetrics) Upsert(ctx context.Context, m *domain.LearningMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, *m)
	return nil
}

func (s *memMetrics) ListByCategory(ctx context.Context, categoryID int, since time.Time) ([]domain.LearningMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LearningMetric
	for _, m := range s.metrics {
		if m.CategoryID == categoryID && !m.CalculatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/embedding"
	"github.com/voterprime/catmatch/internal/store"
	"go.uber.org/zap"
)

// termEmbedder places each vocabulary word on its own axis, so similarities
// in tests can be computed by hand. Text with no vocabulary word lands on a
// dedicated fallback axis.
type termEmbedder struct {
	vocab map[string]int
	dim   int
	err   error
	calls int
}

func newTermEmbedder(words ...string) *termEmbedder {
	vocab := make(map[string]int, len(words))
	for i, w := range words {
		vocab[w] = i
	}
	return &termEmbedder{vocab: vocab, dim: len(words) + 1}
}

func (e *termEmbedder) Model() string  { return "term" }
func (e *termEmbedder) Dimension() int { return e.dim }

func (e *termEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text)
}

func (e *termEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.vector(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *termEmbedder) vector(text string) ([]float32, error) {
	tokens := embedding.Tokenize(text)
	if len(tokens) == 0 {
		return nil, domain.ErrEncoding
	}
	vec := make([]float32, e.dim)
	hit := false
	for _, tok := range tokens {
		if i, ok := e.vocab[tok]; ok {
			vec[i]++
			hit = true
		}
	}
	if !hit {
		vec[e.dim-1] = 1
	}
	return vec, nil
}

var testVocab = []string{
	"climate", "change", "green", "action", "environment", "warming",
	"tax", "taxes", "policy", "revenue",
	"guns", "firearms", "honest", "ethics", "health", "insurance",
}

func newTestCatalog(emb domain.Embedder, cats ...domain.Category) *catalog.Store {
	s := catalog.New(emb, zap.NewNop(), nil)
	if err := s.Load(context.Background(), cats); err != nil {
		panic(err)
	}
	return s
}

func newTestMatcher(emb domain.Embedder, cats ...domain.Category) *MatcherService {
	m, err := NewMatcherService(newTestCatalog(emb, cats...), emb, NewMatchScorer(), zap.NewNop(), nil)
	if err != nil {
		panic(err)
	}
	return m
}

func category(id int, name string, typ domain.CategoryType, keywords ...string) domain.Category {
	if keywords == nil {
		keywords = []string{}
	}
	return domain.Category{ID: id, Name: name, Type: typ, Keywords: keywords, IsActive: true}
}

// --- Category repository ---

type mockCategoryRepo struct {
	mu         sync.Mutex
	categories map[int]*domain.Category
	failList   error
}

func newMockCategoryRepo(cats ...domain.Category) *mockCategoryRepo {
	r := &mockCategoryRepo{categories: make(map[int]*domain.Category)}
	for _, c := range cats {
		c := c.Clone()
		r.categories[c.ID] = &c
	}
	return r
}

func (r *mockCategoryRepo) ListActive(ctx context.Context) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	var out []domain.Category
	for _, c := range r.categories {
		if c.IsActive {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockCategoryRepo) GetByID(ctx context.Context, id int) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := c.Clone()
	return &cp, nil
}

func (r *mockCategoryRepo) nextID() int {
	highest := 0
	for id := range r.categories {
		if id > highest {
			highest = id
		}
	}
	return highest + 1
}

func (r *mockCategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := c.Clone()
	r.categories[c.ID] = &cp
	return nil
}

func (r *mockCategoryRepo) Update(ctx context.Context, c *domain.Category, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.categories[c.ID]
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

func (r *mockCategoryRepo) UpdateKeywords(ctx context.Context, id int, keywords []string, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Keywords = append([]string(nil), keywords...)
	c.UpdatedBy = actor
	return nil
}

func (r *mockCategoryRepo) SetActive(ctx context.Context, id int, active bool, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return store.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedBy = actor
	return nil
}

func (r *mockCategoryRepo) IncrementUsage(ctx context.Context, id int, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return store.ErrNotFound
	}
	c.TotalUsageCount++
	if success {
		c.SuccessCount++
	}
	return nil
}

func (r *mockCategoryRepo) Transform(ctx context.Context, deactivate []int, create []*domain.Category, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range deactivate {
		if _, ok := r.categories[id]; !ok {
			return store.ErrNotFound
		}
	}
	for _, id := range deactivate {
		r.categories[id].IsActive = false
	}
	for _, c := range create {
		c.ID = r.nextID()
		c.CreatedBy = actor
		cp := c.Clone()
		r.categories[c.ID] = &cp
	}
	return nil
}

// --- Interaction store ---

type mockInteractionStore struct {
	mu           sync.Mutex
	interactions map[uuid.UUID]*domain.Interaction
}

func newMockInteractionStore() *mockInteractionStore {
	return &mockInteractionStore{interactions: make(map[uuid.UUID]*domain.Interaction)}
}

func (s *mockInteractionStore) Create(ctx context.Context, i *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = uuid.New()
	i.CreatedAt = time.Now()
	cp := *i
	s.interactions[i.ID] = &cp
	return nil
}

func (s *mockInteractionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.interactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

// --- Feedback store ---

type mockFeedbackStore struct {
	mu          sync.Mutex
	items       []domain.FeedbackItem
	inputs      map[uuid.UUID]string
	failCreate  error
	createCalls int
}

func newMockFeedbackStore() *mockFeedbackStore {
	return &mockFeedbackStore{inputs: make(map[uuid.UUID]string)}
}

func (s *mockFeedbackStore) CreateBatch(ctx context.Context, items []*domain.FeedbackItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.failCreate != nil {
		return s.failCreate
	}
	for _, it := range items {
		if s.judgedLocked(it.InteractionID, it.CategoryID) {
			it.ID = uuid.Nil
			continue
		}
		it.ID = uuid.New()
		if it.CreatedAt.IsZero() {
			it.CreatedAt = time.Now()
		}
		s.items = append(s.items, *it)
	}
	return nil
}

func (s *mockFeedbackStore) JudgedCategories(ctx context.Context, interactionID uuid.UUID) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, it := range s.items {
		if it.InteractionID == interactionID {
			out = append(out, it.CategoryID)
		}
	}
	return out, nil
}

func (s *mockFeedbackStore) judgedLocked(interactionID uuid.UUID, categoryID int) bool {
	for _, it := range s.items {
		if it.InteractionID == interactionID && it.CategoryID == categoryID {
			return true
		}
	}
	return false
}

// racingFeedbackStore hides one judged pair from JudgedCategories and writes
// it just before the batch, like a concurrent submission would.
type racingFeedbackStore struct {
	*mockFeedbackStore
	interactionID uuid.UUID
	categoryID    int
}

func (s *racingFeedbackStore) JudgedCategories(ctx context.Context, interactionID uuid.UUID) ([]int, error) {
	return nil, nil
}

func (s *racingFeedbackStore) CreateBatch(ctx context.Context, items []*domain.FeedbackItem) error {
	s.mu.Lock()
	s.items = append(s.items, domain.FeedbackItem{
		ID:            uuid.New(),
		InteractionID: s.interactionID,
		CategoryID:    s.categoryID,
		FeedbackType:  domain.FeedbackReject,
		CreatedAt:     time.Now(),
	})
	s.mu.Unlock()
	return s.mockFeedbackStore.CreateBatch(ctx, items)
}

func (s *mockFeedbackStore) ListSince(ctx context.Context, since time.Time, categoryID *int) ([]domain.FeedbackItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FeedbackItem
	for _, it := range s.items {
		if it.CreatedAt.Before(since) {
			continue
		}
		if categoryID != nil && it.CategoryID != *categoryID {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *mockFeedbackStore) LowConfidenceInputs(ctx context.Context, threshold float64, since time.Time, limit int) ([]domain.LowConfidenceInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LowConfidenceInput
	for _, it := range s.items {
		if it.ConfidenceScore >= threshold || it.CreatedAt.Before(since) {
			continue
		}
		out = append(out, domain.LowConfidenceInput{
			UserInput:       s.inputs[it.InteractionID],
			CategoryName:    it.CategoryName,
			ConfidenceScore: it.ConfidenceScore,
			CreatedAt:       it.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// add appends a row directly, bypassing CreateBatch.
func (s *mockFeedbackStore) add(categoryID int, name string, ft domain.FeedbackType, conf float64, opts ...func(*domain.FeedbackItem)) {
	it := domain.FeedbackItem{
		ID:              uuid.New(),
		InteractionID:   uuid.New(),
		CategoryID:      categoryID,
		CategoryName:    name,
		FeedbackType:    ft,
		ConfidenceScore: conf,
		CreatedAt:       time.Now(),
	}
	for _, o := range opts {
		o(&it)
	}
	s.mu.Lock()
	s.items = append(s.items, it)
	s.mu.Unlock()
}

func withRating(r int) func(*domain.FeedbackItem) {
	return func(it *domain.FeedbackItem) { it.UserRating = &r }
}

func withReason(reason string) func(*domain.FeedbackItem) {
	return func(it *domain.FeedbackItem) { it.FeedbackReason = &reason }
}

func withAge(d time.Duration) func(*domain.FeedbackItem) {
	return func(it *domain.FeedbackItem) { it.CreatedAt = time.Now().Add(-d) }
}

func (s *mockFeedbackStore) withInput(input string) func(*domain.FeedbackItem) {
	return func(it *domain.FeedbackItem) {
		s.mu.Lock()
		s.inputs[it.InteractionID] = input
		s.mu.Unlock()
	}
}

// --- Activity store ---

type mockActivityStore struct {
	counts    domain.ActivityCounts
	sessions  []domain.SessionActivity
	fail      error
	lastSince time.Time
	lastLimit int
}

func (s *mockActivityStore) SessionActivity(ctx context.Context, since time.Time, limit int) ([]domain.SessionActivity, error) {
	s.lastSince, s.lastLimit = since, limit
	if s.fail != nil {
		return nil, s.fail
	}
	if len(s.sessions) > limit {
		return s.sessions[:limit], nil
	}
	return s.sessions, nil
}

func (s *mockActivityStore) CountActivity(ctx context.Context, since time.Time) (domain.ActivityCounts, error) {
	s.lastSince = since
	if s.fail != nil {
		return domain.ActivityCounts{}, s.fail
	}
	return s.counts, nil
}

// --- Learning metric store ---

type metricKey struct {
	categoryID int
	metricType domain.MetricType
}

type mockMetricStore struct {
	mu      sync.Mutex
	metrics map[metricKey]domain.LearningMetric
	fail    error
}

func newMockMetricStore() *mockMetricStore {
	return &mockMetricStore{metrics: make(map[metricKey]domain.LearningMetric)}
}

func (s *mockMetricStore) Upsert(ctx context.Context, m *domain.LearningMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.metrics[metricKey{m.CategoryID, m.MetricType}] = *m
	return nil
}

func (s *mockMetricStore) ListByCategory(ctx context.Context, categoryID int, since time.Time) ([]domain.LearningMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LearningMetric
	for k, m := range s.metrics {
		if k.categoryID == categoryID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *mockMetricStore) get(categoryID int, t domain.MetricType) (domain.LearningMetric, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[metricKey{categoryID, t}]
	return m, ok
}

// --- Keyword suggester ---

type mockSuggester struct {
	keywords []string
	draft    *domain.CategoryDraft
	err      error
}

func (m *mockSuggester) SuggestKeywords(ctx context.Context, c domain.Category, hint string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.keywords, nil
}

func (m *mockSuggester) DraftCategory(ctx context.Context, description string) (*domain.CategoryDraft, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.draft == nil {
		return nil, errors.New("no draft")
	}
	d := *m.draft
	if d.Description == "" {
		d.Description = strings.TrimSpace(description)
	}
	return &d, nil
}

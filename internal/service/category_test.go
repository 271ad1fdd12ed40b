package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"go.uber.org/zap"
)

type categoryFixture struct {
	svc       *CategoryService
	repo      *mockCategoryRepo
	catalog   *catalog.Store
	suggester *mockSuggester
}

func setupCategoryTest(t *testing.T) *categoryFixture {
	t.Helper()
	emb := newTermEmbedder(testVocab...)
	repo := newMockCategoryRepo(
		category(1, "Climate Action", domain.CategoryTypeIssue, "climate", "green"),
		category(2, "Tax Policy", domain.CategoryTypePolicy, "tax", "revenue"),
		category(3, "Gun Rights", domain.CategoryTypeIssue, "guns", "firearms"),
	)
	cat := catalog.New(emb, zap.NewNop(), nil)
	reloader := NewReloader(repo, cat, zap.NewNop())
	if err := reloader.Reload(context.Background()); err != nil {
		t.Fatalf("initial reload: %v", err)
	}
	matcher, err := NewMatcherService(cat, emb, nil, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}

	f := &categoryFixture{
		repo:      repo,
		catalog:   cat,
		suggester: &mockSuggester{},
	}
	f.svc = NewCategoryService(repo, reloader, matcher, zap.NewNop())
	f.svc.SetSuggester(f.suggester)
	return f
}

func (f *categoryFixture) live(t *testing.T, id int) (*domain.Category, bool) {
	t.Helper()
	c, ok := f.catalog.GetByID(id)
	if !ok {
		return nil, false
	}
	return &c, true
}

func TestCategoryService_Create(t *testing.T) {
	f := setupCategoryTest(t)

	c, err := f.svc.Create(context.Background(), domain.CategoryDraft{
		Name:     " Health Care ",
		Type:     domain.CategoryTypeIssue,
		Keywords: []string{"health", " Health ", "insurance", ""},
	}, "admin@example.org")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.ID != 4 {
		t.Errorf("expected next id 4, got %d", c.ID)
	}
	if c.Name != "Health Care" || !reflect.DeepEqual(c.Keywords, []string{"health", "insurance"}) {
		t.Errorf("expected normalized category, got %+v", c)
	}
	if _, ok := f.live(t, 4); !ok {
		t.Fatal("expected new category in live catalog")
	}
}

func TestCategoryService_Create_Invalid(t *testing.T) {
	f := setupCategoryTest(t)

	tests := []domain.CategoryDraft{
		{Name: "", Type: domain.CategoryTypeIssue},
		{Name: "Trade", Type: "topic"},
		{Name: "Trade", Type: domain.CategoryTypeIssue, Metadata: domain.CategoryMetadata{PoliticalSpectrum: "sideways"}},
	}
	for _, d := range tests {
		if _, err := f.svc.Create(context.Background(), d, "admin"); !errors.Is(err, ErrInvalidCategory) {
			t.Errorf("draft %+v: expected ErrInvalidCategory, got %v", d, err)
		}
	}
}

func TestCategoryService_Keywords(t *testing.T) {
	f := setupCategoryTest(t)
	ctx := context.Background()

	c, err := f.svc.AddKeywords(ctx, 1, []string{"Climate", "warming", "environment"}, "admin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"climate", "green", "warming", "environment"}
	if !reflect.DeepEqual(c.Keywords, want) {
		t.Fatalf("expected %v, got %v", want, c.Keywords)
	}
	live, _ := f.live(t, 1)
	if !reflect.DeepEqual(live.Keywords, want) {
		t.Errorf("expected live catalog to see new keywords, got %v", live.Keywords)
	}

	c, err = f.svc.UpdateKeywords(ctx, 1, []string{"environment"}, "admin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(c.Keywords, []string{"environment"}) {
		t.Errorf("expected keywords replaced, got %v", c.Keywords)
	}

	if _, err := f.svc.AddKeywords(ctx, 99, []string{"x"}, "admin"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestCategoryService_Update(t *testing.T) {
	f := setupCategoryTest(t)
	ctx := context.Background()

	f.repo.categories[1].Metadata = domain.CategoryMetadata{
		PoliticalSpectrum: domain.SpectrumProgressive,
		Extra:             map[string]any{"source": "seed", "legacy": "yes"},
	}

	name := "  Climate Policy "
	c, err := f.svc.Update(ctx, 1, domain.CategoryPatch{
		Name:     &name,
		Keywords: []string{"climate", " warming ", "Climate"},
		Metadata: map[string]any{"priority_level": "high", "notes": "reviewed", "legacy": nil},
	}, "admin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Name != "Climate Policy" {
		t.Errorf("expected trimmed name, got %q", c.Name)
	}
	if c.Description != "" {
		t.Errorf("expected description untouched, got %q", c.Description)
	}
	if !reflect.DeepEqual(c.Keywords, []string{"climate", "warming"}) {
		t.Errorf("expected keywords replaced, got %v", c.Keywords)
	}
	if c.Metadata.PoliticalSpectrum != domain.SpectrumProgressive || c.Metadata.PriorityLevel != "high" {
		t.Errorf("expected merged core metadata, got %+v", c.Metadata)
	}
	wantExtra := map[string]any{"source": "seed", "notes": "reviewed"}
	if !reflect.DeepEqual(c.Metadata.Extra, wantExtra) {
		t.Errorf("expected extra %v, got %v", wantExtra, c.Metadata.Extra)
	}
	if c.UpdatedBy != "admin" {
		t.Errorf("expected updated_by admin, got %q", c.UpdatedBy)
	}
	live, ok := f.live(t, 1)
	if !ok || live.Name != "Climate Policy" {
		t.Errorf("expected live catalog to see the new name, got %+v", live)
	}
}

func TestCategoryService_Update_Invalid(t *testing.T) {
	f := setupCategoryTest(t)
	ctx := context.Background()
	blank := "   "
	name := "Renamed"

	tests := []struct {
		name  string
		id    int
		patch domain.CategoryPatch
		want  error
	}{
		{"empty patch", 1, domain.CategoryPatch{}, ErrInvalidCategory},
		{"blank name", 1, domain.CategoryPatch{Name: &blank}, ErrInvalidCategory},
		{"bad spectrum", 1, domain.CategoryPatch{Metadata: map[string]any{"political_spectrum": "centrist"}}, ErrInvalidCategory},
		{"provenance", 1, domain.CategoryPatch{Metadata: map[string]any{"provenance": map[string]any{"source": "x"}}}, ErrInvalidCategory},
		{"unknown category", 99, domain.CategoryPatch{Name: &name}, ErrCategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Update(ctx, tt.id, tt.patch, "admin"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if got := f.repo.categories[1].Name; got != "Climate Action" {
		t.Errorf("expected stored category unchanged, got %q", got)
	}
}

func TestCategoryService_Enhance(t *testing.T) {
	f := setupCategoryTest(t)
	f.suggester.keywords = []string{"GREEN", "carbon", "emissions", "carbon"}

	c, added, err := f.svc.Enhance(context.Background(), 1, "energy", "admin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(added, []string{"carbon", "emissions"}) {
		t.Errorf("expected only new keywords, got %v", added)
	}
	if !reflect.DeepEqual(c.Keywords, []string{"climate", "green", "carbon", "emissions"}) {
		t.Errorf("unexpected keywords %v", c.Keywords)
	}
}

func TestCategoryService_Enhance_Errors(t *testing.T) {
	f := setupCategoryTest(t)

	f.suggester.err = errors.New("llm down")
	if _, _, err := f.svc.Enhance(context.Background(), 1, "", "admin"); err == nil {
		t.Fatal("expected suggester error")
	}

	f.svc.SetSuggester(nil)
	if _, _, err := f.svc.Enhance(context.Background(), 1, "", "admin"); !errors.Is(err, ErrSuggesterUnavailable) {
		t.Fatalf("expected ErrSuggesterUnavailable, got %v", err)
	}
	if _, err := f.svc.Preview(context.Background(), "anything"); !errors.Is(err, ErrSuggesterUnavailable) {
		t.Fatalf("expected ErrSuggesterUnavailable, got %v", err)
	}
}

func TestCategoryService_Preview(t *testing.T) {
	f := setupCategoryTest(t)
	f.suggester.draft = &domain.CategoryDraft{
		Name:     "Climate Action",
		Type:     domain.CategoryTypeIssue,
		Keywords: []string{"climate", "green"},
	}

	p, err := f.svc.Preview(context.Background(), "fighting climate change")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Draft.Description != "fighting climate change" {
		t.Errorf("unexpected draft %+v", p.Draft)
	}
	if len(p.Warnings) != 1 || p.Warnings[0].CategoryID != 1 {
		t.Fatalf("expected a redundancy warning for category 1, got %+v", p.Warnings)
	}
	if p.Warnings[0].Similarity < RedundancyThreshold {
		t.Errorf("warning below threshold: %f", p.Warnings[0].Similarity)
	}

	f.suggester.draft = &domain.CategoryDraft{Name: "Health Insurance", Type: domain.CategoryTypeIssue, Keywords: []string{"health"}}
	p, err = f.svc.Preview(context.Background(), "health insurance")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(p.Warnings) != 0 {
		t.Errorf("expected no warnings for a new theme, got %+v", p.Warnings)
	}
}

func TestCategoryService_DeactivateReactivate(t *testing.T) {
	f := setupCategoryTest(t)
	ctx := context.Background()

	if err := f.svc.Deactivate(ctx, 3, "admin"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := f.live(t, 3); ok {
		t.Fatal("expected deactivated category to leave the live catalog")
	}

	if err := f.svc.Reactivate(ctx, 3, "admin"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c, ok := f.live(t, 3); !ok || c.Name != "Gun Rights" {
		t.Fatal("expected category 3 back under its original id")
	}

	if err := f.svc.Deactivate(ctx, 42, "admin"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestCategoryService_Split(t *testing.T) {
	f := setupCategoryTest(t)

	created, err := f.svc.Split(context.Background(), 2, []domain.CategoryDraft{
		{Name: "Income Tax", Type: domain.CategoryTypePolicy, Keywords: []string{"tax"}},
		{Name: "Public Revenue", Type: domain.CategoryTypePolicy, Keywords: []string{"revenue"}},
	}, "admin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(created) != 2 || created[0].ID != 4 || created[1].ID != 5 {
		t.Fatalf("expected ids 4 and 5, got %+v", created)
	}
	prov := created[0].Metadata.Provenance
	if prov == nil || prov.Transform != domain.TransformSplit || !reflect.DeepEqual(prov.SourceIDs, []int{2}) {
		t.Errorf("unexpected provenance %+v", prov)
	}
	if _, ok := f.live(t, 2); ok {
		t.Error("expected source category to be deactivated")
	}
	if _, ok := f.live(t, 5); !ok {
		t.Error("expected split result in live catalog")
	}

	if _, err := f.svc.Split(context.Background(), 1, []domain.CategoryDraft{{Name: "Only", Type: domain.CategoryTypeIssue}}, "admin"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory for single draft, got %v", err)
	}
	if _, err := f.svc.Split(context.Background(), 2, []domain.CategoryDraft{
		{Name: "A", Type: domain.CategoryTypeIssue}, {Name: "B", Type: domain.CategoryTypeIssue},
	}, "admin"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory for inactive source, got %v", err)
	}
}

func TestCategoryService_Merge(t *testing.T) {
	f := setupCategoryTest(t)

	c, err := f.svc.Merge(context.Background(), []int{1, 3, 1}, domain.CategoryDraft{
		Name: "Environment and Safety", Type: domain.CategoryTypeIssue, Keywords: []string{"environment"},
	}, "admin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Metadata.Provenance == nil || !reflect.DeepEqual(c.Metadata.Provenance.SourceIDs, []int{1, 3}) {
		t.Errorf("unexpected provenance %+v", c.Metadata.Provenance)
	}
	if _, ok := f.live(t, 1); ok {
		t.Error("expected merged sources to be deactivated")
	}

	if _, err := f.svc.Merge(context.Background(), []int{2, 2}, domain.CategoryDraft{Name: "X", Type: domain.CategoryTypeIssue}, "admin"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	if _, err := f.svc.Merge(context.Background(), []int{2, 77}, domain.CategoryDraft{Name: "X", Type: domain.CategoryTypeIssue}, "admin"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestReloader_FailureKeepsGeneration(t *testing.T) {
	f := setupCategoryTest(t)
	before, _ := f.catalog.Snapshot()

	f.repo.failList = errors.New("db gone")
	if err := f.svc.reloader.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	after, err := f.catalog.Snapshot()
	if err != nil || after != before {
		t.Fatal("expected previous generation to keep serving")
	}
}

func TestReloader_StartStop(t *testing.T) {
	f := setupCategoryTest(t)
	r := f.svc.reloader
	before, _ := f.catalog.Snapshot()

	r.SetInterval(10 * time.Millisecond)
	r.Start()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		gen, _ := f.catalog.Snapshot()
		if gen.Seq() > before.Seq() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	r.Stop()

	gen, _ := f.catalog.Snapshot()
	if gen.Seq() <= before.Seq() {
		t.Fatal("expected periodic reload to publish a new generation")
	}
}

func TestReloader_DisabledStop(t *testing.T) {
	r := NewReloader(newMockCategoryRepo(), catalog.New(newTermEmbedder("a"), zap.NewNop(), nil), zap.NewNop())
	r.Start()
	r.Stop()
}

func TestMergeKeywords(t *testing.T) {
	got := mergeKeywords([]string{"Tax", " ", "tax"}, []string{"TAX", "revenue", "Revenue "})
	if !reflect.DeepEqual(got, []string{"Tax", "revenue"}) {
		t.Errorf("unexpected merge result %v", got)
	}
}

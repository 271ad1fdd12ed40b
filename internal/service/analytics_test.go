package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"go.uber.org/zap"
)

func setupAnalyticsTest() (*LearningService, *mockFeedbackStore, *mockActivityStore) {
	svc, fs, _ := setupLearningTest()
	as := &mockActivityStore{counts: domain.ActivityCounts{Sessions: 2, Interactions: 7}}
	svc.SetActivityStore(as)
	return svc, fs, as
}

func TestLearningService_FeedbackTrends(t *testing.T) {
	svc, fs, _ := setupAnalyticsTest()

	addRows(fs, 2, "Tax", domain.FeedbackAccept, 1, 0.6)
	addRows(fs, 1, "Climate", domain.FeedbackAccept, 2, 0.8, withRating(4))
	addRows(fs, 1, "Climate", domain.FeedbackReject, 1, 0.2)
	addRows(fs, 1, "Climate", domain.FeedbackMaybe, 1, 0.5, withAge(48*time.Hour))
	addRows(fs, 1, "Climate", domain.FeedbackIrrelevant, 1, 0.1, withAge(40*24*time.Hour))

	got, err := svc.FeedbackTrends(context.Background(), 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 day/category rows, got %+v", got)
	}
	today := time.Now().UTC().Format(time.DateOnly)
	if got[0].Date != today || got[0].CategoryID != 1 || got[1].CategoryID != 2 {
		t.Fatalf("expected today's rows first ordered by category, got %+v", got)
	}
	c := got[0]
	if c.TotalFeedback != 3 || c.Accepts != 2 || c.Rejects != 1 || c.Maybes != 0 {
		t.Errorf("unexpected tally %+v", c)
	}
	if c.AvgConfidence != 0.6 {
		t.Errorf("expected avg confidence 0.6, got %f", c.AvgConfidence)
	}
	if c.AvgRating == nil || *c.AvgRating != 4 {
		t.Errorf("expected avg rating 4, got %v", c.AvgRating)
	}
	if got[2].Date >= today || got[2].Maybes != 1 {
		t.Errorf("expected older day last, got %+v", got[2])
	}

	if _, err := svc.FeedbackTrends(context.Background(), 0); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestLearningService_CategoryAcceptance(t *testing.T) {
	svc, fs, _ := setupAnalyticsTest()

	addRows(fs, 1, "Climate", domain.FeedbackAccept, 3, 0.9)
	addRows(fs, 1, "Climate", domain.FeedbackMaybe, 1, 0.5)
	addRows(fs, 2, "Tax", domain.FeedbackReject, 2, 0.3)

	got, err := svc.CategoryAcceptance(context.Background(), 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 || got[0].CategoryID != 1 {
		t.Fatalf("expected most judged category first, got %+v", got)
	}
	if got[0].AcceptanceRate != 75 || got[0].Maybes != 1 {
		t.Errorf("expected maybe to count against acceptance, got %+v", got[0])
	}
	if got[1].AcceptanceRate != 0 || got[1].Rejects != 2 {
		t.Errorf("unexpected tally %+v", got[1])
	}
}

func TestLearningService_LearningReport(t *testing.T) {
	svc, fs, _ := setupAnalyticsTest()

	addRows(fs, 1, "Climate", domain.FeedbackAccept, 4, 0.9, withRating(5))
	addRows(fs, 1, "Climate", domain.FeedbackReject, 1, 0.4, withRating(4))
	addRows(fs, 2, "Tax", domain.FeedbackAccept, 1, 0.5)
	addRows(fs, 2, "Tax", domain.FeedbackReject, 5, 0.3)
	addRows(fs, 3, "Guns", domain.FeedbackReject, 2, 0.2)

	r, err := svc.LearningReport(context.Background(), 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(r.TopPerformers) != 2 || r.TopPerformers[0].CategoryID != 1 || r.TopPerformers[1].CategoryID != 2 {
		t.Fatalf("expected categories with at least 5 rows by acceptance, got %+v", r.TopPerformers)
	}
	if len(r.NeedsAttention) != 1 || r.NeedsAttention[0].CategoryID != 2 {
		t.Fatalf("expected Tax to need attention, got %+v", r.NeedsAttention)
	}

	st := r.OverallStats
	if st.TotalSessions != 2 || st.TotalInteractions != 7 || st.TotalFeedback != 13 || st.TotalAccepts != 5 {
		t.Errorf("unexpected overall stats %+v", st)
	}
	if st.AvgUserRating == nil || *st.AvgUserRating != 4.8 {
		t.Errorf("expected avg rating 4.8, got %v", st.AvgUserRating)
	}

	want := []string{
		"Users are highly satisfied with category matches (avg rating: 4.8/5)",
		"'Climate' is your best performing category (80.0% acceptance)",
		"'Tax' needs attention (16.7% acceptance)",
	}
	if !reflect.DeepEqual(r.Insights, want) {
		t.Errorf("expected insights %q, got %q", want, r.Insights)
	}
}

func TestLearningService_LearningReport_RatingBands(t *testing.T) {
	tests := []struct {
		rating int
		want   string
	}{
		{3, "User satisfaction is good"},
		{2, "User satisfaction is low"},
	}
	for _, tt := range tests {
		svc, fs, _ := setupAnalyticsTest()
		addRows(fs, 1, "Climate", domain.FeedbackAccept, 1, 0.9, withRating(tt.rating))

		r, err := svc.LearningReport(context.Background(), 30)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(r.Insights) != 1 || !strings.HasPrefix(r.Insights[0], tt.want) {
			t.Errorf("rating %d: expected %q, got %q", tt.rating, tt.want, r.Insights)
		}
	}
}

func TestLearningService_FeedbackAnalytics(t *testing.T) {
	svc, fs, as := setupAnalyticsTest()
	as.sessions = []domain.SessionActivity{{SessionID: "s-1", InteractionCount: 3}}

	addRows(fs, 1, "Climate", domain.FeedbackAccept, 3, 0.9)
	addRows(fs, 2, "Tax", domain.FeedbackReject, 1, 0.3)

	got, err := svc.FeedbackAnalytics(context.Background(), 14)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.PeriodDays != 14 || len(got.SessionActivity) != 1 || as.lastLimit != DefaultSessionLimit {
		t.Fatalf("unexpected report %+v (limit %d)", got, as.lastLimit)
	}
	sum := got.Summary
	if sum.CategoriesWithFeedback != 2 || sum.TotalFeedbackItems != 4 || sum.CategoriesNeedingAttention != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.AvgAcceptanceRate != 50 {
		t.Errorf("expected avg acceptance 50, got %f", sum.AvgAcceptanceRate)
	}
	if len(got.FeedbackTrends) != 2 || len(got.CategoryPerformance) != 2 {
		t.Errorf("expected trends and performance for both categories, got %+v", got)
	}
}

func TestLearningService_ActivityErrors(t *testing.T) {
	svc, _, _ := setupLearningTest()
	ctx := context.Background()

	if _, err := svc.SessionActivity(ctx, 30, 10); !errors.Is(err, ErrActivityUnavailable) {
		t.Errorf("expected ErrActivityUnavailable, got %v", err)
	}
	if _, err := svc.OverallStats(ctx, 30); !errors.Is(err, ErrActivityUnavailable) {
		t.Errorf("expected ErrActivityUnavailable, got %v", err)
	}

	as := &mockActivityStore{fail: errors.New("db down")}
	svc.SetActivityStore(as)
	if _, err := svc.FeedbackAnalytics(ctx, 30); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("expected store error, got %v", err)
	}
	if _, err := svc.SessionActivity(ctx, 0, 10); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestLearningService_SessionActivity(t *testing.T) {
	svc, _, as := setupAnalyticsTest()
	as.sessions = []domain.SessionActivity{{SessionID: "a"}, {SessionID: "b"}, {SessionID: "c"}}

	got, err := svc.SessionActivity(context.Background(), 7, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "a" {
		t.Errorf("expected first two sessions, got %+v", got)
	}
	if age := time.Since(as.lastSince); age < 7*24*time.Hour-time.Minute || age > 7*24*time.Hour+time.Minute {
		t.Errorf("expected a 7 day cutoff, got %v", age)
	}
}

func usageCategories() []domain.Category {
	c1 := category(1, "Climate Action", domain.CategoryTypeIssue, "climate")
	c1.SuccessCount, c1.TotalUsageCount = 9, 10
	c2 := category(2, "Tax Policy", domain.CategoryTypePolicy, "tax")
	c2.SuccessCount, c2.TotalUsageCount = 3, 20
	c3 := category(3, "Gun Rights", domain.CategoryTypeIssue, "guns")
	return []domain.Category{c1, c2, c3}
}

func TestLearningService_UsageAnalytics(t *testing.T) {
	svc, _, _ := setupLearningTest()
	svc.SetCatalog(newTestCatalog(newTermEmbedder(testVocab...), usageCategories()...))

	got, err := svc.UsageAnalytics(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.TotalCategories != 3 || got.AvgSuccessRate != 0.35 {
		t.Errorf("unexpected totals %+v", got)
	}
	if got.MostSuccessfulCategory != "Climate Action" || got.LeastSuccessfulCategory != "Gun Rights" {
		t.Errorf("unexpected best/worst %+v", got)
	}
	if !reflect.DeepEqual(got.CategoriesNeedingAttention, []string{"Tax Policy"}) {
		t.Errorf("expected Tax Policy to need attention, got %v", got.CategoriesNeedingAttention)
	}

	svc.SetCatalog(catalog.New(newTermEmbedder("a"), zap.NewNop(), nil))
	if _, err := svc.UsageAnalytics(context.Background()); !errors.Is(err, ErrCategoriesNotLoaded) {
		t.Errorf("expected ErrCategoriesNotLoaded, got %v", err)
	}
}

func TestLearningService_UsagePerformance(t *testing.T) {
	svc, fs, _ := setupLearningTest()
	svc.SetCatalog(newTestCatalog(newTermEmbedder(testVocab...), usageCategories()...))

	addRows(fs, 1, "Climate Action", domain.FeedbackAccept, 4, 0.8)
	addRows(fs, 1, "Climate Action", domain.FeedbackReject, 4, 0.4, withAge(10*24*time.Hour))
	addRows(fs, 2, "Tax Policy", domain.FeedbackAccept, 2, 0.6, withAge(9*24*time.Hour))

	got, err := svc.UsagePerformance(context.Background(), SortByUsage, "desc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ids := []int{got[0].CategoryID, got[1].CategoryID, got[2].CategoryID}
	if !reflect.DeepEqual(ids, []int{2, 1, 3}) {
		t.Fatalf("expected usage order [2 1 3], got %v", ids)
	}

	climate := got[1]
	if climate.Trend7Days != domain.TrendImproving {
		t.Errorf("expected improving trend, got %s", climate.Trend7Days)
	}
	if climate.LastUsed == nil || time.Since(*climate.LastUsed) > time.Minute {
		t.Errorf("expected recent last_used, got %v", climate.LastUsed)
	}
	if climate.AvgConfidence == nil || *climate.AvgConfidence != 0.8 {
		t.Errorf("expected avg confidence from the last week, got %v", climate.AvgConfidence)
	}
	if got[0].Trend7Days != domain.TrendStable || got[0].AvgConfidence != nil {
		t.Errorf("expected stable trend without recent feedback, got %+v", got[0])
	}
	if got[2].LastUsed != nil || got[2].SuccessRate != 0 {
		t.Errorf("expected unused category without signals, got %+v", got[2])
	}

	got, err = svc.UsagePerformance(context.Background(), SortByName, "asc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got[0].CategoryName != "Climate Action" || got[2].CategoryName != "Tax Policy" {
		t.Errorf("expected name order, got %s..%s", got[0].CategoryName, got[2].CategoryName)
	}

	got, err = svc.UsagePerformance(context.Background(), "", "")
	if err != nil || got[0].CategoryID != 1 {
		t.Errorf("expected success rate desc by default, got %+v, %v", got, err)
	}

	for _, tt := range [][2]string{{"color", "asc"}, {SortByName, "sideways"}} {
		if _, err := svc.UsagePerformance(context.Background(), tt[0], tt[1]); !errors.Is(err, ErrInvalidSort) {
			t.Errorf("%v: expected ErrInvalidSort, got %v", tt, err)
		}
	}
}

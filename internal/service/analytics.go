package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/voterprime/catmatch/internal/domain"
)

var (
	ErrInvalidSort         = errors.New("sort_by must be success_rate, usage or name and order asc or desc")
	ErrActivityUnavailable = errors.New("activity analytics not configured")
	ErrCategoriesNotLoaded = errors.New("categories not loaded")
)

const (
	// DefaultSessionLimit is how many sessions the analytics report lists.
	DefaultSessionLimit = 20

	reportMinFeedback      = 5
	reportSampleSize       = 5
	attentionAcceptance    = 50.0
	usageAttentionRate     = 0.6
	usageAttentionMinUsage = 10
	trendWindowDays        = 7
	trendMinDelta          = 0.05
)

const (
	SortBySuccessRate = "success_rate"
	SortByUsage       = "usage"
	SortByName        = "name"
)

// categoryLister is the view of the live catalog used by usage analytics.
type categoryLister interface {
	Loaded() bool
	All() []domain.Category
}

// SetActivityStore enables session activity and overall stats.
func (s *LearningService) SetActivityStore(a domain.ActivityStore) {
	s.activity = a
}

// SetCatalog enables usage analytics over the live categories.
func (s *LearningService) SetCatalog(c categoryLister) {
	s.catalog = c
}

// FeedbackTrends tallies feedback per UTC day and category, newest day
// first.
func (s *LearningService) FeedbackTrends(ctx context.Context, days int) ([]domain.FeedbackTrend, error) {
	rows, err := s.feedbackSince(ctx, days)
	if err != nil {
		return nil, err
	}
	return feedbackTrends(rows), nil
}

// CategoryAcceptance tallies feedback per category, most judged first.
func (s *LearningService) CategoryAcceptance(ctx context.Context, days int) ([]domain.CategoryAcceptance, error) {
	rows, err := s.feedbackSince(ctx, days)
	if err != nil {
		return nil, err
	}
	return categoryAcceptance(rows), nil
}

// SessionActivity lists up to limit sessions active in the period.
func (s *LearningService) SessionActivity(ctx context.Context, days, limit int) ([]domain.SessionActivity, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	if s.activity == nil {
		return nil, ErrActivityUnavailable
	}
	out, err := s.activity.SessionActivity(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list session activity: %w", err)
	}
	if out == nil {
		out = []domain.SessionActivity{}
	}
	return out, nil
}

// OverallStats counts sessions, interactions and feedback in the period.
func (s *LearningService) OverallStats(ctx context.Context, days int) (*domain.OverallStats, error) {
	rows, err := s.feedbackSince(ctx, days)
	if err != nil {
		return nil, err
	}
	return s.overallStats(ctx, days, rows)
}

func (s *LearningService) overallStats(ctx context.Context, days int, rows []domain.FeedbackItem) (*domain.OverallStats, error) {
	if s.activity == nil {
		return nil, ErrActivityUnavailable
	}
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	counts, err := s.activity.CountActivity(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count activity: %w", err)
	}

	st := &domain.OverallStats{
		PeriodDays:        days,
		TotalSessions:     counts.Sessions,
		TotalInteractions: counts.Interactions,
		TotalFeedback:     len(rows),
	}
	var ratingSum, ratings int
	for _, it := range rows {
		if it.FeedbackType == domain.FeedbackAccept {
			st.TotalAccepts++
		}
		if it.UserRating != nil {
			ratingSum += *it.UserRating
			ratings++
		}
	}
	if ratings > 0 {
		v := round(float64(ratingSum)/float64(ratings), 2)
		st.AvgUserRating = &v
	}
	return st, nil
}

// LearningReport picks the best and worst categories by acceptance and
// phrases a few plain-language insights.
func (s *LearningService) LearningReport(ctx context.Context, days int) (*domain.LearningReport, error) {
	rows, err := s.feedbackSince(ctx, days)
	if err != nil {
		return nil, err
	}
	st, err := s.overallStats(ctx, days, rows)
	if err != nil {
		return nil, err
	}
	return learningReport(categoryAcceptance(rows), st), nil
}

// FeedbackAnalytics bundles every feedback analysis of the period into one
// report.
func (s *LearningService) FeedbackAnalytics(ctx context.Context, days int) (*domain.FeedbackAnalytics, error) {
	rows, err := s.feedbackSince(ctx, days)
	if err != nil {
		return nil, err
	}
	st, err := s.overallStats(ctx, days, rows)
	if err != nil {
		return nil, err
	}
	sessions, err := s.SessionActivity(ctx, days, DefaultSessionLimit)
	if err != nil {
		return nil, err
	}

	perf := categoryAcceptance(rows)
	out := &domain.FeedbackAnalytics{
		PeriodDays:          days,
		CategoryPerformance: perf,
		FeedbackTrends:      feedbackTrends(rows),
		SessionActivity:     sessions,
		LearningInsights:    *learningReport(perf, st),
		Summary: domain.AnalyticsTotals{
			CategoriesWithFeedback: len(perf),
			TotalFeedbackItems:     len(rows),
		},
	}
	var rateSum float64
	for _, p := range perf {
		rateSum += p.AcceptanceRate
		if p.AcceptanceRate < attentionAcceptance {
			out.Summary.CategoriesNeedingAttention++
		}
	}
	if len(perf) > 0 {
		out.Summary.AvgAcceptanceRate = round(rateSum/float64(len(perf)), 1)
	}
	return out, nil
}

// UsageAnalytics summarises the lifetime usage counters of the live
// categories. Unused categories count with a success rate of 0.
func (s *LearningService) UsageAnalytics(ctx context.Context) (*domain.UsageAnalytics, error) {
	cats, err := s.liveCategories()
	if err != nil {
		return nil, err
	}

	out := &domain.UsageAnalytics{
		TotalCategories:            len(cats),
		CategoriesNeedingAttention: []string{},
	}
	if len(cats) == 0 {
		return out, nil
	}

	var sum float64
	best, worst := 0, 0
	rates := make([]float64, len(cats))
	for i := range cats {
		rates[i] = usageRate(&cats[i])
		sum += rates[i]
		if rates[i] > rates[best] {
			best = i
		}
		if rates[i] < rates[worst] {
			worst = i
		}
		if rates[i] < usageAttentionRate && cats[i].TotalUsageCount > usageAttentionMinUsage {
			out.CategoriesNeedingAttention = append(out.CategoriesNeedingAttention, cats[i].Name)
		}
	}
	out.AvgSuccessRate = round(sum/float64(len(cats)), 3)
	out.MostSuccessfulCategory = cats[best].Name
	out.LeastSuccessfulCategory = cats[worst].Name
	return out, nil
}

// UsagePerformance lists every live category with its usage counters and
// the last week's feedback trend.
func (s *LearningService) UsagePerformance(ctx context.Context, sortBy, order string) ([]domain.CategoryUsage, error) {
	less, err := usageOrder(sortBy, order)
	if err != nil {
		return nil, err
	}
	cats, err := s.liveCategories()
	if err != nil {
		return nil, err
	}
	rows, err := s.feedbackSince(ctx, 2*trendWindowDays)
	if err != nil {
		return nil, err
	}

	type signal struct {
		recent, prior categoryTally
		lastUsed      time.Time
		confSum       float64
		confCount     int
	}
	cutoff := s.now().Add(-trendWindowDays * 24 * time.Hour)
	signals := make(map[int]*signal)
	for _, it := range rows {
		sg, ok := signals[it.CategoryID]
		if !ok {
			sg = &signal{}
			signals[it.CategoryID] = sg
		}
		if it.CreatedAt.After(sg.lastUsed) {
			sg.lastUsed = it.CreatedAt
		}
		if it.CreatedAt.Before(cutoff) {
			sg.prior.add(it)
			continue
		}
		sg.recent.add(it)
		sg.confSum += it.ConfidenceScore
		sg.confCount++
	}

	out := make([]domain.CategoryUsage, len(cats))
	for i := range cats {
		c := &cats[i]
		u := domain.CategoryUsage{
			CategoryID:   c.ID,
			CategoryName: c.Name,
			Type:         c.Type,
			SuccessRate:  round(usageRate(c), 3),
			TotalUsage:   c.TotalUsageCount,
			SuccessCount: c.SuccessCount,
			Trend7Days:   domain.TrendStable,
		}
		if sg, ok := signals[c.ID]; ok {
			u.Trend7Days = usageTrend(&sg.recent, &sg.prior)
			last := sg.lastUsed
			u.LastUsed = &last
			if sg.confCount > 0 {
				v := round(sg.confSum/float64(sg.confCount), 3)
				u.AvgConfidence = &v
			}
		}
		out[i] = u
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out, nil
}

func (s *LearningService) feedbackSince(ctx context.Context, days int) ([]domain.FeedbackItem, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	rows, err := s.feedbackStore.ListSince(ctx, since, nil)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return rows, nil
}

func (s *LearningService) liveCategories() ([]domain.Category, error) {
	if s.catalog == nil || !s.catalog.Loaded() {
		return nil, ErrCategoriesNotLoaded
	}
	return s.catalog.All(), nil
}

func usageRate(c *domain.Category) float64 {
	if c.TotalUsageCount <= 0 {
		return 0
	}
	return float64(c.SuccessCount) / float64(c.TotalUsageCount)
}

// usageTrend compares the success rate of the last week with the week
// before. A week without feedback leaves the trend stable.
func usageTrend(recent, prior *categoryTally) domain.UsageTrend {
	if recent.total == 0 || prior.total == 0 {
		return domain.TrendStable
	}
	delta := recent.successRate() - prior.successRate()
	switch {
	case delta > trendMinDelta:
		return domain.TrendImproving
	case delta < -trendMinDelta:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func usageOrder(sortBy, order string) (func(a, b *domain.CategoryUsage) bool, error) {
	if sortBy == "" {
		sortBy = SortBySuccessRate
	}
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, ErrInvalidSort
	}

	var key func(a, b *domain.CategoryUsage) int
	switch sortBy {
	case SortBySuccessRate:
		key = func(a, b *domain.CategoryUsage) int { return compareFloat(a.SuccessRate, b.SuccessRate) }
	case SortByUsage:
		key = func(a, b *domain.CategoryUsage) int { return a.TotalUsage - b.TotalUsage }
	case SortByName:
		key = func(a, b *domain.CategoryUsage) int {
			return strings.Compare(strings.ToLower(a.CategoryName), strings.ToLower(b.CategoryName))
		}
	default:
		return nil, ErrInvalidSort
	}

	desc := order == "desc"
	return func(a, b *domain.CategoryUsage) bool {
		c := key(a, b)
		if c == 0 {
			return a.CategoryID < b.CategoryID
		}
		if desc {
			return c > 0
		}
		return c < 0
	}, nil
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type trendKey struct {
	day string
	id  int
}

func feedbackTrends(rows []domain.FeedbackItem) []domain.FeedbackTrend {
	tallies := make(map[trendKey]*acceptanceTally)
	for _, it := range rows {
		k := trendKey{day: it.CreatedAt.UTC().Format(time.DateOnly), id: it.CategoryID}
		t, ok := tallies[k]
		if !ok {
			t = &acceptanceTally{name: it.CategoryName}
			tallies[k] = t
		}
		t.add(it)
	}

	out := make([]domain.FeedbackTrend, 0, len(tallies))
	for k, t := range tallies {
		out = append(out, domain.FeedbackTrend{
			Date:          k.day,
			CategoryID:    k.id,
			CategoryName:  t.name,
			TotalFeedback: t.total,
			Accepts:       t.breakdown.Accepts,
			Rejects:       t.breakdown.Rejects,
			Maybes:        t.breakdown.Maybes,
			Irrelevant:    t.breakdown.Irrelevant,
			AvgConfidence: round(t.confSum/float64(t.total), 3),
			AvgRating:     t.avgRating(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

type acceptanceTally struct {
	categoryTally
	name      string
	breakdown domain.FeedbackBreakdown
}

func (t *acceptanceTally) add(it domain.FeedbackItem) {
	t.categoryTally.add(it)
	switch it.FeedbackType {
	case domain.FeedbackAccept:
		t.breakdown.Accepts++
	case domain.FeedbackReject:
		t.breakdown.Rejects++
	case domain.FeedbackMaybe:
		t.breakdown.Maybes++
	case domain.FeedbackIrrelevant:
		t.breakdown.Irrelevant++
	}
}

func categoryAcceptance(rows []domain.FeedbackItem) []domain.CategoryAcceptance {
	tallies := make(map[int]*acceptanceTally)
	for _, it := range rows {
		t, ok := tallies[it.CategoryID]
		if !ok {
			t = &acceptanceTally{name: it.CategoryName}
			t.id = it.CategoryID
			tallies[it.CategoryID] = t
		}
		t.add(it)
	}

	out := make([]domain.CategoryAcceptance, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, domain.CategoryAcceptance{
			CategoryID:     t.id,
			CategoryName:   t.name,
			TotalFeedback:  t.total,
			Accepts:        t.breakdown.Accepts,
			Rejects:        t.breakdown.Rejects,
			Maybes:         t.breakdown.Maybes,
			Irrelevant:     t.breakdown.Irrelevant,
			AcceptanceRate: round(float64(t.breakdown.Accepts)*100/float64(t.total), 1),
			AvgConfidence:  round(t.confSum/float64(t.total), 3),
			AvgRating:      t.avgRating(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalFeedback != out[j].TotalFeedback {
			return out[i].TotalFeedback > out[j].TotalFeedback
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

func learningReport(perf []domain.CategoryAcceptance, st *domain.OverallStats) *domain.LearningReport {
	var eligible []domain.CategoryAcceptance
	for _, p := range perf {
		if p.TotalFeedback >= reportMinFeedback {
			eligible = append(eligible, p)
		}
	}

	top := append([]domain.CategoryAcceptance(nil), eligible...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].AcceptanceRate > top[j].AcceptanceRate })

	// perf is already ordered by total feedback.
	attention := []domain.CategoryAcceptance{}
	for _, p := range eligible {
		if p.AcceptanceRate < attentionAcceptance {
			attention = append(attention, p)
		}
	}

	r := &domain.LearningReport{
		TopPerformers:  head(top, reportSampleSize),
		NeedsAttention: head(attention, reportSampleSize),
		OverallStats:   *st,
		Insights:       []string{},
	}
	if r.TopPerformers == nil {
		r.TopPerformers = []domain.CategoryAcceptance{}
	}

	if st.AvgUserRating != nil {
		rating := *st.AvgUserRating
		switch {
		case rating >= 4:
			r.Insights = append(r.Insights, fmt.Sprintf("Users are highly satisfied with category matches (avg rating: %.1f/5)", rating))
		case rating >= 3:
			r.Insights = append(r.Insights, fmt.Sprintf("User satisfaction is good but has room for improvement (avg rating: %.1f/5)", rating))
		default:
			r.Insights = append(r.Insights, fmt.Sprintf("User satisfaction is low, review category matching (avg rating: %.1f/5)", rating))
		}
	}
	if len(r.TopPerformers) > 0 {
		best := r.TopPerformers[0]
		r.Insights = append(r.Insights, fmt.Sprintf("'%s' is your best performing category (%.1f%% acceptance)", best.CategoryName, best.AcceptanceRate))
	}
	if len(r.NeedsAttention) > 0 {
		worst := r.NeedsAttention[0]
		r.Insights = append(r.Insights, fmt.Sprintf("'%s' needs attention (%.1f%% acceptance)", worst.CategoryName, worst.AcceptanceRate))
	}
	return r
}

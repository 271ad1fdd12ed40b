package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voterprime/catmatch/internal/domain"
	"go.uber.org/zap"
)

var ErrInvalidPeriod = errors.New("days must be between 1 and 365")

const (
	maxPeriodDays = 365

	topRejectionReasons   = 5
	topRejectionPatterns  = 10
	topMissingThemes      = 10
	lowConfidenceSample   = 100
	minThemeWordLength    = 4
	insightsSampleSize    = 5
	lowAvgConfidenceLimit = 0.5

	// Defaults used by Insights.
	insightsSuccessThreshold    = 0.5
	insightsMinSamples          = 5
	insightsConfidenceThreshold = 0.5
	insightsFrequencyThreshold  = 3
)

type LearningService struct {
	feedbackStore domain.FeedbackStore
	metricStore   domain.LearningMetricStore
	activity      domain.ActivityStore
	catalog       categoryLister
	logger        *zap.Logger
	now           func() time.Time
}

func NewLearningService(fs domain.FeedbackStore, ms domain.LearningMetricStore, logger *zap.Logger) *LearningService {
	return &LearningService{
		feedbackStore: fs,
		metricStore:   ms,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *LearningService) since(days int) (time.Time, error) {
	if days < 1 || days > maxPeriodDays {
		return time.Time{}, ErrInvalidPeriod
	}
	return s.now().Add(-time.Duration(days) * 24 * time.Hour), nil
}

type categoryTally struct {
	id         int
	name       string
	total      int
	successful int
	confSum    float64
	ratingSum  int
	ratings    int
}

func (t *categoryTally) add(it domain.FeedbackItem) {
	t.total++
	if it.FeedbackType.IsSuccess() {
		t.successful++
	}
	t.confSum += it.ConfidenceScore
	if it.UserRating != nil {
		t.ratingSum += *it.UserRating
		t.ratings++
	}
}

func (t *categoryTally) successRate() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.successful) / float64(t.total)
}

func (t *categoryTally) avgRating() *float64 {
	if t.ratings == 0 {
		return nil
	}
	v := round(float64(t.ratingSum)/float64(t.ratings), 2)
	return &v
}

// IdentifyUnderperforming returns categories with at least minSamples
// feedback rows whose success rate is below threshold, worst first.
func (s *LearningService) IdentifyUnderperforming(ctx context.Context, threshold float64, minSamples, days int) ([]domain.UnderperformingCategory, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	rows, err := s.feedbackStore.ListSince(ctx, since, nil)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	tallies := make(map[int]*categoryTally)
	for _, it := range rows {
		t, ok := tallies[it.CategoryID]
		if !ok {
			t = &categoryTally{id: it.CategoryID, name: it.CategoryName}
			tallies[it.CategoryID] = t
		}
		t.add(it)
	}

	out := []domain.UnderperformingCategory{}
	for _, t := range tallies {
		rate := t.successRate()
		if t.total < minSamples || rate >= threshold {
			continue
		}
		out = append(out, domain.UnderperformingCategory{
			CategoryID:    t.id,
			CategoryName:  t.name,
			TotalFeedback: t.total,
			Successful:    t.successful,
			SuccessRate:   round(rate, 3),
			AvgRating:     t.avgRating(),
			AvgConfidence: round(t.confSum/float64(t.total), 3),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate < out[j].SuccessRate
		}
		if out[i].TotalFeedback != out[j].TotalFeedback {
			return out[i].TotalFeedback > out[j].TotalFeedback
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

// PerformanceSummary reports feedback counts, rates and templated
// recommendations for one category. A category without feedback yields a
// summary with HasData false.
func (s *LearningService) PerformanceSummary(ctx context.Context, categoryID, days int) (*domain.PerformanceSummary, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	rows, err := s.feedbackStore.ListSince(ctx, since, &categoryID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	sum := &domain.PerformanceSummary{
		CategoryID:       categoryID,
		PeriodDays:       days,
		RejectionReasons: []domain.ReasonCount{},
		Recommendations:  []string{},
	}
	if len(rows) == 0 {
		sum.Status = domain.PerformanceNoData
		return sum, nil
	}

	t := &categoryTally{id: categoryID}
	reasons := newCounter()
	for _, it := range rows {
		t.add(it)
		switch it.FeedbackType {
		case domain.FeedbackAccept:
			sum.Breakdown.Accepts++
		case domain.FeedbackReject:
			sum.Breakdown.Rejects++
		case domain.FeedbackMaybe:
			sum.Breakdown.Maybes++
		case domain.FeedbackIrrelevant:
			sum.Breakdown.Irrelevant++
		}
		if it.FeedbackType.IsRejection() && it.FeedbackReason != nil && strings.TrimSpace(*it.FeedbackReason) != "" {
			reasons.add(strings.TrimSpace(*it.FeedbackReason))
		}
	}

	rate := t.successRate()
	avgConf := t.confSum / float64(t.total)
	irrelevantRate := float64(sum.Breakdown.Irrelevant) / float64(t.total)

	sum.HasData = true
	sum.TotalFeedback = t.total
	sum.SuccessRate = round(rate, 3)
	sum.AvgConfidence = round(avgConf, 3)
	sum.AvgRating = t.avgRating()
	for _, e := range reasons.top(topRejectionReasons) {
		sum.RejectionReasons = append(sum.RejectionReasons, domain.ReasonCount{Reason: e.key, Count: e.count})
	}
	sum.Status = performanceStatus(rate)
	sum.Recommendations = recommendations(rate, irrelevantRate, avgConf)
	return sum, nil
}

func performanceStatus(rate float64) domain.PerformanceStatus {
	switch {
	case rate >= 0.7:
		return domain.PerformanceExcellent
	case rate >= 0.5:
		return domain.PerformanceGood
	case rate >= 0.3:
		return domain.PerformanceNeedsImprovement
	default:
		return domain.PerformancePoor
	}
}

func recommendations(rate, irrelevantRate, avgConf float64) []string {
	recs := []string{}
	if rate < 0.3 {
		recs = append(recs,
			"Consider reviewing and updating category keywords",
			"Category may be too broad or too narrow")
	}
	if rate < 0.5 {
		recs = append(recs, "Review recent rejected matches for patterns")
	}
	if irrelevantRate > 0.3 {
		recs = append(recs, "High irrelevant rate - category definition may need clarification")
	}
	if avgConf < lowAvgConfidenceLimit {
		recs = append(recs, "Low confidence scores - improve keyword matching")
	}
	if len(recs) == 0 {
		recs = append(recs, "Performance is good - continue monitoring")
	}
	return recs
}

// AnalyzeRejectionPatterns groups reject and irrelevant feedback by category.
// A nil categoryID covers every category.
func (s *LearningService) AnalyzeRejectionPatterns(ctx context.Context, categoryID *int, days int) ([]domain.RejectionPattern, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	rows, err := s.feedbackStore.ListSince(ctx, since, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	type group struct {
		pattern domain.RejectionPattern
		confSum float64
		seen    map[string]bool
		order   int
	}
	groups := make(map[int]*group)
	for _, it := range rows {
		if !it.FeedbackType.IsRejection() {
			continue
		}
		g, ok := groups[it.CategoryID]
		if !ok {
			g = &group{
				pattern: domain.RejectionPattern{
					CategoryID:   it.CategoryID,
					CategoryName: it.CategoryName,
					Reasons:      []string{},
				},
				seen:  make(map[string]bool),
				order: len(groups),
			}
			groups[it.CategoryID] = g
		}
		g.pattern.RejectionCount++
		g.confSum += it.ConfidenceScore
		if it.FeedbackReason == nil {
			continue
		}
		if r := strings.TrimSpace(*it.FeedbackReason); r != "" && !g.seen[r] {
			g.seen[r] = true
			g.pattern.Reasons = append(g.pattern.Reasons, r)
		}
	}

	list := make([]*group, 0, len(groups))
	for _, g := range groups {
		g.pattern.AvgConfidence = round(g.confSum/float64(g.pattern.RejectionCount), 3)
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].pattern.RejectionCount != list[j].pattern.RejectionCount {
			return list[i].pattern.RejectionCount > list[j].pattern.RejectionCount
		}
		return list[i].order < list[j].order
	})
	if len(list) > topRejectionPatterns {
		list = list[:topRejectionPatterns]
	}

	out := make([]domain.RejectionPattern, len(list))
	for i, g := range list {
		out[i] = g.pattern
	}
	return out, nil
}

// IdentifyMissingCategories mines frequent words from inputs that only
// produced low-confidence matches. It is a plain word-frequency heuristic.
func (s *LearningService) IdentifyMissingCategories(ctx context.Context, confidenceThreshold float64, frequencyThreshold, days int) ([]domain.MissingCategoryTheme, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	inputs, err := s.feedbackStore.LowConfidenceInputs(ctx, confidenceThreshold, since, lowConfidenceSample)
	if err != nil {
		return nil, fmt.Errorf("list low confidence inputs: %w", err)
	}

	words := newCounter()
	for _, in := range inputs {
		for _, w := range strings.Fields(strings.ToLower(in.UserInput)) {
			words.add(w)
		}
	}

	out := []domain.MissingCategoryTheme{}
	for _, e := range words.top(topMissingThemes) {
		if e.count < frequencyThreshold || utf8.RuneCountInString(e.key) < minThemeWordLength {
			continue
		}
		out = append(out, domain.MissingCategoryTheme{
			Theme:      e.key,
			Frequency:  e.count,
			Suggestion: fmt.Sprintf("Consider creating category related to '%s'", e.key),
		})
	}
	return out, nil
}

// RecomputeMetrics recalculates and upserts the daily metrics of a category.
// avg_rating is skipped when no row carries a rating.
func (s *LearningService) RecomputeMetrics(ctx context.Context, categoryID, days int) ([]domain.LearningMetric, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	rows, err := s.feedbackStore.ListSince(ctx, since, &categoryID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if len(rows) == 0 {
		return []domain.LearningMetric{}, nil
	}

	var successful, ratingSum, ratings int
	var successConf float64
	for _, it := range rows {
		if it.FeedbackType.IsSuccess() {
			successful++
			successConf += it.ConfidenceScore
		}
		if it.UserRating != nil {
			ratingSum += *it.UserRating
			ratings++
		}
	}

	now := s.now()
	metrics := []domain.LearningMetric{{
		CategoryID:   categoryID,
		MetricType:   domain.MetricSuccessRate,
		MetricValue:  float64(successful) / float64(len(rows)),
		SampleSize:   len(rows),
		TimePeriod:   domain.TimePeriodDaily,
		CalculatedAt: now,
	}}
	if successful > 0 {
		metrics = append(metrics, domain.LearningMetric{
			CategoryID:   categoryID,
			MetricType:   domain.MetricAvgConfidence,
			MetricValue:  successConf / float64(successful),
			SampleSize:   successful,
			TimePeriod:   domain.TimePeriodDaily,
			CalculatedAt: now,
		})
	}
	if ratings > 0 {
		metrics = append(metrics, domain.LearningMetric{
			CategoryID:   categoryID,
			MetricType:   domain.MetricAvgRating,
			MetricValue:  float64(ratingSum) / float64(ratings),
			SampleSize:   ratings,
			TimePeriod:   domain.TimePeriodDaily,
			CalculatedAt: now,
		})
	}

	for i := range metrics {
		if err := s.metricStore.Upsert(ctx, &metrics[i]); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", metrics[i].MetricType, err)
		}
	}

	s.logger.Debug("recomputed learning metrics",
		zap.Int("category_id", categoryID),
		zap.Int("samples", len(rows)))
	return metrics, nil
}

// MetricsHistory returns the stored daily metrics of a category, newest
// first.
func (s *LearningService) MetricsHistory(ctx context.Context, categoryID, days int) ([]domain.LearningMetric, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	metrics, err := s.metricStore.ListByCategory(ctx, categoryID, since)
	if err != nil {
		return nil, fmt.Errorf("list learning metrics: %w", err)
	}
	if metrics == nil {
		metrics = []domain.LearningMetric{}
	}
	return metrics, nil
}

// Insights combines the analyses into one report with system level
// recommendations.
func (s *LearningService) Insights(ctx context.Context, days int) (*domain.Insights, error) {
	under, err := s.IdentifyUnderperforming(ctx, insightsSuccessThreshold, insightsMinSamples, days)
	if err != nil {
		return nil, err
	}
	patterns, err := s.AnalyzeRejectionPatterns(ctx, nil, days)
	if err != nil {
		return nil, err
	}
	missing, err := s.IdentifyMissingCategories(ctx, insightsConfidenceThreshold, insightsFrequencyThreshold, days)
	if err != nil {
		return nil, err
	}

	ins := &domain.Insights{
		PeriodDays: days,
		Summary: domain.InsightsSummary{
			UnderperformingCount: len(under),
			RejectionPatterns:    len(patterns),
			MissingThemes:        len(missing),
		},
		UnderperformingSample:   head(under, insightsSampleSize),
		RejectionPatternsSample: head(patterns, insightsSampleSize),
		MissingCategorySample:   head(missing, insightsSampleSize),
		Recommendations:         []domain.SystemRecommendation{},
	}

	if len(under) > 5 {
		ins.Recommendations = append(ins.Recommendations, domain.SystemRecommendation{
			Priority: domain.PriorityHigh,
			Action:   "review_categories",
			Message:  fmt.Sprintf("%d categories are underperforming and need review", len(under)),
		})
	}
	if len(missing) > 3 {
		ins.Recommendations = append(ins.Recommendations, domain.SystemRecommendation{
			Priority: domain.PriorityMedium,
			Action:   "add_categories",
			Message:  fmt.Sprintf("%d recurring themes have no matching category", len(missing)),
		})
	}
	if len(ins.Recommendations) == 0 {
		ins.Recommendations = append(ins.Recommendations, domain.SystemRecommendation{
			Priority: domain.PriorityLow,
			Action:   "monitor",
			Message:  "System performing well, continue monitoring",
		})
	}
	return ins, nil
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// counter counts keys and remembers first-seen order for ties.
type counter struct {
	counts map[string]int
	order  []string
}

type counterEntry struct {
	key   string
	count int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) top(n int) []counterEntry {
	out := make([]counterEntry, len(c.order))
	for i, k := range c.order {
		out[i] = counterEntry{key: k, count: c.counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return head(out, n)
}

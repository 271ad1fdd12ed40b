package domain

import "time"

type MetricType string

const (
	MetricSuccessRate   MetricType = "success_rate"
	MetricAvgConfidence MetricType = "avg_confidence"
	MetricAvgRating     MetricType = "avg_rating"
)

const TimePeriodDaily = "daily"

// LearningMetric is a derived per-category aggregate, upserted once per
// category, metric type and day.
type LearningMetric struct {
	CategoryID   int        `json:"category_id"`
	MetricType   MetricType `json:"metric_type"`
	MetricValue  float64    `json:"metric_value"`
	SampleSize   int        `json:"sample_size"`
	TimePeriod   string     `json:"time_period"`
	CalculatedAt time.Time  `json:"calculated_at"`
}

type UnderperformingCategory struct {
	CategoryID    int      `json:"category_id"`
	CategoryName  string   `json:"category_name"`
	TotalFeedback int      `json:"total_feedback"`
	Successful    int      `json:"successful"`
	SuccessRate   float64  `json:"success_rate"`
	AvgRating     *float64 `json:"avg_rating"`
	AvgConfidence float64  `json:"avg_confidence"`
}

type FeedbackBreakdown struct {
	Accepts    int `json:"accepts"`
	Rejects    int `json:"rejects"`
	Maybes     int `json:"maybes"`
	Irrelevant int `json:"irrelevant"`
}

type ReasonCount struct {
	Reason string `json:"feedback_reason"`
	Count  int    `json:"count"`
}

type PerformanceStatus string

const (
	PerformanceExcellent        PerformanceStatus = "excellent"
	PerformanceGood             PerformanceStatus = "good"
	PerformanceNeedsImprovement PerformanceStatus = "needs_improvement"
	PerformancePoor             PerformanceStatus = "poor"
	PerformanceNoData           PerformanceStatus = "no_data"
)

type PerformanceSummary struct {
	CategoryID       int               `json:"category_id"`
	PeriodDays       int               `json:"period_days"`
	HasData          bool              `json:"has_data"`
	TotalFeedback    int               `json:"total_feedback"`
	Breakdown        FeedbackBreakdown `json:"breakdown"`
	SuccessRate      float64           `json:"success_rate"`
	AvgConfidence    float64           `json:"avg_confidence"`
	AvgRating        *float64          `json:"avg_rating"`
	RejectionReasons []ReasonCount     `json:"rejection_reasons"`
	Status           PerformanceStatus `json:"status"`
	Recommendations  []string          `json:"recommendations"`
}

type RejectionPattern struct {
	CategoryID     int      `json:"category_id"`
	CategoryName   string   `json:"category_name"`
	RejectionCount int      `json:"rejection_count"`
	AvgConfidence  float64  `json:"avg_confidence"`
	Reasons        []string `json:"reasons"`
}

type MissingCategoryTheme struct {
	Theme      string `json:"theme"`
	Frequency  int    `json:"frequency"`
	Suggestion string `json:"suggestion"`
}

type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

type SystemRecommendation struct {
	Priority RecommendationPriority `json:"priority"`
	Action   string                 `json:"action"`
	Message  string                 `json:"message"`
}

type InsightsSummary struct {
	UnderperformingCount int `json:"underperforming_count"`
	RejectionPatterns    int `json:"rejection_patterns"`
	MissingThemes        int `json:"missing_themes"`
}

type Insights struct {
	PeriodDays              int                       `json:"period_days"`
	Summary                 InsightsSummary           `json:"summary"`
	UnderperformingSample   []UnderperformingCategory `json:"underperforming_categories"`
	RejectionPatternsSample []RejectionPattern        `json:"rejection_patterns"`
	MissingCategorySample   []MissingCategoryTheme    `json:"missing_categories"`
	Recommendations         []SystemRecommendation    `json:"recommendations"`
}

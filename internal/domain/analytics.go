package domain

import "time"

// FeedbackTrend is one day of feedback for one category. Days are UTC.
type FeedbackTrend struct {
	Date          string   `json:"date"`
	CategoryID    int      `json:"category_id"`
	CategoryName  string   `json:"category_name"`
	TotalFeedback int      `json:"total_feedback"`
	Accepts       int      `json:"accepts"`
	Rejects       int      `json:"rejects"`
	Maybes        int      `json:"maybes"`
	Irrelevant    int      `json:"irrelevant"`
	AvgConfidence float64  `json:"avg_confidence"`
	AvgRating     *float64 `json:"avg_rating"`
}

// SessionActivity summarises one session over a period. TotalInteractions
// is the lifetime count kept on the session row.
type SessionActivity struct {
	SessionID         string    `json:"session_id"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	InteractionCount  int       `json:"interaction_count"`
	TotalInteractions int       `json:"total_interactions"`
	FeedbackCount     int       `json:"total_feedback"`
	AvgRating         *float64  `json:"avg_rating"`
}

type ActivityCounts struct {
	Sessions     int
	Interactions int
}

type OverallStats struct {
	PeriodDays        int      `json:"period_days"`
	TotalSessions     int      `json:"total_sessions"`
	TotalInteractions int      `json:"total_interactions"`
	TotalFeedback     int      `json:"total_feedback"`
	TotalAccepts      int      `json:"total_accepts"`
	AvgUserRating     *float64 `json:"avg_user_rating"`
}

// CategoryAcceptance is the feedback tally of one category. AcceptanceRate
// is the share of accept judgments as a percentage.
type CategoryAcceptance struct {
	CategoryID     int      `json:"category_id"`
	CategoryName   string   `json:"category_name"`
	TotalFeedback  int      `json:"total_feedback"`
	Accepts        int      `json:"accepts"`
	Rejects        int      `json:"rejects"`
	Maybes         int      `json:"maybes"`
	Irrelevant     int      `json:"irrelevant"`
	AcceptanceRate float64  `json:"acceptance_rate"`
	AvgConfidence  float64  `json:"avg_confidence"`
	AvgRating      *float64 `json:"avg_rating"`
}

type LearningReport struct {
	TopPerformers  []CategoryAcceptance `json:"top_performers"`
	NeedsAttention []CategoryAcceptance `json:"needs_attention"`
	OverallStats   OverallStats         `json:"overall_stats"`
	Insights       []string             `json:"insights"`
}

type AnalyticsTotals struct {
	CategoriesWithFeedback     int     `json:"total_categories_with_feedback"`
	AvgAcceptanceRate          float64 `json:"avg_acceptance_rate"`
	TotalFeedbackItems         int     `json:"total_feedback_items"`
	CategoriesNeedingAttention int     `json:"categories_needing_attention"`
}

type FeedbackAnalytics struct {
	PeriodDays          int                  `json:"period_days"`
	CategoryPerformance []CategoryAcceptance `json:"category_performance"`
	FeedbackTrends      []FeedbackTrend      `json:"feedback_trends"`
	SessionActivity     []SessionActivity    `json:"session_activity"`
	LearningInsights    LearningReport       `json:"learning_insights"`
	Summary             AnalyticsTotals      `json:"summary"`
}

type UsageTrend string

const (
	TrendImproving UsageTrend = "improving"
	TrendDeclining UsageTrend = "declining"
	TrendStable    UsageTrend = "stable"
)

// CategoryUsage reports the lifetime usage counters of a live category
// together with recent feedback signals.
type CategoryUsage struct {
	CategoryID    int          `json:"category_id"`
	CategoryName  string       `json:"category_name"`
	Type          CategoryType `json:"type"`
	SuccessRate   float64      `json:"success_rate"`
	TotalUsage    int          `json:"total_usage"`
	SuccessCount  int          `json:"success_count"`
	Trend7Days    UsageTrend   `json:"trend_7_days"`
	LastUsed      *time.Time   `json:"last_used"`
	AvgConfidence *float64     `json:"avg_confidence_score"`
}

type UsageAnalytics struct {
	TotalCategories            int      `json:"total_categories"`
	AvgSuccessRate             float64  `json:"avg_success_rate"`
	MostSuccessfulCategory     string   `json:"most_successful_category"`
	LeastSuccessfulCategory    string   `json:"least_successful_category"`
	CategoriesNeedingAttention []string `json:"categories_needing_attention"`
}

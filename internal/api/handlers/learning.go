package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/voterprime/catmatch/internal/service"
)

const (
	defaultSuccessThreshold    = 0.3
	defaultMinSamples          = 10
	defaultConfidenceThreshold = 0.5
	defaultFrequencyThreshold  = 5
	maxSessionLimit            = 100
)

type LearningHandler struct {
	svc *service.LearningService
}

func NewLearningHandler(svc *service.LearningService) *LearningHandler {
	return &LearningHandler{svc: svc}
}

// Underperforming handles GET /v1/learning/underperforming
func (h *LearningHandler) Underperforming(w http.ResponseWriter, r *http.Request) {
	threshold, err := floatQuery(r, "success_threshold", defaultSuccessThreshold, 0, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minSamples, err := intQuery(r, "min_samples", defaultMinSamples, 1, 10000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cats, err := h.svc.IdentifyUnderperforming(r.Context(), threshold, minSamples, days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"underperforming_categories": cats,
		"total":                      len(cats),
		"analysis_period_days":       days,
		"success_threshold":          threshold,
		"min_samples":                minSamples,
	})
}

// Performance handles GET /v1/learning/categories/{id}/performance
func (h *LearningHandler) Performance(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.PerformanceSummary(r.Context(), id, days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RejectionPatterns handles GET /v1/learning/rejection-patterns
func (h *LearningHandler) RejectionPatterns(w http.ResponseWriter, r *http.Request) {
	var categoryID *int
	if r.URL.Query().Get("category_id") != "" {
		id, err := intQuery(r, "category_id", 0, 1, math.MaxInt32)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		categoryID = &id
	}
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patterns, err := h.svc.AnalyzeRejectionPatterns(r.Context(), categoryID, days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rejection_patterns":   patterns,
		"total":                len(patterns),
		"analysis_period_days": days,
	})
}

// MissingCategories handles GET /v1/learning/missing-categories
func (h *LearningHandler) MissingCategories(w http.ResponseWriter, r *http.Request) {
	confidence, err := floatQuery(r, "confidence_threshold", defaultConfidenceThreshold, 0, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	frequency, err := intQuery(r, "frequency_threshold", defaultFrequencyThreshold, 1, 10000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	themes, err := h.svc.IdentifyMissingCategories(r.Context(), confidence, frequency, days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"missing_themes":       themes,
		"total":                len(themes),
		"analysis_period_days": days,
	})
}

// Insights handles GET /v1/learning/insights
func (h *LearningHandler) Insights(w http.ResponseWriter, r *http.Request) {
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	insights, err := h.svc.Insights(r.Context(), days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// Recompute handles POST /v1/admin/learning/categories/{id}/recompute
func (h *LearningHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.svc.RecomputeMetrics(r.Context(), id, days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category_id": id,
		"metrics":     metrics,
	})
}

// MetricsHistory handles GET /v1/learning/categories/{id}/metrics
func (h *LearningHandler) MetricsHistory(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.svc.MetricsHistory(r.Context(), id, days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category_id": id,
		"metrics":     metrics,
	})
}

// Analytics handles GET /v1/learning/analytics
func (h *LearningHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, func(ctx context.Context, days int) (any, error) {
		return h.svc.FeedbackAnalytics(ctx, days)
	})
}

// Trends handles GET /v1/learning/trends
func (h *LearningHandler) Trends(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, func(ctx context.Context, days int) (any, error) {
		trends, err := h.svc.FeedbackTrends(ctx, days)
		if err != nil {
			return nil, err
		}
		return map[string]any{"feedback_trends": trends, "analysis_period_days": days}, nil
	})
}

// Acceptance handles GET /v1/learning/acceptance
func (h *LearningHandler) Acceptance(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, func(ctx context.Context, days int) (any, error) {
		perf, err := h.svc.CategoryAcceptance(ctx, days)
		if err != nil {
			return nil, err
		}
		return map[string]any{"category_performance": perf, "analysis_period_days": days}, nil
	})
}

// Sessions handles GET /v1/learning/sessions
func (h *LearningHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", service.DefaultSessionLimit, 1, maxSessionLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.period(w, r, func(ctx context.Context, days int) (any, error) {
		sessions, err := h.svc.SessionActivity(ctx, days, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"session_activity": sessions, "total": len(sessions), "analysis_period_days": days}, nil
	})
}

// Overall handles GET /v1/learning/overall
func (h *LearningHandler) Overall(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, func(ctx context.Context, days int) (any, error) {
		return h.svc.OverallStats(ctx, days)
	})
}

// Report handles GET /v1/learning/report
func (h *LearningHandler) Report(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, func(ctx context.Context, days int) (any, error) {
		return h.svc.LearningReport(ctx, days)
	})
}

// Usage handles GET /v1/learning/usage
func (h *LearningHandler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.svc.UsageAnalytics(r.Context())
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// UsagePerformance handles GET /v1/learning/usage/performance
func (h *LearningHandler) UsagePerformance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	perf, err := h.svc.UsagePerformance(r.Context(), q.Get("sort_by"), q.Get("order"))
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": perf,
		"total":      len(perf),
	})
}

func (h *LearningHandler) period(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, days int) (any, error)) {
	days, err := daysQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := run(r.Context(), days)
	if err != nil {
		writeLearningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeLearningError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPeriod), errors.Is(err, service.ErrInvalidSort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCategoriesNotLoaded), errors.Is(err, service.ErrActivityUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "learning analysis failed")
	}
}

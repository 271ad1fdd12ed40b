package handlers

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/service"
	"go.uber.org/zap"
)

const (
	defaultTopK = 5
	maxTopK     = 20

	trackingUnavailable = "feedback tracking temporarily unavailable"
)

type MatchHandler struct {
	matcher  *service.MatcherService
	feedback *service.FeedbackService
	catalog  *catalog.Store
	logger   *zap.Logger
	now      func() time.Time
}

func NewMatchHandler(matcher *service.MatcherService, feedback *service.FeedbackService, cat *catalog.Store, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		matcher:  matcher,
		feedback: feedback,
		catalog:  cat,
		logger:   logger,
		now:      time.Now,
	}
}

type matchRequest struct {
	UserInput           string   `json:"user_input"`
	CategoryTypes       []string `json:"category_types,omitempty"`
	TopK                *int     `json:"top_k,omitempty"`
	SessionID           string   `json:"session_id,omitempty"`
	RejectedCategoryIDs []int    `json:"rejected_category_ids,omitempty"`
}

type modelInfo struct {
	Model      string `json:"model"`
	Dimension  int    `json:"dimension"`
	Generation uint64 `json:"generation"`
}

type matchResponse struct {
	UserInput               string                 `json:"user_input"`
	Matches                 []domain.CategoryMatch `json:"matches"`
	TotalCategoriesSearched int                    `json:"total_categories_searched"`
	ProcessingTimeMS        int64                  `json:"processing_time_ms"`
	ModelInfo               modelInfo              `json:"model_info"`
	InteractionID           string                 `json:"interaction_id,omitempty"`
	Warning                 string                 `json:"warning,omitempty"`
}

// Find handles POST /v1/matches
func (h *MatchHandler) Find(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// Refine handles POST /v1/matches/refine
func (h *MatchHandler) Refine(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *MatchHandler) serve(w http.ResponseWriter, r *http.Request, refine bool) {
	var req matchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := strings.TrimSpace(req.UserInput)
	if input == "" {
		writeError(w, http.StatusBadRequest, "user_input is required")
		return
	}

	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > maxTopK {
		writeError(w, http.StatusBadRequest, "top_k must be between 1 and 20")
		return
	}

	types, err := domain.ParseCategoryTypes(req.CategoryTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if refine && len(req.RejectedCategoryIDs) == 0 {
		writeError(w, http.StatusBadRequest, "rejected_category_ids is required")
		return
	}
	if !refine {
		req.RejectedCategoryIDs = nil
	}

	result, err := h.matcher.Match(r.Context(), service.MatchRequest{
		Input:       input,
		Types:       types,
		TopK:        topK,
		RejectedIDs: req.RejectedCategoryIDs,
	})
	if err != nil {
		writeMatchError(w, err)
		return
	}

	resp := matchResponse{
		UserInput:        input,
		Matches:          result.Matches,
		ProcessingTimeMS: result.Elapsed.Milliseconds(),
		ModelInfo:        modelInfo{Generation: result.Generation},
	}
	if gen, err := h.catalog.Snapshot(); err == nil && gen.Seq() == result.Generation {
		resp.TotalCategoriesSearched = gen.Len()
		resp.ModelInfo.Model = gen.Model()
		resp.ModelInfo.Dimension = gen.Dimension()
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = service.SessionID(clientIP(r), r.UserAgent(), h.now())
	}
	interaction, err := h.feedback.RecordInteraction(r.Context(), service.RecordInteractionParams{
		SessionID:   sessionID,
		Result:      result,
		UserInput:   input,
		RejectedIDs: req.RejectedCategoryIDs,
		Types:       types,
	})
	if err != nil {
		h.logger.Warn("interaction tracking failed", zap.Error(err))
		resp.Warning = trackingUnavailable
	} else {
		resp.InteractionID = interaction.ID.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "categories not loaded")
	case errors.Is(err, domain.ErrEncoding):
		writeError(w, http.StatusBadGateway, "failed to encode input")
	default:
		writeError(w, http.StatusInternalServerError, "category matching failed")
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/service"
)

type FeedbackHandler struct {
	svc *service.FeedbackService
}

func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

type categoryFeedbackRequest struct {
	CategoryID     int     `json:"category_id"`
	FeedbackType   string  `json:"feedback_type"`
	UserRating     *int    `json:"user_rating,omitempty"`
	FeedbackReason *string `json:"feedback_reason,omitempty"`
}

type submitFeedbackRequest struct {
	InteractionID       string                    `json:"interaction_id"`
	CategoryFeedbacks   []categoryFeedbackRequest `json:"category_feedbacks"`
	OverallSatisfaction *int                      `json:"overall_satisfaction,omitempty"`
	AdditionalComments  *string                   `json:"additional_comments,omitempty"`
}

// Submit handles POST /v1/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub := domain.FeedbackSubmission{
		OverallSatisfaction: req.OverallSatisfaction,
		AdditionalComments:  req.AdditionalComments,
	}
	if req.InteractionID != "" {
		id, err := uuid.Parse(req.InteractionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid interaction_id")
			return
		}
		sub.InteractionID = id
	}
	for _, f := range req.CategoryFeedbacks {
		sub.Items = append(sub.Items, domain.CategoryFeedbackInput{
			CategoryID:     f.CategoryID,
			FeedbackType:   domain.FeedbackType(f.FeedbackType),
			UserRating:     f.UserRating,
			FeedbackReason: f.FeedbackReason,
		})
	}

	result, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInteractionIDMissing),
			errors.Is(err, service.ErrEmptyFeedback),
			errors.Is(err, service.ErrInvalidFeedbackType),
			errors.Is(err, service.ErrInvalidRating):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInteractionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to store feedback")
		}
		return
	}

	status := http.StatusCreated
	if result.Status == domain.SubmissionRejected {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

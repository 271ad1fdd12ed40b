package domain

import (
	"time"

	"github.com/google/uuid"
)

type FeedbackType string

const (
	FeedbackAccept     FeedbackType = "accept"
	FeedbackReject     FeedbackType = "reject"
	FeedbackMaybe      FeedbackType = "maybe"
	FeedbackIrrelevant FeedbackType = "irrelevant"
)

func ValidFeedbackType(t string) bool {
	switch FeedbackType(t) {
	case FeedbackAccept, FeedbackReject, FeedbackMaybe, FeedbackIrrelevant:
		return true
	}
	return false
}

// IsSuccess reports whether the judgment counts toward a category's success
// rate. Accept and maybe both do.
func (t FeedbackType) IsSuccess() bool {
	return t == FeedbackAccept || t == FeedbackMaybe
}

// IsRejection reports whether the judgment is a negative one.
func (t FeedbackType) IsRejection() bool {
	return t == FeedbackReject || t == FeedbackIrrelevant
}

// FeedbackItem is one stored judgment on one category within one interaction.
// Scores are the values captured when the match was shown.
type FeedbackItem struct {
	ID                  uuid.UUID    `json:"id"`
	InteractionID       uuid.UUID    `json:"interaction_id"`
	CategoryID          int          `json:"category_id"`
	CategoryName        string       `json:"category_name"`
	FeedbackType        FeedbackType `json:"feedback_type"`
	ConfidenceScore     float64      `json:"confidence_score"`
	SimilarityScore     float64      `json:"similarity_score"`
	MatchRank           int          `json:"match_rank"`
	UserRating          *int         `json:"user_rating,omitempty"`
	FeedbackReason      *string      `json:"feedback_reason,omitempty"`
	OverallSatisfaction *int         `json:"overall_satisfaction,omitempty"`
	AdditionalComments  *string      `json:"additional_comments,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

type CategoryFeedbackInput struct {
	CategoryID     int          `json:"category_id"`
	FeedbackType   FeedbackType `json:"feedback_type"`
	UserRating     *int         `json:"user_rating,omitempty"`
	FeedbackReason *string      `json:"feedback_reason,omitempty"`
}

type FeedbackSubmission struct {
	InteractionID       uuid.UUID               `json:"interaction_id"`
	Items               []CategoryFeedbackInput `json:"category_feedbacks"`
	OverallSatisfaction *int                    `json:"overall_satisfaction,omitempty"`
	AdditionalComments  *string                 `json:"additional_comments,omitempty"`
}

type FeedbackItemStatus string

const (
	ItemStored  FeedbackItemStatus = "stored"
	ItemSkipped FeedbackItemStatus = "skipped"
)

type FeedbackItemResult struct {
	CategoryID int                `json:"category_id"`
	Status     FeedbackItemStatus `json:"status"`
	FeedbackID *uuid.UUID         `json:"feedback_id,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

type SubmissionStatus string

const (
	SubmissionSuccess  SubmissionStatus = "success"
	SubmissionPartial  SubmissionStatus = "partial"
	SubmissionRejected SubmissionStatus = "rejected"
)

type FeedbackResult struct {
	InteractionID uuid.UUID            `json:"interaction_id"`
	Status        SubmissionStatus     `json:"status"`
	Stored        int                  `json:"stored"`
	Items         []FeedbackItemResult `json:"items"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// LowConfidenceInput is a user input whose recorded match confidence fell
// below an analysis threshold.
type LowConfidenceInput struct {
	UserInput       string    `json:"user_input"`
	CategoryName    string    `json:"category_name"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type EmbeddingState string

const (
	EmbeddingPending   EmbeddingState = "pending"
	EmbeddingCompleted EmbeddingState = "completed"
	EmbeddingFailed    EmbeddingState = "failed"
	EmbeddingSkipped   EmbeddingState = "skipped"
)

type SurveyResponse struct {
	ID                   uuid.UUID      `json:"id"`
	ProjectID            uuid.UUID      `json:"project_id"`
	Date                 *time.Time     `json:"date,omitempty"`
	Country              *string        `json:"country,omitempty"`
	URL                  *string        `json:"url,omitempty"`
	Device               *string        `json:"device,omitempty"`
	Browser              *string        `json:"browser,omitempty"`
	OS                   *string        `json:"os,omitempty"`
	Rating               *float64       `json:"ratings,omitempty"`
	Comment              *string        `json:"comments,omitempty"`
	EmbeddingStatus      EmbeddingState `json:"embedding_status,omitempty"`
	EmbeddingGeneratedAt *time.Time     `json:"embedding_generated_at,omitempty"`
}

// CommentText returns the comment, or "" when there is none.
func (r SurveyResponse) CommentText() string {
	if r.Comment == nil {
		return ""
	}
	return *r.Comment
}

type SimilarComment struct {
	Response   SurveyResponse `json:"response"`
	Similarity float64        `json:"similarity"`
}

type SurveyStats struct {
	TotalResponses        int64      `json:"total_responses"`
	AverageRating         *float64   `json:"average_rating"`
	FirstResponseDate     *time.Time `json:"first_response_date"`
	LastResponseDate      *time.Time `json:"last_response_date"`
	ResponsesWithComments int64      `json:"responses_with_comments"`
}

type EmbeddingStatus struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// SurveyComment is a non-empty comment with the context the agent and the
// feedback analyzer need.
type SurveyComment struct {
	Comment string     `json:"comment"`
	Rating  *float64   `json:"rating"`
	Date    *time.Time `json:"date"`
	Country *string    `json:"country"`
	Device  *string    `json:"device"`
	URL     *string    `json:"url"`
}

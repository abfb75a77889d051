package model

import (
	"time"

	"github.com/google/uuid"
)

type FeedbackAnalysis struct {
	ID            uuid.UUID          `json:"id"`
	ProjectID     uuid.UUID          `json:"project_id"`
	CreatedAt     time.Time          `json:"created_at"`
	ResponseCount int                `json:"response_count"`
	Analysis      StructuredAnalysis `json:"analysis"`
	Narrative     string             `json:"narrative"`
	ModelUsed     string             `json:"model_used"`
	InputTokens   *int               `json:"input_tokens,omitempty"`
	OutputTokens  *int               `json:"output_tokens,omitempty"`
	DurationMs    *int64             `json:"duration_ms,omitempty"`
}

type StructuredAnalysis struct {
	Themes             []Theme                  `json:"themes"`
	SentimentBreakdown SentimentBreakdown       `json:"sentiment_breakdown"`
	KeyIssues          []KeyIssue               `json:"key_issues"`
	Recommendations    []FeedbackRecommendation `json:"recommendations"`
}

type Theme struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Sentiment    string   `json:"sentiment"`
	Frequency    string   `json:"frequency"`
	SampleQuotes []string `json:"sample_quotes"`
}

type SentimentBreakdown struct {
	PositivePct float64 `json:"positive_pct"`
	NegativePct float64 `json:"negative_pct"`
	NeutralPct  float64 `json:"neutral_pct"`
}

type KeyIssue struct {
	Title            string  `json:"title"`
	Severity         string  `json:"severity"`
	Description      string  `json:"description"`
	AffectedUsersPct float64 `json:"affected_users_pct"`
}

type FeedbackRecommendation struct {
	Title          string `json:"title"`
	Priority       string `json:"priority"`
	Description    string `json:"description"`
	ExpectedImpact string `json:"expected_impact"`
}

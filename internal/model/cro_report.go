package model

import (
	"time"

	"github.com/google/uuid"
)

// CroReport is the persisted result of one audit run. It is never updated.
type CroReport struct {
	ID                  uuid.UUID           `json:"id"`
	ProjectID           uuid.UUID           `json:"project_id"`
	ConnectorID         uuid.UUID           `json:"connector_id"`
	CreatedAt           time.Time           `json:"created_at"`
	ExecutiveSummary    string              `json:"executive_summary"`
	FunnelAnalysis      FunnelAnalysis      `json:"funnel_analysis"`
	QualitativeInsights QualitativeInsights `json:"qualitative_insights"`
	Recommendations     []CroRecommendation `json:"recommendations"`
	ModelUsed           string              `json:"model_used"`
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	ToolCallsCount      int                 `json:"tool_calls_count"`
	DurationMs          int64               `json:"duration_ms"`
}

type FunnelAnalysis struct {
	Overview         string            `json:"overview"`
	CriticalDropOffs []DropOff         `json:"critical_drop_offs"`
	PeriodComparison *PeriodComparison `json:"period_comparison,omitempty"`
}

type DropOff struct {
	Stage              string   `json:"stage"`
	DropRate           float64  `json:"drop_rate"`
	Severity           string   `json:"severity"`
	CorrelatedFeedback []string `json:"correlated_feedback"`
}

type PeriodComparison struct {
	PeriodA string         `json:"period_a"`
	PeriodB string         `json:"period_b"`
	Changes []MetricChange `json:"changes"`
}

type MetricChange struct {
	Metric         string   `json:"metric"`
	Before         *float64 `json:"before"`
	After          *float64 `json:"after"`
	ChangePct      *float64 `json:"change_pct"`
	Interpretation string   `json:"interpretation"`
}

type QualitativeInsights struct {
	Overview       string          `json:"overview"`
	ThemesWithData []ThemeWithData `json:"themes_with_data"`
}

type ThemeWithData struct {
	Theme            string   `json:"theme"`
	Sentiment        string   `json:"sentiment"`
	SupportingQuotes []string `json:"supporting_quotes"`
	RelatedMetrics   []string `json:"related_metrics"`
}

type CroRecommendation struct {
	Title              string   `json:"title"`
	Priority           string   `json:"priority"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	SupportingEvidence []string `json:"supporting_evidence"`
	ExpectedImpact     string   `json:"expected_impact"`
}

package qualitative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/common/logger"
	"github.com/oraclewalid/discoveo/internal/metrics"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/store"
)

const (
	MinCommentsForAnalysis = 5
	AnalysisCacheTTL       = 24 * time.Hour
	MaxAnalysisComments    = 500
	AnalysisMaxTokens      = 4096
)

var (
	ErrNotEnoughComments = errors.New("Not enough comments for analysis (minimum 5 required)") //nolint:staticcheck // user facing
	ErrInvalidAnalysis   = errors.New("invalid feedback analysis")
)

const analysisSystemPrompt = `You are an expert UX researcher analyzing website visitor survey feedback.
Analyze all the comments provided and return a JSON object with this exact structure:
{
  "themes": [
    {
      "name": "short theme name",
      "description": "1-2 sentence description of this theme",
      "sentiment": "positive|negative|mixed|neutral",
      "frequency": "high|medium|low",
      "sample_quotes": ["1-2 verbatim quotes from the comments"]
    }
  ],
  "sentiment_breakdown": {
    "positive_pct": 0,
    "negative_pct": 0,
    "neutral_pct": 0
  },
  "key_issues": [
    {
      "title": "issue title",
      "severity": "critical|major|minor",
      "description": "description of the issue",
      "affected_users_pct": 0
    }
  ],
  "recommendations": [
    {
      "title": "recommendation title",
      "priority": "high|medium|low",
      "description": "what to do",
      "expected_impact": "expected result"
    }
  ],
  "narrative_summary": "A comprehensive free-text summary of all findings, written as a report paragraph."
}

Important rules:
- Respond with ONLY the JSON object, no markdown code fences, no additional text
- Percentages should sum to 100 in sentiment_breakdown
- Base affected_users_pct on the proportion of comments mentioning that issue
- Include 3-8 themes depending on diversity of feedback
- The narrative_summary should be 3-5 sentences synthesizing the key takeaways`

// Analyzer clusters survey comments into themes with a single LLM call and
// caches the result per project.
type Analyzer struct {
	client        llm.AgentClient
	credentialEnv string
	surveys       store.SurveyStore
	feedback      store.FeedbackStore
	maxTokens     int
	now           func() time.Time
}

type AnalyzerOption func(*Analyzer)

// WithCredentialEnv names the variable reported when no client is configured.
func WithCredentialEnv(env string) AnalyzerOption {
	return func(a *Analyzer) { a.credentialEnv = env }
}

func WithMaxTokens(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an Analyzer. A nil client is allowed: cached analyses
// are still served and fresh ones fail with an *llm.CredentialError.
func NewAnalyzer(client llm.AgentClient, surveys store.SurveyStore, feedback store.FeedbackStore, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		client:    client,
		surveys:   surveys,
		feedback:  feedback,
		maxTokens: AnalysisMaxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns a theme analysis of the project's comments. A cached
// analysis younger than AnalysisCacheTTL that covered the same number of
// comments is reused unless force is set.
func (a *Analyzer) Analyze(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error) {
	count, err := a.surveys.CountComments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	if count < MinCommentsForAnalysis {
		return nil, ErrNotEnoughComments
	}

	if !force {
		cached, err := a.feedback.FindCached(ctx, projectID, int(count), a.now().Add(-AnalysisCacheTTL))
		switch {
		case err == nil:
			slog.InfoContext(ctx, "returning cached feedback analysis",
				"analysis_id", cached.ID,
				"response_count", count)
			metrics.FeedbackAnalyses.WithLabelValues("cache").Inc()
			return cached, nil
		case !errors.Is(err, store.ErrNotFound):
			slog.WarnContext(ctx, "feedback cache lookup failed", "error", err)
		}
	}

	if a.client == nil {
		return nil, &llm.CredentialError{Env: a.credentialEnv}
	}

	comments, err := a.surveys.RecentComments(ctx, projectID, MaxAnalysisComments)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	userMessage := buildAnalysisMessage(comments)
	slog.InfoContext(ctx, "requesting feedback analysis",
		"comment_count", len(comments),
		"message_len", len(userMessage),
		"model", a.client.Model())

	start := time.Now()
	resp, err := a.client.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("feedback analysis: %w", err)
	}
	durationMs := time.Since(start).Milliseconds()

	structured, narrative, err := parseAnalysis(resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "feedback analysis output not parseable",
			"error", err,
			"raw", logger.Truncate(resp.Content, 500))
		return nil, err
	}

	inputTokens, outputTokens := resp.PromptTokens, resp.CompletionTokens
	analysis := &model.FeedbackAnalysis{
		ID:            uuid.Must(uuid.NewV7()),
		ProjectID:     projectID,
		CreatedAt:     a.now().UTC(),
		ResponseCount: int(count),
		Analysis:      structured,
		Narrative:     narrative,
		ModelUsed:     a.client.Model(),
		InputTokens:   &inputTokens,
		OutputTokens:  &outputTokens,
		DurationMs:    &durationMs,
	}

	if err := a.feedback.Create(ctx, analysis); err != nil {
		slog.WarnContext(ctx, "failed to cache feedback analysis", "error", err)
	}

	metrics.FeedbackAnalyses.WithLabelValues("llm").Inc()
	metrics.AgentTokens.WithLabelValues("feedback", "input").Add(float64(inputTokens))
	metrics.AgentTokens.WithLabelValues("feedback", "output").Add(float64(outputTokens))
	slog.InfoContext(ctx, "feedback analysis complete",
		"duration_ms", durationMs,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"themes", len(structured.Themes))

	return analysis, nil
}

func buildAnalysisMessage(comments []model.SurveyComment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey feedback analysis, %d total comments.\n\nComments:\n", len(comments))

	for i, c := range comments {
		rating := "N/A"
		if c.Rating != nil {
			rating = fmt.Sprintf("%.1f", *c.Rating)
		}
		date := "N/A"
		if c.Date != nil {
			date = c.Date.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "%d. %q [Rating: %s, Country: %s, Device: %s, Date: %s, URL: %s]\n",
			i+1, c.Comment, rating, orNA(c.Country), orNA(c.Device), date, orNA(c.URL))
	}

	b.WriteString("\nAnalyze all feedback and provide the structured JSON analysis.")
	return b.String()
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func parseAnalysis(raw string) (model.StructuredAnalysis, string, error) {
	var doc struct {
		model.StructuredAnalysis
		NarrativeSummary string `json:"narrative_summary"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &doc); err != nil {
		return model.StructuredAnalysis{}, "", fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	analysis := doc.StructuredAnalysis
	if analysis.Themes == nil {
		analysis.Themes = []model.Theme{}
	}
	if analysis.KeyIssues == nil {
		analysis.KeyIssues = []model.KeyIssue{}
	}
	if analysis.Recommendations == nil {
		analysis.Recommendations = []model.FeedbackRecommendation{}
	}
	return analysis, doc.NarrativeSummary, nil
}

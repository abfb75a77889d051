package cro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/common/logger"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/metrics"
	"github.com/oraclewalid/discoveo/internal/model"
)

const (
	defaultSearchLimit   = 10
	defaultMinSimilarity = 0.3
	defaultPeriodLimit   = 50

	surveyDateLayout   = "2006-01-02"
	analysisTimeLayout = "2006-01-02 15:04"
)

const noAnalysisMessage = "No feedback analysis available. Survey comments have not been analyzed yet."

// FunnelSource is the analytics side of the tool catalog.
type FunnelSource interface {
	Funnel(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error)
	PagePaths(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.PagePathStats, error)
	HasData(projectID, connectorID uuid.UUID) bool
}

// FeedbackSource is the survey side of the tool catalog.
type FeedbackSource interface {
	SearchComments(ctx context.Context, projectID uuid.UUID, query string, limit int, minSimilarity float64) ([]model.SimilarComment, error)
	CommentsByPeriod(ctx context.Context, projectID uuid.UUID, start, end time.Time, limit int) ([]model.SurveyComment, error)
	Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error)
	LatestAnalysis(ctx context.Context, projectID uuid.UUID) (*model.FeedbackAnalysis, error)
}

// FunnelParams for get_funnel_overview.
type FunnelParams struct {
	StartDate string `json:"start_date" jsonschema:"required,description=Start date in YYYYMMDD format"`
	EndDate   string `json:"end_date" jsonschema:"required,description=End date in YYYYMMDD format"`
	Dimension string `json:"dimension,omitempty" jsonschema:"enum=all,enum=browser,enum=device_category,enum=country,enum=operating_system,enum=screen_resolution,description=Optional dimension to group by. Default: all"`
}

// ComparePeriodsParams for compare_periods.
type ComparePeriodsParams struct {
	PeriodAStart string `json:"period_a_start" jsonschema:"required,description=Period A start date in YYYYMMDD format"`
	PeriodAEnd   string `json:"period_a_end" jsonschema:"required,description=Period A end date in YYYYMMDD format"`
	PeriodBStart string `json:"period_b_start" jsonschema:"required,description=Period B start date in YYYYMMDD format"`
	PeriodBEnd   string `json:"period_b_end" jsonschema:"required,description=Period B end date in YYYYMMDD format"`
	Dimension    string `json:"dimension,omitempty" jsonschema:"enum=all,enum=browser,enum=device_category,enum=country,enum=operating_system,enum=screen_resolution,description=Optional dimension to group by. Default: all"`
}

// DateRangeParams for get_page_paths and get_drop_off_points.
type DateRangeParams struct {
	StartDate string `json:"start_date" jsonschema:"required,description=Start date in YYYYMMDD format"`
	EndDate   string `json:"end_date" jsonschema:"required,description=End date in YYYYMMDD format"`
}

// SearchCommentsParams for search_survey_comments.
type SearchCommentsParams struct {
	Query         string   `json:"query" jsonschema:"required,description=Natural language search query"`
	Limit         int      `json:"limit,omitempty" jsonschema:"description=Max results to return. Default: 10"`
	MinSimilarity *float64 `json:"min_similarity,omitempty" jsonschema:"description=Minimum cosine similarity threshold (0-1). Default: 0.3"`
}

// SurveyPeriodParams for get_survey_by_period.
type SurveyPeriodParams struct {
	StartDate string `json:"start_date" jsonschema:"required,description=Start date in YYYY-MM-DD format"`
	EndDate   string `json:"end_date" jsonschema:"required,description=End date in YYYY-MM-DD format"`
	Limit     int    `json:"limit,omitempty" jsonschema:"description=Max results to return. Default: 50"`
}

// NoParams for tools without inputs.
type NoParams struct{}

// toolFunc is the uniform handler signature of the registry.
type toolFunc func(d *Dispatcher, ctx context.Context, input json.RawMessage) (any, error)

// Tools is the static catalog offered to the CRO agent. It is read-only
// after construction and shared by all runs.
type Tools struct {
	funnel      FunnelSource
	feedback    FeedbackSource
	definitions []llm.Tool
	handlers    map[string]toolFunc
}

// NewTools builds the catalog. feedback may be nil when no survey store is
// configured; survey tools then report an error to the model.
func NewTools(funnel FunnelSource, feedback FeedbackSource) *Tools {
	t := &Tools{funnel: funnel, feedback: feedback}

	t.definitions = []llm.Tool{
		{
			Name:        "get_funnel_overview",
			Description: "Get the e-commerce funnel analysis for a date range. Returns stages (Home → PLP → PDP → Cart → Checkout → Shipping → Payment → Confirmation) with user counts, drop-off rates, and conversion percentages.",
			Parameters:  llm.GenerateSchemaFrom(FunnelParams{}),
		},
		{
			Name:        "compare_periods",
			Description: "Compare funnel performance between two date ranges. Returns both funnels side-by-side so you can identify regressions or improvements.",
			Parameters:  llm.GenerateSchemaFrom(ComparePeriodsParams{}),
		},
		{
			Name:        "get_page_paths",
			Description: "Get page-level analytics: pageviews, users, engagement time per page. Useful to identify high-traffic pages with low engagement.",
			Parameters:  llm.GenerateSchemaFrom(DateRangeParams{}),
		},
		{
			Name:        "get_drop_off_points",
			Description: "Identify the biggest funnel drop-off points, sorted by severity. Returns stages where the most users are lost.",
			Parameters:  llm.GenerateSchemaFrom(DateRangeParams{}),
		},
		{
			Name:        "search_survey_comments",
			Description: "Search user survey comments by semantic similarity. Use this to find what users say about a specific topic (e.g. 'checkout problem', 'slow loading', 'mobile issue').",
			Parameters:  llm.GenerateSchemaFrom(SearchCommentsParams{}),
		},
		{
			Name:        "get_survey_by_period",
			Description: "Get user survey comments filtered by date range. Use this to see what users said during a specific period (e.g. when a funnel drop was detected).",
			Parameters:  llm.GenerateSchemaFrom(SurveyPeriodParams{}),
		},
		{
			Name:        "get_survey_stats",
			Description: "Get overall survey statistics: total responses, average rating, date range, number of comments.",
			Parameters:  llm.GenerateSchemaFrom(NoParams{}),
		},
		{
			Name:        "get_feedback_themes",
			Description: "Get the most recent AI-generated feedback analysis: themes, sentiment breakdown, key issues, and recommendations derived from user comments.",
			Parameters:  llm.GenerateSchemaFrom(NoParams{}),
		},
	}

	t.handlers = map[string]toolFunc{
		"get_funnel_overview":    (*Dispatcher).funnelOverview,
		"compare_periods":        (*Dispatcher).comparePeriods,
		"get_page_paths":         (*Dispatcher).pagePaths,
		"get_drop_off_points":    (*Dispatcher).dropOffPoints,
		"search_survey_comments": (*Dispatcher).searchComments,
		"get_survey_by_period":   (*Dispatcher).surveyByPeriod,
		"get_survey_stats":       (*Dispatcher).surveyStats,
		"get_feedback_themes":    (*Dispatcher).feedbackThemes,
	}

	return t
}

// Definitions returns tool definitions for the LLM, in catalog order.
func (t *Tools) Definitions() []llm.Tool {
	return t.definitions
}

// HasData reports whether analytics exist for the connector.
func (t *Tools) HasData(projectID, connectorID uuid.UUID) bool {
	return t.funnel != nil && t.funnel.HasData(projectID, connectorID)
}

// ForRun binds the catalog to one project and connector.
func (t *Tools) ForRun(projectID, connectorID uuid.UUID) *Dispatcher {
	return &Dispatcher{tools: t, projectID: projectID, connectorID: connectorID}
}

// Dispatcher executes tools for a single run.
type Dispatcher struct {
	tools       *Tools
	projectID   uuid.UUID
	connectorID uuid.UUID
}

// Dispatch runs the named tool and returns its JSON output. It never fails:
// unknown tools, bad input and downstream errors come back as {"error": "..."}.
func (d *Dispatcher) Dispatch(ctx context.Context, name, input string) (out string) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Tool: &name})
	start := time.Now()
	status := metrics.StatusSuccess
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "tool panicked", "tool", name, "panic", r)
			out = errorJSON(fmt.Sprintf("Tool %s failed unexpectedly", name))
			status = metrics.StatusError
		}
		metrics.ToolCalls.WithLabelValues(metricToolName(name), status).Inc()
		metrics.ToolDuration.WithLabelValues(metricToolName(name)).Observe(time.Since(start).Seconds())
	}()

	handler, ok := d.tools.handlers[name]
	if !ok {
		status = metrics.StatusError
		return errorJSON("Unknown tool: " + name)
	}

	raw := json.RawMessage(strings.TrimSpace(input))
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if !json.Valid(raw) {
		status = metrics.StatusError
		return errorJSON("Invalid tool input: not valid JSON")
	}

	result, err := handler(d, ctx, raw)
	if err != nil {
		status = metrics.StatusError
		slog.WarnContext(ctx, "tool execution failed", "tool", name, "error", err)
		return errorJSON(err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		status = metrics.StatusError
		return errorJSON("Serialization error: " + err.Error())
	}

	slog.DebugContext(ctx, "tool executed",
		"tool", name,
		"result_len", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	return string(data)
}

func errorJSON(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

// metricToolName keeps label cardinality bounded when the model invents tools.
func metricToolName(name string) string {
	if _, ok := toolNames[name]; ok {
		return name
	}
	return "unknown"
}

var toolNames = map[string]struct{}{
	"get_funnel_overview": {}, "compare_periods": {}, "get_page_paths": {}, "get_drop_off_points": {},
	"search_survey_comments": {}, "get_survey_by_period": {}, "get_survey_stats": {}, "get_feedback_themes": {},
}

func parseParams[T any](input json.RawMessage) (T, error) {
	params, err := llm.ParseToolArguments[T](string(input))
	if err != nil {
		return params, fmt.Errorf("Invalid tool input: %w", err) //nolint:staticcheck // read by the model
	}
	return params, nil
}

// requireFields reports the first empty field, in declaration order.
func requireFields(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return fmt.Errorf("Missing required field: %s", f[0]) //nolint:staticcheck // read by the model
		}
	}
	return nil
}

// requireGA4Dates reports the first field that is not a YYYYMMDD date.
func requireGA4Dates(fields ...[2]string) error {
	for _, f := range fields {
		if _, err := time.Parse(ga4DateLayout, f[1]); err != nil {
			return fmt.Errorf("Invalid %s format (expected YYYYMMDD): %q", f[0], f[1]) //nolint:staticcheck // read by the model
		}
	}
	return nil
}

func (d *Dispatcher) funnelSource() (FunnelSource, error) {
	if d.tools.funnel == nil {
		return nil, analytics.ErrNoData
	}
	return d.tools.funnel, nil
}

func (d *Dispatcher) feedbackSource() (FeedbackSource, error) {
	if d.tools.feedback == nil {
		return nil, errors.New("Survey data is not available") //nolint:staticcheck // read by the model
	}
	return d.tools.feedback, nil
}

func (d *Dispatcher) funnelOverview(ctx context.Context, input json.RawMessage) (any, error) {
	p, err := parseParams[FunnelParams](input)
	if err != nil {
		return nil, err
	}
	dates := [][2]string{{"start_date", p.StartDate}, {"end_date", p.EndDate}}
	if err := requireFields(dates...); err != nil {
		return nil, err
	}
	if err := requireGA4Dates(dates...); err != nil {
		return nil, err
	}
	src, err := d.funnelSource()
	if err != nil {
		return nil, err
	}
	return src.Funnel(ctx, d.projectID, d.connectorID, analytics.DimensionOrAll(p.Dimension), p.StartDate, p.EndDate)
}

type periodFunnel struct {
	Start  string                  `json:"start"`
	End    string                  `json:"end"`
	Funnel []analytics.FunnelStage `json:"funnel"`
}

type periodComparison struct {
	PeriodA periodFunnel `json:"period_a"`
	PeriodB periodFunnel `json:"period_b"`
}

func (d *Dispatcher) comparePeriods(ctx context.Context, input json.RawMessage) (any, error) {
	p, err := parseParams[ComparePeriodsParams](input)
	if err != nil {
		return nil, err
	}
	dates := [][2]string{
		{"period_a_start", p.PeriodAStart},
		{"period_a_end", p.PeriodAEnd},
		{"period_b_start", p.PeriodBStart},
		{"period_b_end", p.PeriodBEnd},
	}
	if err := requireFields(dates...); err != nil {
		return nil, err
	}
	if err := requireGA4Dates(dates...); err != nil {
		return nil, err
	}
	src, err := d.funnelSource()
	if err != nil {
		return nil, err
	}

	dim := analytics.DimensionOrAll(p.Dimension)
	a, err := src.Funnel(ctx, d.projectID, d.connectorID, dim, p.PeriodAStart, p.PeriodAEnd)
	if err != nil {
		return nil, err
	}
	b, err := src.Funnel(ctx, d.projectID, d.connectorID, dim, p.PeriodBStart, p.PeriodBEnd)
	if err != nil {
		return nil, err
	}

	return periodComparison{
		PeriodA: periodFunnel{Start: p.PeriodAStart, End: p.PeriodAEnd, Funnel: a},
		PeriodB: periodFunnel{Start: p.PeriodBStart, End: p.PeriodBEnd, Funnel: b},
	}, nil
}

func (d *Dispatcher) pagePaths(ctx context.Context, input json.RawMessage) (any, error) {
	p, err := parseParams[DateRangeParams](input)
	if err != nil {
		return nil, err
	}
	dates := [][2]string{{"start_date", p.StartDate}, {"end_date", p.EndDate}}
	if err := requireFields(dates...); err != nil {
		return nil, err
	}
	if err := requireGA4Dates(dates...); err != nil {
		return nil, err
	}
	src, err := d.funnelSource()
	if err != nil {
		return nil, err
	}
	return src.PagePaths(ctx, d.projectID, d.connectorID, p.StartDate, p.EndDate)
}

func (d *Dispatcher) dropOffPoints(ctx context.Context, input json.RawMessage) (any, error) {
	p, err := parseParams[DateRangeParams](input)
	if err != nil {
		return nil, err
	}
	dates := [][2]string{{"start_date", p.StartDate}, {"end_date", p.EndDate}}
	if err := requireFields(dates...); err != nil {
		return nil, err
	}
	if err := requireGA4Dates(dates...); err != nil {
		return nil, err
	}
	src, err := d.funnelSource()
	if err != nil {
		return nil, err
	}

	stages, err := src.Funnel(ctx, d.projectID, d.connectorID, analytics.DimensionAll, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}

	drops := make([]analytics.FunnelStage, 0, len(stages))
	for _, s := range stages {
		if s.DropoffPct != nil && *s.DropoffPct > 0 {
			drops = append(drops, s)
		}
	}
	sort.SliceStable(drops, func(i, j int) bool { return *drops[i].DropoffPct > *drops[j].DropoffPct })
	return drops, nil
}

type commentHit struct {
	Comment    *string  `json:"comment"`
	Similarity float64  `json:"similarity"`
	Rating     *float64 `json:"rating"`
	Date       *string  `json:"date"`
	Country    *string  `json:"country"`
	Device     *string  `json:"device"`
	URL        *string  `json:"url"`
}

type periodComment struct {
	Comment string   `json:"comment"`
	Rating  *float64 `json:"rating"`
	Date    *string  `json:"date"`
	Country *string  `json:"country"`
	Device  *string  `json:"device"`
	URL     *string  `json:"url"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(surveyDateLayout)
	return &s
}

func (d *Dispatcher) searchComments(ctx context.Context, input json.RawMessage) (any, error) {
	p, err := parseParams[SearchCommentsParams](input)
	if err != nil {
		return nil, err
	}
	if err := requireFields([2]string{"query", p.Query}); err != nil {
		return nil, err
	}
	src, err := d.feedbackSource()
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	minSimilarity := defaultMinSimilarity
	if p.MinSimilarity != nil {
		minSimilarity = *p.MinSimilarity
	}

	results, err := src.SearchComments(ctx, d.projectID, p.Query, limit, minSimilarity)
	if err != nil {
		return nil, err
	}

	hits := make([]commentHit, len(results))
	for i, r := range results {
		hits[i] = commentHit{
			Comment:    r.Response.Comment,
			Similarity: r.Similarity,
			Rating:     r.Response.Rating,
			Date:       formatDate(r.Response.Date),
			Country:    r.Response.Country,
			Device:     r.Response.Device,
			URL:        r.Response.URL,
		}
	}
	return hits, nil
}

func (d *Dispatcher) surveyByPeriod(ctx context.Context, input json.RawMessage) (any, error) {
	p, err := parseParams[SurveyPeriodParams](input)
	if err != nil {
		return nil, err
	}
	if err := requireFields([2]string{"start_date", p.StartDate}, [2]string{"end_date", p.EndDate}); err != nil {
		return nil, err
	}

	start, err := time.Parse(surveyDateLayout, p.StartDate)
	if err != nil {
		return nil, fmt.Errorf("Invalid start_date format (expected YYYY-MM-DD): %w", err) //nolint:staticcheck // read by the model
	}
	end, err := time.Parse(surveyDateLayout, p.EndDate)
	if err != nil {
		return nil, fmt.Errorf("Invalid end_date format (expected YYYY-MM-DD): %w", err) //nolint:staticcheck // read by the model
	}
	end = end.Add(23*time.Hour + 59*time.Minute + 59*time.Second)

	src, err := d.feedbackSource()
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultPeriodLimit
	}

	comments, err := src.CommentsByPeriod(ctx, d.projectID, start, end, limit)
	if err != nil {
		return nil, err
	}

	out := make([]periodComment, len(comments))
	for i, c := range comments {
		out[i] = periodComment{
			Comment: c.Comment,
			Rating:  c.Rating,
			Date:    formatDate(c.Date),
			Country: c.Country,
			Device:  c.Device,
			URL:     c.URL,
		}
	}
	return out, nil
}

func (d *Dispatcher) surveyStats(ctx context.Context, _ json.RawMessage) (any, error) {
	src, err := d.feedbackSource()
	if err != nil {
		return nil, err
	}
	return src.Stats(ctx, d.projectID)
}

type feedbackThemes struct {
	Themes             []model.Theme                  `json:"themes"`
	SentimentBreakdown model.SentimentBreakdown       `json:"sentiment_breakdown"`
	KeyIssues          []model.KeyIssue               `json:"key_issues"`
	Recommendations    []model.FeedbackRecommendation `json:"recommendations"`
	Narrative          string                         `json:"narrative"`
	CreatedAt          string                         `json:"created_at"`
}

func (d *Dispatcher) feedbackThemes(ctx context.Context, _ json.RawMessage) (any, error) {
	src, err := d.feedbackSource()
	if err != nil {
		return nil, err
	}

	analysis, err := src.LatestAnalysis(ctx, d.projectID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return map[string]string{"message": noAnalysisMessage}, nil
	}

	return feedbackThemes{
		Themes:             analysis.Analysis.Themes,
		SentimentBreakdown: analysis.Analysis.SentimentBreakdown,
		KeyIssues:          analysis.Analysis.KeyIssues,
		Recommendations:    analysis.Analysis.Recommendations,
		Narrative:          analysis.Narrative,
		CreatedAt:          analysis.CreatedAt.Format(analysisTimeLayout),
	}, nil
}

package cro_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/model"
)

// scriptedClient answers each call with the next response of the script. Once
// the script is exhausted the last response repeats.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*llm.AgentResponse
	err       error
	requests  []llm.AgentRequest
}

func (c *scriptedClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	c.requests = append(c.requests, snapshot)

	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := len(c.requests) - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	return c.responses[idx], nil
}

func (c *scriptedClient) Model() string { return "test-model" }

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type mockFunnel struct {
	hasData     bool
	funnelFn    func(ctx context.Context, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error)
	pagePathsFn func(ctx context.Context, start, end string) ([]analytics.PagePathStats, error)
}

func (m *mockFunnel) Funnel(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error) {
	if m.funnelFn != nil {
		return m.funnelFn(ctx, dim, start, end)
	}
	return []analytics.FunnelStage{}, nil
}

func (m *mockFunnel) PagePaths(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.PagePathStats, error) {
	if m.pagePathsFn != nil {
		return m.pagePathsFn(ctx, start, end)
	}
	return []analytics.PagePathStats{}, nil
}

func (m *mockFunnel) HasData(projectID, connectorID uuid.UUID) bool {
	return m.hasData
}

type mockFeedback struct {
	searchFn  func(ctx context.Context, query string, limit int, minSimilarity float64) ([]model.SimilarComment, error)
	periodFn  func(ctx context.Context, start, end time.Time, limit int) ([]model.SurveyComment, error)
	stats     *model.SurveyStats
	analysis  *model.FeedbackAnalysis
	latestErr error
}

func (m *mockFeedback) SearchComments(ctx context.Context, projectID uuid.UUID, query string, limit int, minSimilarity float64) ([]model.SimilarComment, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit, minSimilarity)
	}
	return []model.SimilarComment{}, nil
}

func (m *mockFeedback) CommentsByPeriod(ctx context.Context, projectID uuid.UUID, start, end time.Time, limit int) ([]model.SurveyComment, error) {
	if m.periodFn != nil {
		return m.periodFn(ctx, start, end, limit)
	}
	return []model.SurveyComment{}, nil
}

func (m *mockFeedback) Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error) {
	if m.stats == nil {
		return &model.SurveyStats{}, nil
	}
	return m.stats, nil
}

func (m *mockFeedback) LatestAnalysis(ctx context.Context, projectID uuid.UUID) (*model.FeedbackAnalysis, error) {
	return m.analysis, m.latestErr
}

// cancellingFeedback cancels the run when the agent asks for survey stats.
type cancellingFeedback struct {
	mockFeedback
	cancel context.CancelFunc
}

func (c *cancellingFeedback) Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error) {
	c.cancel()
	return &model.SurveyStats{}, nil
}

type mockReportStore struct {
	mu        sync.Mutex
	created   []*model.CroReport
	createErr error
}

func (m *mockReportStore) Create(ctx context.Context, report *model.CroReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, report)
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id uuid.UUID) (*model.CroReport, error) {
	return nil, errors.New("not implemented")
}

func (m *mockReportStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error) {
	return nil, errors.New("not implemented")
}

type recordingProgress struct {
	mu     sync.Mutex
	events []cro.ProgressEvent
}

func (r *recordingProgress) Report(ctx context.Context, event cro.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingProgress) types() []cro.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]cro.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func str(s string) *string   { return &s }

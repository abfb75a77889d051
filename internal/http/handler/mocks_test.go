package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/service"
)

type mockReportService struct {
	generateFn func(ctx context.Context, projectID uuid.UUID) (*model.CroReport, error)
	enqueueFn  func(ctx context.Context, projectID uuid.UUID) (*service.ReportJob, error)
	listFn     func(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error)
	getFn      func(ctx context.Context, projectID, reportID uuid.UUID) (*model.CroReport, error)
}

func (m *mockReportService) Generate(ctx context.Context, projectID uuid.UUID) (*model.CroReport, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockReportService) Enqueue(ctx context.Context, projectID uuid.UUID) (*service.ReportJob, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockReportService) List(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error) {
	if m.listFn != nil {
		return m.listFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockReportService) Get(ctx context.Context, projectID, reportID uuid.UUID) (*model.CroReport, error) {
	if m.getFn != nil {
		return m.getFn(ctx, projectID, reportID)
	}
	return nil, nil
}

type mockAnalyticsService struct {
	gotDimension analytics.Dimension
	gotStart     string
	gotEnd       string
	err          error
}

func (m *mockAnalyticsService) Funnel(_ context.Context, _, _ uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error) {
	m.gotDimension, m.gotStart, m.gotEnd = dim, start, end
	if m.err != nil {
		return nil, m.err
	}
	return []analytics.FunnelStage{{StageOrder: 1, FunnelStage: "Home", Dimension: "all", TotalUsers: 100}}, nil
}

func (m *mockAnalyticsService) ScrollDepth(_ context.Context, _, _ uuid.UUID, dim analytics.Dimension, _, _ string) ([]analytics.ScrollDepth, error) {
	m.gotDimension = dim
	return []analytics.ScrollDepth{}, m.err
}

func (m *mockAnalyticsService) PagePaths(context.Context, uuid.UUID, uuid.UUID, string, string) ([]analytics.PagePathStats, error) {
	return []analytics.PagePathStats{}, m.err
}

func (m *mockAnalyticsService) EventNames(context.Context, uuid.UUID, uuid.UUID, string, string) ([]analytics.EventNameCount, error) {
	return []analytics.EventNameCount{}, m.err
}

type mockQualitativeService struct {
	searchFn  func(ctx context.Context, projectID uuid.UUID, q service.SearchQuery) ([]model.SimilarComment, error)
	analyzeFn func(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error)
	enqueueFn func(ctx context.Context, projectID uuid.UUID) (int64, error)
}

func (m *mockQualitativeService) Stats(context.Context, uuid.UUID) (*model.SurveyStats, error) {
	return &model.SurveyStats{TotalResponses: 12}, nil
}

func (m *mockQualitativeService) EmbeddingStatus(context.Context, uuid.UUID) (*model.EmbeddingStatus, error) {
	return &model.EmbeddingStatus{Total: 12, Pending: 2}, nil
}

func (m *mockQualitativeService) EnqueueEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, projectID)
	}
	return 0, nil
}

func (m *mockQualitativeService) SearchComments(ctx context.Context, projectID uuid.UUID, q service.SearchQuery) ([]model.SimilarComment, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, projectID, q)
	}
	return nil, nil
}

func (m *mockQualitativeService) AnalyzeFeedback(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error) {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, projectID, force)
	}
	return nil, nil
}

// scriptedProgress returns one batch per Read, then nothing.
type scriptedProgress struct {
	mu      sync.Mutex
	batches [][]cro.ProgressEvent
	cursors []string
}

func (p *scriptedProgress) Read(ctx context.Context, _ uuid.UUID, lastID string, _ time.Duration) ([]cro.ProgressEvent, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursors = append(p.cursors, lastID)
	if len(p.batches) == 0 {
		return nil, lastID, ctx.Err()
	}
	batch := p.batches[0]
	p.batches = p.batches[1:]
	cursor := lastID
	if len(batch) > 0 {
		cursor = batch[len(batch)-1].ID
	}
	return batch, cursor, nil
}

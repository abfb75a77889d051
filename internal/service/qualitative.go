package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/id"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/queue"
	"github.com/oraclewalid/discoveo/internal/store"
)

const (
	DefaultSearchLimit         = 10
	DefaultSearchMinSimilarity = 0.5
	maxSearchLimit             = 100
)

// CommentSource is the read side of survey data. *qualitative.Bridge implements it.
type CommentSource interface {
	SearchComments(ctx context.Context, projectID uuid.UUID, query string, limit int, minSimilarity float64) ([]model.SimilarComment, error)
	Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error)
	EmbeddingStatus(ctx context.Context, projectID uuid.UUID) (*model.EmbeddingStatus, error)
}

// FeedbackAnalyzer produces theme analyses. *qualitative.Analyzer implements it.
type FeedbackAnalyzer interface {
	Analyze(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error)
}

// SearchQuery is a semantic comment search. Nil fields take the defaults.
type SearchQuery struct {
	Query         string
	Limit         *int
	MinSimilarity *float64
}

type QualitativeService interface {
	Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error)
	EmbeddingStatus(ctx context.Context, projectID uuid.UUID) (*model.EmbeddingStatus, error)
	// EnqueueEmbeddings schedules an embedding backfill and returns its job id.
	EnqueueEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error)
	SearchComments(ctx context.Context, projectID uuid.UUID, q SearchQuery) ([]model.SimilarComment, error)
	AnalyzeFeedback(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error)
}

type qualitativeService struct {
	projects store.ProjectStore
	comments CommentSource
	analyzer FeedbackAnalyzer
	producer queue.Producer
}

func NewQualitativeService(projects store.ProjectStore, comments CommentSource, analyzer FeedbackAnalyzer, producer queue.Producer) QualitativeService {
	return &qualitativeService{
		projects: projects,
		comments: comments,
		analyzer: analyzer,
		producer: producer,
	}
}

func (s *qualitativeService) Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.comments.Stats(ctx, projectID)
}

func (s *qualitativeService) EmbeddingStatus(ctx context.Context, projectID uuid.UUID) (*model.EmbeddingStatus, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.comments.EmbeddingStatus(ctx, projectID)
}

func (s *qualitativeService) EnqueueEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error) {
	if s.producer == nil {
		return 0, ErrQueueDisabled
	}
	if err := s.ensureProject(ctx, projectID); err != nil {
		return 0, err
	}

	jobID := id.New()
	task := queue.Task{
		TaskType:  queue.TaskTypeSurveyEmbedding,
		ProjectID: projectID,
		RunID:     jobID,
		TraceID:   traceIDFrom(ctx),
	}
	if err := s.producer.Enqueue(ctx, task); err != nil {
		return 0, fmt.Errorf("enqueueing embedding backfill: %w", err)
	}
	return jobID, nil
}

func (s *qualitativeService) SearchComments(ctx context.Context, projectID uuid.UUID, q SearchQuery) ([]model.SimilarComment, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	limit := DefaultSearchLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	if limit <= 0 || limit > maxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxSearchLimit)
	}

	minSimilarity := DefaultSearchMinSimilarity
	if q.MinSimilarity != nil {
		minSimilarity = *q.MinSimilarity
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, fmt.Errorf("%w: min_similarity must be between 0 and 1", ErrInvalidInput)
	}

	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.comments.SearchComments(ctx, projectID, query, limit, minSimilarity)
}

func (s *qualitativeService) AnalyzeFeedback(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, projectID, force)
}

func (s *qualitativeService) ensureProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return notFound(err, ErrProjectNotFound)
	}
	return nil
}

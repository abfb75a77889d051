package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ProjectStore defines the contract for project data access
type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
}

// ConnectorStore defines the contract for connector data access
type ConnectorStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Connector, error)
	// FirstByType returns the oldest connector of the given type in a project.
	FirstByType(ctx context.Context, projectID uuid.UUID, connectorType model.ConnectorType) (*model.Connector, error)
}

// SurveyStore defines the contract for survey response data access
type SurveyStore interface {
	FindSimilar(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int, minSimilarity float64) ([]model.SimilarComment, error)
	CommentsByPeriod(ctx context.Context, projectID uuid.UUID, start, end time.Time, limit int) ([]model.SurveyComment, error)
	RecentComments(ctx context.Context, projectID uuid.UUID, limit int) ([]model.SurveyComment, error)
	CountComments(ctx context.Context, projectID uuid.UUID) (int64, error)
	Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error)
	EmbeddingStatus(ctx context.Context, projectID uuid.UUID) (*model.EmbeddingStatus, error)
	PendingEmbeddings(ctx context.Context, projectID uuid.UUID, limit int) ([]model.SurveyResponse, error)
	UpdateEmbedding(ctx context.Context, responseID uuid.UUID, embedding []float32) error
	UpdateEmbeddingStatus(ctx context.Context, responseID uuid.UUID, state model.EmbeddingState) error
}

// FeedbackStore defines the contract for feedback analysis data access
type FeedbackStore interface {
	// FindCached returns the newest analysis created after since for the same
	// number of commented responses.
	FindCached(ctx context.Context, projectID uuid.UUID, responseCount int, since time.Time) (*model.FeedbackAnalysis, error)
	Latest(ctx context.Context, projectID uuid.UUID) (*model.FeedbackAnalysis, error)
	Create(ctx context.Context, analysis *model.FeedbackAnalysis) error
}

// CroReportStore defines the contract for CRO report data access
type CroReportStore interface {
	Create(ctx context.Context, report *model.CroReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.CroReport, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error)
}

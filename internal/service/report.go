package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/oraclewalid/discoveo/common/id"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/queue"
	"github.com/oraclewalid/discoveo/internal/store"
)

// ReportGenerator runs one CRO audit. *cro.Agent implements it.
type ReportGenerator interface {
	GenerateReportWithRunID(ctx context.Context, projectID, connectorID uuid.UUID, runID int64) (*model.CroReport, error)
}

// ReportJob identifies an audit queued for the worker.
type ReportJob struct {
	RunID       int64
	ProjectID   uuid.UUID
	ConnectorID uuid.UUID
}

type ReportService interface {
	// Generate audits the project's GA4 connector and waits for the report.
	Generate(ctx context.Context, projectID uuid.UUID) (*model.CroReport, error)
	// Enqueue schedules the same audit on the worker.
	Enqueue(ctx context.Context, projectID uuid.UUID) (*ReportJob, error)
	List(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error)
	Get(ctx context.Context, projectID, reportID uuid.UUID) (*model.CroReport, error)
}

type reportService struct {
	projects   store.ProjectStore
	connectors store.ConnectorStore
	reports    store.CroReportStore
	generator  ReportGenerator
	producer   queue.Producer
}

// NewReportService wires the report operations. producer may be nil, in
// which case Enqueue fails with ErrQueueDisabled.
func NewReportService(projects store.ProjectStore, connectors store.ConnectorStore, reports store.CroReportStore, generator ReportGenerator, producer queue.Producer) ReportService {
	return &reportService{
		projects:   projects,
		connectors: connectors,
		reports:    reports,
		generator:  generator,
		producer:   producer,
	}
}

func (s *reportService) Generate(ctx context.Context, projectID uuid.UUID) (*model.CroReport, error) {
	connector, err := s.resolveConnector(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report, err := s.generator.GenerateReportWithRunID(ctx, projectID, connector.ID, id.New())
	if err != nil {
		return nil, fmt.Errorf("generating report: %w", err)
	}
	return report, nil
}

func (s *reportService) Enqueue(ctx context.Context, projectID uuid.UUID) (*ReportJob, error) {
	if s.producer == nil {
		return nil, ErrQueueDisabled
	}

	connector, err := s.resolveConnector(ctx, projectID)
	if err != nil {
		return nil, err
	}

	job := &ReportJob{
		RunID:       id.New(),
		ProjectID:   projectID,
		ConnectorID: connector.ID,
	}
	task := queue.Task{
		TaskType:    queue.TaskTypeCroReport,
		ProjectID:   projectID,
		ConnectorID: &job.ConnectorID,
		RunID:       job.RunID,
		TraceID:     traceIDFrom(ctx),
	}
	if err := s.producer.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueueing report: %w", err)
	}
	return job, nil
}

func (s *reportService) List(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	reports, err := s.reports.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

func (s *reportService) Get(ctx context.Context, projectID, reportID uuid.UUID) (*model.CroReport, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, notFound(err, ErrReportNotFound)
	}
	if report.ProjectID != projectID {
		return nil, ErrReportNotFound
	}
	return report, nil
}

func (s *reportService) ensureProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return notFound(err, ErrProjectNotFound)
	}
	return nil
}

// resolveConnector returns the oldest GA4 connector of an existing project.
func (s *reportService) resolveConnector(ctx context.Context, projectID uuid.UUID) (*model.Connector, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	connector, err := s.connectors.FirstByType(ctx, projectID, model.ConnectorTypeGA4)
	if err != nil {
		return nil, notFound(err, ErrNoGA4Connector)
	}
	return connector, nil
}

func traceIDFrom(ctx context.Context) *string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return nil
	}
	traceID := sc.TraceID().String()
	return &traceID
}

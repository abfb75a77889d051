package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/store"
)

// AnalyticsEngine reads connector datasets. *analytics.Engine implements it.
type AnalyticsEngine interface {
	Funnel(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error)
	ScrollDepth(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.ScrollDepth, error)
	PagePaths(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.PagePathStats, error)
	EventNames(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.EventNameCount, error)
}

// AnalyticsService exposes a GA4 connector's dataset. Dates are YYYYMMDD and
// an empty bound is open.
type AnalyticsService interface {
	Funnel(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error)
	ScrollDepth(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.ScrollDepth, error)
	PagePaths(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.PagePathStats, error)
	EventNames(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.EventNameCount, error)
}

type analyticsService struct {
	connectors store.ConnectorStore
	engine     AnalyticsEngine
}

func NewAnalyticsService(connectors store.ConnectorStore, engine AnalyticsEngine) AnalyticsService {
	return &analyticsService{connectors: connectors, engine: engine}
}

func (s *analyticsService) Funnel(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error) {
	if err := s.checkConnector(ctx, projectID, connectorID); err != nil {
		return nil, err
	}
	return s.engine.Funnel(ctx, projectID, connectorID, dim, start, end)
}

func (s *analyticsService) ScrollDepth(ctx context.Context, projectID, connectorID uuid.UUID, dim analytics.Dimension, start, end string) ([]analytics.ScrollDepth, error) {
	if err := s.checkConnector(ctx, projectID, connectorID); err != nil {
		return nil, err
	}
	return s.engine.ScrollDepth(ctx, projectID, connectorID, dim, start, end)
}

func (s *analyticsService) PagePaths(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.PagePathStats, error) {
	if err := s.checkConnector(ctx, projectID, connectorID); err != nil {
		return nil, err
	}
	return s.engine.PagePaths(ctx, projectID, connectorID, start, end)
}

func (s *analyticsService) EventNames(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]analytics.EventNameCount, error) {
	if err := s.checkConnector(ctx, projectID, connectorID); err != nil {
		return nil, err
	}
	return s.engine.EventNames(ctx, projectID, connectorID, start, end)
}

// checkConnector rejects connectors of other projects as if they did not exist.
func (s *analyticsService) checkConnector(ctx context.Context, projectID, connectorID uuid.UUID) error {
	connector, err := s.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return notFound(err, ErrConnectorNotFound)
	}
	if connector.ProjectID != projectID {
		return ErrConnectorNotFound
	}
	if connector.ConnectorType != model.ConnectorTypeGA4 {
		return ErrNotGA4Connector
	}
	return nil
}

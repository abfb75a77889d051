package service

import (
	"github.com/oraclewalid/discoveo/internal/queue"
	"github.com/oraclewalid/discoveo/internal/store"
)

// Deps are the collaborators the services are built from. Producer may be nil.
type Deps struct {
	Generator ReportGenerator
	Engine    AnalyticsEngine
	Comments  CommentSource
	Analyzer  FeedbackAnalyzer
	Producer  queue.Producer
}

type Services struct {
	stores *store.Stores
	deps   Deps
}

func NewServices(stores *store.Stores, deps Deps) *Services {
	return &Services{
		stores: stores,
		deps:   deps,
	}
}

func (s *Services) Reports() ReportService {
	return NewReportService(
		s.stores.Projects(),
		s.stores.Connectors(),
		s.stores.CroReports(),
		s.deps.Generator,
		s.deps.Producer,
	)
}

func (s *Services) Analytics() AnalyticsService {
	return NewAnalyticsService(s.stores.Connectors(), s.deps.Engine)
}

func (s *Services) Qualitative() QualitativeService {
	return NewQualitativeService(
		s.stores.Projects(),
		s.deps.Comments,
		s.deps.Analyzer,
		s.deps.Producer,
	)
}

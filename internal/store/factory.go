package store

import (
	"github.com/oraclewalid/discoveo/core/db"
)

type Stores struct {
	conn db.DBTX
}

func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Projects() ProjectStore {
	return newProjectStore(s.conn)
}

func (s *Stores) Connectors() ConnectorStore {
	return newConnectorStore(s.conn)
}

func (s *Stores) Surveys() SurveyStore {
	return newSurveyStore(s.conn)
}

func (s *Stores) Feedback() FeedbackStore {
	return newFeedbackStore(s.conn)
}

func (s *Stores) CroReports() CroReportStore {
	return newCroReportStore(s.conn)
}

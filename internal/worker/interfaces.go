package worker

import (
	"context"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/qualitative"
	"github.com/oraclewalid/discoveo/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// ReportGenerator runs a CRO audit under a run id chosen at enqueue time.
type ReportGenerator interface {
	GenerateReportWithRunID(ctx context.Context, projectID, connectorID uuid.UUID, runID int64) (*model.CroReport, error)
}

type EmbeddingBackfiller interface {
	Run(ctx context.Context, projectID uuid.UUID) (*qualitative.BackfillResult, error)
}

type FeedbackAnalyzer interface {
	Analyze(ctx context.Context, projectID uuid.UUID, force bool) (*model.FeedbackAnalysis, error)
}

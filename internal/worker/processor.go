package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/metrics"
	"github.com/oraclewalid/discoveo/internal/qualitative"
	"github.com/oraclewalid/discoveo/internal/queue"
	"github.com/oraclewalid/discoveo/internal/store"
)

// ErrTaskDisabled is returned for tasks whose dependency is not configured.
var ErrTaskDisabled = errors.New("task type is not enabled on this worker")

// ErrInvalidTask is returned for messages missing a field their task type needs.
var ErrInvalidTask = errors.New("invalid task")

// Processor executes queue tasks. Any dependency may be nil; its tasks then
// fail permanently with ErrTaskDisabled.
type Processor struct {
	reports    ReportGenerator
	embeddings EmbeddingBackfiller
	feedback   FeedbackAnalyzer
	progress   cro.ProgressReporter
}

func NewProcessor(reports ReportGenerator, embeddings EmbeddingBackfiller, feedback FeedbackAnalyzer, progress cro.ProgressReporter) *Processor {
	return &Processor{
		reports:    reports,
		embeddings: embeddings,
		feedback:   feedback,
		progress:   progress,
	}
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) (err error) {
	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		metrics.TasksProcessed.WithLabelValues(string(msg.TaskType), status).Inc()
		slog.DebugContext(ctx, "task finished",
			"task_type", msg.TaskType,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds())
	}()

	switch msg.TaskType {
	case queue.TaskTypeCroReport:
		return p.generateReport(ctx, msg)
	case queue.TaskTypeSurveyEmbedding:
		return p.backfillEmbeddings(ctx, msg)
	case queue.TaskTypeFeedbackAnalysis:
		return p.analyzeFeedback(ctx, msg)
	default:
		return fmt.Errorf("unsupported task type %q", msg.TaskType)
	}
}

func (p *Processor) generateReport(ctx context.Context, msg queue.Message) error {
	if p.reports == nil {
		return ErrTaskDisabled
	}
	if msg.ConnectorID == nil {
		return fmt.Errorf("%w: cro_report without connector_id", ErrInvalidTask)
	}

	report, err := p.reports.GenerateReportWithRunID(ctx, msg.ProjectID, *msg.ConnectorID, msg.RunID)
	if err != nil {
		// The agent only streams events once a run has started.
		if cro.IsPrecondition(err) && p.progress != nil {
			p.progress.Report(ctx, cro.ProgressEvent{
				Type:        cro.EventRunFailed,
				RunID:       msg.RunID,
				ProjectID:   msg.ProjectID,
				ConnectorID: *msg.ConnectorID,
				Error:       err.Error(),
				At:          time.Now(),
			})
		}
		return fmt.Errorf("generating cro report: %w", err)
	}

	slog.InfoContext(ctx, "cro report generated",
		"report_id", report.ID,
		"tool_calls", report.ToolCallsCount,
		"duration_ms", report.DurationMs)
	return nil
}

func (p *Processor) backfillEmbeddings(ctx context.Context, msg queue.Message) error {
	if p.embeddings == nil {
		return ErrTaskDisabled
	}

	result, err := p.embeddings.Run(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("backfilling embeddings: %w", err)
	}

	slog.InfoContext(ctx, "embedding backfill finished",
		"total", result.Total,
		"completed", result.Completed,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return nil
}

func (p *Processor) analyzeFeedback(ctx context.Context, msg queue.Message) error {
	if p.feedback == nil {
		return ErrTaskDisabled
	}

	analysis, err := p.feedback.Analyze(ctx, msg.ProjectID, msg.Force)
	if err != nil {
		return fmt.Errorf("analyzing feedback: %w", err)
	}

	slog.InfoContext(ctx, "feedback analysis ready",
		"analysis_id", analysis.ID,
		"response_count", analysis.ResponseCount)
	return nil
}

// Retryable reports whether a failed task is worth another attempt.
func Retryable(ctx context.Context, err error) bool {
	var parseErr *cro.ParseError
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTaskDisabled),
		errors.Is(err, ErrInvalidTask),
		errors.Is(err, analytics.ErrNoData),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, qualitative.ErrNotEnoughComments),
		errors.Is(err, qualitative.ErrInvalidAnalysis),
		errors.Is(err, qualitative.ErrNoEmbedder),
		cro.IsPrecondition(err),
		errors.As(err, &parseErr):
		return false
	default:
		return llm.IsRetryable(ctx, err)
	}
}

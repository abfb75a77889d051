package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/model"
)

type croReportStore struct {
	db db.DBTX
}

func newCroReportStore(conn db.DBTX) CroReportStore {
	return &croReportStore{db: conn}
}

const croReportColumns = `id, project_id, connector_id, created_at, executive_summary, funnel_analysis, qualitative_insights,
	recommendations, model_used, input_tokens, output_tokens, tool_calls_count, duration_ms`

func (s *croReportStore) Create(ctx context.Context, r *model.CroReport) error {
	funnel, err := json.Marshal(r.FunnelAnalysis)
	if err != nil {
		return fmt.Errorf("marshal funnel analysis: %w", err)
	}
	qualitative, err := json.Marshal(r.QualitativeInsights)
	if err != nil {
		return fmt.Errorf("marshal qualitative insights: %w", err)
	}
	recommendations, err := json.Marshal(r.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO cro_reports (`+croReportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.ProjectID, r.ConnectorID, r.CreatedAt, r.ExecutiveSummary, funnel, qualitative, recommendations,
		r.ModelUsed, r.InputTokens, r.OutputTokens, r.ToolCallsCount, r.DurationMs)
	if err != nil {
		return fmt.Errorf("insert cro report: %w", err)
	}
	return nil
}

func (s *croReportStore) GetByID(ctx context.Context, id uuid.UUID) (*model.CroReport, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+croReportColumns+`
		FROM cro_reports
		WHERE id = $1`, id)
	report, err := scanCroReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// ListByProject returns reports newest first. Rows whose JSON no longer
// decodes are skipped.
func (s *croReportStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.CroReport, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+croReportColumns+`
		FROM cro_reports
		WHERE project_id = $1
		ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query cro reports: %w", err)
	}
	defer rows.Close()

	reports := []model.CroReport{}
	for rows.Next() {
		report, err := scanCroReport(rows)
		if err != nil {
			var decodeErr *reportDecodeError
			if errors.As(err, &decodeErr) {
				continue
			}
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

type reportDecodeError struct {
	field string
	err   error
}

func (e *reportDecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.field, e.err)
}

func (e *reportDecodeError) Unwrap() error {
	return e.err
}

func scanCroReport(row pgx.Row) (*model.CroReport, error) {
	var r model.CroReport
	var funnel, qualitative, recommendations []byte
	if err := row.Scan(&r.ID, &r.ProjectID, &r.ConnectorID, &r.CreatedAt, &r.ExecutiveSummary,
		&funnel, &qualitative, &recommendations,
		&r.ModelUsed, &r.InputTokens, &r.OutputTokens, &r.ToolCallsCount, &r.DurationMs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(funnel, &r.FunnelAnalysis); err != nil {
		return nil, &reportDecodeError{field: "funnel_analysis", err: err}
	}
	if err := json.Unmarshal(qualitative, &r.QualitativeInsights); err != nil {
		return nil, &reportDecodeError{field: "qualitative_insights", err: err}
	}
	if err := json.Unmarshal(recommendations, &r.Recommendations); err != nil {
		return nil, &reportDecodeError{field: "recommendations", err: err}
	}
	return &r, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/model"
)

type feedbackStore struct {
	db db.DBTX
}

func newFeedbackStore(conn db.DBTX) FeedbackStore {
	return &feedbackStore{db: conn}
}

const feedbackColumns = `id, project_id, created_at, response_count, analysis, narrative, model_used, input_tokens, output_tokens, duration_ms`

func (s *feedbackStore) FindCached(ctx context.Context, projectID uuid.UUID, responseCount int, since time.Time) (*model.FeedbackAnalysis, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback_analyses
		WHERE project_id = $1
		  AND response_count = $2
		  AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1`, projectID, responseCount, since)
	return scanFeedback(row)
}

func (s *feedbackStore) Latest(ctx context.Context, projectID uuid.UUID) (*model.FeedbackAnalysis, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback_analyses
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, projectID)
	return scanFeedback(row)
}

func (s *feedbackStore) Create(ctx context.Context, a *model.FeedbackAnalysis) error {
	analysis, err := json.Marshal(a.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO feedback_analyses (`+feedbackColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.ProjectID, a.CreatedAt, a.ResponseCount, analysis, a.Narrative, a.ModelUsed,
		a.InputTokens, a.OutputTokens, a.DurationMs)
	if err != nil {
		return fmt.Errorf("insert feedback analysis: %w", err)
	}
	return nil
}

// scanFeedback tolerates an analysis document that no longer matches the
// current shape and returns it empty rather than failing the read.
func scanFeedback(row pgx.Row) (*model.FeedbackAnalysis, error) {
	var a model.FeedbackAnalysis
	var raw []byte
	err := row.Scan(&a.ID, &a.ProjectID, &a.CreatedAt, &a.ResponseCount, &raw, &a.Narrative, &a.ModelUsed,
		&a.InputTokens, &a.OutputTokens, &a.DurationMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &a.Analysis); err != nil {
		a.Analysis = model.StructuredAnalysis{}
	}
	return &a, nil
}

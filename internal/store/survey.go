package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/model"
)

type surveyStore struct {
	db db.DBTX
}

func newSurveyStore(conn db.DBTX) SurveyStore {
	return &surveyStore{db: conn}
}

const surveyColumns = `id, project_id, date, country, url, device, browser, os, ratings, comments, embedding_status, embedding_generated_at`

// FindSimilar ranks embedded comments by cosine similarity to embedding.
func (s *surveyStore) FindSimilar(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int, minSimilarity float64) ([]model.SimilarComment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+surveyColumns+`,
		       1 - (comment_embedding <=> $1) AS similarity
		FROM survey_responses
		WHERE project_id = $2
		  AND comment_embedding IS NOT NULL
		  AND 1 - (comment_embedding <=> $1) >= $3
		ORDER BY comment_embedding <=> $1
		LIMIT $4`,
		pgvector.NewVector(embedding), projectID, minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar comments: %w", err)
	}
	defer rows.Close()

	var results []model.SimilarComment
	for rows.Next() {
		var r model.SurveyResponse
		var status *string
		var similarity float64
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Date, &r.Country, &r.URL, &r.Device, &r.Browser, &r.OS,
			&r.Rating, &r.Comment, &status, &r.EmbeddingGeneratedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scan similar comment: %w", err)
		}
		if status != nil {
			r.EmbeddingStatus = model.EmbeddingState(*status)
		}
		results = append(results, model.SimilarComment{Response: r, Similarity: similarity})
	}
	return results, rows.Err()
}

// CommentsByPeriod returns non-empty comments dated within [start, end], newest first.
func (s *surveyStore) CommentsByPeriod(ctx context.Context, projectID uuid.UUID, start, end time.Time, limit int) ([]model.SurveyComment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT comments, ratings, date, country, device, url
		FROM survey_responses
		WHERE project_id = $1
		  AND comments IS NOT NULL
		  AND comments != ''
		  AND date >= $2
		  AND date <= $3
		ORDER BY date DESC NULLS LAST
		LIMIT $4`, projectID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("query comments by period: %w", err)
	}
	return collectComments(rows)
}

// RecentComments returns up to limit non-empty comments, newest first.
func (s *surveyStore) RecentComments(ctx context.Context, projectID uuid.UUID, limit int) ([]model.SurveyComment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT comments, ratings, date, country, device, url
		FROM survey_responses
		WHERE project_id = $1
		  AND comments IS NOT NULL
		  AND comments != ''
		ORDER BY date DESC NULLS LAST
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent comments: %w", err)
	}
	return collectComments(rows)
}

func collectComments(rows pgx.Rows) ([]model.SurveyComment, error) {
	defer rows.Close()

	var comments []model.SurveyComment
	for rows.Next() {
		var c model.SurveyComment
		if err := rows.Scan(&c.Comment, &c.Rating, &c.Date, &c.Country, &c.Device, &c.URL); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *surveyStore) CountComments(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM survey_responses
		WHERE project_id = $1
		  AND comments IS NOT NULL
		  AND comments != ''`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

func (s *surveyStore) Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error) {
	var stats model.SurveyStats
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			AVG(ratings),
			MIN(date),
			MAX(date),
			COUNT(CASE WHEN comments IS NOT NULL AND comments != '' THEN 1 END)
		FROM survey_responses
		WHERE project_id = $1`, projectID,
	).Scan(&stats.TotalResponses, &stats.AverageRating, &stats.FirstResponseDate, &stats.LastResponseDate, &stats.ResponsesWithComments)
	if err != nil {
		return nil, fmt.Errorf("survey stats: %w", err)
	}
	return &stats, nil
}

func (s *surveyStore) EmbeddingStatus(ctx context.Context, projectID uuid.UUID) (*model.EmbeddingStatus, error) {
	var st model.EmbeddingStatus
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE embedding_status = 'pending'),
			COUNT(*) FILTER (WHERE embedding_status = 'completed'),
			COUNT(*) FILTER (WHERE embedding_status = 'failed'),
			COUNT(*) FILTER (WHERE embedding_status = 'skipped')
		FROM survey_responses
		WHERE project_id = $1`, projectID,
	).Scan(&st.Total, &st.Pending, &st.Completed, &st.Failed, &st.Skipped)
	if err != nil {
		return nil, fmt.Errorf("embedding status: %w", err)
	}
	return &st, nil
}

// PendingEmbeddings returns commented responses still waiting for a vector.
func (s *surveyStore) PendingEmbeddings(ctx context.Context, projectID uuid.UUID, limit int) ([]model.SurveyResponse, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+surveyColumns+`
		FROM survey_responses
		WHERE project_id = $1
		  AND embedding_status = 'pending'
		  AND comments IS NOT NULL
		  AND comments != ''
		ORDER BY date DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending embeddings: %w", err)
	}
	defer rows.Close()

	var responses []model.SurveyResponse
	for rows.Next() {
		var r model.SurveyResponse
		var status *string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Date, &r.Country, &r.URL, &r.Device, &r.Browser, &r.OS,
			&r.Rating, &r.Comment, &status, &r.EmbeddingGeneratedAt); err != nil {
			return nil, fmt.Errorf("scan survey response: %w", err)
		}
		if status != nil {
			r.EmbeddingStatus = model.EmbeddingState(*status)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func (s *surveyStore) UpdateEmbedding(ctx context.Context, responseID uuid.UUID, embedding []float32) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE survey_responses
		SET comment_embedding = $1,
		    embedding_status = 'completed',
		    embedding_generated_at = NOW()
		WHERE id = $2`, pgvector.NewVector(embedding), responseID)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *surveyStore) UpdateEmbeddingStatus(ctx context.Context, responseID uuid.UUID, state model.EmbeddingState) error {
	_, err := s.db.Exec(ctx, `
		UPDATE survey_responses
		SET embedding_status = $1
		WHERE id = $2`, string(state), responseID)
	if err != nil {
		return fmt.Errorf("update embedding status: %w", err)
	}
	return nil
}

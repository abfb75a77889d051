package qualitative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/store"
)

var (
	ErrEmptyQuery = errors.New("Empty query produced no embedding") //nolint:staticcheck // surfaced to the agent verbatim
	ErrNoEmbedder = errors.New("embedding provider is not configured")
)

// Bridge gives the agent and the HTTP API read access to survey feedback:
// semantic comment search, period lookups, counters and the cached theme
// analysis.
type Bridge struct {
	embedder llm.Embedder
	surveys  store.SurveyStore
	feedback store.FeedbackStore
}

// NewBridge creates a Bridge. embedder may be nil, in which case semantic
// search reports ErrNoEmbedder and everything else still works.
func NewBridge(embedder llm.Embedder, surveys store.SurveyStore, feedback store.FeedbackStore) *Bridge {
	return &Bridge{embedder: embedder, surveys: surveys, feedback: feedback}
}

// SearchComments embeds query and returns the most similar comments at or
// above minSimilarity, best match first.
func (b *Bridge) SearchComments(ctx context.Context, projectID uuid.UUID, query string, limit int, minSimilarity float64) ([]model.SimilarComment, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if b.embedder == nil {
		return nil, ErrNoEmbedder
	}

	vectors, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyQuery
	}

	results, err := b.surveys.FindSimilar(ctx, projectID, vectors[0], limit, minSimilarity)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []model.SimilarComment{}
	}
	return results, nil
}

func (b *Bridge) CommentsByPeriod(ctx context.Context, projectID uuid.UUID, start, end time.Time, limit int) ([]model.SurveyComment, error) {
	comments, err := b.surveys.CommentsByPeriod(ctx, projectID, start, end, limit)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []model.SurveyComment{}
	}
	return comments, nil
}

func (b *Bridge) Stats(ctx context.Context, projectID uuid.UUID) (*model.SurveyStats, error) {
	return b.surveys.Stats(ctx, projectID)
}

func (b *Bridge) EmbeddingStatus(ctx context.Context, projectID uuid.UUID) (*model.EmbeddingStatus, error) {
	return b.surveys.EmbeddingStatus(ctx, projectID)
}

// LatestAnalysis returns the newest cached theme analysis, or nil when the
// project's comments were never analyzed.
func (b *Bridge) LatestAnalysis(ctx context.Context, projectID uuid.UUID) (*model.FeedbackAnalysis, error) {
	analysis, err := b.feedback.Latest(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

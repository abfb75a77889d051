package qualitative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/metrics"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/store"
)

// MaxEmbeddingBatch bounds how many pending responses one backfill handles.
const MaxEmbeddingBatch = 1000

type BackfillResult struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Backfiller generates comment embeddings for responses still pending.
type Backfiller struct {
	embedder llm.Embedder
	surveys  store.SurveyStore
}

func NewBackfiller(embedder llm.Embedder, surveys store.SurveyStore) *Backfiller {
	return &Backfiller{embedder: embedder, surveys: surveys}
}

// Run embeds up to MaxEmbeddingBatch pending comments in one provider call.
// Blank comments are marked skipped. When the provider call fails every
// loaded response is marked failed and the error is returned.
func (b *Backfiller) Run(ctx context.Context, projectID uuid.UUID) (*BackfillResult, error) {
	if b.embedder == nil {
		return nil, ErrNoEmbedder
	}

	pending, err := b.surveys.PendingEmbeddings(ctx, projectID, MaxEmbeddingBatch)
	if err != nil {
		return nil, fmt.Errorf("load pending embeddings: %w", err)
	}
	result := &BackfillResult{Total: len(pending)}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "no pending embeddings")
		return result, nil
	}

	var texts []string
	var positions []int
	for i, r := range pending {
		if text := strings.TrimSpace(r.CommentText()); text != "" {
			texts = append(texts, text)
			positions = append(positions, i)
		}
	}

	vectors := make([][]float32, len(pending))
	if len(texts) > 0 {
		embedded, err := b.embedder.Embed(ctx, texts)
		if err == nil && len(embedded) != len(texts) {
			err = fmt.Errorf("embedding count mismatch: got %d, want %d", len(embedded), len(texts))
		}
		if err != nil {
			slog.ErrorContext(ctx, "embedding batch failed", "error", err, "count", len(texts))
			b.markAll(ctx, pending, model.EmbeddingFailed)
			result.Failed = len(pending)
			metrics.EmbeddingsProcessed.WithLabelValues(string(model.EmbeddingFailed)).Add(float64(len(pending)))
			return result, fmt.Errorf("embed comments: %w", err)
		}
		for j, pos := range positions {
			vectors[pos] = embedded[j]
		}
	}

	for i, r := range pending {
		if vectors[i] == nil {
			err = b.surveys.UpdateEmbeddingStatus(ctx, r.ID, model.EmbeddingSkipped)
		} else {
			err = b.surveys.UpdateEmbedding(ctx, r.ID, vectors[i])
		}
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "failed to update embedding", "response_id", r.ID, "error", err)
			result.Failed++
		case vectors[i] == nil:
			result.Skipped++
		default:
			result.Completed++
		}
	}

	metrics.EmbeddingsProcessed.WithLabelValues(string(model.EmbeddingCompleted)).Add(float64(result.Completed))
	metrics.EmbeddingsProcessed.WithLabelValues(string(model.EmbeddingSkipped)).Add(float64(result.Skipped))
	metrics.EmbeddingsProcessed.WithLabelValues(string(model.EmbeddingFailed)).Add(float64(result.Failed))
	slog.InfoContext(ctx, "embedding generation completed",
		"success", result.Completed,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}

func (b *Backfiller) markAll(ctx context.Context, responses []model.SurveyResponse, state model.EmbeddingState) {
	for _, r := range responses {
		if err := b.surveys.UpdateEmbeddingStatus(ctx, r.ID, state); err != nil {
			slog.WarnContext(ctx, "failed to update embedding status",
				"response_id", r.ID,
				"status", state,
				"error", err)
		}
	}
}

// Package app assembles the components shared by the server, the worker and
// the audit CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/core/config"
	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/qualitative"
	"github.com/oraclewalid/discoveo/internal/store"
)

type Components struct {
	Stores     *store.Stores
	Engine     *analytics.Engine
	Bridge     *qualitative.Bridge
	Agent      *cro.Agent
	Analyzer   *qualitative.Analyzer
	Backfiller *qualitative.Backfiller
	// Progress is nil when no Redis client was given.
	Progress *cro.RedisProgress
}

// Build wires stores, analytics, the LLM clients and the agent. Missing LLM
// or embedding credentials are not fatal: the affected operations fail at
// call time with a credential error. agentOpts are applied last.
func Build(ctx context.Context, cfg config.Config, database *db.DB, redisClient *redis.Client, agentOpts ...cro.Option) (*Components, error) {
	stores := store.NewStores(database.Conn())
	engine := analytics.NewEngine(cfg.Analytics.DataDir)

	embedder, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}
	bridge := qualitative.NewBridge(embedder, stores.Surveys(), stores.Feedback())

	agentClient, err := newAgentClient(ctx, "cro agent", cfg.AgentLLM)
	if err != nil {
		return nil, err
	}
	feedbackClient, err := newAgentClient(ctx, "feedback analyzer", cfg.FeedbackLLM)
	if err != nil {
		return nil, err
	}

	analyzer := qualitative.NewAnalyzer(feedbackClient, stores.Surveys(), stores.Feedback(),
		qualitative.WithCredentialEnv(cfg.FeedbackLLM.CredentialEnv),
		qualitative.WithMaxTokens(cfg.FeedbackLLM.MaxTokens))

	c := &Components{
		Stores:   stores,
		Engine:   engine,
		Bridge:   bridge,
		Analyzer: analyzer,
	}
	if embedder != nil {
		c.Backfiller = qualitative.NewBackfiller(embedder, stores.Surveys())
	}

	opts := []cro.Option{
		cro.WithReportStore(stores.CroReports()),
		cro.WithCredentialEnv(cfg.AgentLLM.CredentialEnv),
		cro.WithMaxTokens(cfg.AgentLLM.MaxTokens),
	}
	if redisClient != nil {
		c.Progress = cro.NewRedisProgress(redisClient, cfg.Pipeline.ProgressStream)
		opts = append(opts, cro.WithProgress(c.Progress))
	}
	if cfg.CroDebugDir != "" {
		transcripts, err := store.NewLocalTranscriptStore(cfg.CroDebugDir)
		if err != nil {
			return nil, fmt.Errorf("creating transcript store: %w", err)
		}
		opts = append(opts, cro.WithTranscripts(transcripts))
		slog.InfoContext(ctx, "agent transcripts enabled", "dir", cfg.CroDebugDir)
	}

	opts = append(opts, agentOpts...)
	c.Agent = cro.NewAgent(agentClient, cro.NewTools(engine, bridge), opts...)
	return c, nil
}

func newAgentClient(ctx context.Context, component string, cfg config.LLMConfig) (llm.AgentClient, error) {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "llm credentials missing, calls will fail",
			"component", component,
			"env", cfg.CredentialEnv)
		return nil, nil
	}

	client, err := llm.NewAgentClient(ctx, llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Region:   cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s llm client: %w", component, err)
	}
	slog.InfoContext(ctx, "llm client ready",
		"component", component,
		"provider", cfg.Provider,
		"model", client.Model())
	return client, nil
}

func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (llm.Embedder, error) {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "embedding provider not configured, semantic search disabled")
		return nil, nil
	}

	embedder, err := llm.NewEmbedder(llm.EmbeddingConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

// NewRedis connects to the Redis URL and pings it.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

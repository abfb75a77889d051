package cro

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/oraclewalid/discoveo/common/id"
	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/common/logger"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/metrics"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/store"
)

const (
	// MaxAgentTurns bounds provider calls per run.
	MaxAgentTurns = 25
	// AgentMaxTokens caps the completion tokens of each provider call.
	AgentMaxTokens = 8192

	maxParallelTools = 4
	tokenComponent   = "cro_agent"
)

// Usage accumulates provider and tool counters over a run.
type Usage struct {
	Turns        int
	InputTokens  int
	OutputTokens int
	ToolCalls    int
}

func (u Usage) add(resp *llm.AgentResponse) Usage {
	u.Turns++
	u.InputTokens += resp.PromptTokens
	u.OutputTokens += resp.CompletionTokens
	u.ToolCalls += len(resp.ToolCalls)
	return u
}

// runState is the conversation of one run. It is never shared between runs.
type runState struct {
	messages  []llm.Message
	candidate string // last text block seen, the report candidate
	done      bool
}

// Agent runs the CRO audit conversation.
type Agent struct {
	client        llm.AgentClient
	tools         *Tools
	reports       store.CroReportStore
	transcripts   store.TranscriptStore
	progress      ProgressReporter
	credentialEnv string
	maxTokens     int
	now           func() time.Time
}

type Option func(*Agent)

// WithReportStore persists every generated report.
func WithReportStore(s store.CroReportStore) Option {
	return func(a *Agent) { a.reports = s }
}

// WithTranscripts writes the full conversation of every run, for debugging.
func WithTranscripts(s store.TranscriptStore) Option {
	return func(a *Agent) { a.transcripts = s }
}

func WithProgress(p ProgressReporter) Option {
	return func(a *Agent) {
		if p != nil {
			a.progress = p
		}
	}
}

// WithCredentialEnv names the variable reported when no client is configured.
func WithCredentialEnv(env string) Option {
	return func(a *Agent) { a.credentialEnv = env }
}

func WithMaxTokens(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent builds an agent. client may be nil, in which case every run fails
// with ErrMissingCredential.
func NewAgent(client llm.AgentClient, tools *Tools, opts ...Option) *Agent {
	a := &Agent{
		client:    client,
		tools:     tools,
		progress:  noopProgress{},
		maxTokens: AgentMaxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GenerateReport runs one audit for the connector's GA4 dataset and returns
// the report. Persistence failures are logged and do not fail the run.
func (a *Agent) GenerateReport(ctx context.Context, projectID, connectorID uuid.UUID) (*model.CroReport, error) {
	return a.GenerateReportWithRunID(ctx, projectID, connectorID, id.New())
}

// GenerateReportWithRunID is GenerateReport with a caller-chosen run id, so
// queued jobs and their progress events share one id.
func (a *Agent) GenerateReportWithRunID(ctx context.Context, projectID, connectorID uuid.UUID, runID int64) (*model.CroReport, error) {
	if a.client == nil {
		return nil, precondition(&llm.CredentialError{Env: a.credentialEnv})
	}
	if !a.tools.HasData(projectID, connectorID) {
		return nil, precondition(analytics.ErrNoData)
	}

	projectStr, connectorStr := projectID.String(), connectorID.String()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID:   &projectStr,
		ConnectorID: &connectorStr,
		RunID:       &runID,
		Component:   "discoveo.cro.agent",
	})

	span := logger.StartSpan(ctx, "cro.generate_report")
	defer span.End()
	ctx = span.Context()
	span.SetAttributes(
		attribute.String("project_id", projectStr),
		attribute.String("connector_id", connectorStr),
		attribute.Int64("run_id", runID),
		attribute.String("model", a.client.Model()),
	)

	start := a.now()
	metrics.AgentRunsStarted.Inc()
	slog.InfoContext(ctx, "cro agent starting", "model", a.client.Model())

	event := func(t EventType) ProgressEvent {
		return ProgressEvent{Type: t, RunID: runID, ProjectID: projectID, ConnectorID: connectorID, At: a.now()}
	}
	a.progress.Report(ctx, event(EventRunStarted))

	fail := func(err *RunError, usage Usage) (*model.CroReport, error) {
		span.RecordError(err)
		metrics.AgentRunsCompleted.WithLabelValues(metrics.StatusError).Inc()
		a.observeUsage(usage, start)
		slog.ErrorContext(ctx, "cro agent failed",
			"error", err,
			"kind", err.Kind.String(),
			"turns", usage.Turns,
			"tool_calls", usage.ToolCalls)
		e := event(EventRunFailed)
		e.Error = err.Error()
		a.progress.Report(ctx, e)
		return nil, err
	}

	state := &runState{messages: []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: initialMessage(windowEnding(start))},
	}}
	dispatcher := a.tools.ForRun(projectID, connectorID)

	var usage Usage
	for turn := 1; turn <= MaxAgentTurns && !state.done; turn++ {
		if err := ctx.Err(); err != nil {
			return fail(terminal(err), usage)
		}

		var err error
		usage, err = a.turn(ctx, dispatcher, state, usage, turn)
		a.writeTranscript(ctx, projectID, runID, state)
		if err != nil {
			return fail(terminal(err), usage)
		}

		e := event(EventTurnCompleted)
		e.Turn = turn
		e.ToolCalls = usage.ToolCalls
		a.progress.Report(ctx, e)
	}

	if !state.done {
		slog.WarnContext(ctx, "cro agent reached turn limit, parsing last answer",
			"turns", usage.Turns,
			"candidate_len", len(state.candidate))
	}

	fields, err := ParseReport(state.candidate)
	if err != nil {
		return fail(terminal(err), usage)
	}

	report := &model.CroReport{
		ID:                  newReportID(),
		ProjectID:           projectID,
		ConnectorID:         connectorID,
		CreatedAt:           a.now().UTC(),
		ExecutiveSummary:    fields.ExecutiveSummary,
		FunnelAnalysis:      fields.FunnelAnalysis,
		QualitativeInsights: fields.QualitativeInsights,
		Recommendations:     fields.Recommendations,
		ModelUsed:           a.client.Model(),
		InputTokens:         usage.InputTokens,
		OutputTokens:        usage.OutputTokens,
		ToolCallsCount:      usage.ToolCalls,
		DurationMs:          a.now().Sub(start).Milliseconds(),
	}

	if a.reports != nil {
		if err := a.reports.Create(ctx, report); err != nil {
			slog.WarnContext(ctx, "failed to save cro report", "error", err, "report_id", report.ID)
		}
	}

	metrics.AgentRunsCompleted.WithLabelValues(metrics.StatusSuccess).Inc()
	a.observeUsage(usage, start)

	slog.InfoContext(ctx, "cro agent completed",
		"report_id", report.ID,
		"turns", usage.Turns,
		"tool_calls", usage.ToolCalls,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration_ms", report.DurationMs,
		"recommendations", len(report.Recommendations))

	done := event(EventRunCompleted)
	done.ReportID = &report.ID
	done.ToolCalls = usage.ToolCalls
	a.progress.Report(ctx, done)

	return report, nil
}

// turn performs one provider call and, when the model asked for tools, runs
// them and appends their results.
func (a *Agent) turn(ctx context.Context, d *Dispatcher, state *runState, usage Usage, turn int) (Usage, error) {
	resp, err := a.client.ChatWithTools(ctx, llm.AgentRequest{
		Messages:  state.messages,
		Tools:     a.tools.Definitions(),
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return usage, fmt.Errorf("cro agent turn %d: %w", turn, err)
	}
	usage = usage.add(resp)

	if text := resp.LastText(); text != "" {
		state.candidate = text
	}

	slog.DebugContext(ctx, "cro agent turn completed",
		"turn", turn,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	state.messages = append(state.messages, llm.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	if resp.FinishReason == llm.FinishStop || len(resp.ToolCalls) == 0 {
		state.done = true
		return usage, nil
	}

	results, err := a.executeTools(ctx, d, resp.ToolCalls, turn)
	if err != nil {
		return usage, err
	}
	for _, call := range resp.ToolCalls {
		state.messages = append(state.messages, llm.Message{
			Role:       "tool",
			Content:    results[call.ID],
			ToolCallID: call.ID,
		})
	}
	return usage, nil
}

// executeTools runs calls concurrently and returns their outputs by call id.
// Tool failures are already JSON errors; only cancellation fails the batch.
func (a *Agent) executeTools(ctx context.Context, d *Dispatcher, calls []llm.ToolCall, turn int) (map[string]string, error) {
	results := make(map[string]string, len(calls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)

	for _, call := range calls {
		g.Go(func() error {
			out := d.Dispatch(gctx, call.Name, call.Arguments)

			mu.Lock()
			results[call.ID] = out
			mu.Unlock()

			a.progress.Report(ctx, ProgressEvent{
				Type:        EventToolExecuted,
				RunID:       runIDFrom(ctx),
				ProjectID:   d.projectID,
				ConnectorID: d.connectorID,
				Turn:        turn,
				Tool:        call.Name,
				At:          a.now(),
			})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Agent) observeUsage(usage Usage, start time.Time) {
	metrics.AgentTurns.Observe(float64(usage.Turns))
	metrics.AgentRunDuration.Observe(a.now().Sub(start).Seconds())
	metrics.AgentTokens.WithLabelValues(tokenComponent, "input").Add(float64(usage.InputTokens))
	metrics.AgentTokens.WithLabelValues(tokenComponent, "output").Add(float64(usage.OutputTokens))
}

// writeTranscript overwrites the run's transcript with the conversation so far.
func (a *Agent) writeTranscript(ctx context.Context, projectID uuid.UUID, runID int64, state *runState) {
	if a.transcripts == nil {
		return
	}
	content, err := json.MarshalIndent(state.messages, "", "  ")
	if err != nil {
		slog.WarnContext(ctx, "failed to encode transcript", "error", err)
		return
	}
	if _, err := a.transcripts.Write(ctx, projectID, runID, content); err != nil {
		slog.WarnContext(ctx, "failed to write transcript", "error", err)
	}
}

func runIDFrom(ctx context.Context) int64 {
	if fields := logger.GetLogFields(ctx); fields.RunID != nil {
		return *fields.RunID
	}
	return 0
}

func newReportID() uuid.UUID {
	if v7, err := uuid.NewV7(); err == nil {
		return v7
	}
	return uuid.New()
}

package cro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType names a step of an agent run.
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventTurnCompleted EventType = "turn_completed"
	EventToolExecuted  EventType = "tool_executed"
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
)

// ProgressEvent is one entry of a project's progress stream.
type ProgressEvent struct {
	ID          string     `json:"id,omitempty"` // stream entry id, set on read
	Type        EventType  `json:"type"`
	RunID       int64      `json:"run_id,string"`
	ProjectID   uuid.UUID  `json:"project_id"`
	ConnectorID uuid.UUID  `json:"connector_id"`
	Turn        int        `json:"turn,omitempty"`
	Tool        string     `json:"tool,omitempty"`
	ToolCalls   int        `json:"tool_calls,omitempty"`
	ReportID    *uuid.UUID `json:"report_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	At          time.Time  `json:"at"`
}

// Terminal reports whether no further events follow for the run.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}

// ProgressReporter receives run progress. Implementations must be safe for
// concurrent use and must not block the run on failure.
type ProgressReporter interface {
	Report(ctx context.Context, event ProgressEvent)
}

type noopProgress struct{}

func (noopProgress) Report(context.Context, ProgressEvent) {}

const (
	progressField     = "event"
	progressMaxLen    = 1000
	progressReadCount = 100

	progressPublishTimeout = 2 * time.Second
)

// RedisProgress publishes events to one stream per project, named
// <prefix>:<project id>, and reads them back for SSE clients.
type RedisProgress struct {
	client *redis.Client
	prefix string
}

func NewRedisProgress(client *redis.Client, prefix string) *RedisProgress {
	return &RedisProgress{client: client, prefix: prefix}
}

func (p *RedisProgress) streamKey(projectID uuid.UUID) string {
	return p.prefix + ":" + projectID.String()
}

// Report appends the event. Failures are logged and dropped. The write does
// not follow ctx cancellation, so a run that was cancelled or timed out still
// publishes its run_failed event.
func (p *RedisProgress) Report(ctx context.Context, event ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode progress event", "error", err, "type", event.Type)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressPublishTimeout)
	defer cancel()

	err = p.client.XAdd(publishCtx, &redis.XAddArgs{
		Stream: p.streamKey(event.ProjectID),
		MaxLen: progressMaxLen,
		Approx: true,
		Values: map[string]any{progressField: string(payload)},
	}).Err()
	if err != nil {
		slog.WarnContext(ctx, "failed to publish progress event",
			"error", err,
			"type", event.Type,
			"stream", p.streamKey(event.ProjectID))
	}
}

// Read returns events after lastID ("0" for the whole retained history, "$"
// or "" for new events only). block < 0 returns immediately; otherwise the
// call waits up to block for new entries. The returned id is the cursor for
// the next call and is always a concrete entry id, so events appended between
// two calls are never skipped.
func (p *RedisProgress) Read(ctx context.Context, projectID uuid.UUID, lastID string, block time.Duration) ([]ProgressEvent, string, error) {
	if lastID == "" || lastID == "$" {
		resolved, err := p.lastEntryID(ctx, projectID)
		if err != nil {
			return nil, lastID, err
		}
		lastID = resolved
	}

	streams, err := p.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{p.streamKey(projectID), lastID},
		Count:   progressReadCount,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lastID, nil
		}
		return nil, lastID, fmt.Errorf("reading progress stream: %w", err)
	}

	var events []ProgressEvent
	cursor := lastID
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			cursor = msg.ID
			raw, ok := msg.Values[progressField].(string)
			if !ok {
				continue
			}
			var event ProgressEvent
			if err := json.Unmarshal([]byte(raw), &event); err != nil {
				slog.WarnContext(ctx, "skipping malformed progress event", "error", err, "entry_id", msg.ID)
				continue
			}
			event.ID = msg.ID
			events = append(events, event)
		}
	}
	return events, cursor, nil
}

// lastEntryID returns the id of the newest entry, or "0" for an empty stream.
func (p *RedisProgress) lastEntryID(ctx context.Context, projectID uuid.UUID) (string, error) {
	msgs, err := p.client.XRevRangeN(ctx, p.streamKey(projectID), "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("resolving progress cursor: %w", err)
	}
	if len(msgs) == 0 {
		return "0", nil
	}
	return msgs[0].ID, nil
}

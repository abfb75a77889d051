package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every log record emitted with a context that carries them.
type LogFields struct {
	ProjectID   *string // Project UUID
	ConnectorID *string // GA4 connector UUID
	RunID       *int64  // Agent run ID
	MessageID   *string // Redis stream message ID
	TaskType    *string // Queue task type
	Tool        *string // Agent tool being executed
	Component   string  // e.g. "discoveo.cro.agent"
}

// WithLogFields enriches context with structured log fields.
// Newer non-nil values win over fields already in the context.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ProjectID != nil {
		result.ProjectID = next.ProjectID
	}
	if next.ConnectorID != nil {
		result.ConnectorID = next.ConnectorID
	}
	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.TaskType != nil {
		result.TaskType = next.TaskType
	}
	if next.Tool != nil {
		result.Tool = next.Tool
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate cuts s to maxLen bytes and appends "..." when it was longer.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

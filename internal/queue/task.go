package queue

import "github.com/google/uuid"

type TaskType string

const (
	TaskTypeCroReport        TaskType = "cro_report"
	TaskTypeSurveyEmbedding  TaskType = "survey_embedding"
	TaskTypeFeedbackAnalysis TaskType = "feedback_analysis"
)

// Task is a unit of background work for the worker.
type Task struct {
	TaskType    TaskType
	ProjectID   uuid.UUID
	ConnectorID *uuid.UUID // cro_report only
	RunID       int64      // also keys the progress stream for cro_report
	Force       bool       // feedback_analysis: skip the cache
	TraceID     *string
	Attempt     int
}

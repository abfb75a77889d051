package model

import (
	"time"

	"github.com/google/uuid"
)

type ConnectorType string

const (
	ConnectorTypeGA4 ConnectorType = "GA4"
)

type Connector struct {
	ID            uuid.UUID     `json:"id"`
	ProjectID     uuid.UUID     `json:"project_id"`
	Name          string        `json:"name"`
	ConnectorType ConnectorType `json:"type"`
	CreatedAt     time.Time     `json:"created_at"`
}

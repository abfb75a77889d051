package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/model"
)

type connectorStore struct {
	db db.DBTX
}

func newConnectorStore(conn db.DBTX) ConnectorStore {
	return &connectorStore{db: conn}
}

func (s *connectorStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Connector, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, project_id, name, connector_type, created_at
		FROM connectors
		WHERE id = $1`, id)
	return scanConnector(row)
}

func (s *connectorStore) FirstByType(ctx context.Context, projectID uuid.UUID, connectorType model.ConnectorType) (*model.Connector, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, project_id, name, connector_type, created_at
		FROM connectors
		WHERE project_id = $1 AND connector_type = $2
		ORDER BY created_at ASC
		LIMIT 1`, projectID, string(connectorType))
	return scanConnector(row)
}

func scanConnector(row pgx.Row) (*model.Connector, error) {
	var c model.Connector
	var connectorType string
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &connectorType, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.ConnectorType = model.ConnectorType(connectorType)
	return &c, nil
}

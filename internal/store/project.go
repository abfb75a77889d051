package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/model"
)

type projectStore struct {
	db db.DBTX
}

func newProjectStore(conn db.DBTX) ProjectStore {
	return &projectStore{db: conn}
}

func (s *projectStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, created_at
		FROM projects
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

package storage

import (
	"context"

	"github.com/biancann/footfolio/internal/db"

	"github.com/google/uuid"
)

// Service keeps a log of pinned objects so orphaned pins can be audited.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) SaveObject(ctx context.Context, uri, kind, name string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO pinned_objects (id, uri, kind, name)
		VALUES ($1,$2,$3,$4)
	`, id, uri, kind, name)
	if err != nil {
		return "", err
	}
	return id, nil
}

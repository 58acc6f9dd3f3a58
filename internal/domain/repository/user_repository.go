package repository

import (
	"context"

	"clipfolio/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*entity.User, error)
	SearchByUsername(ctx context.Context, query string, limit int) ([]*entity.User, error)
}

package repository

import (
	"context"

	"clipfolio/internal/domain/entity"
)

type FollowRepository interface {
	Create(ctx context.Context, follow *entity.Follow) error
	Delete(ctx context.Context, followerID, followingID string) error
	Exists(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowingIDs(ctx context.Context, followerID string) ([]string, error)
}

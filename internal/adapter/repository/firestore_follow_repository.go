package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/domain/repository"
	"clipfolio/pkg/errors"
)

type firestoreFollowRepository struct {
	client *firestore.Client
}

func NewFirestoreFollowRepository(client *firestore.Client) repository.FollowRepository {
	return &firestoreFollowRepository{
		client: client,
	}
}

func (r *firestoreFollowRepository) follows() *firestore.CollectionRef {
	return r.client.Collection("follows")
}

func (r *firestoreFollowRepository) Create(ctx context.Context, follow *entity.Follow) error {
	if follow.ID == "" {
		follow.ID = uuid.New().String()
	}
	follow.CreatedAt = time.Now()

	_, err := r.follows().Doc(follow.ID).Set(ctx, follow)
	if err != nil {
		return errors.Internal("Failed to create follow", err)
	}

	return nil
}

func (r *firestoreFollowRepository) Delete(ctx context.Context, followerID, followingID string) error {
	iter := r.follows().
		Where("followerId", "==", followerID).
		Where("followingId", "==", followingID).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Internal("Failed to query follow", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return errors.Internal("Failed to delete follow", err)
		}
	}

	return nil
}

func (r *firestoreFollowRepository) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	iter := r.follows().
		Where("followerId", "==", followerID).
		Where("followingId", "==", followingID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("Failed to query follow", err)
	}

	return true, nil
}

func (r *firestoreFollowRepository) ListFollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	iter := r.follows().Where("followerId", "==", followerID).Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to list follows", err)
		}

		var follow entity.Follow
		if err := doc.DataTo(&follow); err != nil {
			continue
		}
		ids = append(ids, follow.FollowingID)
	}

	return ids, nil
}

package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/domain/repository"
	"clipfolio/pkg/errors"
)

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection("users").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	user.ID = doc.Ref.ID

	return &user, nil
}

func (r *firestoreUserRepository) ListByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection("users").Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to fetch users", err)
	}

	var users []*entity.User
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var user entity.User
		if err := doc.DataTo(&user); err != nil {
			continue
		}
		user.ID = doc.Ref.ID
		users = append(users, &user)
	}

	return users, nil
}

// SearchByUsername is a prefix match; Firestore has no substring queries.
func (r *firestoreUserRepository) SearchByUsername(ctx context.Context, query string, limit int) ([]*entity.User, error) {
	if limit <= 0 {
		limit = 20
	}

	iter := r.client.Collection("users").
		Where("username", ">=", query).
		Where("username", "<", query+"\uf8ff").
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var users []*entity.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to search users", err)
		}

		var user entity.User
		if err := doc.DataTo(&user); err != nil {
			continue
		}
		user.ID = doc.Ref.ID
		users = append(users, &user)
	}

	return users, nil
}

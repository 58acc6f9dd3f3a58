package usecase

import (
	"context"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/domain/repository"
	"clipfolio/pkg/errors"
	"clipfolio/pkg/logger"
)

// DirectoryUseCase produces the contact rail for the messaging view:
// curators the user follows, anyone they have exchanged messages with, and
// an optional deep-link target with no history yet.
type DirectoryUseCase struct {
	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	messageRepo repository.MessageRepository
}

func NewDirectoryUseCase(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	messageRepo repository.MessageRepository,
) *DirectoryUseCase {
	return &DirectoryUseCase{
		userRepo:    userRepo,
		followRepo:  followRepo,
		messageRepo: messageRepo,
	}
}

type Contact struct {
	*entity.User
	Following bool `json:"following"`
}

// ListContacts returns followed curators first, then message-only partners.
// A failed source degrades to a partial list rather than an error; only both
// sources failing is fatal.
func (uc *DirectoryUseCase) ListContacts(ctx context.Context, selfID string) ([]*Contact, error) {
	followingIDs, followErr := uc.followRepo.ListFollowingIDs(ctx, selfID)
	if followErr != nil {
		logger.Warn("ListContacts: follow lookup failed for %s: %v", selfID, followErr)
	}

	partnerIDs, partnerErr := uc.messageRepo.ListPartnerIDs(ctx, selfID)
	if partnerErr != nil {
		logger.Warn("ListContacts: partner lookup failed for %s: %v", selfID, partnerErr)
	}

	if followErr != nil && partnerErr != nil {
		return nil, errors.Internal("Failed to load contacts", followErr)
	}

	following := make(map[string]bool, len(followingIDs))
	var ids []string
	for _, id := range followingIDs {
		if id == selfID {
			continue
		}
		following[id] = true
		ids = append(ids, id)
	}
	for _, id := range partnerIDs {
		if id == selfID || following[id] {
			continue
		}
		following[id] = false
		ids = append(ids, id)
	}

	users, err := uc.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entity.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	var contacts []*Contact
	for _, id := range ids {
		user, ok := byID[id]
		if !ok {
			// Profile gone; drop the contact rather than render a ghost.
			continue
		}
		contacts = append(contacts, &Contact{User: user, Following: following[id]})
	}

	return contacts, nil
}

// ResolveDeepLinkTarget prepends targetID to the contact list when absent,
// so a conversation can start with zero prior messages. A missing profile is
// silently omitted.
func (uc *DirectoryUseCase) ResolveDeepLinkTarget(ctx context.Context, selfID, targetID string, contacts []*Contact) []*Contact {
	if targetID == "" || targetID == selfID {
		return contacts
	}

	for _, contact := range contacts {
		if contact.ID == targetID {
			return contacts
		}
	}

	user, err := uc.userRepo.GetByID(ctx, targetID)
	if err != nil {
		logger.Warn("ResolveDeepLinkTarget: profile %s not resolvable: %v", targetID, err)
		return contacts
	}

	return append([]*Contact{{User: user}}, contacts...)
}

func (uc *DirectoryUseCase) Follow(ctx context.Context, selfID, targetID string) error {
	if selfID == targetID {
		return errors.BadRequest("You cannot follow yourself", nil)
	}

	if _, err := uc.userRepo.GetByID(ctx, targetID); err != nil {
		return errors.NotFound("Curator", err)
	}

	exists, err := uc.followRepo.Exists(ctx, selfID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return uc.followRepo.Create(ctx, &entity.Follow{
		FollowerID:  selfID,
		FollowingID: targetID,
	})
}

func (uc *DirectoryUseCase) Unfollow(ctx context.Context, selfID, targetID string) error {
	return uc.followRepo.Delete(ctx, selfID, targetID)
}

func (uc *DirectoryUseCase) SearchCurators(ctx context.Context, query string, limit int) ([]*entity.User, error) {
	if query == "" {
		return nil, nil
	}
	return uc.userRepo.SearchByUsername(ctx, query, limit)
}

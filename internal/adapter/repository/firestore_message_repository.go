package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/domain/repository"
	"clipfolio/pkg/errors"
	"clipfolio/pkg/logger"
)

const defaultPageSize = 50

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages() *firestore.CollectionRef {
	return r.client.Collection("messages")
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	message.PairKey = entity.PairKey(message.SenderID, message.ReceiverID)
	message.CreatedAt = time.Now()

	_, err := r.messages().Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.messages().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}

	return &message, nil
}

func (r *firestoreMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	_, err := r.messages().Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to update message", err)
	}

	return nil
}

// ListByPair pages backward through a conversation, newest page first. The
// store cannot exclude the caller's hidden messages in the query, so hidden
// rows are filtered after the fact; the cursor tracks the last scanned row,
// not the last visible one, so pages never skip history.
func (r *firestoreMessageRepository) ListByPair(ctx context.Context, selfID, otherID string, before *repository.MessageCursor, limit int) ([]*entity.Message, *repository.MessageCursor, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := r.messages().
		Where("pairKey", "==", entity.PairKey(selfID, otherID)).
		OrderBy("createdAt", firestore.Desc).
		OrderBy("id", firestore.Desc)

	if before != nil {
		query = query.StartAfter(before.CreatedAt, before.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var page []*entity.Message
	var lastScanned *entity.Message
	exhausted := false

	for len(page) < limit {
		doc, err := iter.Next()
		if err == iterator.Done {
			exhausted = true
			break
		}
		if err != nil {
			logger.Error("firestore error while iterating pair %s/%s: %v", selfID, otherID, err)
			return nil, nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, nil, errors.Internal("Failed to parse message data", err)
		}

		lastScanned = &message
		if message.VisibleTo(selfID) {
			page = append(page, &message)
		}
	}

	// Reverse into display order, ascending by creation time.
	sort.Slice(page, func(i, j int) bool {
		if page[i].CreatedAt.Equal(page[j].CreatedAt) {
			return page[i].ID < page[j].ID
		}
		return page[i].CreatedAt.Before(page[j].CreatedAt)
	})

	var next *repository.MessageCursor
	if !exhausted && lastScanned != nil {
		next = &repository.MessageCursor{CreatedAt: lastScanned.CreatedAt, ID: lastScanned.ID}
	}

	return page, next, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, messageIDs []string, readerID string) ([]*entity.Message, error) {
	var changed []*entity.Message

	for _, id := range messageIDs {
		docRef := r.messages().Doc(id)
		doc, err := docRef.Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				logger.Warn("MarkRead: message %s not found, skipping", id)
				continue
			}
			return changed, errors.Internal("Failed to get message", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return changed, errors.Internal("Failed to parse message data", err)
		}

		// Only the addressee's copy carries the read flag; re-marking is a
		// no-op.
		if message.ReceiverID != readerID || message.Read {
			continue
		}

		if _, err := docRef.Update(ctx, []firestore.Update{
			{Path: "read", Value: true},
		}); err != nil {
			return changed, errors.Internal("Failed to update message read status", err)
		}

		message.Read = true
		changed = append(changed, &message)
	}

	return changed, nil
}

func (r *firestoreMessageRepository) Hide(ctx context.Context, messageIDs []string, viewerID string) ([]*entity.Message, error) {
	var changed []*entity.Message

	for _, id := range messageIDs {
		docRef := r.messages().Doc(id)
		doc, err := docRef.Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				logger.Warn("Hide: message %s not found, skipping", id)
				continue
			}
			return changed, errors.Internal("Failed to get message", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return changed, errors.Internal("Failed to parse message data", err)
		}

		if !message.VisibleTo(viewerID) {
			continue
		}

		if _, err := docRef.Update(ctx, []firestore.Update{
			{Path: "hiddenFor", Value: firestore.ArrayUnion(viewerID)},
		}); err != nil {
			return changed, errors.Internal("Failed to hide message", err)
		}

		message.HiddenFor = append(message.HiddenFor, viewerID)
		changed = append(changed, &message)
	}

	return changed, nil
}

func (r *firestoreMessageRepository) ListPartnerIDs(ctx context.Context, userID string) ([]string, error) {
	partners := make(map[string]struct{})

	collect := func(field, pick string) error {
		iter := r.messages().Where(field, "==", userID).Select("senderId", "receiverId").Documents(ctx)
		defer iter.Stop()

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return errors.Internal("Failed to iterate message partners", err)
			}

			var message entity.Message
			if err := doc.DataTo(&message); err != nil {
				continue
			}

			if pick == "senderId" {
				partners[message.SenderID] = struct{}{}
			} else {
				partners[message.ReceiverID] = struct{}{}
			}
		}
		return nil
	}

	if err := collect("senderId", "receiverId"); err != nil {
		return nil, err
	}
	if err := collect("receiverId", "senderId"); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(partners))
	for id := range partners {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// CountUnreadBySender is the full scan the unread state machine reconciles
// against. The feed's server-side filter is receiver-only; hidden rows are
// excluded here.
func (r *firestoreMessageRepository) CountUnreadBySender(ctx context.Context, userID string) (map[string]int, error) {
	counts := make(map[string]int)

	iter := r.messages().
		Where("receiverId", "==", userID).
		Where("read", "==", false).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to count unread messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			continue
		}

		if !message.VisibleTo(userID) {
			continue
		}

		counts[message.SenderID]++
	}

	return counts, nil
}

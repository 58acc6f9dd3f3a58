package repository

import (
	"context"
	"time"

	"clipfolio/internal/domain/entity"
)

// MessageCursor addresses a page boundary in a conversation's history.
// Paging walks backward in time; results within a page are ascending.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	Update(ctx context.Context, message *entity.Message) error

	// ListByPair returns the visible history between two users ascending by
	// creation time. A nil cursor means the newest page. The returned cursor
	// addresses the next older page, nil when exhausted.
	ListByPair(ctx context.Context, selfID, otherID string, before *MessageCursor, limit int) ([]*entity.Message, *MessageCursor, error)

	// MarkRead sets read=true on the given messages where the receiver is
	// readerID. Idempotent; returns only the rows that actually changed.
	MarkRead(ctx context.Context, messageIDs []string, readerID string) ([]*entity.Message, error)

	// Hide adds viewerID to the hidden set of each message. Returns the rows
	// that actually changed.
	Hide(ctx context.Context, messageIDs []string, viewerID string) ([]*entity.Message, error)

	// ListPartnerIDs returns the distinct ids of users the given user has
	// exchanged at least one message with.
	ListPartnerIDs(ctx context.Context, userID string) ([]string, error)

	// CountUnreadBySender groups the unread, non-hidden messages addressed to
	// userID by sender.
	CountUnreadBySender(ctx context.Context, userID string) (map[string]int, error)
}

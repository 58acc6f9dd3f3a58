package usecase

import (
	"context"
	"strings"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/domain/repository"
	"clipfolio/internal/infrastructure/ratelimit"
	"clipfolio/internal/infrastructure/realtime"
	"clipfolio/pkg/errors"
	"clipfolio/pkg/logger"
)

// MessagingUseCase is the sole mutation and query path for messages. Every
// successful mutation is published on the realtime feed; live sessions, the
// sender's included, learn about new rows only through that feed so there is
// a single append path.
type MessagingUseCase struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	feed        *realtime.Feed
	rateLimiter *ratelimit.RateLimiter
}

func NewMessagingUseCase(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	feed *realtime.Feed,
) *MessagingUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &MessagingUseCase{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		feed:        feed,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	ReceiverID     string
	Text           string
	AttachmentURL  string
	AttachmentType string
}

func (uc *MessagingUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("You are sending messages too quickly. Please slow down.")
	}

	if senderID == input.ReceiverID {
		return nil, errors.BadRequest("You cannot message yourself", nil)
	}

	text := strings.TrimSpace(input.Text)
	if text == "" && input.AttachmentURL == "" {
		return nil, errors.BadRequest("Message needs text or an attachment", nil)
	}
	if input.AttachmentURL != "" && !entity.ValidAttachmentType(input.AttachmentType) {
		return nil, errors.BadRequest("Unknown attachment type", nil)
	}

	if _, err := uc.userRepo.GetByID(ctx, input.ReceiverID); err != nil {
		return nil, errors.NotFound("Recipient", err)
	}

	message := &entity.Message{
		SenderID:       senderID,
		ReceiverID:     input.ReceiverID,
		Text:           text,
		AttachmentURL:  input.AttachmentURL,
		AttachmentType: input.AttachmentType,
		Read:           false,
		Edited:         false,
		Deleted:        false,
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		logger.Error("SendMessage: failed to create message from %s to %s: %v", senderID, input.ReceiverID, err)
		return nil, err
	}

	uc.feed.Publish(realtime.MessageEvent{Kind: realtime.EventInsert, Message: message})

	return message, nil
}

// ListMessages returns one page of the visible history between the caller
// and another user, ascending by creation time. A nil cursor loads the
// newest page.
func (uc *MessagingUseCase) ListMessages(ctx context.Context, selfID, otherID string, before *repository.MessageCursor, limit int) ([]*entity.Message, *repository.MessageCursor, error) {
	if selfID == otherID {
		return nil, nil, errors.BadRequest("No conversation with yourself", nil)
	}

	return uc.messageRepo.ListByPair(ctx, selfID, otherID, before, limit)
}

func (uc *MessagingUseCase) EditMessage(ctx context.Context, selfID, messageID, newText string) (*entity.Message, error) {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if message.SenderID != selfID {
		return nil, errors.Forbidden("Only the sender can edit a message", nil)
	}
	if message.Deleted {
		return nil, errors.BadRequest("Cannot edit an unsent message", nil)
	}

	text := strings.TrimSpace(newText)
	if text == "" {
		return nil, errors.BadRequest("Message text cannot be empty", nil)
	}

	message.Text = text
	message.Edited = true

	if err := uc.messageRepo.Update(ctx, message); err != nil {
		logger.Error("EditMessage: failed to update message %s: %v", messageID, err)
		return nil, err
	}

	uc.feed.Publish(realtime.MessageEvent{Kind: realtime.EventUpdate, Message: message})

	return message, nil
}

// UnsendMessage tombstones a message for both parties. Irreversible; calling
// it on an already-unsent message is a no-op.
func (uc *MessagingUseCase) UnsendMessage(ctx context.Context, selfID, messageID string) (*entity.Message, error) {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if message.SenderID != selfID {
		return nil, errors.Forbidden("Only the sender can unsend a message", nil)
	}
	if message.Deleted {
		return message, nil
	}

	message.Tombstone()

	if err := uc.messageRepo.Update(ctx, message); err != nil {
		logger.Error("UnsendMessage: failed to update message %s: %v", messageID, err)
		return nil, err
	}

	uc.feed.Publish(realtime.MessageEvent{Kind: realtime.EventUpdate, Message: message})

	return message, nil
}

// MarkRead flags the given messages as read for the caller. Idempotent;
// only rows addressed to the caller change, and only changed rows are
// published.
func (uc *MessagingUseCase) MarkRead(ctx context.Context, readerID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	changed, err := uc.messageRepo.MarkRead(ctx, messageIDs, readerID)
	for _, message := range changed {
		uc.feed.Publish(realtime.MessageEvent{Kind: realtime.EventUpdate, Message: message})
	}
	if err != nil {
		logger.Error("MarkRead: failed for reader %s: %v", readerID, err)
		return err
	}

	return nil
}

// HideMessages removes messages from the caller's own view only. Serves both
// a single "remove for me" and "clear chat for me" over the whole history.
func (uc *MessagingUseCase) HideMessages(ctx context.Context, viewerID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	changed, err := uc.messageRepo.Hide(ctx, messageIDs, viewerID)
	for _, message := range changed {
		uc.feed.Publish(realtime.MessageEvent{Kind: realtime.EventUpdate, Message: message})
	}
	if err != nil {
		logger.Error("HideMessages: failed for viewer %s: %v", viewerID, err)
		return err
	}

	return nil
}

// UnreadCounts is the authoritative full scan of unread, visible messages
// grouped by sender.
func (uc *MessagingUseCase) UnreadCounts(ctx context.Context, selfID string) (map[string]int, error) {
	return uc.messageRepo.CountUnreadBySender(ctx, selfID)
}

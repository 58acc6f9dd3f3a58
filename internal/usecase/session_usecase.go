package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/infrastructure/realtime"
	"clipfolio/pkg/logger"
)

// Session is the live messaging state for one connected user: a single feed
// subscription, the currently open conversation, and the per-contact unread
// counters. Constructed when the user's WebSocket attaches, torn down when
// it goes away.
//
// Counters are adjusted incrementally from feed events and reconciled
// against a full store scan at start, on a timer, and on client request; the
// scan is the source of truth.
type Session struct {
	userID    string
	messaging *MessagingUseCase
	sub       *realtime.Subscription
	send      func(payload []byte)

	pageSize    int
	rescanEvery time.Duration

	mu           sync.Mutex
	activeWith   string
	conversation []*entity.Message
	unread       map[string]int

	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(
	userID string,
	messaging *MessagingUseCase,
	feed *realtime.Feed,
	send func(payload []byte),
	pageSize int,
	rescanEvery time.Duration,
) *Session {
	return &Session{
		userID:      userID,
		messaging:   messaging,
		sub:         feed.Subscribe(),
		send:        send,
		pageSize:    pageSize,
		rescanEvery: rescanEvery,
		unread:      make(map[string]int),
		done:        make(chan struct{}),
	}
}

// Run pumps feed events into the session until Close. Call it on its own
// goroutine.
func (s *Session) Run(ctx context.Context) {
	if err := s.Rescan(ctx); err != nil {
		logger.Warn("session %s: initial unread scan failed: %v", s.userID, err)
	}

	ticker := time.NewTicker(s.rescanEvery)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-s.sub.Events():
			if !ok {
				return
			}
			switch event.Kind {
			case realtime.EventInsert:
				s.handleInsert(ctx, event.Message)
			case realtime.EventUpdate:
				s.handleUpdate(ctx, event.Message)
			}

		case <-ticker.C:
			if err := s.Rescan(ctx); err != nil {
				logger.Warn("session %s: unread rescan failed: %v", s.userID, err)
			}

		case <-s.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sub.Close()
	})
}

type sessionCommand struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
}

// HandleCommand processes one inbound client frame.
func (s *Session) HandleCommand(ctx context.Context, raw []byte) {
	var cmd sessionCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.notify(map[string]interface{}{"type": "error", "message": "malformed command"})
		return
	}

	switch cmd.Type {
	case "open_conversation":
		if cmd.UserID == "" || cmd.UserID == s.userID {
			s.notify(map[string]interface{}{"type": "error", "message": "invalid conversation target"})
			return
		}
		if err := s.OpenConversation(ctx, cmd.UserID); err != nil {
			logger.Error("session %s: open conversation with %s: %v", s.userID, cmd.UserID, err)
			s.notify(map[string]interface{}{"type": "error", "message": "could not open conversation"})
		}
	case "close_conversation":
		s.CloseConversation()
	case "sync":
		if err := s.Rescan(ctx); err != nil {
			s.notify(map[string]interface{}{"type": "error", "message": "sync failed"})
		}
	default:
		s.notify(map[string]interface{}{"type": "error", "message": "unknown command"})
	}
}

// OpenConversation makes otherID the active counterpart: loads the newest
// history page, marks the inbound backlog read, and zeroes the counter.
func (s *Session) OpenConversation(ctx context.Context, otherID string) error {
	page, cursor, err := s.messaging.ListMessages(ctx, s.userID, otherID, nil, s.pageSize)
	if err != nil {
		return err
	}

	var unreadIDs []string
	for _, m := range page {
		if m.ReceiverID == s.userID && !m.Read {
			unreadIDs = append(unreadIDs, m.ID)
		}
	}

	// Read receipts travel through the feed like every other update.
	if err := s.messaging.MarkRead(ctx, s.userID, unreadIDs); err != nil {
		logger.Warn("session %s: mark read on open failed: %v", s.userID, err)
	}

	s.mu.Lock()
	s.activeWith = otherID
	s.conversation = make([]*entity.Message, 0, len(page))
	for _, m := range page {
		copied := *m
		if copied.ReceiverID == s.userID {
			copied.Read = true
		}
		s.conversation = append(s.conversation, &copied)
	}
	s.unread[otherID] = 0
	snapshot := s.conversationSnapshot()
	counts := s.unreadSnapshot()
	s.mu.Unlock()

	s.notify(map[string]interface{}{
		"type":     "conversation",
		"user_id":  otherID,
		"messages": snapshot,
		"has_more": cursor != nil,
	})
	s.notify(map[string]interface{}{"type": "unread_update", "counts": counts})

	return nil
}

func (s *Session) CloseConversation() {
	s.mu.Lock()
	s.activeWith = ""
	s.conversation = nil
	s.mu.Unlock()
}

// Rescan replaces the incremental counters with a full store scan.
func (s *Session) Rescan(ctx context.Context) error {
	counts, err := s.messaging.UnreadCounts(ctx, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unread = make(map[string]int, len(counts))
	for sender, n := range counts {
		s.unread[sender] = n
	}
	if s.activeWith != "" {
		// The open conversation is read synchronously on arrival; a scan
		// racing those writes must not resurrect its badge.
		s.unread[s.activeWith] = 0
	}
	counts = s.unreadSnapshot()
	s.mu.Unlock()

	s.notify(map[string]interface{}{"type": "unread_update", "counts": counts})
	return nil
}

// UnreadCounts is a copy of the session's current counters.
func (s *Session) UnreadCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadSnapshot()
}

// ActiveConversation returns the counterpart id and the in-memory message
// list of the open conversation.
func (s *Session) ActiveConversation() (string, []*entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeWith, s.conversationSnapshot()
}

func (s *Session) relevant(m *entity.Message) bool {
	return m.ReceiverID == s.userID || m.SenderID == s.userID
}

func (s *Session) handleInsert(ctx context.Context, m *entity.Message) {
	if !s.relevant(m) {
		return
	}

	s.mu.Lock()

	if m.ReceiverID == s.userID {
		if s.activeWith == m.SenderID {
			copied := *m
			copied.Read = true
			s.insertOrdered(&copied)
			s.mu.Unlock()

			if err := s.messaging.MarkRead(ctx, s.userID, []string{m.ID}); err != nil {
				logger.Warn("session %s: mark read on insert failed: %v", s.userID, err)
			}
			s.notify(map[string]interface{}{"type": "message_new", "message": &copied})
			return
		}

		if m.VisibleTo(s.userID) {
			s.unread[m.SenderID]++
			counts := s.unreadSnapshot()
			s.mu.Unlock()
			s.notify(map[string]interface{}{"type": "unread_update", "counts": counts})
			return
		}

		s.mu.Unlock()
		return
	}

	// Own outgoing message echoed back: this is the only append path for the
	// sender's view, so sends cannot double-insert.
	if s.activeWith == m.ReceiverID {
		s.insertOrdered(m)
		s.mu.Unlock()
		s.notify(map[string]interface{}{"type": "message_new", "message": m})
		return
	}

	s.mu.Unlock()
}

func (s *Session) handleUpdate(ctx context.Context, m *entity.Message) {
	if !s.relevant(m) {
		return
	}

	s.mu.Lock()

	counterpart := m.SenderID
	if counterpart == s.userID {
		counterpart = m.ReceiverID
	}

	if s.activeWith == counterpart {
		if m.VisibleTo(s.userID) {
			s.replaceByID(m)
		} else {
			s.removeByID(m.ID)
		}
	}

	var counts map[string]int
	if m.ReceiverID == s.userID && m.Read {
		// Coarse correction: zero the whole counter rather than guess at a
		// partial decrement. The rescan keeps it honest.
		if s.unread[m.SenderID] != 0 {
			s.unread[m.SenderID] = 0
			counts = s.unreadSnapshot()
		}
	}
	s.mu.Unlock()

	s.notify(map[string]interface{}{"type": "message_update", "message": m})
	if counts != nil {
		s.notify(map[string]interface{}{"type": "unread_update", "counts": counts})
	}
}

// insertOrdered places m by creation time against the tail, replacing any
// copy with the same id so replayed events are no-ops.
func (s *Session) insertOrdered(m *entity.Message) {
	for i, existing := range s.conversation {
		if existing.ID == m.ID {
			s.conversation[i] = m
			return
		}
	}

	pos := len(s.conversation)
	for pos > 0 {
		prev := s.conversation[pos-1]
		if prev.CreatedAt.Before(m.CreatedAt) ||
			(prev.CreatedAt.Equal(m.CreatedAt) && prev.ID < m.ID) {
			break
		}
		pos--
	}

	s.conversation = append(s.conversation, nil)
	copy(s.conversation[pos+1:], s.conversation[pos:])
	s.conversation[pos] = m
}

func (s *Session) replaceByID(m *entity.Message) {
	for i, existing := range s.conversation {
		if existing.ID == m.ID {
			s.conversation[i] = m
			return
		}
	}
}

func (s *Session) removeByID(id string) {
	for i, existing := range s.conversation {
		if existing.ID == id {
			s.conversation = append(s.conversation[:i], s.conversation[i+1:]...)
			return
		}
	}
}

func (s *Session) unreadSnapshot() map[string]int {
	counts := make(map[string]int, len(s.unread))
	for sender, n := range s.unread {
		if n > 0 {
			counts[sender] = n
		}
	}
	return counts
}

func (s *Session) conversationSnapshot() []*entity.Message {
	out := make([]*entity.Message, len(s.conversation))
	copy(out, s.conversation)
	return out
}

func (s *Session) notify(payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("session %s: marshal notification: %v", s.userID, err)
		return
	}
	s.send(data)
}

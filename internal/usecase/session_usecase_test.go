package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/infrastructure/realtime"
)

// frameLog records the notifications a session pushed to its client.
type frameLog struct {
	mu     sync.Mutex
	frames []map[string]interface{}
}

func (l *frameLog) send(payload []byte) {
	var frame map[string]interface{}
	if err := json.Unmarshal(payload, &frame); err != nil {
		panic(err)
	}
	l.mu.Lock()
	l.frames = append(l.frames, frame)
	l.mu.Unlock()
}

func (l *frameLog) ofType(frameType string) []map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []map[string]interface{}
	for _, frame := range l.frames {
		if frame["type"] == frameType {
			out = append(out, frame)
		}
	}
	return out
}

func (l *frameLog) last(frameType string) map[string]interface{} {
	frames := l.ofType(frameType)
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

func (l *frameLog) reset() {
	l.mu.Lock()
	l.frames = nil
	l.mu.Unlock()
}

type sessionEnv struct {
	repo      *fakeMessageRepo
	messaging *MessagingUseCase
	feed      *realtime.Feed
	session   *Session
	log       *frameLog
}

func newSessionEnv(t *testing.T, userID string, users ...*entity.User) *sessionEnv {
	t.Helper()

	repo := newFakeMessageRepo()
	feed := realtime.NewFeed()
	t.Cleanup(feed.Close)

	messaging := NewMessagingUseCase(repo, newFakeUserRepo(users...), feed)

	log := &frameLog{}
	session := NewSession(userID, messaging, feed, log.send, 50, time.Hour)
	t.Cleanup(session.Close)

	return &sessionEnv{repo: repo, messaging: messaging, feed: feed, session: session, log: log}
}

func TestSessionUnreadIncrementsWhileInactive(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	sent, err := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hey"})
	assert.NoError(t, err)

	env.session.handleInsert(ctx, sent)

	assert.Equal(t, map[string]int{"alice": 1}, env.session.UnreadCounts())

	frame := env.log.last("unread_update")
	assert.NotNil(t, frame)
	counts := frame["counts"].(map[string]interface{})
	assert.Equal(t, float64(1), counts["alice"])

	// The message stays unread in the store until the conversation opens.
	stored, _ := env.repo.GetByID(ctx, sent.ID)
	assert.False(t, stored.Read)
}

func TestSessionOpenConversationMarksBacklogRead(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	first, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "one"})
	second, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "two"})
	env.session.handleInsert(ctx, first)
	env.session.handleInsert(ctx, second)
	assert.Equal(t, map[string]int{"alice": 2}, env.session.UnreadCounts())

	env.log.reset()
	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))

	assert.Empty(t, env.session.UnreadCounts())

	active, conversation := env.session.ActiveConversation()
	assert.Equal(t, "alice", active)
	assert.Len(t, conversation, 2)
	for _, m := range conversation {
		assert.True(t, m.Read)
	}

	for _, id := range []string{first.ID, second.ID} {
		stored, _ := env.repo.GetByID(ctx, id)
		assert.True(t, stored.Read)
	}

	frame := env.log.last("conversation")
	assert.NotNil(t, frame)
	assert.Equal(t, "alice", frame["user_id"])
	assert.Equal(t, false, frame["has_more"])
	assert.Len(t, frame["messages"], 2)

	unread := env.log.last("unread_update")
	assert.NotNil(t, unread)
	assert.Empty(t, unread["counts"])
}

func TestSessionActiveConversationAutoReads(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))
	env.log.reset()

	sent, err := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "live one"})
	assert.NoError(t, err)
	env.session.handleInsert(ctx, sent)

	// No badge: the row was read on arrival, in memory and in the store.
	assert.Empty(t, env.session.UnreadCounts())

	_, conversation := env.session.ActiveConversation()
	assert.Len(t, conversation, 1)
	assert.True(t, conversation[0].Read)

	stored, _ := env.repo.GetByID(ctx, sent.ID)
	assert.True(t, stored.Read)

	frame := env.log.last("message_new")
	assert.NotNil(t, frame)
	message := frame["message"].(map[string]interface{})
	assert.Equal(t, sent.ID, message["id"])
	assert.Equal(t, true, message["read"])
}

func TestSessionOwnEchoAppendsOnce(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))

	sent, err := env.messaging.SendMessage(ctx, "bob", SendMessageInput{ReceiverID: "alice", Text: "from me"})
	assert.NoError(t, err)

	env.session.handleInsert(ctx, sent)
	_, conversation := env.session.ActiveConversation()
	assert.Len(t, conversation, 1)

	// A replayed event must not duplicate the row.
	env.session.handleInsert(ctx, sent)
	_, conversation = env.session.ActiveConversation()
	assert.Len(t, conversation, 1)
}

func TestSessionInsertKeepsTimestampOrder(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "carol", Username: "carol"})

	assert.NoError(t, env.session.OpenConversation(ctx, "carol"))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id string, offset time.Duration) *entity.Message {
		return &entity.Message{
			ID:         id,
			SenderID:   "carol",
			ReceiverID: "bob",
			Text:       id,
			CreatedAt:  base.Add(offset),
		}
	}

	// Delivery order differs from creation order.
	env.session.handleInsert(ctx, mk("m2", 2*time.Second))
	env.session.handleInsert(ctx, mk("m4", 4*time.Second))
	env.session.handleInsert(ctx, mk("m1", 1*time.Second))
	env.session.handleInsert(ctx, mk("m3", 3*time.Second))

	_, conversation := env.session.ActiveConversation()
	assert.Len(t, conversation, 4)
	for i, want := range []string{"m1", "m2", "m3", "m4"} {
		assert.Equal(t, want, conversation[i].ID)
	}
}

func TestSessionIgnoresForeignTraffic(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"})

	foreign := &entity.Message{ID: "x1", SenderID: "carol", ReceiverID: "dana", Text: "not ours", CreatedAt: time.Now()}
	env.session.handleInsert(ctx, foreign)
	env.session.handleUpdate(ctx, foreign)

	assert.Empty(t, env.session.UnreadCounts())
	assert.Empty(t, env.log.frames)
}

func TestSessionUpdatePropagatesEditAndUnsend(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	sent, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "original"})
	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))

	edited, err := env.messaging.EditMessage(ctx, "alice", sent.ID, "amended")
	assert.NoError(t, err)
	env.session.handleUpdate(ctx, edited)

	_, conversation := env.session.ActiveConversation()
	assert.Len(t, conversation, 1)
	assert.Equal(t, "amended", conversation[0].Text)
	assert.True(t, conversation[0].Edited)

	unsent, err := env.messaging.UnsendMessage(ctx, "alice", sent.ID)
	assert.NoError(t, err)
	env.session.handleUpdate(ctx, unsent)

	_, conversation = env.session.ActiveConversation()
	assert.Len(t, conversation, 1)
	assert.Equal(t, entity.TombstoneText, conversation[0].Text)
	assert.True(t, conversation[0].Deleted)

	frame := env.log.last("message_update")
	assert.NotNil(t, frame)
	message := frame["message"].(map[string]interface{})
	assert.Equal(t, true, message["deleted"])
}

func TestSessionUpdateRemovesHiddenRow(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	first, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "keep"})
	second, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "drop"})
	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))

	assert.NoError(t, env.messaging.HideMessages(ctx, "bob", []string{second.ID}))
	hidden, _ := env.repo.GetByID(ctx, second.ID)
	env.session.handleUpdate(ctx, hidden)

	_, conversation := env.session.ActiveConversation()
	assert.Len(t, conversation, 1)
	assert.Equal(t, first.ID, conversation[0].ID)
}

func TestSessionReadUpdateZerosCounter(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	first, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "one"})
	second, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "two"})
	env.session.handleInsert(ctx, first)
	env.session.handleInsert(ctx, second)
	assert.Equal(t, map[string]int{"alice": 2}, env.session.UnreadCounts())

	// Reads from another surface (the REST endpoint, another device) arrive
	// as plain updates and collapse the whole counter.
	assert.NoError(t, env.messaging.MarkRead(ctx, "bob", []string{first.ID}))
	read, _ := env.repo.GetByID(ctx, first.ID)

	env.log.reset()
	env.session.handleUpdate(ctx, read)

	assert.Empty(t, env.session.UnreadCounts())
	frame := env.log.last("unread_update")
	assert.NotNil(t, frame)
	assert.Empty(t, frame["counts"])
}

func TestSessionRescanReconciles(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob",
		&entity.User{ID: "bob", Username: "bob"},
		&entity.User{ID: "alice", Username: "alice"},
		&entity.User{ID: "carol", Username: "carol"},
	)

	read, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "a-read"})
	env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "a-unread"})
	hidden, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "a-hidden"})
	env.messaging.SendMessage(ctx, "carol", SendMessageInput{ReceiverID: "bob", Text: "c1"})
	env.messaging.SendMessage(ctx, "carol", SendMessageInput{ReceiverID: "bob", Text: "c2"})

	assert.NoError(t, env.messaging.MarkRead(ctx, "bob", []string{read.ID}))
	assert.NoError(t, env.messaging.HideMessages(ctx, "bob", []string{hidden.ID}))

	// Drifted counters from lost events; the scan is the source of truth.
	env.session.mu.Lock()
	env.session.unread = map[string]int{"alice": 99, "ghost": 5}
	env.session.mu.Unlock()

	assert.NoError(t, env.session.Rescan(ctx))
	assert.Equal(t, map[string]int{"alice": 1, "carol": 2}, env.session.UnreadCounts())
}

func TestSessionRescanKeepsActiveConversationClear(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	sent, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "racing"})
	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))

	// Pretend the scan ran against a snapshot taken before the open marked
	// the backlog read.
	stale, _ := env.repo.GetByID(ctx, sent.ID)
	stale.Read = false
	env.repo.Update(ctx, stale)

	assert.NoError(t, env.session.Rescan(ctx))
	assert.Empty(t, env.session.UnreadCounts())
}

func TestSessionTwoSendersThenOpenOne(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob",
		&entity.User{ID: "bob", Username: "bob"},
		&entity.User{ID: "alice", Username: "alice"},
		&entity.User{ID: "carol", Username: "carol"},
	)

	fromAlice, _ := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "from alice"})
	fromCarol, _ := env.messaging.SendMessage(ctx, "carol", SendMessageInput{ReceiverID: "bob", Text: "from carol"})
	env.session.handleInsert(ctx, fromAlice)
	env.session.handleInsert(ctx, fromCarol)
	assert.Equal(t, map[string]int{"alice": 1, "carol": 1}, env.session.UnreadCounts())

	assert.NoError(t, env.session.OpenConversation(ctx, "alice"))

	assert.Equal(t, map[string]int{"carol": 1}, env.session.UnreadCounts())

	aliceRow, _ := env.repo.GetByID(ctx, fromAlice.ID)
	assert.True(t, aliceRow.Read)
	carolRow, _ := env.repo.GetByID(ctx, fromCarol.ID)
	assert.False(t, carolRow.Read)
}

func TestSessionHandleCommand(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	env.session.HandleCommand(ctx, []byte("{not json"))
	assert.NotNil(t, env.log.last("error"))
	env.log.reset()

	env.session.HandleCommand(ctx, []byte(`{"type":"open_conversation","user_id":"bob"}`))
	assert.NotNil(t, env.log.last("error"))
	env.log.reset()

	env.session.HandleCommand(ctx, []byte(`{"type":"open_conversation","user_id":"alice"}`))
	active, _ := env.session.ActiveConversation()
	assert.Equal(t, "alice", active)
	assert.NotNil(t, env.log.last("conversation"))
	env.log.reset()

	env.session.HandleCommand(ctx, []byte(`{"type":"close_conversation"}`))
	active, conversation := env.session.ActiveConversation()
	assert.Empty(t, active)
	assert.Empty(t, conversation)

	env.session.HandleCommand(ctx, []byte(`{"type":"sync"}`))
	assert.NotNil(t, env.log.last("unread_update"))
	env.log.reset()

	env.session.HandleCommand(ctx, []byte(`{"type":"warp"}`))
	assert.NotNil(t, env.log.last("error"))
}

func TestSessionRunDeliversFeedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newSessionEnv(t, "bob", &entity.User{ID: "bob", Username: "bob"}, &entity.User{ID: "alice", Username: "alice"})

	done := make(chan struct{})
	go func() {
		env.session.Run(ctx)
		close(done)
	}()

	_, err := env.messaging.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "over the feed"})
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		counts := env.session.UnreadCounts()
		return counts["alice"] == 1
	}, time.Second, 10*time.Millisecond)

	env.session.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not stop after Close")
	}
}

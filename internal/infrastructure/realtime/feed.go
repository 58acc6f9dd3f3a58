package realtime

import (
	"sync"

	"clipfolio/internal/domain/entity"
	"clipfolio/pkg/logger"
)

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// MessageEvent is one row-level change on the message store. Every event
// carries the full row, so applying the same event twice is a no-op for
// consumers that replace by id.
type MessageEvent struct {
	Kind    EventKind
	Message *entity.Message
}

// Feed is the process-wide change feed for message rows. The store cannot
// express per-user OR predicates, so every subscriber receives every event
// and filters for relevance locally.
type Feed struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one consumer's view of the feed, owned by a single
// session and closed when that session ends.
type Subscription struct {
	feed *Feed
	ch   chan MessageEvent
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		subs: make(map[*Subscription]struct{}),
	}
}

func (f *Feed) Subscribe() *Subscription {
	sub := &Subscription{
		feed: f,
		ch:   make(chan MessageEvent, 256),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(sub.ch)
		return sub
	}
	f.subs[sub] = struct{}{}
	return sub
}

// Publish fans the event out to every subscriber. A subscriber that cannot
// keep up loses the event; sessions recover dropped events through their
// periodic unread rescan and history reloads.
func (f *Feed) Publish(event MessageEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}

	for sub := range f.subs {
		select {
		case sub.ch <- event:
		default:
			logger.Warn("realtime feed: dropping %s event %s for slow subscriber", event.Kind, event.Message.ID)
		}
	}
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		close(sub.ch)
		delete(f.subs, sub)
	}
}

// Events is the stream of changes; closed when the subscription or the feed
// is closed.
func (s *Subscription) Events() <-chan MessageEvent {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		if _, ok := s.feed.subs[s]; ok {
			delete(s.feed.subs, s)
			close(s.ch)
		}
	})
}

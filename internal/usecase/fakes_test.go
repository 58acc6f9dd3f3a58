package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clipfolio/internal/domain/entity"
	"clipfolio/internal/domain/repository"
	"clipfolio/pkg/errors"
)

// In-memory stand-ins for the Firestore repositories. They mirror the real
// adapters' contracts: server-assigned ids, monotonic timestamps, copies on
// the way in and out.

type fakeMessageRepo struct {
	mu       sync.Mutex
	seq      int
	base     time.Time
	messages map[string]*entity.Message
	order    []string

	failListByPair bool
	failPartners   bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		base:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		messages: make(map[string]*entity.Message),
	}
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if message.ID == "" {
		message.ID = fmt.Sprintf("m%03d", r.seq)
	}
	message.PairKey = entity.PairKey(message.SenderID, message.ReceiverID)
	message.CreatedAt = r.base.Add(time.Duration(r.seq) * time.Second)

	copied := *message
	r.messages[message.ID] = &copied
	r.order = append(r.order, message.ID)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	copied := *message
	return &copied, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) ListByPair(ctx context.Context, selfID, otherID string, before *repository.MessageCursor, limit int) ([]*entity.Message, *repository.MessageCursor, error) {
	if r.failListByPair {
		return nil, nil, errors.Internal("store unavailable", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	pairKey := entity.PairKey(selfID, otherID)
	var all []*entity.Message
	for _, id := range r.order {
		m := r.messages[id]
		if m.PairKey == pairKey {
			all = append(all, m)
		}
	}
	// Newest first, like the store query.
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	var page []*entity.Message
	var lastScanned *entity.Message
	exhausted := true
	for _, m := range all {
		if before != nil {
			if m.CreatedAt.After(before.CreatedAt) ||
				(m.CreatedAt.Equal(before.CreatedAt) && m.ID >= before.ID) {
				continue
			}
		}
		if len(page) == limit {
			exhausted = false
			break
		}
		lastScanned = m
		if m.VisibleTo(selfID) {
			copied := *m
			page = append(page, &copied)
		}
	}

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

func (r *fakeMessageRepo) MarkRead(ctx context.Context, messageIDs []string, readerID string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []*entity.Message
	for _, id := range messageIDs {
		m, ok := r.messages[id]
		if !ok || m.ReceiverID != readerID || m.Read {
			continue
		}
		m.Read = true
		copied := *m
		changed = append(changed, &copied)
	}
	return changed, nil
}

func (r *fakeMessageRepo) Hide(ctx context.Context, messageIDs []string, viewerID string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []*entity.Message
	for _, id := range messageIDs {
		m, ok := r.messages[id]
		if !ok || !m.VisibleTo(viewerID) {
			continue
		}
		m.HiddenFor = append(m.HiddenFor, viewerID)
		copied := *m
		changed = append(changed, &copied)
	}
	return changed, nil
}

func (r *fakeMessageRepo) ListPartnerIDs(ctx context.Context, userID string) ([]string, error) {
	if r.failPartners {
		return nil, errors.Internal("store unavailable", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	for _, m := range r.messages {
		if m.SenderID == userID {
			seen[m.ReceiverID] = struct{}{}
		}
		if m.ReceiverID == userID {
			seen[m.SenderID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeMessageRepo) CountUnreadBySender(ctx context.Context, userID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, m := range r.messages {
		if m.ReceiverID != userID || m.Read || !m.VisibleTo(userID) {
			continue
		}
		counts[m.SenderID]++
	}
	return counts, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) ListByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []*entity.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			copied := *user
			users = append(users, &copied)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) SearchByUsername(ctx context.Context, query string, limit int) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []*entity.User
	for _, user := range r.users {
		if len(user.Username) >= len(query) && user.Username[:len(query)] == query {
			copied := *user
			users = append(users, &copied)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

type fakeFollowRepo struct {
	mu    sync.Mutex
	edges map[string][]string // follower -> following ids in insertion order

	failList bool
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{edges: make(map[string][]string)}
}

func (r *fakeFollowRepo) Create(ctx context.Context, follow *entity.Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.edges[follow.FollowerID] {
		if id == follow.FollowingID {
			return nil
		}
	}
	r.edges[follow.FollowerID] = append(r.edges[follow.FollowerID], follow.FollowingID)
	return nil
}

func (r *fakeFollowRepo) Delete(ctx context.Context, followerID, followingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.edges[followerID]
	for i, id := range ids {
		if id == followingID {
			r.edges[followerID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeFollowRepo) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.edges[followerID] {
		if id == followingID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeFollowRepo) ListFollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	if r.failList {
		return nil, errors.Internal("store unavailable", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.edges[followerID]...), nil
}

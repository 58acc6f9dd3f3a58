package entity

import "time"

// Follow is a directed edge from a curator to one they follow. The contact
// rail in the messaging view is seeded from these edges.
type Follow struct {
	ID          string    `json:"id" firestore:"id"`
	FollowerID  string    `json:"follower_id" firestore:"followerId"`
	FollowingID string    `json:"following_id" firestore:"followingId"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
}

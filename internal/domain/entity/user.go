package entity

import "time"

// User is the public profile surface resolved through the profile directory.
// Account management lives outside this service; rows are read-only here.
type User struct {
	ID        string    `json:"id" firestore:"id"`
	Username  string    `json:"username" firestore:"username"`
	AvatarURL string    `json:"avatar_url,omitempty" firestore:"avatarUrl,omitempty"`
	Bio       string    `json:"bio,omitempty" firestore:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}

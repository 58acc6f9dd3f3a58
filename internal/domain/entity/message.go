package entity

import (
	"sort"
	"strings"
	"time"
)

// TombstoneText replaces the body of an unsent message. Once written it is
// never restored.
const TombstoneText = "Message unsent"

// Attachment kinds accepted on a message.
const (
	AttachmentImage = "image"
	AttachmentVideo = "video"
	AttachmentAudio = "audio"
)

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	ReceiverID     string    `json:"receiver_id" firestore:"receiverId"`
	PairKey        string    `json:"-" firestore:"pairKey"`
	Text           string    `json:"text" firestore:"text"`
	AttachmentURL  string    `json:"attachment_url,omitempty" firestore:"attachmentUrl,omitempty"`
	AttachmentType string    `json:"attachment_type,omitempty" firestore:"attachmentType,omitempty"` // "image", "video", "audio"
	Read           bool      `json:"read" firestore:"read"`
	Edited         bool      `json:"edited" firestore:"edited"`
	Deleted        bool      `json:"deleted" firestore:"deleted"`
	HiddenFor      []string  `json:"hidden_for,omitempty" firestore:"hiddenFor,omitempty"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}

// PairKey identifies the conversation between two users regardless of
// direction, so the store can filter a pair with a single equality predicate.
func PairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// VisibleTo reports whether the viewer has not hidden this message.
func (m *Message) VisibleTo(viewerID string) bool {
	for _, id := range m.HiddenFor {
		if id == viewerID {
			return false
		}
	}
	return true
}

// Tombstone clears the message content irreversibly.
func (m *Message) Tombstone() {
	m.Deleted = true
	m.Text = TombstoneText
	m.AttachmentURL = ""
	m.AttachmentType = ""
}

// ValidAttachmentType reports whether kind is an accepted attachment kind.
func ValidAttachmentType(kind string) bool {
	switch kind {
	case AttachmentImage, AttachmentVideo, AttachmentAudio:
		return true
	}
	return false
}

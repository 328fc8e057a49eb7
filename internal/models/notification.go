package models

import "time"

// NotificationType classifies what a notification is about
type NotificationType string

const (
	NotificationReply      NotificationType = "REPLY"
	NotificationReaction   NotificationType = "REACTION"
	NotificationModeration NotificationType = "MODERATION"
)

// NotificationTTL is the fixed time-to-live stamped on every notification
// at creation. Delivery transport is external; the core only records state.
const NotificationTTL = 90 * 24 * time.Hour

// Notification is a persisted notification record. Reaction notifications
// batch multiple reactors per post per window: BatchCount is the number of
// reactions summarized and BatchCounts breaks them down by type.
type Notification struct {
	ID              string               `json:"id"`
	RecipientID     string               `json:"recipient_id"`
	Type            NotificationType     `json:"type"`
	Title           string               `json:"title"`
	Message         string               `json:"message"`
	ActionRef       string               `json:"action_ref"`
	RelatedUserID   *string              `json:"related_user_id,omitempty"`
	RelatedPostID   *string              `json:"related_post_id,omitempty"`
	RelatedThreadID *string              `json:"related_thread_id,omitempty"`
	BatchCount      int                  `json:"batch_count"`
	BatchCounts     map[ReactionType]int `json:"batch_counts,omitempty"`
	IsRead          bool                 `json:"is_read"`
	CreatedAt       time.Time            `json:"created_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
}

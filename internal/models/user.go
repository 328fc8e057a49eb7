package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// User holds the locally-owned slice of a forum member. Identity fields
// (username, display name, role) are supplied by the external identity sync;
// reputation and notification preferences are mutated only by this core.
type User struct {
	ID                string                  `json:"id"`
	Username          string                  `json:"username"`
	DisplayName       string                  `json:"display_name"`
	Role              string                  `json:"role"`
	ReputationScore   int                     `json:"reputation_score"`
	Preferences       NotificationPreferences `json:"notification_preferences"`
	IsActive          bool                    `json:"is_active"`
	DeletionRequested bool                    `json:"deletion_requested"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// NotificationChannel is a delivery channel for notifications
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
)

// NotificationEvent is an event family a user can opt in or out of
type NotificationEvent string

const (
	EventReplies    NotificationEvent = "replies"
	EventReactions  NotificationEvent = "reactions"
	EventModeration NotificationEvent = "moderation"
)

// ChannelPreferences holds the per-event toggles for one channel
type ChannelPreferences struct {
	Replies    bool `json:"replies"`
	Reactions  bool `json:"reactions"`
	Moderation bool `json:"moderation"`
}

// NotificationPreferences is the versioned per-user notification config.
// Unknown keys and unknown versions are rejected at parse time rather than
// silently ignored.
type NotificationPreferences struct {
	Version int                `json:"version"`
	InApp   ChannelPreferences `json:"in_app"`
	Email   ChannelPreferences `json:"email"`
}

// PreferencesVersion is the current schema version for NotificationPreferences
const PreferencesVersion = 1

// DefaultPreferences returns the documented default: everything on for
// in-app, only moderation notices for email.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		Version: PreferencesVersion,
		InApp:   ChannelPreferences{Replies: true, Reactions: true, Moderation: true},
		Email:   ChannelPreferences{Moderation: true},
	}
}

// Enabled reports whether the given channel/event pair is switched on
func (p NotificationPreferences) Enabled(channel NotificationChannel, event NotificationEvent) bool {
	var c ChannelPreferences
	switch channel {
	case ChannelInApp:
		c = p.InApp
	case ChannelEmail:
		c = p.Email
	default:
		return false
	}
	switch event {
	case EventReplies:
		return c.Replies
	case EventReactions:
		return c.Reactions
	case EventModeration:
		return c.Moderation
	}
	return false
}

// Validate checks the preference document against the known schema
func (p NotificationPreferences) Validate() error {
	if p.Version != PreferencesVersion {
		return &InvariantViolationError{
			Invariant: "preferences-version",
			Detail:    "unsupported notification preferences version",
		}
	}
	return nil
}

// ParsePreferences decodes a stored preference document, failing fast on
// unknown keys. An empty document yields the defaults.
func ParsePreferences(data []byte) (NotificationPreferences, error) {
	if len(data) == 0 {
		return DefaultPreferences(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p NotificationPreferences
	if err := dec.Decode(&p); err != nil {
		return NotificationPreferences{}, err
	}
	if err := p.Validate(); err != nil {
		return NotificationPreferences{}, err
	}
	return p, nil
}

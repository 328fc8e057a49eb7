package models

import "time"

// Content events are emitted by the storage layer and consumed synchronously,
// in the same transaction as the triggering write. The emitter guarantees
// at-most-once delivery per underlying mutation.

// PostCreated is emitted after a post row is inserted
type PostCreated struct {
	PostID       string
	ThreadID     string
	ParentPostID *string
	AuthorID     string
	CreatedAt    time.Time
}

// PostEdited is emitted after a post's content changes
type PostEdited struct {
	PostID          string
	EditorID        string
	PreviousContent string
	NewContent      string
	EditedAt        time.Time
}

// PostDeleted is emitted after a post is soft-deleted
type PostDeleted struct {
	PostID    string
	ThreadID  string
	DeletedBy string
	DeletedAt time.Time
}

// ReactionAdded is emitted when a user reacts to a post
type ReactionAdded struct {
	PostID    string
	UserID    string
	Type      ReactionType
	CreatedAt time.Time
}

// ReactionRemoved is emitted when a user removes a reaction
type ReactionRemoved struct {
	PostID string
	UserID string
	Type   ReactionType
}

package models

import (
	"strings"
	"time"
)

// ThreadStatus represents the lifecycle state of a support thread
type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "OPEN"
	ThreadResolved ThreadStatus = "RESOLVED"
	ThreadClosed   ThreadStatus = "CLOSED"
	ThreadArchived ThreadStatus = "ARCHIVED"
)

// Thread is a support discussion in exactly one category.
// post_count and last_activity_at are derived counters: after every committed
// transaction they must equal the aggregate over the thread's non-deleted posts.
type Thread struct {
	ID             string       `json:"id"`
	CategoryID     string       `json:"category_id"`
	AuthorID       string       `json:"author_id"`
	Title          string       `json:"title"`
	Status         ThreadStatus `json:"status"`
	PostCount      int          `json:"post_count"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Post belongs to one thread, with at most one level of nesting:
// a post's parent must itself have no parent.
type Post struct {
	ID               string     `json:"id"`
	ThreadID         string     `json:"thread_id"`
	ParentPostID     *string    `json:"parent_post_id,omitempty"`
	AuthorID         string     `json:"author_id"`
	Content          string     `json:"content"`
	WordCount        int        `json:"word_count"`
	ReactionCount    int        `json:"reaction_count"`
	IsDeleted        bool       `json:"is_deleted"`
	FlaggedForReview bool       `json:"flagged_for_review"`
	CreatedAt        time.Time  `json:"created_at"`
	EditedAt         *time.Time `json:"edited_at,omitempty"`
}

// WordCount computes the word count of post content. It is a pure function
// of the content and is recomputed on every content change.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// ReactionType identifies a reaction. The valid set and per-type reputation
// point values are reference data (see refdata), not behavior.
type ReactionType string

const (
	ReactionHelpful    ReactionType = "HELPFUL"
	ReactionSupportive ReactionType = "SUPPORTIVE"
	ReactionRelatable  ReactionType = "RELATABLE"
	ReactionInsightful ReactionType = "INSIGHTFUL"
)

// Reaction is a (post, user, type) triple, unique per combination.
// PointValue is captured at creation time so removal reclaims exactly the
// points that were granted, even if reference data changes later.
type Reaction struct {
	ID         string       `json:"id"`
	PostID     string       `json:"post_id"`
	UserID     string       `json:"user_id"`
	Type       ReactionType `json:"type"`
	PointValue int          `json:"point_value"`
	CreatedAt  time.Time    `json:"created_at"`
}

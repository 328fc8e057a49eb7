// Package counters keeps the derived counters (thread post counts and
// activity, post reaction counts, user reputation) consistent with content
// events. Every handler runs inside the transaction of the triggering write,
// so a failure rolls the originating mutation back with it.
package counters

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"haven/internal/audit"
	"haven/internal/database/sqlitestore"
	"haven/internal/metrics"
	"haven/internal/models"
	"haven/internal/refdata"
)

// ErrDuplicateReaction is returned when a (post, user, type) reaction
// already exists. Uniqueness is enforced by the storage layer, so of two
// concurrent attempts exactly one succeeds.
var ErrDuplicateReaction = errors.New("reaction already exists for this post, user, and type")

// Maintainer applies counter updates for content events
type Maintainer struct {
	refdata *refdata.Service
}

// NewMaintainer creates a counter maintainer backed by the given reference data
func NewMaintainer(ref *refdata.Service) *Maintainer {
	return &Maintainer{refdata: ref}
}

// PostCreated validates nesting depth and advances the parent thread's
// post_count and last_activity_at. The caller guarantees at-most-once
// delivery per post creation.
func (m *Maintainer) PostCreated(ctx context.Context, q sqlitestore.DBTX, ev models.PostCreated) error {
	if ev.ParentPostID != nil {
		parent, err := sqlitestore.GetPost(ctx, q, *ev.ParentPostID)
		if err != nil {
			return fmt.Errorf("load parent post: %w", err)
		}
		if parent == nil {
			return &models.InvariantViolationError{
				Invariant: "post-nesting",
				Detail:    "parent post does not exist",
			}
		}
		if parent.ParentPostID != nil {
			return &models.InvariantViolationError{
				Invariant: "post-nesting",
				Detail:    "a reply's parent must be a top-level post",
			}
		}
		if parent.ThreadID != ev.ThreadID {
			return &models.InvariantViolationError{
				Invariant: "post-nesting",
				Detail:    "parent post belongs to a different thread",
			}
		}
	}

	activity := ev.CreatedAt
	if err := sqlitestore.BumpThreadActivity(ctx, q, ev.ThreadID, 1, &activity); err != nil {
		return err
	}
	return nil
}

// PostDeleted reverses the thread post count for a soft-deleted post.
// last_activity_at is left alone: deletion is not activity.
func (m *Maintainer) PostDeleted(ctx context.Context, q sqlitestore.DBTX, ev models.PostDeleted) error {
	return sqlitestore.BumpThreadActivity(ctx, q, ev.ThreadID, -1, nil)
}

// PostEdited recomputes the post's word count, applies the new content, and
// appends the change to the edit history.
func (m *Maintainer) PostEdited(ctx context.Context, q sqlitestore.DBTX, ev models.PostEdited) error {
	newCount := models.WordCount(ev.NewContent)
	editedAt := sqlitestore.FormatTime(ev.EditedAt)
	if err := sqlitestore.UpdatePostContent(ctx, q, ev.PostID, ev.NewContent, newCount, editedAt); err != nil {
		return err
	}
	_, err := audit.AppendPostEdit(ctx, q, models.PostEditHistoryEntry{
		PostID:            ev.PostID,
		EditorID:          ev.EditorID,
		PreviousContent:   ev.PreviousContent,
		NewContent:        ev.NewContent,
		PreviousWordCount: models.WordCount(ev.PreviousContent),
		NewWordCount:      newCount,
		CreatedAt:         ev.EditedAt,
	})
	return err
}

// ReactionAdded inserts the reaction with its point value captured from
// reference data, bumps the post's reaction count, and grants reputation to
// the post's author when the author is still resolvable.
func (m *Maintainer) ReactionAdded(ctx context.Context, q sqlitestore.DBTX, ev models.ReactionAdded) error {
	points, ok := m.refdata.PointValue(ev.Type)
	if !ok {
		return &models.InvariantViolationError{
			Invariant: "reaction-type",
			Detail:    "unknown reaction type " + string(ev.Type),
		}
	}

	post, err := sqlitestore.GetPost(ctx, q, ev.PostID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil || post.IsDeleted {
		return &models.InvariantViolationError{
			Invariant: "reaction-target",
			Detail:    "cannot react to a missing or deleted post",
		}
	}

	err = sqlitestore.InsertReaction(ctx, q, models.Reaction{
		ID:         uuid.NewString(),
		PostID:     ev.PostID,
		UserID:     ev.UserID,
		Type:       ev.Type,
		PointValue: points,
		CreatedAt:  ev.CreatedAt,
	})
	if sqlitestore.IsUniqueViolation(err) {
		return ErrDuplicateReaction
	}
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}

	if err := sqlitestore.IncrementPostReactionCount(ctx, q, ev.PostID, 1); err != nil {
		return err
	}

	author, err := sqlitestore.GetUser(ctx, q, post.AuthorID)
	if err != nil {
		return fmt.Errorf("load post author: %w", err)
	}
	if author != nil && author.IsActive {
		if err := sqlitestore.AddUserReputation(ctx, q, author.ID, points); err != nil {
			return err
		}
	}

	metrics.ReactionsTotal.WithLabelValues("add", string(ev.Type)).Inc()
	return nil
}

// ReactionRemoved mirrors ReactionAdded using the point value captured when
// the reaction was created, so a later reference data change cannot skew the
// reclaim.
func (m *Maintainer) ReactionRemoved(ctx context.Context, q sqlitestore.DBTX, ev models.ReactionRemoved) error {
	reaction, err := sqlitestore.GetReaction(ctx, q, ev.PostID, ev.UserID, ev.Type)
	if err != nil {
		return fmt.Errorf("load reaction: %w", err)
	}
	if reaction == nil {
		log.Debug().
			Str("post_id", ev.PostID).
			Str("user_id", ev.UserID).
			Str("type", string(ev.Type)).
			Msg("reaction removal for nonexistent reaction ignored")
		return nil
	}

	if err := sqlitestore.DeleteReaction(ctx, q, reaction.ID); err != nil {
		return err
	}
	if err := sqlitestore.IncrementPostReactionCount(ctx, q, ev.PostID, -1); err != nil {
		return err
	}

	post, err := sqlitestore.GetPost(ctx, q, ev.PostID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post != nil {
		author, err := sqlitestore.GetUser(ctx, q, post.AuthorID)
		if err != nil {
			return fmt.Errorf("load post author: %w", err)
		}
		if author != nil && author.IsActive {
			if err := sqlitestore.AddUserReputation(ctx, q, author.ID, -reaction.PointValue); err != nil {
				return err
			}
		}
	}

	metrics.ReactionsTotal.WithLabelValues("remove", string(ev.Type)).Inc()
	return nil
}

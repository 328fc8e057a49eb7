// Package notify synthesizes notifications from content events. Reply
// notifications are created synchronously in the triggering transaction;
// reaction notifications are staged there and batched into one notification
// per post per window by a periodic flusher. The core's responsibility ends
// at the persisted record: delivery transport is external.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"haven/internal/database/sqlitestore"
	"haven/internal/metrics"
	"haven/internal/models"
)

// Engine fans content events out into notification records
type Engine struct {
	store  *sqlitestore.Store
	window time.Duration
}

// NewEngine creates a notification engine with the given reaction batching
// window.
func NewEngine(store *sqlitestore.Store, window time.Duration) *Engine {
	return &Engine{store: store, window: window}
}

// ReplyCreated notifies the single most relevant recipient of a new post:
// the parent post's author for a reply, otherwise the thread's creator.
// Nothing is created when the recipient is missing, inactive, the acting
// author themself, or has in-app reply notifications disabled.
func (e *Engine) ReplyCreated(ctx context.Context, q sqlitestore.DBTX, ev models.PostCreated) error {
	var recipientID string
	if ev.ParentPostID != nil {
		parent, err := sqlitestore.GetPost(ctx, q, *ev.ParentPostID)
		if err != nil {
			return fmt.Errorf("load parent post: %w", err)
		}
		if parent == nil {
			metrics.NotificationsSkippedTotal.WithLabelValues("missing_recipient").Inc()
			return nil
		}
		recipientID = parent.AuthorID
	} else {
		thread, err := sqlitestore.GetThread(ctx, q, ev.ThreadID)
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}
		if thread == nil {
			metrics.NotificationsSkippedTotal.WithLabelValues("missing_recipient").Inc()
			return nil
		}
		recipientID = thread.AuthorID
	}

	if recipientID == ev.AuthorID {
		metrics.NotificationsSkippedTotal.WithLabelValues("self").Inc()
		return nil
	}

	recipient, err := sqlitestore.GetUser(ctx, q, recipientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if recipient == nil || !recipient.IsActive {
		metrics.NotificationsSkippedTotal.WithLabelValues("missing_recipient").Inc()
		return nil
	}
	if !recipient.Preferences.Enabled(models.ChannelInApp, models.EventReplies) {
		metrics.NotificationsSkippedTotal.WithLabelValues("preference").Inc()
		return nil
	}

	title := "New reply in your thread"
	if ev.ParentPostID != nil {
		title = "New reply to your post"
	}
	return insertNotification(ctx, q, models.Notification{
		ID:              uuid.NewString(),
		RecipientID:     recipientID,
		Type:            models.NotificationReply,
		Title:           title,
		Message:         "Someone replied to a conversation you are part of.",
		ActionRef:       "/threads/" + ev.ThreadID + "#post-" + ev.PostID,
		RelatedUserID:   &ev.AuthorID,
		RelatedPostID:   &ev.PostID,
		RelatedThreadID: &ev.ThreadID,
		CreatedAt:       ev.CreatedAt,
		ExpiresAt:       ev.CreatedAt.Add(models.NotificationTTL),
	})
}

// ReactionAdded stages the reaction for the next batch flush, inside the
// reaction's own transaction so a rolled-back reaction is never counted.
func (e *Engine) ReactionAdded(ctx context.Context, q sqlitestore.DBTX, ev models.ReactionAdded) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reaction_batch_queue (id, post_id, reactor_id, reaction_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), ev.PostID, ev.UserID, string(ev.Type), sqlitestore.FormatTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("stage reaction for batching: %w", err)
	}
	return nil
}

// ReactionRemoved withdraws a staged reaction that has not been flushed yet.
// Already-flushed reactions stay summarized; the notification reflects the
// window in which the reaction existed.
func (e *Engine) ReactionRemoved(ctx context.Context, q sqlitestore.DBTX, ev models.ReactionRemoved) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM reaction_batch_queue WHERE post_id = ? AND reactor_id = ? AND reaction_type = ?
	`, ev.PostID, ev.UserID, string(ev.Type))
	if err != nil {
		return fmt.Errorf("unstage reaction: %w", err)
	}
	return nil
}

// ModerationNotice creates a moderation notification for a user, subject to
// their in-app moderation preference. Callers invoke it inside the
// transaction of the enforcement action it describes.
func ModerationNotice(ctx context.Context, q sqlitestore.DBTX, recipientID, title, message, actionRef string) error {
	recipient, err := sqlitestore.GetUser(ctx, q, recipientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if recipient == nil || !recipient.IsActive {
		metrics.NotificationsSkippedTotal.WithLabelValues("missing_recipient").Inc()
		return nil
	}
	if !recipient.Preferences.Enabled(models.ChannelInApp, models.EventModeration) {
		metrics.NotificationsSkippedTotal.WithLabelValues("preference").Inc()
		return nil
	}

	now := time.Now()
	return insertNotification(ctx, q, models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        models.NotificationModeration,
		Title:       title,
		Message:     message,
		ActionRef:   actionRef,
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.NotificationTTL),
	})
}

// RunFlusher drains the reaction batch queue once per window until the
// context is cancelled.
func (e *Engine) RunFlusher(ctx context.Context) error {
	log.Info().Dur("window", e.window).Msg("reaction batch flusher started")

	ticker := time.NewTicker(e.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reaction batch flusher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := e.FlushBatches(ctx); err != nil {
				log.Error().Err(err).Msg("reaction batch flush failed")
				metrics.BatchFlushesTotal.WithLabelValues("error").Inc()
				continue
			}
			metrics.BatchFlushesTotal.WithLabelValues("ok").Inc()
		}
	}
}

// FlushBatches drains all staged reactions, producing at most one
// notification per post. Self-reactions never notify, and the batch counts
// only cover reactors other than the post's author.
func (e *Engine) FlushBatches(ctx context.Context) error {
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, post_id, reactor_id, reaction_type FROM reaction_batch_queue ORDER BY created_at ASC
		`)
		if err != nil {
			return fmt.Errorf("read batch queue: %w", err)
		}

		type staged struct {
			counts map[models.ReactionType]int
			total  int
		}
		perPost := make(map[string]*staged)
		var drained []string
		for rows.Next() {
			var id, postID, reactorID, typ string
			if err := rows.Scan(&id, &postID, &reactorID, &typ); err != nil {
				rows.Close()
				return err
			}
			drained = append(drained, id)

			post, err := sqlitestore.GetPost(ctx, tx, postID)
			if err != nil {
				rows.Close()
				return err
			}
			if post == nil || reactorID == post.AuthorID {
				continue
			}
			s := perPost[postID]
			if s == nil {
				s = &staged{counts: make(map[models.ReactionType]int)}
				perPost[postID] = s
			}
			s.counts[models.ReactionType(typ)]++
			s.total++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for postID, s := range perPost {
			post, err := sqlitestore.GetPost(ctx, tx, postID)
			if err != nil {
				return err
			}
			author, err := sqlitestore.GetUser(ctx, tx, post.AuthorID)
			if err != nil {
				return err
			}
			if author == nil || !author.IsActive {
				metrics.NotificationsSkippedTotal.WithLabelValues("missing_recipient").Inc()
				continue
			}
			if !author.Preferences.Enabled(models.ChannelInApp, models.EventReactions) {
				metrics.NotificationsSkippedTotal.WithLabelValues("preference").Inc()
				continue
			}

			now := time.Now()
			title := "Your post received a reaction"
			if s.total > 1 {
				title = fmt.Sprintf("Your post received %d reactions", s.total)
			}
			if err := insertNotification(ctx, tx, models.Notification{
				ID:              uuid.NewString(),
				RecipientID:     author.ID,
				Type:            models.NotificationReaction,
				Title:           title,
				Message:         "People found your post meaningful.",
				ActionRef:       "/threads/" + post.ThreadID + "#post-" + postID,
				RelatedPostID:   &post.ID,
				RelatedThreadID: &post.ThreadID,
				BatchCount:      s.total,
				BatchCounts:     s.counts,
				CreatedAt:       now,
				ExpiresAt:       now.Add(models.NotificationTTL),
			}); err != nil {
				return err
			}
		}

		for _, id := range drained {
			if _, err := tx.ExecContext(ctx, `DELETE FROM reaction_batch_queue WHERE id = ?`, id); err != nil {
				return fmt.Errorf("drain batch queue: %w", err)
			}
		}
		return nil
	})
}

// RunCleanup deletes expired notifications on a fixed cadence. Retention
// only; missing a run affects nothing but storage.
func (e *Engine) RunCleanup(ctx context.Context, interval time.Duration) error {
	log.Info().Dur("interval", interval).Msg("notification cleanup started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notification cleanup stopped")
			return ctx.Err()
		case <-ticker.C:
			n, err := e.CleanupExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("notification cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("expired notifications removed")
			}
		}
	}
}

// CleanupExpired removes notifications past their expiry
func (e *Engine) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := e.store.DB().ExecContext(ctx, `
		DELETE FROM notifications WHERE expires_at < ?
	`, sqlitestore.FormatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	metrics.NotificationsExpiredTotal.Add(float64(n))
	return n, nil
}

// MarkRead flips a notification to read for its recipient
func (e *Engine) MarkRead(ctx context.Context, notificationID, recipientID string) error {
	res, err := e.store.DB().ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?
	`, notificationID, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification not found: %s", notificationID)
	}
	return nil
}

// UnreadCount returns how many unread notifications a user has
func (e *Engine) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := e.store.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0
	`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// ListForRecipient returns a user's notifications, newest first
func (e *Engine) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	return listNotifications(ctx, e.store.DB(), recipientID, limit)
}

func insertNotification(ctx context.Context, q sqlitestore.DBTX, n models.Notification) error {
	var batchCounts any
	if len(n.BatchCounts) > 0 {
		data, err := json.Marshal(n.BatchCounts)
		if err != nil {
			return fmt.Errorf("marshal batch counts: %w", err)
		}
		batchCounts = string(data)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications
			(id, recipient_id, type, title, message, action_ref,
			 related_user_id, related_post_id, related_thread_id,
			 batch_count, batch_counts, is_read, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, n.ID, n.RecipientID, string(n.Type), n.Title, n.Message, n.ActionRef,
		nullStr(n.RelatedUserID), nullStr(n.RelatedPostID), nullStr(n.RelatedThreadID),
		n.BatchCount, batchCounts,
		sqlitestore.FormatTime(n.CreatedAt), sqlitestore.FormatTime(n.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()
	return nil
}

func listNotifications(ctx context.Context, q sqlitestore.DBTX, recipientID string, limit int) ([]models.Notification, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, recipient_id, type, title, message, action_ref,
		       related_user_id, related_post_id, related_thread_id,
		       batch_count, batch_counts, is_read, created_at, expires_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n                         models.Notification
			typ                       string
			relUser, relPost, relThr  sql.NullString
			batchCounts               sql.NullString
			isRead                    int
			createdAt, expiresAt      string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Message, &n.ActionRef,
			&relUser, &relPost, &relThr, &n.BatchCount, &batchCounts, &isRead,
			&createdAt, &expiresAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(typ)
		n.RelatedUserID = strPtr(relUser)
		n.RelatedPostID = strPtr(relPost)
		n.RelatedThreadID = strPtr(relThr)
		if batchCounts.Valid && batchCounts.String != "" {
			if err := json.Unmarshal([]byte(batchCounts.String), &n.BatchCounts); err != nil {
				return nil, fmt.Errorf("unmarshal batch counts: %w", err)
			}
		}
		n.IsRead = isRead == 1
		n.CreatedAt = sqlitestore.ParseTime(createdAt)
		n.ExpiresAt = sqlitestore.ParseTime(expiresAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"haven/internal/models"
)

// Row helpers shared by the engines and their tests. Each takes a DBTX so
// it can participate in a content-event transaction.

func marshalPreferences(p models.NotificationPreferences) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal preferences: %w", err)
	}
	return string(data), nil
}

// ========== Users ==========

func InsertUser(ctx context.Context, q DBTX, u models.User) error {
	prefs, err := marshalPreferences(u.Preferences)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO users
			(id, username, display_name, role, reputation_score, notification_preferences,
			 is_active, deletion_requested, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.DisplayName, u.Role, u.ReputationScore, prefs,
		boolToInt(u.IsActive), boolToInt(u.DeletionRequested),
		FormatTime(u.CreatedAt), FormatTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func GetUser(ctx context.Context, q DBTX, id string) (*models.User, error) {
	var (
		u          models.User
		prefsStr   string
		isActive   int
		delRequest int
		createdAt  string
		updatedAt  string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, username, display_name, role, reputation_score, notification_preferences,
		       is_active, deletion_requested, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.ReputationScore, &prefsStr,
		&isActive, &delRequest, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prefs, err := models.ParsePreferences([]byte(prefsStr))
	if err != nil {
		return nil, fmt.Errorf("user %s has malformed preferences: %w", id, err)
	}
	u.Preferences = prefs
	u.IsActive = isActive == 1
	u.DeletionRequested = delRequest == 1
	u.CreatedAt = ParseTime(createdAt)
	u.UpdatedAt = ParseTime(updatedAt)
	return &u, nil
}

// UpdateUserPreferences replaces a user's notification preference document
func UpdateUserPreferences(ctx context.Context, q DBTX, userID string, prefs models.NotificationPreferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	data, err := marshalPreferences(prefs)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE users SET notification_preferences = ? WHERE id = ?`, data, userID)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// AddUserReputation applies an atomic in-place delta to reputation_score.
// Expressed as a relative update so concurrent reactions both land.
func AddUserReputation(ctx context.Context, q DBTX, userID string, delta int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE users SET reputation_score = reputation_score + ? WHERE id = ?
	`, delta, userID)
	if err != nil {
		return fmt.Errorf("add reputation: %w", err)
	}
	return nil
}

// ========== Threads ==========

func InsertThread(ctx context.Context, q DBTX, t models.Thread) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO threads (id, category_id, author_id, title, status, post_count, last_activity_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.CategoryID, t.AuthorID, t.Title, string(t.Status), t.PostCount,
		FormatTime(t.LastActivityAt), FormatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func GetThread(ctx context.Context, q DBTX, id string) (*models.Thread, error) {
	var (
		t            models.Thread
		status       string
		lastActivity string
		createdAt    string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, category_id, author_id, title, status, post_count, last_activity_at, created_at
		FROM threads WHERE id = ?
	`, id).Scan(&t.ID, &t.CategoryID, &t.AuthorID, &t.Title, &status, &t.PostCount, &lastActivity, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.ThreadStatus(status)
	t.LastActivityAt = ParseTime(lastActivity)
	t.CreatedAt = ParseTime(createdAt)
	return &t, nil
}

// BumpThreadActivity atomically adjusts post_count and, when activityAt is
// non-nil, advances last_activity_at.
func BumpThreadActivity(ctx context.Context, q DBTX, threadID string, delta int, activityAt *time.Time) error {
	var err error
	if activityAt != nil {
		_, err = q.ExecContext(ctx, `
			UPDATE threads SET post_count = post_count + ?, last_activity_at = ? WHERE id = ?
		`, delta, FormatTime(*activityAt), threadID)
	} else {
		_, err = q.ExecContext(ctx, `
			UPDATE threads SET post_count = post_count + ? WHERE id = ?
		`, delta, threadID)
	}
	if err != nil {
		return fmt.Errorf("bump thread activity: %w", err)
	}
	return nil
}

// ========== Posts ==========

func InsertPost(ctx context.Context, q DBTX, p models.Post) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO posts
			(id, thread_id, parent_post_id, author_id, content, word_count, reaction_count,
			 is_deleted, flagged_for_review, created_at, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.ThreadID, nullString(p.ParentPostID), p.AuthorID, p.Content, p.WordCount,
		p.ReactionCount, boolToInt(p.IsDeleted), boolToInt(p.FlaggedForReview),
		FormatTime(p.CreatedAt), formatNullTime(p.EditedAt))
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func GetPost(ctx context.Context, q DBTX, id string) (*models.Post, error) {
	var (
		p         models.Post
		parent    sql.NullString
		isDeleted int
		flagged   int
		createdAt string
		editedAt  sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, thread_id, parent_post_id, author_id, content, word_count, reaction_count,
		       is_deleted, flagged_for_review, created_at, edited_at
		FROM posts WHERE id = ?
	`, id).Scan(&p.ID, &p.ThreadID, &parent, &p.AuthorID, &p.Content, &p.WordCount,
		&p.ReactionCount, &isDeleted, &flagged, &createdAt, &editedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.ParentPostID = stringPtr(parent)
	p.IsDeleted = isDeleted == 1
	p.FlaggedForReview = flagged == 1
	p.CreatedAt = ParseTime(createdAt)
	p.EditedAt = parseNullTime(editedAt)
	return &p, nil
}

// MarkPostDeleted soft-deletes a post. The conditional predicate makes a
// second delete of the same post affect zero rows.
func MarkPostDeleted(ctx context.Context, q DBTX, postID string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE posts SET is_deleted = 1 WHERE id = ? AND is_deleted = 0
	`, postID)
	if err != nil {
		return false, fmt.Errorf("mark post deleted: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func SetPostFlaggedForReview(ctx context.Context, q DBTX, postID string) error {
	_, err := q.ExecContext(ctx, `UPDATE posts SET flagged_for_review = 1 WHERE id = ?`, postID)
	if err != nil {
		return fmt.Errorf("flag post for review: %w", err)
	}
	return nil
}

func UpdatePostContent(ctx context.Context, q DBTX, postID, content string, wordCount int, editedAt string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE posts SET content = ?, word_count = ?, edited_at = ? WHERE id = ?
	`, content, wordCount, editedAt, postID)
	if err != nil {
		return fmt.Errorf("update post content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post not found: %s", postID)
	}
	return nil
}

// IncrementPostReactionCount applies an atomic in-place delta
func IncrementPostReactionCount(ctx context.Context, q DBTX, postID string, delta int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE posts SET reaction_count = reaction_count + ? WHERE id = ?
	`, delta, postID)
	if err != nil {
		return fmt.Errorf("increment reaction count: %w", err)
	}
	return nil
}

// ========== Reactions ==========

func InsertReaction(ctx context.Context, q DBTX, r models.Reaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reactions (id, post_id, user_id, reaction_type, point_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.PostID, r.UserID, string(r.Type), r.PointValue, FormatTime(r.CreatedAt))
	return err
}

func GetReaction(ctx context.Context, q DBTX, postID, userID string, typ models.ReactionType) (*models.Reaction, error) {
	var (
		r         models.Reaction
		typeStr   string
		createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, post_id, user_id, reaction_type, point_value, created_at
		FROM reactions WHERE post_id = ? AND user_id = ? AND reaction_type = ?
	`, postID, userID, string(typ)).Scan(&r.ID, &r.PostID, &r.UserID, &typeStr, &r.PointValue, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Type = models.ReactionType(typeStr)
	r.CreatedAt = ParseTime(createdAt)
	return &r, nil
}

func DeleteReaction(ctx context.Context, q DBTX, reactionID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM reactions WHERE id = ?`, reactionID)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}

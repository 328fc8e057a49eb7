// Package audit writes and reads the append-only trails: the moderation log,
// per-report history, and post edit history. There are no update or delete
// paths by construction.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"haven/internal/database/sqlitestore"
	"haven/internal/models"
)

// AppendModerationLog records a moderator action in the same transaction as
// the action itself.
func AppendModerationLog(ctx context.Context, q sqlitestore.DBTX, entry models.ModerationLogEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	details := "{}"
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return "", fmt.Errorf("marshal moderation log details: %w", err)
		}
		details = string(data)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO moderation_log (id, actor_id, action, target_kind, target_id, reason, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ActorID, string(entry.Action), entry.TargetKind, entry.TargetID,
		entry.Reason, details, sqlitestore.FormatTime(entry.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("append moderation log: %w", err)
	}
	return entry.ID, nil
}

// ModerationLogForTarget returns the logged actions for a target, oldest first
func ModerationLogForTarget(ctx context.Context, q sqlitestore.DBTX, targetKind, targetID string) ([]models.ModerationLogEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, actor_id, action, target_kind, target_id, reason, details, created_at
		FROM moderation_log
		WHERE target_kind = ? AND target_id = ?
		ORDER BY created_at ASC
	`, targetKind, targetID)
	if err != nil {
		return nil, fmt.Errorf("query moderation log: %w", err)
	}
	defer rows.Close()

	var entries []models.ModerationLogEntry
	for rows.Next() {
		var (
			e         models.ModerationLogEntry
			action    string
			details   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.TargetKind, &e.TargetID, &e.Reason, &details, &createdAt); err != nil {
			return nil, err
		}
		e.Action = models.ModerationAction(action)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal moderation log details: %w", err)
			}
		}
		e.CreatedAt = sqlitestore.ParseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendReportHistory adds one entry to a report's audit trail
func AppendReportHistory(ctx context.Context, q sqlitestore.DBTX, entry models.ReportHistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO report_history (id, report_id, action, field, old_value, new_value, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ReportID, string(entry.Action), entry.Field, entry.OldValue,
		entry.NewValue, entry.ActorID, sqlitestore.FormatTime(entry.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("append report history: %w", err)
	}
	return entry.ID, nil
}

// ReportHistory returns a report's full audit trail, oldest first
func ReportHistory(ctx context.Context, q sqlitestore.DBTX, reportID string) ([]models.ReportHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, report_id, action, field, old_value, new_value, actor_id, created_at
		FROM report_history
		WHERE report_id = ?
		ORDER BY created_at ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query report history: %w", err)
	}
	defer rows.Close()

	var entries []models.ReportHistoryEntry
	for rows.Next() {
		var (
			e         models.ReportHistoryEntry
			action    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ReportID, &action, &e.Field, &e.OldValue, &e.NewValue, &e.ActorID, &createdAt); err != nil {
			return nil, err
		}
		e.Action = models.ReportAuditAction(action)
		e.CreatedAt = sqlitestore.ParseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendPostEdit records a post content change alongside the update itself
func AppendPostEdit(ctx context.Context, q sqlitestore.DBTX, entry models.PostEditHistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO post_edit_history
			(id, post_id, editor_id, previous_content, new_content, previous_word_count, new_word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.PostID, entry.EditorID, entry.PreviousContent, entry.NewContent,
		entry.PreviousWordCount, entry.NewWordCount, sqlitestore.FormatTime(entry.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("append post edit history: %w", err)
	}
	return entry.ID, nil
}

// PostEdits returns a post's edit history, oldest first
func PostEdits(ctx context.Context, q sqlitestore.DBTX, postID string) ([]models.PostEditHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, post_id, editor_id, previous_content, new_content, previous_word_count, new_word_count, created_at
		FROM post_edit_history
		WHERE post_id = ?
		ORDER BY created_at ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("query post edit history: %w", err)
	}
	defer rows.Close()

	var entries []models.PostEditHistoryEntry
	for rows.Next() {
		var (
			e         models.PostEditHistoryEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.PostID, &e.EditorID, &e.PreviousContent, &e.NewContent,
			&e.PreviousWordCount, &e.NewWordCount, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = sqlitestore.ParseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"haven/internal/database/sqlitestore"
	"haven/internal/models"
)

func insertReport(ctx context.Context, q sqlitestore.DBTX, r models.ContentReport) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO content_reports
			(id, target_type, thread_id, post_id, reported_user_id, reporter_id,
			 category, severity, status, description, auto_flagged,
			 assigned_moderator_id, assigned_at, reviewed_by, reviewed_at, action_taken,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.TargetType), nullStr(r.ThreadID), nullStr(r.PostID), nullStr(r.ReportedUserID),
		r.ReporterID, string(r.Category), string(r.Severity), string(r.Status), r.Description,
		boolInt(r.AutoFlagged), nullStr(r.AssignedModeratorID), nullTime(r.AssignedAt),
		nullStr(r.ReviewedBy), nullTime(r.ReviewedAt), nullStr(r.ActionTaken),
		sqlitestore.FormatTime(r.CreatedAt), sqlitestore.FormatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func getReport(ctx context.Context, q sqlitestore.DBTX, id string) (*models.ContentReport, error) {
	var (
		r                                 models.ContentReport
		targetType, category, sev, status string
		threadID, postID, reportedUserID  sql.NullString
		assignedMod, reviewedBy, action   sql.NullString
		assignedAt, reviewedAt            sql.NullString
		autoFlagged                       int
		createdAt, updatedAt              string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, target_type, thread_id, post_id, reported_user_id, reporter_id,
		       category, severity, status, description, auto_flagged,
		       assigned_moderator_id, assigned_at, reviewed_by, reviewed_at, action_taken,
		       created_at, updated_at
		FROM content_reports WHERE id = ?
	`, id).Scan(&r.ID, &targetType, &threadID, &postID, &reportedUserID, &r.ReporterID,
		&category, &sev, &status, &r.Description, &autoFlagged,
		&assignedMod, &assignedAt, &reviewedBy, &reviewedAt, &action,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.TargetType = models.ReportTargetType(targetType)
	r.ThreadID = strPtr(threadID)
	r.PostID = strPtr(postID)
	r.ReportedUserID = strPtr(reportedUserID)
	r.Category = models.ReportCategory(category)
	r.Severity = models.ReportSeverity(sev)
	r.Status = models.ReportStatus(status)
	r.AutoFlagged = autoFlagged == 1
	r.AssignedModeratorID = strPtr(assignedMod)
	r.AssignedAt = timePtr(assignedAt)
	r.ReviewedBy = strPtr(reviewedBy)
	r.ReviewedAt = timePtr(reviewedAt)
	r.ActionTaken = strPtr(action)
	r.CreatedAt = sqlitestore.ParseTime(createdAt)
	r.UpdatedAt = sqlitestore.ParseTime(updatedAt)
	return &r, nil
}

// listByStatus returns reports in the given status, oldest first, for the
// moderation queue.
func listByStatus(ctx context.Context, q sqlitestore.DBTX, status models.ReportStatus, limit int) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM content_reports WHERE status = ? ORDER BY created_at ASC LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// upsertReporterHistory bumps total_reports_made for a new report
func upsertReporterHistory(ctx context.Context, q sqlitestore.DBTX, reporterID string, reportedAt time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_report_history (reporter_id, total_reports_made, reports_upheld, reports_dismissed, last_report_at)
		VALUES (?, 1, 0, 0, ?)
		ON CONFLICT(reporter_id) DO UPDATE SET
			total_reports_made = total_reports_made + 1,
			last_report_at = excluded.last_report_at
	`, reporterID, sqlitestore.FormatTime(reportedAt))
	if err != nil {
		return fmt.Errorf("upsert reporter history: %w", err)
	}
	return nil
}

// bumpResolutionStats applies the exactly-once accuracy update at a report's
// first resolution.
func bumpResolutionStats(ctx context.Context, q sqlitestore.DBTX, reporterID string, upheld bool) error {
	column := "reports_dismissed"
	if upheld {
		column = "reports_upheld"
	}
	_, err := q.ExecContext(ctx,
		"UPDATE user_report_history SET "+column+" = "+column+" + 1 WHERE reporter_id = ?",
		reporterID)
	if err != nil {
		return fmt.Errorf("bump resolution stats: %w", err)
	}
	return nil
}

// ReporterHistory returns the running report stats for a reporter, nil when
// the reporter has never filed one.
func ReporterHistory(ctx context.Context, q sqlitestore.DBTX, reporterID string) (*models.UserReportHistory, error) {
	var (
		h            models.UserReportHistory
		lastReportAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT reporter_id, total_reports_made, reports_upheld, reports_dismissed, last_report_at
		FROM user_report_history WHERE reporter_id = ?
	`, reporterID).Scan(&h.ReporterID, &h.TotalReportsMade, &h.ReportsUpheld, &h.ReportsDismissed, &lastReportAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.LastReportAt = sqlitestore.ParseTime(lastReportAt)
	return &h, nil
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

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return sqlitestore.FormatTime(*t)
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := sqlitestore.ParseTime(s.String)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package reports owns the content-report lifecycle: PENDING through review
// to a terminal outcome, with an append-only audit trail and per-reporter
// accuracy statistics. Each mutation runs in its own transaction.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"haven/internal/audit"
	"haven/internal/database/sqlitestore"
	"haven/internal/identity"
	"haven/internal/metrics"
	"haven/internal/models"
	"haven/internal/refdata"
)

// ErrReportNotFound is returned when the referenced report does not exist
var ErrReportNotFound = errors.New("report not found")

// ErrNotAuthorized is returned when the acting user's moderation tier does
// not include the required capability.
var ErrNotAuthorized = errors.New("actor is not authorized for this action")

// InvalidTransitionError reports a rejected status transition
type InvalidTransitionError struct {
	From models.ReportStatus
	To   models.ReportStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid report transition from %s to %s", e.From, e.To)
}

// Engine drives the report workflow state machine
type Engine struct {
	store    *sqlitestore.Store
	refdata  *refdata.Service
	resolver *identity.Resolver
}

// NewEngine creates a report workflow engine
func NewEngine(store *sqlitestore.Store, ref *refdata.Service, resolver *identity.Resolver) *Engine {
	return &Engine{store: store, refdata: ref, resolver: resolver}
}

// CreateInput describes a new report. When TemplateCode is set, category and
// default severity come from the matching report template; explicit Category
// and Severity override nothing in that case.
type CreateInput struct {
	TargetType     models.ReportTargetType
	ThreadID       *string
	PostID         *string
	ReportedUserID *string
	ReporterID     string
	TemplateCode   string
	Category       models.ReportCategory
	Severity       models.ReportSeverity
	Description    string
}

// Create files a new report in PENDING, appends the CREATED audit entry, and
// updates the reporter's running totals. A post-targeted report also flags
// the post for review.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*models.ContentReport, error) {
	now := time.Now()
	report := models.ContentReport{
		ID:             uuid.NewString(),
		TargetType:     in.TargetType,
		ThreadID:       in.ThreadID,
		PostID:         in.PostID,
		ReportedUserID: in.ReportedUserID,
		ReporterID:     in.ReporterID,
		Category:       in.Category,
		Severity:       in.Severity,
		Status:         models.ReportPending,
		Description:    in.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if in.TemplateCode != "" {
		tpl, ok := e.refdata.Template(in.TemplateCode)
		if !ok {
			return nil, fmt.Errorf("unknown report template: %s", in.TemplateCode)
		}
		report.Category = tpl.Category
		report.Severity = tpl.DefaultSeverity
	}

	if err := report.ValidateTarget(); err != nil {
		return nil, err
	}

	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertReport(ctx, tx, report); err != nil {
			return err
		}
		if _, err := audit.AppendReportHistory(ctx, tx, models.ReportHistoryEntry{
			ReportID:  report.ID,
			Action:    models.ReportAuditCreated,
			ActorID:   report.ReporterID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := upsertReporterHistory(ctx, tx, report.ReporterID, now); err != nil {
			return err
		}
		if report.TargetType == models.TargetPost && report.PostID != nil {
			if err := sqlitestore.SetPostFlaggedForReview(ctx, tx, *report.PostID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReportsCreatedTotal.WithLabelValues(string(report.Category), string(report.Severity)).Inc()
	log.Info().
		Str("report_id", report.ID).
		Str("target_type", string(report.TargetType)).
		Str("category", string(report.Category)).
		Str("severity", string(report.Severity)).
		Msg("content report created")
	return &report, nil
}

// Assign sets or clears the assigned moderator. Assignment never changes the
// report's status, and an audit entry is written only when the assignee
// actually changes.
func (e *Engine) Assign(ctx context.Context, reportID string, moderatorID *string, actorID string) error {
	if err := e.requireCapability(ctx, actorID, refdata.CapAssignReport); err != nil {
		return err
	}
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		report, err := getReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return ErrReportNotFound
		}
		if report.Status.IsTerminal() {
			return &InvalidTransitionError{From: report.Status, To: report.Status}
		}

		oldVal := derefOr(report.AssignedModeratorID, "")
		newVal := derefOr(moderatorID, "")
		if oldVal == newVal {
			return nil
		}

		now := time.Now()
		var assignedAt any
		if moderatorID != nil {
			assignedAt = sqlitestore.FormatTime(now)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE content_reports SET assigned_moderator_id = ?, assigned_at = ?, updated_at = ? WHERE id = ?
		`, nullStr(moderatorID), assignedAt, sqlitestore.FormatTime(now), reportID); err != nil {
			return fmt.Errorf("assign report: %w", err)
		}

		_, err = audit.AppendReportHistory(ctx, tx, models.ReportHistoryEntry{
			ReportID:  reportID,
			Action:    models.ReportAuditAssigned,
			Field:     "assigned_moderator_id",
			OldValue:  oldVal,
			NewValue:  newVal,
			ActorID:   actorID,
			CreatedAt: now,
		})
		return err
	})
}

// StartReview moves a PENDING report to UNDER_REVIEW
func (e *Engine) StartReview(ctx context.Context, reportID, actorID string) error {
	if err := e.requireCapability(ctx, actorID, refdata.CapResolveReport); err != nil {
		return err
	}
	return e.transition(ctx, reportID, actorID, models.ReportUnderReview, func(from models.ReportStatus) bool {
		return from == models.ReportPending
	}, nil)
}

// Resolve moves a report to ACTION_TAKEN or DISMISSED and stamps the
// reviewer. When the prior status was PENDING this is the report's first
// resolution and the reporter's accuracy counters move exactly once.
func (e *Engine) Resolve(ctx context.Context, reportID string, outcome models.ReportStatus, actorID string) error {
	if outcome != models.ReportActionTaken && outcome != models.ReportDismissed {
		return &InvalidTransitionError{From: outcome, To: outcome}
	}
	if err := e.requireCapability(ctx, actorID, refdata.CapResolveReport); err != nil {
		return err
	}
	return e.transition(ctx, reportID, actorID, outcome, func(from models.ReportStatus) bool {
		return !from.IsTerminal()
	}, func(tx *sql.Tx, report *models.ContentReport, now time.Time) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE content_reports SET reviewed_by = ?, reviewed_at = ? WHERE id = ?
		`, actorID, sqlitestore.FormatTime(now), reportID); err != nil {
			return fmt.Errorf("stamp reviewer: %w", err)
		}
		if report.Status == models.ReportPending {
			return bumpResolutionStats(ctx, tx, report.ReporterID, outcome == models.ReportActionTaken)
		}
		return nil
	})
}

// Escalate moves any non-terminal report to ESCALATED. Escalation never
// touches reporter statistics.
func (e *Engine) Escalate(ctx context.Context, reportID, actorID string) error {
	if err := e.requireCapability(ctx, actorID, refdata.CapEscalateReport); err != nil {
		return err
	}
	return e.transition(ctx, reportID, actorID, models.ReportEscalated, func(from models.ReportStatus) bool {
		return !from.IsTerminal() && from != models.ReportEscalated
	}, nil)
}

// SetSeverity regrades a report, independent of status
func (e *Engine) SetSeverity(ctx context.Context, reportID string, severity models.ReportSeverity, actorID string) error {
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		report, err := getReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return ErrReportNotFound
		}
		if report.Severity == severity {
			return nil
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE content_reports SET severity = ?, updated_at = ? WHERE id = ?
		`, string(severity), sqlitestore.FormatTime(now), reportID); err != nil {
			return fmt.Errorf("set severity: %w", err)
		}

		_, err = audit.AppendReportHistory(ctx, tx, models.ReportHistoryEntry{
			ReportID:  reportID,
			Action:    models.ReportAuditSeverityChanged,
			Field:     "severity",
			OldValue:  string(report.Severity),
			NewValue:  string(severity),
			ActorID:   actorID,
			CreatedAt: now,
		})
		return err
	})
}

// RecordAction notes the concrete action taken on a report, independent of
// any status change.
func (e *Engine) RecordAction(ctx context.Context, reportID, action, actorID string) error {
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		report, err := getReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return ErrReportNotFound
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE content_reports SET action_taken = ?, updated_at = ? WHERE id = ?
		`, action, sqlitestore.FormatTime(now), reportID); err != nil {
			return fmt.Errorf("record action: %w", err)
		}

		_, err = audit.AppendReportHistory(ctx, tx, models.ReportHistoryEntry{
			ReportID:  reportID,
			Action:    models.ReportAuditActionTaken,
			Field:     "action_taken",
			OldValue:  derefOr(report.ActionTaken, ""),
			NewValue:  action,
			ActorID:   actorID,
			CreatedAt: now,
		})
		return err
	})
}

// Get returns a report by ID
func (e *Engine) Get(ctx context.Context, reportID string) (*models.ContentReport, error) {
	report, err := getReport(ctx, e.store.DB(), reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// Queue returns the IDs of reports awaiting triage, oldest first
func (e *Engine) Queue(ctx context.Context, status models.ReportStatus, limit int) ([]string, error) {
	return listByStatus(ctx, e.store.DB(), status, limit)
}

// transition applies a guarded status change and writes the STATUS_CHANGED
// audit entry. extra runs inside the same transaction after the status
// update, with the report loaded in its pre-transition state.
func (e *Engine) transition(ctx context.Context, reportID, actorID string, to models.ReportStatus,
	allowed func(from models.ReportStatus) bool,
	extra func(tx *sql.Tx, report *models.ContentReport, now time.Time) error) error {

	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		report, err := getReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return ErrReportNotFound
		}
		if !allowed(report.Status) {
			return &InvalidTransitionError{From: report.Status, To: to}
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE content_reports SET status = ?, updated_at = ? WHERE id = ?
		`, string(to), sqlitestore.FormatTime(now), reportID); err != nil {
			return fmt.Errorf("update report status: %w", err)
		}

		if _, err := audit.AppendReportHistory(ctx, tx, models.ReportHistoryEntry{
			ReportID:  reportID,
			Action:    models.ReportAuditStatusChanged,
			Field:     "status",
			OldValue:  string(report.Status),
			NewValue:  string(to),
			ActorID:   actorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if extra != nil {
			if err := extra(tx, report, now); err != nil {
				return err
			}
		}

		metrics.ReportTransitionsTotal.WithLabelValues(string(report.Status), string(to)).Inc()
		return nil
	})

	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		metrics.ReportTransitionsRejected.Inc()
	}
	return err
}

// requireCapability checks the actor's moderation tier for the capability
func (e *Engine) requireCapability(ctx context.Context, actorID string, cap refdata.Capability) error {
	role, err := e.resolver.Role(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}
	if role == "" || !e.refdata.HasCapability(role, cap) {
		return ErrNotAuthorized
	}
	return nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

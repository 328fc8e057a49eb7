// Package enforcement manages user warnings and restrictions: moderators
// issue, acknowledge, and lift them, and the expiry sweeper deactivates
// time-bounded ones whose expiry has passed.
package enforcement

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
	"haven/internal/notify"
	"haven/internal/refdata"
)

// ErrNotAuthorized is returned when the acting user's moderation tier does
// not include the required capability.
var ErrNotAuthorized = errors.New("actor is not authorized for this action")

// ErrNotFound is returned when the referenced warning or restriction does
// not exist or is already inactive.
var ErrNotFound = errors.New("enforcement record not found or not active")

// Service performs moderator enforcement actions. Every action and its
// moderation log entry commit in one transaction.
type Service struct {
	store    *sqlitestore.Store
	refdata  *refdata.Service
	resolver *identity.Resolver
}

// NewService creates an enforcement service
func NewService(store *sqlitestore.Store, ref *refdata.Service, resolver *identity.Resolver) *Service {
	return &Service{store: store, refdata: ref, resolver: resolver}
}

// IssueWarning creates an active warning for a user. A nil expiresAt makes
// the warning permanent until explicitly lifted.
func (s *Service) IssueWarning(ctx context.Context, userID, actorID, reason string, severity models.WarningSeverity, expiresAt *time.Time) (*models.UserWarning, error) {
	if err := s.requireCapability(ctx, actorID, refdata.CapIssueWarning); err != nil {
		return nil, err
	}

	w := models.UserWarning{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedBy:  actorID,
		Reason:    reason,
		Severity:  severity,
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var expires any
		if w.ExpiresAt != nil {
			expires = sqlitestore.FormatTime(*w.ExpiresAt)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_warnings (id, user_id, issued_by, reason, severity, is_active, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		`, w.ID, w.UserID, w.IssuedBy, w.Reason, string(w.Severity), expires,
			sqlitestore.FormatTime(w.CreatedAt)); err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
		if _, err := audit.AppendModerationLog(ctx, tx, models.ModerationLogEntry{
			ActorID:    actorID,
			Action:     models.ActionWarningIssued,
			TargetKind: "warning",
			TargetID:   w.ID,
			Reason:     reason,
			Details:    map[string]string{"user_id": userID, "severity": string(severity)},
			CreatedAt:  w.CreatedAt,
		}); err != nil {
			return err
		}
		return notify.ModerationNotice(ctx, tx, userID,
			"You have received a warning",
			"A moderator has issued a warning on your account. Please review the community guidelines.",
			"/account/warnings/"+w.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.EnforcementActionsTotal.WithLabelValues(string(models.ActionWarningIssued)).Inc()
	log.Info().
		Str("warning_id", w.ID).
		Str("user_id", userID).
		Str("severity", string(severity)).
		Msg("warning issued")
	return &w, nil
}

// AcknowledgeWarning records that the warned user has seen the warning.
// Acknowledgement does not deactivate it.
func (s *Service) AcknowledgeWarning(ctx context.Context, warningID, userID string) error {
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE user_warnings SET acknowledged_at = ?
			WHERE id = ? AND user_id = ? AND acknowledged_at IS NULL
		`, sqlitestore.FormatTime(now), warningID, userID)
		if err != nil {
			return fmt.Errorf("acknowledge warning: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = audit.AppendModerationLog(ctx, tx, models.ModerationLogEntry{
			ActorID:    userID,
			Action:     models.ActionWarningAcknowledged,
			TargetKind: "warning",
			TargetID:   warningID,
			CreatedAt:  now,
		})
		return err
	})
}

// LiftWarning deactivates a warning ahead of its expiry
func (s *Service) LiftWarning(ctx context.Context, warningID, actorID, reason string) error {
	if err := s.requireCapability(ctx, actorID, refdata.CapLiftWarning); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE user_warnings SET is_active = 0, lifted_by = ?, lifted_at = ?
			WHERE id = ? AND is_active = 1
		`, actorID, sqlitestore.FormatTime(now), warningID)
		if err != nil {
			return fmt.Errorf("lift warning: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = audit.AppendModerationLog(ctx, tx, models.ModerationLogEntry{
			ActorID:    actorID,
			Action:     models.ActionWarningLifted,
			TargetKind: "warning",
			TargetID:   warningID,
			Reason:     reason,
			CreatedAt:  now,
		})
		return err
	})
	if err == nil {
		metrics.EnforcementActionsTotal.WithLabelValues(string(models.ActionWarningLifted)).Inc()
	}
	return err
}

// IssueRestriction creates an active restriction for a user
func (s *Service) IssueRestriction(ctx context.Context, userID, actorID, reason string, typ models.RestrictionType, expiresAt *time.Time) (*models.UserRestriction, error) {
	if err := s.requireCapability(ctx, actorID, refdata.CapIssueRestriction); err != nil {
		return nil, err
	}

	r := models.UserRestriction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		IssuedBy:  actorID,
		Reason:    reason,
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var expires any
		if r.ExpiresAt != nil {
			expires = sqlitestore.FormatTime(*r.ExpiresAt)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_restrictions (id, user_id, restriction_type, issued_by, reason, is_active, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		`, r.ID, r.UserID, string(r.Type), r.IssuedBy, r.Reason, expires,
			sqlitestore.FormatTime(r.CreatedAt)); err != nil {
			return fmt.Errorf("insert restriction: %w", err)
		}
		if _, err := audit.AppendModerationLog(ctx, tx, models.ModerationLogEntry{
			ActorID:    actorID,
			Action:     models.ActionRestrictionIssued,
			TargetKind: "restriction",
			TargetID:   r.ID,
			Reason:     reason,
			Details:    map[string]string{"user_id": userID, "restriction_type": string(typ)},
			CreatedAt:  r.CreatedAt,
		}); err != nil {
			return err
		}
		return notify.ModerationNotice(ctx, tx, userID,
			"Your account has been restricted",
			"A moderator has placed a restriction on your account.",
			"/account/restrictions/"+r.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.EnforcementActionsTotal.WithLabelValues(string(models.ActionRestrictionIssued)).Inc()
	log.Info().
		Str("restriction_id", r.ID).
		Str("user_id", userID).
		Str("type", string(typ)).
		Msg("restriction issued")
	return &r, nil
}

// LiftRestriction deactivates a restriction ahead of its expiry
func (s *Service) LiftRestriction(ctx context.Context, restrictionID, actorID, reason string) error {
	if err := s.requireCapability(ctx, actorID, refdata.CapLiftRestriction); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE user_restrictions SET is_active = 0, lifted_by = ?, lifted_at = ?
			WHERE id = ? AND is_active = 1
		`, actorID, sqlitestore.FormatTime(now), restrictionID)
		if err != nil {
			return fmt.Errorf("lift restriction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = audit.AppendModerationLog(ctx, tx, models.ModerationLogEntry{
			ActorID:    actorID,
			Action:     models.ActionRestrictionLifted,
			TargetKind: "restriction",
			TargetID:   restrictionID,
			Reason:     reason,
			CreatedAt:  now,
		})
		return err
	})
	if err == nil {
		metrics.EnforcementActionsTotal.WithLabelValues(string(models.ActionRestrictionLifted)).Inc()
	}
	return err
}

// ActiveRestrictions returns a user's currently active restriction types
func (s *Service) ActiveRestrictions(ctx context.Context, userID string) ([]models.RestrictionType, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT restriction_type FROM user_restrictions WHERE user_id = ? AND is_active = 1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query active restrictions: %w", err)
	}
	defer rows.Close()

	var types []models.RestrictionType
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, models.RestrictionType(t))
	}
	return types, rows.Err()
}

func (s *Service) requireCapability(ctx context.Context, actorID string, cap refdata.Capability) error {
	role, err := s.resolver.Role(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}
	if role == "" || !s.refdata.HasCapability(role, cap) {
		return ErrNotAuthorized
	}
	return nil
}

package models

import "time"

// WarningSeverity grades a user warning
type WarningSeverity string

const (
	WarningMinor   WarningSeverity = "MINOR"
	WarningSerious WarningSeverity = "SERIOUS"
	WarningFinal   WarningSeverity = "FINAL"
)

// RestrictionType is the kind of capability a restriction removes
type RestrictionType string

const (
	RestrictionPostingBan  RestrictionType = "POSTING_BAN"
	RestrictionReactionBan RestrictionType = "REACTION_BAN"
	RestrictionReportBan   RestrictionType = "REPORT_BAN"
	RestrictionSuspension  RestrictionType = "FULL_SUSPENSION"
)

// UserWarning is a time-bounded enforcement record. A nil ExpiresAt means
// permanent: it never auto-expires and requires an explicit lift.
type UserWarning struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	IssuedBy       string          `json:"issued_by"`
	Reason         string          `json:"reason"`
	Severity       WarningSeverity `json:"severity"`
	IsActive       bool            `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
	LiftedBy       *string         `json:"lifted_by,omitempty"`
	LiftedAt       *time.Time      `json:"lifted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// UserRestriction mirrors UserWarning for capability restrictions
type UserRestriction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      RestrictionType `json:"restriction_type"`
	IssuedBy  string          `json:"issued_by"`
	Reason    string          `json:"reason"`
	IsActive  bool            `json:"is_active"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	LiftedBy  *string         `json:"lifted_by,omitempty"`
	LiftedAt  *time.Time      `json:"lifted_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

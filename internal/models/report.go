package models

import "time"

// ReportTargetType discriminates what a content report points at
type ReportTargetType string

const (
	TargetThread ReportTargetType = "THREAD"
	TargetPost   ReportTargetType = "POST"
	TargetUser   ReportTargetType = "USER"
)

// ReportCategory classifies why content was reported
type ReportCategory string

const (
	CategorySpam              ReportCategory = "SPAM"
	CategoryHarassment        ReportCategory = "HARASSMENT"
	CategorySelfHarmRisk      ReportCategory = "SELF_HARM_RISK"
	CategoryMisinformation    ReportCategory = "MISINFORMATION"
	CategoryTriggeringContent ReportCategory = "TRIGGERING_CONTENT"
	CategoryOther             ReportCategory = "OTHER"
)

// ReportSeverity grades how urgent a report is
type ReportSeverity string

const (
	SeverityLow      ReportSeverity = "LOW"
	SeverityMedium   ReportSeverity = "MEDIUM"
	SeverityHigh     ReportSeverity = "HIGH"
	SeverityCritical ReportSeverity = "CRITICAL"
)

// ReportStatus is the workflow state of a content report
type ReportStatus string

const (
	ReportPending     ReportStatus = "PENDING"
	ReportUnderReview ReportStatus = "UNDER_REVIEW"
	ReportActionTaken ReportStatus = "ACTION_TAKEN"
	ReportDismissed   ReportStatus = "DISMISSED"
	ReportEscalated   ReportStatus = "ESCALATED"
)

// IsTerminal reports whether no further status transitions are permitted
func (s ReportStatus) IsTerminal() bool {
	return s == ReportActionTaken || s == ReportDismissed
}

// ContentReport targets exactly one of thread, post, or user.
// auto_flagged is always false: severity is assigned manually or from a
// report template, never by automated classification.
type ContentReport struct {
	ID                  string           `json:"id"`
	TargetType          ReportTargetType `json:"target_type"`
	ThreadID            *string          `json:"thread_id,omitempty"`
	PostID              *string          `json:"post_id,omitempty"`
	ReportedUserID      *string          `json:"reported_user_id,omitempty"`
	ReporterID          string           `json:"reporter_id"`
	Category            ReportCategory   `json:"category"`
	Severity            ReportSeverity   `json:"severity"`
	Status              ReportStatus     `json:"status"`
	Description         string           `json:"description"`
	AutoFlagged         bool             `json:"auto_flagged"`
	AssignedModeratorID *string          `json:"assigned_moderator_id,omitempty"`
	AssignedAt          *time.Time       `json:"assigned_at,omitempty"`
	ReviewedBy          *string          `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time       `json:"reviewed_at,omitempty"`
	ActionTaken         *string          `json:"action_taken,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ValidateTarget enforces that exactly one target reference is set and that
// it matches the declared target type.
func (r *ContentReport) ValidateTarget() error {
	set := 0
	if r.ThreadID != nil {
		set++
	}
	if r.PostID != nil {
		set++
	}
	if r.ReportedUserID != nil {
		set++
	}
	if set != 1 {
		return &InvariantViolationError{
			Invariant: "report-single-target",
			Detail:    "a report must reference exactly one of thread, post, or user",
		}
	}
	ok := false
	switch r.TargetType {
	case TargetThread:
		ok = r.ThreadID != nil
	case TargetPost:
		ok = r.PostID != nil
	case TargetUser:
		ok = r.ReportedUserID != nil
	}
	if !ok {
		return &InvariantViolationError{
			Invariant: "report-target-type",
			Detail:    "report target reference does not match target_type " + string(r.TargetType),
		}
	}
	return nil
}

// UserReportHistory is one row per reporter with running resolution totals.
// The accuracy rate is always derived via AccuracyRate, never stored.
type UserReportHistory struct {
	ReporterID        string    `json:"reporter_id"`
	TotalReportsMade  int       `json:"total_reports_made"`
	ReportsUpheld     int       `json:"reports_upheld"`
	ReportsDismissed  int       `json:"reports_dismissed"`
	LastReportAt      time.Time `json:"last_report_at"`
}

// AccuracyRate returns upheld/total as a percentage, 0 when no reports exist
func (h UserReportHistory) AccuracyRate() float64 {
	if h.TotalReportsMade == 0 {
		return 0
	}
	return float64(h.ReportsUpheld) / float64(h.TotalReportsMade) * 100
}

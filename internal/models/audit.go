package models

import "time"

// ModerationAction is a type of logged enforcement action
type ModerationAction string

const (
	ActionWarningIssued       ModerationAction = "WARNING_ISSUED"
	ActionWarningLifted       ModerationAction = "WARNING_LIFTED"
	ActionWarningAcknowledged ModerationAction = "WARNING_ACKNOWLEDGED"
	ActionRestrictionIssued   ModerationAction = "RESTRICTION_ISSUED"
	ActionRestrictionLifted   ModerationAction = "RESTRICTION_LIFTED"
)

// ModerationLogEntry is an append-only record of a moderator action
type ModerationLogEntry struct {
	ID         string            `json:"id"`
	ActorID    string            `json:"actor_id"`
	Action     ModerationAction  `json:"action"`
	TargetKind string            `json:"target_kind"` // "user", "warning", "restriction"
	TargetID   string            `json:"target_id"`
	Reason     string            `json:"reason"`
	Details    map[string]string `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ReportAuditAction is the kind of change recorded in report history
type ReportAuditAction string

const (
	ReportAuditCreated         ReportAuditAction = "CREATED"
	ReportAuditAssigned        ReportAuditAction = "ASSIGNED"
	ReportAuditStatusChanged   ReportAuditAction = "STATUS_CHANGED"
	ReportAuditSeverityChanged ReportAuditAction = "SEVERITY_CHANGED"
	ReportAuditActionTaken     ReportAuditAction = "ACTION_TAKEN"
)

// ReportHistoryEntry is one append-only row in a report's audit trail,
// recording the acting user and the old/new values of the changed field.
type ReportHistoryEntry struct {
	ID        string            `json:"id"`
	ReportID  string            `json:"report_id"`
	Action    ReportAuditAction `json:"action"`
	Field     string            `json:"field,omitempty"`
	OldValue  string            `json:"old_value,omitempty"`
	NewValue  string            `json:"new_value,omitempty"`
	ActorID   string            `json:"actor_id"`
	CreatedAt time.Time         `json:"created_at"`
}

// PostEditHistoryEntry records one content edit on a post
type PostEditHistoryEntry struct {
	ID                string    `json:"id"`
	PostID            string    `json:"post_id"`
	EditorID          string    `json:"editor_id"`
	PreviousContent   string    `json:"previous_content"`
	NewContent        string    `json:"new_content"`
	PreviousWordCount int       `json:"previous_word_count"`
	NewWordCount      int       `json:"new_word_count"`
	CreatedAt         time.Time `json:"created_at"`
}

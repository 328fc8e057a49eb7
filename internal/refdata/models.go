// Package refdata loads the static reference data the core reads but never
// writes: reaction point values, report templates, and moderation tiers.
package refdata

import (
	"haven/internal/models"
)

// Capability represents a moderation action a tier is allowed to perform
type Capability string

const (
	CapIssueWarning     Capability = "issue_warning"
	CapLiftWarning      Capability = "lift_warning"
	CapIssueRestriction Capability = "issue_restriction"
	CapLiftRestriction  Capability = "lift_restriction"
	CapAssignReport     Capability = "assign_report"
	CapResolveReport    Capability = "resolve_report"
	CapEscalateReport   Capability = "escalate_report"
)

// Tier defines the allowed-action set for a moderation role
type Tier struct {
	Name         string       `json:"-"` // Set from map key during loading
	Description  string       `json:"description"`
	Capabilities []Capability `json:"capabilities"`
}

// HasCapability checks if this tier includes the given capability
func (t *Tier) HasCapability(cap Capability) bool {
	for _, c := range t.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// ReportTemplate maps a reporting reason to its category and default severity
type ReportTemplate struct {
	Code            string                `json:"-"` // Set from map key during loading
	Label           string                `json:"label"`
	Category        models.ReportCategory `json:"category"`
	DefaultSeverity models.ReportSeverity `json:"default_severity"`
}

// Config is the reference data document loaded from JSON
type Config struct {
	ReactionValues map[models.ReactionType]int `json:"reaction_values"`
	Templates      map[string]*ReportTemplate  `json:"report_templates"`
	Tiers          map[string]*Tier            `json:"moderation_tiers"`
}

// Validate checks that the config is internally consistent
func (c *Config) Validate() error {
	for typ, value := range c.ReactionValues {
		if value < 0 {
			return &ConfigError{
				Field:   "reaction_values",
				Message: "reaction " + string(typ) + " has a negative point value",
			}
		}
	}
	for code, tpl := range c.Templates {
		if tpl.Category == "" {
			return &ConfigError{
				Field:   "report_templates",
				Message: "template " + code + " is missing a category",
			}
		}
		if tpl.DefaultSeverity == "" {
			return &ConfigError{
				Field:   "report_templates",
				Message: "template " + code + " is missing a default severity",
			}
		}
		tpl.Code = code
	}
	for name, tier := range c.Tiers {
		tier.Name = name
	}
	return nil
}

// ConfigError represents a reference data validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "reference data error in " + e.Field + ": " + e.Message
}

// DefaultConfig returns the built-in reference data used when no config
// file is provided.
func DefaultConfig() *Config {
	return &Config{
		ReactionValues: map[models.ReactionType]int{
			models.ReactionHelpful:    3,
			models.ReactionSupportive: 2,
			models.ReactionInsightful: 2,
			models.ReactionRelatable:  1,
		},
		Templates: map[string]*ReportTemplate{
			"spam": {
				Label:           "Spam or advertising",
				Category:        models.CategorySpam,
				DefaultSeverity: models.SeverityLow,
			},
			"harassment": {
				Label:           "Harassment or abuse",
				Category:        models.CategoryHarassment,
				DefaultSeverity: models.SeverityHigh,
			},
			"self_harm_risk": {
				Label:           "Someone may be at risk",
				Category:        models.CategorySelfHarmRisk,
				DefaultSeverity: models.SeverityCritical,
			},
			"triggering_content": {
				Label:           "Triggering content without warning",
				Category:        models.CategoryTriggeringContent,
				DefaultSeverity: models.SeverityMedium,
			},
			"misinformation": {
				Label:           "Harmful misinformation",
				Category:        models.CategoryMisinformation,
				DefaultSeverity: models.SeverityMedium,
			},
		},
		Tiers: map[string]*Tier{
			"moderator": {
				Description: "Community moderator",
				Capabilities: []Capability{
					CapIssueWarning, CapLiftWarning,
					CapAssignReport, CapResolveReport, CapEscalateReport,
				},
			},
			"senior_moderator": {
				Description: "Senior moderator",
				Capabilities: []Capability{
					CapIssueWarning, CapLiftWarning,
					CapIssueRestriction, CapLiftRestriction,
					CapAssignReport, CapResolveReport, CapEscalateReport,
				},
			},
		},
	}
}

package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haven/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	svc, err := NewService("")
	require.NoError(t, err)

	t.Run("point values", func(t *testing.T) {
		v, ok := svc.PointValue(models.ReactionHelpful)
		require.True(t, ok)
		assert.Equal(t, 3, v)

		v, ok = svc.PointValue(models.ReactionRelatable)
		require.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = svc.PointValue("APPLAUSE")
		assert.False(t, ok)
	})

	t.Run("templates", func(t *testing.T) {
		tpl, ok := svc.Template("self_harm_risk")
		require.True(t, ok)
		assert.Equal(t, models.CategorySelfHarmRisk, tpl.Category)
		assert.Equal(t, models.SeverityCritical, tpl.DefaultSeverity)

		_, ok = svc.Template("nonsense")
		assert.False(t, ok)
	})

	t.Run("tiers", func(t *testing.T) {
		assert.True(t, svc.HasCapability("moderator", CapIssueWarning))
		assert.False(t, svc.HasCapability("moderator", CapIssueRestriction))
		assert.True(t, svc.HasCapability("senior_moderator", CapIssueRestriction))
		assert.False(t, svc.HasCapability("member", CapIssueWarning))
	})
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refdata.json")
	doc := `{
		"reaction_values": {"HELPFUL": 5},
		"report_templates": {
			"spam": {"label": "Spam", "category": "SPAM", "default_severity": "LOW"}
		},
		"moderation_tiers": {
			"moderator": {"description": "Mod", "capabilities": ["issue_warning"]}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	svc, err := NewService(path)
	require.NoError(t, err)

	v, ok := svc.PointValue(models.ReactionHelpful)
	require.True(t, ok)
	assert.Equal(t, 5, v)

	tpl, ok := svc.Template("spam")
	require.True(t, ok)
	assert.Equal(t, "spam", tpl.Code)

	tier, ok := svc.TierFor("moderator")
	require.True(t, ok)
	assert.Equal(t, "moderator", tier.Name)
	assert.True(t, tier.HasCapability(CapIssueWarning))
	assert.False(t, tier.HasCapability(CapResolveReport))
}

func TestConfigValidation(t *testing.T) {
	t.Run("negative point value rejected", func(t *testing.T) {
		cfg := &Config{
			ReactionValues: map[models.ReactionType]int{models.ReactionHelpful: -1},
		}
		require.Error(t, cfg.Validate())
	})

	t.Run("template missing category rejected", func(t *testing.T) {
		cfg := &Config{
			Templates: map[string]*ReportTemplate{
				"broken": {Label: "Broken", DefaultSeverity: models.SeverityLow},
			},
		}
		require.Error(t, cfg.Validate())
	})

	t.Run("template missing severity rejected", func(t *testing.T) {
		cfg := &Config{
			Templates: map[string]*ReportTemplate{
				"broken": {Label: "Broken", Category: models.CategorySpam},
			},
		}
		require.Error(t, cfg.Validate())
	})
}

func TestTemplateCopyIsIsolated(t *testing.T) {
	svc, err := NewService("")
	require.NoError(t, err)

	tpl, ok := svc.Template("spam")
	require.True(t, ok)
	tpl.DefaultSeverity = models.SeverityCritical

	again, ok := svc.Template("spam")
	require.True(t, ok)
	assert.Equal(t, models.SeverityLow, again.DefaultSeverity)
}

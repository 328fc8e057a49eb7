package enforcement

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haven/internal/audit"
	"haven/internal/database/sqlitestore"
	"haven/internal/identity"
	"haven/internal/models"
	"haven/internal/refdata"
)

func setupTest(t *testing.T) (*sqlitestore.Store, *Service) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	ref, err := refdata.NewService("")
	require.NoError(t, err)

	svc := NewService(store, ref, identity.NewResolver(nil, store))

	ctx := context.Background()
	now := time.Now()
	for id, role := range map[string]string{
		"member":   "member",
		"mod":      "moderator",
		"senior":   "senior_moderator",
		"troubled": "member",
	} {
		require.NoError(t, sqlitestore.InsertUser(ctx, store.DB(), models.User{
			ID:          id,
			Username:    id,
			Role:        role,
			Preferences: models.DefaultPreferences(),
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}))
	}

	return store, svc
}

func TestIssueAndLiftWarning(t *testing.T) {
	ctx := context.Background()
	store, svc := setupTest(t)

	w, err := svc.IssueWarning(ctx, "troubled", "mod", "repeated off-topic posts", models.WarningMinor, nil)
	require.NoError(t, err)
	assert.True(t, w.IsActive)
	assert.Nil(t, w.ExpiresAt)

	t.Run("issue is logged", func(t *testing.T) {
		entries, err := audit.ModerationLogForTarget(ctx, store.DB(), "warning", w.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.ActionWarningIssued, entries[0].Action)
		assert.Equal(t, "mod", entries[0].ActorID)
		assert.Equal(t, "troubled", entries[0].Details["user_id"])
	})

	t.Run("warned user is notified", func(t *testing.T) {
		var count int
		err := store.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND type = 'MODERATION'`,
			"troubled").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("acknowledge", func(t *testing.T) {
		require.NoError(t, svc.AcknowledgeWarning(ctx, w.ID, "troubled"))
		// Second acknowledge finds nothing to update
		require.ErrorIs(t, svc.AcknowledgeWarning(ctx, w.ID, "troubled"), ErrNotFound)
	})

	t.Run("lift", func(t *testing.T) {
		require.NoError(t, svc.LiftWarning(ctx, w.ID, "mod", "resolved after conversation"))

		var isActive int
		err := store.DB().QueryRowContext(ctx,
			`SELECT is_active FROM user_warnings WHERE id = ?`, w.ID).Scan(&isActive)
		require.NoError(t, err)
		assert.Equal(t, 0, isActive)

		// Lifting an inactive warning is rejected
		require.ErrorIs(t, svc.LiftWarning(ctx, w.ID, "mod", "again"), ErrNotFound)
	})
}

func TestRestrictionTierGating(t *testing.T) {
	ctx := context.Background()
	_, svc := setupTest(t)

	t.Run("moderator cannot restrict", func(t *testing.T) {
		_, err := svc.IssueRestriction(ctx, "troubled", "mod", "spamming", models.RestrictionPostingBan, nil)
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("member cannot warn", func(t *testing.T) {
		_, err := svc.IssueWarning(ctx, "troubled", "member", "nope", models.WarningMinor, nil)
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("senior moderator can restrict and lift", func(t *testing.T) {
		r, err := svc.IssueRestriction(ctx, "troubled", "senior", "cooling off", models.RestrictionPostingBan, nil)
		require.NoError(t, err)

		types, err := svc.ActiveRestrictions(ctx, "troubled")
		require.NoError(t, err)
		assert.Equal(t, []models.RestrictionType{models.RestrictionPostingBan}, types)

		require.NoError(t, svc.LiftRestriction(ctx, r.ID, "senior", "period served"))

		types, err = svc.ActiveRestrictions(ctx, "troubled")
		require.NoError(t, err)
		assert.Empty(t, types)
	})
}

func TestSweeperExpiresRecords(t *testing.T) {
	ctx := context.Background()
	store, svc := setupTest(t)
	sweeper := NewSweeper(store, time.Hour)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired, err := svc.IssueWarning(ctx, "troubled", "mod", "old", models.WarningMinor, &past)
	require.NoError(t, err)
	fresh, err := svc.IssueWarning(ctx, "troubled", "mod", "new", models.WarningMinor, &future)
	require.NoError(t, err)
	permanent, err := svc.IssueWarning(ctx, "troubled", "mod", "forever", models.WarningFinal, nil)
	require.NoError(t, err)
	expiredRestriction, err := svc.IssueRestriction(ctx, "troubled", "senior", "old", models.RestrictionReportBan, &past)
	require.NoError(t, err)

	swept, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), swept)

	active := func(table, id string) bool {
		var v int
		err := store.DB().QueryRowContext(ctx,
			"SELECT is_active FROM "+table+" WHERE id = ?", id).Scan(&v)
		require.NoError(t, err)
		return v == 1
	}

	assert.False(t, active("user_warnings", expired.ID))
	assert.True(t, active("user_warnings", fresh.ID), "unexpired row untouched")
	assert.True(t, active("user_warnings", permanent.ID), "null expiry never swept")
	assert.False(t, active("user_restrictions", expiredRestriction.ID))

	t.Run("second sweep touches zero rows", func(t *testing.T) {
		swept, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), swept)

		assert.False(t, active("user_warnings", expired.ID))
		assert.True(t, active("user_warnings", permanent.ID))
	})
}

func TestSweeperBatches(t *testing.T) {
	ctx := context.Background()
	store, svc := setupTest(t)
	sweeper := NewSweeper(store, time.Hour)
	sweeper.batchSize = 2

	past := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		_, err := svc.IssueWarning(ctx, "troubled", "mod", "expired", models.WarningMinor, &past)
		require.NoError(t, err)
	}

	swept, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), swept, "all batches processed in one run")

	var remaining int
	err = store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_warnings WHERE is_active = 1`).Scan(&remaining)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

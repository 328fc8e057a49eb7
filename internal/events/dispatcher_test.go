package events

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haven/internal/counters"
	"haven/internal/database/sqlitestore"
	"haven/internal/models"
	"haven/internal/notify"
	"haven/internal/refdata"
)

func setupTest(t *testing.T) (*sqlitestore.Store, *Dispatcher) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	ref, err := refdata.NewService("")
	require.NoError(t, err)

	d := NewDispatcher(
		counters.NewMaintainer(ref),
		notify.NewEngine(store, 15*time.Minute),
	)
	return store, d
}

func seed(t *testing.T, store *sqlitestore.Store) {
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"creator", "visitor"} {
		require.NoError(t, sqlitestore.InsertUser(ctx, store.DB(), models.User{
			ID: id, Username: id, Preferences: models.DefaultPreferences(),
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))
	}
	require.NoError(t, sqlitestore.InsertThread(ctx, store.DB(), models.Thread{
		ID: "thread-1", CategoryID: "cat-1", AuthorID: "creator",
		Title: "checking in", Status: models.ThreadOpen, LastActivityAt: now, CreatedAt: now,
	}))
}

func TestPostCreatedUpdatesCountersAndNotifies(t *testing.T) {
	ctx := context.Background()
	store, d := setupTest(t)
	seed(t, store)

	createdAt := time.Now()
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		ev := models.PostCreated{
			PostID: "post-1", ThreadID: "thread-1", AuthorID: "visitor", CreatedAt: createdAt,
		}
		if err := sqlitestore.InsertPost(ctx, tx, models.Post{
			ID: ev.PostID, ThreadID: ev.ThreadID, AuthorID: ev.AuthorID,
			Content: "thinking of you", WordCount: 3, CreatedAt: ev.CreatedAt,
		}); err != nil {
			return err
		}
		return d.PostCreated(ctx, tx, ev)
	})
	require.NoError(t, err)

	thread, err := sqlitestore.GetThread(ctx, store.DB(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, 1, thread.PostCount)
	assert.True(t, createdAt.Equal(thread.LastActivityAt))

	var notifications int
	err = store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = 'creator' AND type = 'REPLY'`).Scan(&notifications)
	require.NoError(t, err)
	assert.Equal(t, 1, notifications)
}

func TestSelfReplyCreatesNoNotification(t *testing.T) {
	ctx := context.Background()
	store, d := setupTest(t)
	seed(t, store)

	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		ev := models.PostCreated{
			PostID: "post-1", ThreadID: "thread-1", AuthorID: "creator", CreatedAt: time.Now(),
		}
		if err := sqlitestore.InsertPost(ctx, tx, models.Post{
			ID: ev.PostID, ThreadID: ev.ThreadID, AuthorID: ev.AuthorID,
			Content: "an update", WordCount: 2, CreatedAt: ev.CreatedAt,
		}); err != nil {
			return err
		}
		return d.PostCreated(ctx, tx, ev)
	})
	require.NoError(t, err)

	thread, err := sqlitestore.GetThread(ctx, store.DB(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, 1, thread.PostCount, "counters still move for self-replies")

	var notifications int
	err = store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&notifications)
	require.NoError(t, err)
	assert.Equal(t, 0, notifications)
}

func TestFailedEventRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	store, d := setupTest(t)
	seed(t, store)

	// Reaction to a nonexistent post fails inside the transaction
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		return d.ReactionAdded(ctx, tx, models.ReactionAdded{
			PostID: "ghost", UserID: "visitor", Type: models.ReactionHelpful, CreatedAt: time.Now(),
		})
	})
	require.Error(t, err)

	var staged int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reaction_batch_queue`).Scan(&staged))
	assert.Equal(t, 0, staged, "no batch staging survives a rolled-back event")

	var reactions int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reactions`).Scan(&reactions))
	assert.Equal(t, 0, reactions)
}

func TestReactionRoundTripThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	store, d := setupTest(t)
	seed(t, store)

	require.NoError(t, sqlitestore.InsertPost(ctx, store.DB(), models.Post{
		ID: "post-1", ThreadID: "thread-1", AuthorID: "creator",
		Content: "hello", WordCount: 1, CreatedAt: time.Now(),
	}))

	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		return d.ReactionAdded(ctx, tx, models.ReactionAdded{
			PostID: "post-1", UserID: "visitor", Type: models.ReactionSupportive, CreatedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	creator, err := sqlitestore.GetUser(ctx, store.DB(), "creator")
	require.NoError(t, err)
	assert.Equal(t, 2, creator.ReputationScore)

	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		return d.ReactionRemoved(ctx, tx, models.ReactionRemoved{
			PostID: "post-1", UserID: "visitor", Type: models.ReactionSupportive,
		})
	})
	require.NoError(t, err)

	creator, err = sqlitestore.GetUser(ctx, store.DB(), "creator")
	require.NoError(t, err)
	assert.Equal(t, 0, creator.ReputationScore)

	var staged int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reaction_batch_queue`).Scan(&staged))
	assert.Equal(t, 0, staged, "removal withdraws the staged batch entry")
}

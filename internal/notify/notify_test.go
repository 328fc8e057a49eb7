package notify

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haven/internal/database/sqlitestore"
	"haven/internal/models"
)

func setupTest(t *testing.T) (*sqlitestore.Store, *Engine) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store, NewEngine(store, 15*time.Minute)
}

func seedUser(t *testing.T, store *sqlitestore.Store, id string, active bool, prefs models.NotificationPreferences) {
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, sqlitestore.InsertUser(ctx, store.DB(), models.User{
		ID:          id,
		Username:    id,
		Preferences: prefs,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

func seedThread(t *testing.T, store *sqlitestore.Store, id, authorID string) {
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, sqlitestore.InsertThread(ctx, store.DB(), models.Thread{
		ID: id, CategoryID: "cat-1", AuthorID: authorID,
		Title: "thread", Status: models.ThreadOpen, LastActivityAt: now, CreatedAt: now,
	}))
}

func seedPost(t *testing.T, store *sqlitestore.Store, id, threadID, authorID string, parentID *string) {
	ctx := context.Background()
	require.NoError(t, sqlitestore.InsertPost(ctx, store.DB(), models.Post{
		ID: id, ThreadID: threadID, ParentPostID: parentID, AuthorID: authorID,
		Content: "hang in there", WordCount: 3, CreatedAt: time.Now(),
	}))
}

func replyEvent(t *testing.T, store *sqlitestore.Store, e *Engine, ev models.PostCreated) {
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.ReplyCreated(ctx, tx, ev)
	}))
}

func notificationsFor(t *testing.T, store *sqlitestore.Store, e *Engine, userID string) []models.Notification {
	out, err := e.ListForRecipient(context.Background(), userID, 50)
	require.NoError(t, err)
	return out
}

func TestReplyNotifiesThreadCreator(t *testing.T) {
	store, e := setupTest(t)
	seedUser(t, store, "creator", true, models.DefaultPreferences())
	seedUser(t, store, "visitor", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "creator")

	createdAt := time.Now()
	replyEvent(t, store, e, models.PostCreated{
		PostID:    "post-1",
		ThreadID:  "thread-1",
		AuthorID:  "visitor",
		CreatedAt: createdAt,
	})

	got := notificationsFor(t, store, e, "creator")
	require.Len(t, got, 1)
	n := got[0]
	assert.Equal(t, models.NotificationReply, n.Type)
	assert.Equal(t, "/threads/thread-1#post-post-1", n.ActionRef)
	require.NotNil(t, n.RelatedUserID)
	assert.Equal(t, "visitor", *n.RelatedUserID)
	require.NotNil(t, n.RelatedThreadID)
	assert.Equal(t, "thread-1", *n.RelatedThreadID)
	assert.False(t, n.IsRead)
	assert.WithinDuration(t, createdAt.Add(models.NotificationTTL), n.ExpiresAt, time.Second)
}

func TestReplyNotifiesParentAuthorNotThreadCreator(t *testing.T) {
	store, e := setupTest(t)
	seedUser(t, store, "creator", true, models.DefaultPreferences())
	seedUser(t, store, "parent-author", true, models.DefaultPreferences())
	seedUser(t, store, "visitor", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "creator")
	seedPost(t, store, "top", "thread-1", "parent-author", nil)

	top := "top"
	replyEvent(t, store, e, models.PostCreated{
		PostID:       "reply",
		ThreadID:     "thread-1",
		ParentPostID: &top,
		AuthorID:     "visitor",
		CreatedAt:    time.Now(),
	})

	assert.Len(t, notificationsFor(t, store, e, "parent-author"), 1)
	assert.Empty(t, notificationsFor(t, store, e, "creator"))
}

func TestNoSelfNotification(t *testing.T) {
	store, e := setupTest(t)
	seedUser(t, store, "creator", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "creator")
	seedPost(t, store, "top", "thread-1", "creator", nil)

	t.Run("own thread", func(t *testing.T) {
		replyEvent(t, store, e, models.PostCreated{
			PostID: "post-1", ThreadID: "thread-1", AuthorID: "creator", CreatedAt: time.Now(),
		})
		assert.Empty(t, notificationsFor(t, store, e, "creator"))
	})

	t.Run("own post", func(t *testing.T) {
		top := "top"
		replyEvent(t, store, e, models.PostCreated{
			PostID: "post-2", ThreadID: "thread-1", ParentPostID: &top,
			AuthorID: "creator", CreatedAt: time.Now(),
		})
		assert.Empty(t, notificationsFor(t, store, e, "creator"))
	})
}

func TestReplyRespectsPreferences(t *testing.T) {
	store, e := setupTest(t)

	prefs := models.DefaultPreferences()
	prefs.InApp.Replies = false
	seedUser(t, store, "creator", true, prefs)
	seedUser(t, store, "visitor", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "creator")

	replyEvent(t, store, e, models.PostCreated{
		PostID: "post-1", ThreadID: "thread-1", AuthorID: "visitor", CreatedAt: time.Now(),
	})
	assert.Empty(t, notificationsFor(t, store, e, "creator"))
}

func TestReplySkipsInactiveRecipient(t *testing.T) {
	store, e := setupTest(t)
	seedUser(t, store, "creator", false, models.DefaultPreferences())
	seedUser(t, store, "visitor", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "creator")

	replyEvent(t, store, e, models.PostCreated{
		PostID: "post-1", ThreadID: "thread-1", AuthorID: "visitor", CreatedAt: time.Now(),
	})
	assert.Empty(t, notificationsFor(t, store, e, "creator"))
}

func TestReactionBatching(t *testing.T) {
	ctx := context.Background()
	store, e := setupTest(t)
	seedUser(t, store, "author", true, models.DefaultPreferences())
	seedUser(t, store, "fan1", true, models.DefaultPreferences())
	seedUser(t, store, "fan2", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "author")
	seedPost(t, store, "post-1", "thread-1", "author", nil)

	stage := func(userID string, typ models.ReactionType) {
		require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
			return e.ReactionAdded(ctx, tx, models.ReactionAdded{
				PostID: "post-1", UserID: userID, Type: typ, CreatedAt: time.Now(),
			})
		}))
	}
	stage("fan1", models.ReactionHelpful)
	stage("fan1", models.ReactionSupportive)
	stage("fan2", models.ReactionHelpful)
	stage("author", models.ReactionHelpful) // self-reaction, never notified

	require.NoError(t, e.FlushBatches(ctx))

	got := notificationsFor(t, store, e, "author")
	require.Len(t, got, 1, "one notification per post per window")
	n := got[0]
	assert.Equal(t, models.NotificationReaction, n.Type)
	assert.Equal(t, 3, n.BatchCount)
	assert.Equal(t, map[models.ReactionType]int{
		models.ReactionHelpful:    2,
		models.ReactionSupportive: 1,
	}, n.BatchCounts)

	t.Run("queue drained", func(t *testing.T) {
		var staged int
		err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM reaction_batch_queue`).Scan(&staged)
		require.NoError(t, err)
		assert.Equal(t, 0, staged)
	})

	t.Run("empty flush creates nothing", func(t *testing.T) {
		require.NoError(t, e.FlushBatches(ctx))
		assert.Len(t, notificationsFor(t, store, e, "author"), 1)
	})
}

func TestReactionRemovalUnstages(t *testing.T) {
	ctx := context.Background()
	store, e := setupTest(t)
	seedUser(t, store, "author", true, models.DefaultPreferences())
	seedUser(t, store, "fan", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "author")
	seedPost(t, store, "post-1", "thread-1", "author", nil)

	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.ReactionAdded(ctx, tx, models.ReactionAdded{
			PostID: "post-1", UserID: "fan", Type: models.ReactionHelpful, CreatedAt: time.Now(),
		})
	}))
	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.ReactionRemoved(ctx, tx, models.ReactionRemoved{
			PostID: "post-1", UserID: "fan", Type: models.ReactionHelpful,
		})
	}))

	require.NoError(t, e.FlushBatches(ctx))
	assert.Empty(t, notificationsFor(t, store, e, "author"))
}

func TestBatchFlushRespectsPreferences(t *testing.T) {
	ctx := context.Background()
	store, e := setupTest(t)

	prefs := models.DefaultPreferences()
	prefs.InApp.Reactions = false
	seedUser(t, store, "author", true, prefs)
	seedUser(t, store, "fan", true, models.DefaultPreferences())
	seedThread(t, store, "thread-1", "author")
	seedPost(t, store, "post-1", "thread-1", "author", nil)

	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.ReactionAdded(ctx, tx, models.ReactionAdded{
			PostID: "post-1", UserID: "fan", Type: models.ReactionHelpful, CreatedAt: time.Now(),
		})
	}))

	require.NoError(t, e.FlushBatches(ctx))
	assert.Empty(t, notificationsFor(t, store, e, "author"))

	var staged int
	err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM reaction_batch_queue`).Scan(&staged)
	require.NoError(t, err)
	assert.Equal(t, 0, staged, "suppressed reactions still drain")
}

func TestModerationNotice(t *testing.T) {
	ctx := context.Background()
	store, e := setupTest(t)
	seedUser(t, store, "warned", true, models.DefaultPreferences())

	optedOut := models.DefaultPreferences()
	optedOut.InApp.Moderation = false
	seedUser(t, store, "opted-out", true, optedOut)

	require.NoError(t, ModerationNotice(ctx, store.DB(), "warned", "A warning", "Please review.", "/account/warnings/w-1"))
	require.NoError(t, ModerationNotice(ctx, store.DB(), "opted-out", "A warning", "Please review.", "/account/warnings/w-2"))

	got := notificationsFor(t, store, e, "warned")
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationModeration, got[0].Type)

	assert.Empty(t, notificationsFor(t, store, e, "opted-out"))
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store, e := setupTest(t)
	seedUser(t, store, "user", true, models.DefaultPreferences())

	old := time.Now().Add(-models.NotificationTTL - time.Hour)
	require.NoError(t, insertNotification(ctx, store.DB(), models.Notification{
		ID: "n-old", RecipientID: "user", Type: models.NotificationReply,
		Title: "old", CreatedAt: old, ExpiresAt: old.Add(models.NotificationTTL),
	}))
	now := time.Now()
	require.NoError(t, insertNotification(ctx, store.DB(), models.Notification{
		ID: "n-new", RecipientID: "user", Type: models.NotificationReply,
		Title: "new", CreatedAt: now, ExpiresAt: now.Add(models.NotificationTTL),
	}))

	deleted, err := e.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got := notificationsFor(t, store, e, "user")
	require.Len(t, got, 1)
	assert.Equal(t, "n-new", got[0].ID)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	ctx := context.Background()
	store, e := setupTest(t)
	seedUser(t, store, "user", true, models.DefaultPreferences())

	now := time.Now()
	for _, id := range []string{"n-1", "n-2"} {
		require.NoError(t, insertNotification(ctx, store.DB(), models.Notification{
			ID: id, RecipientID: "user", Type: models.NotificationReply,
			Title: "hi", CreatedAt: now, ExpiresAt: now.Add(models.NotificationTTL),
		}))
	}

	count, err := e.UnreadCount(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, e.MarkRead(ctx, "n-1", "user"))

	count, err = e.UnreadCount(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("wrong recipient rejected", func(t *testing.T) {
		require.Error(t, e.MarkRead(ctx, "n-2", "someone-else"))
	})

	t.Run("missing notification rejected", func(t *testing.T) {
		require.Error(t, e.MarkRead(ctx, "n-x", "user"))
	})
}

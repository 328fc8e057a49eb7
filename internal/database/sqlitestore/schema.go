package sqlitestore

// schema is applied on every Open; all statements are idempotent.
// Timestamps are stored as fixed-width UTC text (see timeLayout) and
// booleans as 0/1 integers.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                       TEXT PRIMARY KEY,
	username                 TEXT NOT NULL,
	display_name             TEXT NOT NULL DEFAULT '',
	role                     TEXT NOT NULL DEFAULT 'member',
	reputation_score         INTEGER NOT NULL DEFAULT 0,
	notification_preferences TEXT NOT NULL DEFAULT '',
	is_active                INTEGER NOT NULL DEFAULT 1,
	deletion_requested       INTEGER NOT NULL DEFAULT 0,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
	id               TEXT PRIMARY KEY,
	category_id      TEXT NOT NULL,
	author_id        TEXT NOT NULL REFERENCES users(id),
	title            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'OPEN',
	post_count       INTEGER NOT NULL DEFAULT 0,
	last_activity_at TEXT NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id                 TEXT PRIMARY KEY,
	thread_id          TEXT NOT NULL REFERENCES threads(id),
	parent_post_id     TEXT REFERENCES posts(id),
	author_id          TEXT NOT NULL REFERENCES users(id),
	content            TEXT NOT NULL,
	word_count         INTEGER NOT NULL DEFAULT 0,
	reaction_count     INTEGER NOT NULL DEFAULT 0,
	is_deleted         INTEGER NOT NULL DEFAULT 0,
	flagged_for_review INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	edited_at          TEXT
);
CREATE INDEX IF NOT EXISTS idx_posts_thread ON posts(thread_id);

CREATE TABLE IF NOT EXISTS reactions (
	id            TEXT PRIMARY KEY,
	post_id       TEXT NOT NULL REFERENCES posts(id),
	user_id       TEXT NOT NULL REFERENCES users(id),
	reaction_type TEXT NOT NULL,
	point_value   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	UNIQUE(post_id, user_id, reaction_type)
);

CREATE TABLE IF NOT EXISTS content_reports (
	id                    TEXT PRIMARY KEY,
	target_type           TEXT NOT NULL,
	thread_id             TEXT REFERENCES threads(id),
	post_id               TEXT REFERENCES posts(id),
	reported_user_id      TEXT REFERENCES users(id),
	reporter_id           TEXT NOT NULL REFERENCES users(id),
	category              TEXT NOT NULL,
	severity              TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'PENDING',
	description           TEXT NOT NULL DEFAULT '',
	auto_flagged          INTEGER NOT NULL DEFAULT 0,
	assigned_moderator_id TEXT,
	assigned_at           TEXT,
	reviewed_by           TEXT,
	reviewed_at           TEXT,
	action_taken          TEXT,
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_status ON content_reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_reporter ON content_reports(reporter_id);

CREATE TABLE IF NOT EXISTS user_report_history (
	reporter_id        TEXT PRIMARY KEY REFERENCES users(id),
	total_reports_made INTEGER NOT NULL DEFAULT 0,
	reports_upheld     INTEGER NOT NULL DEFAULT 0,
	reports_dismissed  INTEGER NOT NULL DEFAULT 0,
	last_report_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS moderation_log (
	id          TEXT PRIMARY KEY,
	actor_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	target_kind TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS report_history (
	id         TEXT PRIMARY KEY,
	report_id  TEXT NOT NULL REFERENCES content_reports(id),
	action     TEXT NOT NULL,
	field      TEXT NOT NULL DEFAULT '',
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	actor_id   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_history_report ON report_history(report_id);

CREATE TABLE IF NOT EXISTS post_edit_history (
	id                  TEXT PRIMARY KEY,
	post_id             TEXT NOT NULL REFERENCES posts(id),
	editor_id           TEXT NOT NULL,
	previous_content    TEXT NOT NULL,
	new_content         TEXT NOT NULL,
	previous_word_count INTEGER NOT NULL,
	new_word_count      INTEGER NOT NULL,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_edit_history_post ON post_edit_history(post_id);

CREATE TABLE IF NOT EXISTS user_warnings (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id),
	issued_by       TEXT NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	severity        TEXT NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1,
	expires_at      TEXT,
	acknowledged_at TEXT,
	lifted_by       TEXT,
	lifted_at       TEXT,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_warnings_active ON user_warnings(is_active, expires_at);

CREATE TABLE IF NOT EXISTS user_restrictions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES users(id),
	restriction_type TEXT NOT NULL,
	issued_by        TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	is_active        INTEGER NOT NULL DEFAULT 1,
	expires_at       TEXT,
	lifted_by        TEXT,
	lifted_at        TEXT,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_restrictions_active ON user_restrictions(is_active, expires_at);

CREATE TABLE IF NOT EXISTS notifications (
	id                TEXT PRIMARY KEY,
	recipient_id      TEXT NOT NULL REFERENCES users(id),
	type              TEXT NOT NULL,
	title             TEXT NOT NULL,
	message           TEXT NOT NULL DEFAULT '',
	action_ref        TEXT NOT NULL DEFAULT '',
	related_user_id   TEXT,
	related_post_id   TEXT,
	related_thread_id TEXT,
	batch_count       INTEGER NOT NULL DEFAULT 0,
	batch_counts      TEXT,
	is_read           INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	expires_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_expiry ON notifications(expires_at);

CREATE TABLE IF NOT EXISTS reaction_batch_queue (
	id            TEXT PRIMARY KEY,
	post_id       TEXT NOT NULL,
	reactor_id    TEXT NOT NULL,
	reaction_type TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batch_queue_age ON reaction_batch_queue(created_at);

-- Placeholder only: the appeal workflow is not implemented.
CREATE TABLE IF NOT EXISTS appeals (
	id         TEXT PRIMARY KEY,
	report_id  TEXT NOT NULL REFERENCES content_reports(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	body       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

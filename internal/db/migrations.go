package db

type migration struct {
	version int
	sql     string
}

// migrations must stay portable between Postgres and SQLite: TEXT ids,
// TIMESTAMP columns written in UTC, BOOLEAN flags.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT NOT NULL REFERENCES users(id),
	role    TEXT NOT NULL,
	PRIMARY KEY (user_id, role)
);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'medium',
	frequency   TEXT NOT NULL DEFAULT 'once',
	due_date    TIMESTAMP NULL,
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);

CREATE TABLE IF NOT EXISTS task_attachments (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id),
	position   INTEGER NOT NULL DEFAULT 0,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	object_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_attachments_task_id ON task_attachments(task_id);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS analytics_events (
	id               TEXT PRIMARY KEY,
	event_name       TEXT NOT NULL,
	event_time       TIMESTAMP NOT NULL,
	user_id          TEXT NOT NULL,
	session_id       TEXT NULL,
	platform         TEXT NOT NULL DEFAULT 'unknown',
	app_version      TEXT NOT NULL DEFAULT '',
	device_locale    TEXT NULL,
	source_event_key TEXT NULL UNIQUE,
	properties       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_analytics_events_user_id ON analytics_events(user_id);
CREATE INDEX IF NOT EXISTS idx_analytics_events_name_time ON analytics_events(event_name, event_time);
`,
	},
}

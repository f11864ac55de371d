package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	message         TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT 'general',
	read            INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	archived        INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1)),
	allowed_roles   TEXT NOT NULL DEFAULT '',
	icon            TEXT NOT NULL DEFAULT '',
	color           TEXT NOT NULL DEFAULT '',
	emoji           TEXT NOT NULL DEFAULT '',
	action_required TEXT NOT NULL DEFAULT '',
	action_status   TEXT NOT NULL DEFAULT '',
	attachment      TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	expires_at      DATETIME,
	scheduled_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_archived ON notifications(archived);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_type_created
	ON notifications(type, created_at);

CREATE INDEX IF NOT EXISTS idx_notifications_scheduled
	ON notifications(scheduled_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}

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

CREATE TABLE IF NOT EXISTS feedback (
	id               TEXT PRIMARY KEY,
	category         TEXT NOT NULL,
	action           TEXT NOT NULL,
	reply            TEXT NOT NULL DEFAULT '',
	sender           TEXT NOT NULL DEFAULT '',
	subject_keywords TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cycle_runs (
	id                TEXT PRIMARY KEY,
	total_unread      INTEGER NOT NULL DEFAULT 0,
	processed_count   INTEGER NOT NULL DEFAULT 0,
	auto_replies_sent INTEGER NOT NULL DEFAULT 0,
	failures          INTEGER NOT NULL DEFAULT 0,
	quota_limited     INTEGER NOT NULL DEFAULT 0,
	started_at        DATETIME NOT NULL,
	finished_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_cycle_runs_finished ON cycle_runs(finished_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_feedback_category ON feedback(category);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}

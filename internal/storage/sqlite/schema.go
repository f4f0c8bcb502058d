package sqlite

const schemaSQL = `
-- Test runs: one row per invocation
CREATE TABLE IF NOT EXISTS test_runs (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	session_id TEXT,
	recording_url TEXT,
	error TEXT,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_test_runs_created ON test_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_test_runs_status ON test_runs(status);

-- Action log: append-only, one row per decision+execution step.
-- Rows are read back in timestamp order to reconstruct the run.
CREATE TABLE IF NOT EXISTS action_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_id TEXT NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
	timestamp INTEGER NOT NULL,
	action TEXT NOT NULL,
	target TEXT,
	value TEXT,
	reasoning TEXT,
	success INTEGER NOT NULL,
	error TEXT,
	page_url TEXT,
	page_title TEXT
);

CREATE INDEX IF NOT EXISTS idx_action_log_test ON action_log(test_id, timestamp);

-- Reports: derived artifact for completed runs. History is retained;
-- readers take the most recent row per test.
CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_id TEXT NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
	body TEXT NOT NULL,
	summary TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_test ON reports(test_id, created_at DESC);
`

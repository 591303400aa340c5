package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email_message_id TEXT NOT NULL UNIQUE,
		subject TEXT,
		sender TEXT,
		task_summary TEXT NOT NULL,
		task_detail TEXT,
		required_action TEXT,
		suggested_reply TEXT,
		reply_acknowledge TEXT,
		reply_done TEXT,
		reply_delegate TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		action_taken TEXT,
		priority TEXT NOT NULL DEFAULT 'low',
		project TEXT NOT NULL DEFAULT 'Unknown',
		tags TEXT NOT NULL DEFAULT '[]',
		domain_hint TEXT NOT NULL DEFAULT 'Unknown',
		effort_estimate_hours REAL,
		business_impact TEXT,
		triage_category TEXT NOT NULL DEFAULT 'deep_work',
		delegated_to TEXT,
		delegated_at INTEGER,
		ews_item_id TEXT UNIQUE,
		ews_change_key TEXT,
		to_recipients TEXT,
		cc_recipients TEXT,
		received_at INTEGER,
		created_at INTEGER NOT NULL,
		status_updated_at INTEGER NOT NULL,
		auto_completed_at INTEGER,
		completion_evidence TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_message_id ON tasks(email_message_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project);
	CREATE INDEX IF NOT EXISTS idx_tasks_triage ON tasks(triage_category);

	CREATE TABLE IF NOT EXISTS people (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT,
		job_title TEXT,
		department TEXT,
		office_location TEXT,
		manager_name TEXT,
		interaction_count INTEGER NOT NULL DEFAULT 0,
		last_interaction_at INTEGER,
		manual_role TEXT,
		is_hidden INTEGER NOT NULL DEFAULT 0,
		projects TEXT NOT NULL DEFAULT '[]'
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_people_email ON people(email);

	CREATE TABLE IF NOT EXISTS daily_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		summary_date TEXT NOT NULL UNIQUE,
		raw_snippets TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS app_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all run-archive tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS solvers (
		name TEXT PRIMARY KEY,
		type TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		uuid TEXT PRIMARY KEY,
		type TEXT NOT NULL DEFAULT 'file'
	)`,

	`CREATE TABLE IF NOT EXISTS task_names (
		uuid       TEXT PRIMARY KEY,
		task_uuid  TEXT NOT NULL REFERENCES tasks(uuid),
		name       TEXT NOT NULL,
		collection TEXT NOT NULL DEFAULT 'default'
	)`,

	`CREATE TABLE IF NOT EXISTS cpu_limited_runs (
		uuid          TEXT PRIMARY KEY,
		started       TEXT NOT NULL,
		usage_elapsed REAL NOT NULL DEFAULT 0,
		proc_elapsed  REAL NOT NULL DEFAULT 0,
		cutoff        REAL NOT NULL DEFAULT 0,
		stdout        BLOB,
		stderr        BLOB,
		exit_status   INTEGER,
		exit_signal   INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS trials (
		uuid        TEXT PRIMARY KEY,
		parent_uuid TEXT REFERENCES trials(uuid),
		label       TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS attempts (
		uuid        TEXT PRIMARY KEY,
		budget      REAL NOT NULL,
		cost        REAL NOT NULL,
		task_uuid   TEXT REFERENCES tasks(uuid),
		answer_text TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS run_attempts (
		uuid        TEXT PRIMARY KEY REFERENCES attempts(uuid),
		solver_name TEXT NOT NULL REFERENCES solvers(name),
		seed        INTEGER,
		run_uuid    TEXT REFERENCES cpu_limited_runs(uuid)
	)`,

	`CREATE TABLE IF NOT EXISTS attempts_trials (
		attempt_uuid TEXT NOT NULL REFERENCES attempts(uuid),
		trial_uuid   TEXT NOT NULL REFERENCES trials(uuid),
		PRIMARY KEY (attempt_uuid, trial_uuid)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_task_names_task_uuid ON task_names(task_uuid)`,
	// Prefix selection over task names is the hot read path.
	`CREATE INDEX IF NOT EXISTS idx_task_names_name ON task_names(collection, name)`,
	`CREATE INDEX IF NOT EXISTS idx_run_attempts_solver ON run_attempts(solver_name)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_task_uuid ON attempts(task_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_trials_trial ON attempts_trials(trial_uuid)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "attempts",
		column:   "certificate",
		alterSQL: "ALTER TABLE attempts ADD COLUMN certificate BLOB",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Execute ALTER TABLE statements idempotently.
	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil // Column already exists
		}
	}

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

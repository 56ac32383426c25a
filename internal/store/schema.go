package store

// schemaVersionV1 stored runs and repairs without repair outcome columns.
const schemaVersionV1 = 1

// schemaVersionV2 adds applied/verified to repairs and the kind index.
const schemaVersionV2 = 2

// schemaV1 is the original DDL (kept for migration tests).
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	suite               TEXT NOT NULL,
	started_at          TEXT NOT NULL,
	duration_ms         INTEGER NOT NULL,
	tests               INTEGER NOT NULL,
	tests_with_failures INTEGER NOT NULL,
	tests_repaired      INTEGER NOT NULL,
	failed_steps        INTEGER NOT NULL,
	repaired_steps      INTEGER NOT NULL,
	success_rate        REAL NOT NULL,
	result              BLOB
);
CREATE TABLE IF NOT EXISTS repairs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          INTEGER NOT NULL REFERENCES runs(id),
	test            TEXT NOT NULL,
	step_index      INTEGER NOT NULL,
	instruction     TEXT NOT NULL,
	error           TEXT NOT NULL,
	failure_kind    TEXT NOT NULL,
	suggestion_type TEXT,
	confidence      REAL,
	suggested       TEXT
);
`

// schemaV2 is the current DDL (fresh install).
var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	suite               TEXT NOT NULL,
	started_at          TEXT NOT NULL,
	duration_ms         INTEGER NOT NULL,
	tests               INTEGER NOT NULL,
	tests_with_failures INTEGER NOT NULL,
	tests_repaired      INTEGER NOT NULL,
	failed_steps        INTEGER NOT NULL,
	repaired_steps      INTEGER NOT NULL,
	success_rate        REAL NOT NULL,
	result              BLOB
);
CREATE TABLE IF NOT EXISTS repairs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          INTEGER NOT NULL REFERENCES runs(id),
	test            TEXT NOT NULL,
	step_index      INTEGER NOT NULL,
	instruction     TEXT NOT NULL,
	error           TEXT NOT NULL,
	failure_kind    TEXT NOT NULL,
	suggestion_type TEXT,
	confidence      REAL,
	suggested       TEXT,
	applied         INTEGER NOT NULL DEFAULT 0,
	verified        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_repairs_run ON repairs(run_id);
CREATE INDEX IF NOT EXISTS idx_repairs_kind ON repairs(failure_kind);
`

// migrationV1ToV2 adds the repair outcome columns and indexes.
var migrationV1ToV2 = `
ALTER TABLE repairs ADD COLUMN applied INTEGER NOT NULL DEFAULT 0;
ALTER TABLE repairs ADD COLUMN verified INTEGER NOT NULL DEFAULT 0;
CREATE INDEX IF NOT EXISTS idx_repairs_run ON repairs(run_id);
CREATE INDEX IF NOT EXISTS idx_repairs_kind ON repairs(failure_kind);
UPDATE schema_version SET version = 2;
`

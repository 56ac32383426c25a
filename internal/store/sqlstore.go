package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cbrowser/internal/logging"

	_ "modernc.org/sqlite"
)

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullFloat converts a sql.NullFloat64 to a plain float64 (0 if null).
func nullFloat(nf sql.NullFloat64) float64 {
	if nf.Valid {
		return nf.Float64
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

var _ Store = (*SqlStore)(nil)

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .cbrowser) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.New("store").Debug("history store opened", "path", path, "schema", currentSchemaVersion)
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// schema_version exists but is empty: treat as v1.
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case schemaVersionV2:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 runs inside a transaction so a failed migration leaves the
// v1 database untouched.
func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	logging.New("store").Info("history schema migrated", "from", schemaVersionV1, "to", schemaVersionV2)
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and all of its repairs in one transaction and sets
// their IDs.
func (s *SqlStore) SaveRun(run *Run) (int64, error) {
	if run == nil {
		return 0, errors.New("run is nil")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO runs(suite, started_at, duration_ms, tests, tests_with_failures, tests_repaired,
		                  failed_steps, repaired_steps, success_rate, result)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Suite, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds(),
		run.Tests, run.TestsWithFailures, run.TestsRepaired,
		run.FailedSteps, run.RepairedSteps, run.SuccessRate, []byte(run.Result),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, r := range run.Repairs {
		res, err := tx.Exec(
			`INSERT INTO repairs(run_id, test, step_index, instruction, error, failure_kind,
			                     suggestion_type, confidence, suggested, applied, verified)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Test, r.StepIndex, r.Instruction, r.Error, r.FailureKind,
			r.SuggestionType, r.Confidence, r.Suggested, boolInt(r.Applied), boolInt(r.Verified),
		)
		if err != nil {
			return 0, fmt.Errorf("insert repair: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		r.ID, r.RunID = id, runID
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save run: %w", err)
	}
	run.ID = runID
	return runID, nil
}

const runColumns = `id, suite, started_at, duration_ms, tests, tests_with_failures, tests_repaired,
	failed_steps, repaired_steps, success_rate, result`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var started string
	var durMS int64
	var result []byte
	if err := sc.Scan(&r.ID, &r.Suite, &started, &durMS, &r.Tests, &r.TestsWithFailures, &r.TestsRepaired,
		&r.FailedSteps, &r.RepairedSteps, &r.SuccessRate, &result); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	r.StartedAt = t
	r.Duration = time.Duration(durMS) * time.Millisecond
	if len(result) > 0 {
		r.Result = result
	}
	return &r, nil
}

// GetRun returns the run by id, or ErrNotFound.
func (s *SqlStore) GetRun(id int64) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SqlStore) ListRuns(limit int) ([]*Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

// ListRepairs returns the repairs of one run in insertion order.
func (s *SqlStore) ListRepairs(runID int64) ([]*Repair, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, test, step_index, instruction, error, failure_kind,
		        suggestion_type, confidence, suggested, applied, verified
		 FROM repairs WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list repairs: %w", err)
	}
	defer rows.Close()
	var list []*Repair
	for rows.Next() {
		var r Repair
		var sugType, suggested sql.NullString
		var conf sql.NullFloat64
		var applied, verified int
		if err := rows.Scan(&r.ID, &r.RunID, &r.Test, &r.StepIndex, &r.Instruction, &r.Error, &r.FailureKind,
			&sugType, &conf, &suggested, &applied, &verified); err != nil {
			return nil, fmt.Errorf("scan repair: %w", err)
		}
		r.SuggestionType = nullStr(sugType)
		r.Suggested = nullStr(suggested)
		r.Confidence = nullFloat(conf)
		r.Applied = applied == 1
		r.Verified = verified == 1
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list repairs: %w", err)
	}
	return list, nil
}

// FailureKindCounts totals repairs by failure kind.
func (s *SqlStore) FailureKindCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT failure_kind, COUNT(*) FROM repairs GROUP BY failure_kind")
	if err != nil {
		return nil, fmt.Errorf("count failure kinds: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan failure kind: %w", err)
		}
		out[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count failure kinds: %w", err)
	}
	return out, nil
}

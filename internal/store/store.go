package store

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultDBPath is the default relative path for the history DB.
// Open() creates the parent dir (e.g. .cbrowser).
const DefaultDBPath = ".cbrowser/history.db"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run is one recorded suite run.
type Run struct {
	ID                int64         `json:"id"`
	Suite             string        `json:"suite"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration_ns"`
	Tests             int           `json:"tests"`
	TestsWithFailures int           `json:"tests_with_failures"`
	TestsRepaired     int           `json:"tests_repaired"`
	FailedSteps       int           `json:"failed_steps"`
	RepairedSteps     int           `json:"repaired_steps"`
	SuccessRate       float64       `json:"success_rate"`
	// Result is the JSON of the full suite result.
	Result json.RawMessage `json:"result,omitempty"`
	// Repairs are saved together with the run.
	Repairs []*Repair `json:"repairs,omitempty"`
}

// Repair is one analyzed step failure within a run.
type Repair struct {
	ID             int64   `json:"id"`
	RunID          int64   `json:"run_id"`
	Test           string  `json:"test"`
	StepIndex      int     `json:"step_index"`
	Instruction    string  `json:"instruction"`
	Error          string  `json:"error"`
	FailureKind    string  `json:"failure_kind"`
	SuggestionType string  `json:"suggestion_type,omitempty"`
	Confidence     float64 `json:"confidence"`
	Suggested      string  `json:"suggested_instruction,omitempty"`
	Applied        bool    `json:"applied"`
	// Verified is set when the test's repaired version passed verification.
	Verified bool `json:"verified"`
}

// Store is the persistence facade for run history. The CLI and MCP server
// use only this interface; the implementation is SQLite or in-memory.
type Store interface {
	// SaveRun inserts run and its repairs and returns the run id.
	SaveRun(run *Run) (int64, error)
	// GetRun returns the run without repairs, or ErrNotFound.
	GetRun(id int64) (*Run, error)
	// ListRuns returns the newest runs first; limit <= 0 means all.
	ListRuns(limit int) ([]*Run, error)
	ListRepairs(runID int64) ([]*Repair, error)
	// FailureKindCounts totals repairs by failure kind across all runs.
	FailureKindCounts() (map[string]int, error)
	Close() error
}

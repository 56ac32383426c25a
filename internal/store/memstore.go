package store

import (
	"errors"
	"fmt"
	"sync"
)

// MemStore implements Store in memory. Used by tests and --no-history.
type MemStore struct {
	mu         sync.Mutex
	runs       []*Run
	repairs    map[int64][]*Repair
	nextRun    int64
	nextRepair int64
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{repairs: make(map[int64][]*Repair)}
}

// SaveRun stores copies of run and its repairs and sets their IDs.
func (s *MemStore) SaveRun(run *Run) (int64, error) {
	if run == nil {
		return 0, errors.New("run is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun++
	run.ID = s.nextRun

	stored := *run
	stored.Repairs = nil
	s.runs = append(s.runs, &stored)

	for _, r := range run.Repairs {
		s.nextRepair++
		r.ID, r.RunID = s.nextRepair, run.ID
		cp := *r
		s.repairs[run.ID] = append(s.repairs[run.ID], &cp)
	}
	return run.ID, nil
}

// GetRun returns the run by id, or ErrNotFound.
func (s *MemStore) GetRun(id int64) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
}

// ListRuns returns runs newest first.
func (s *MemStore) ListRuns(limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Run
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *s.runs[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ListRepairs returns the repairs of one run in insertion order.
func (s *MemStore) ListRepairs(runID int64) ([]*Repair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Repair
	for _, r := range s.repairs[runID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// FailureKindCounts totals repairs by failure kind.
func (s *MemStore) FailureKindCounts() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, list := range s.repairs {
		for _, r := range list {
			out[r.FailureKind]++
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

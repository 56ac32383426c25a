// Package suite runs many tests through the repairer and aggregates the
// outcome into suite-level counters and reports.
package suite

import (
	"context"
	"time"

	"cbrowser/internal/heal"
	"cbrowser/internal/logging"
	"cbrowser/internal/step"
)

// TestRepairer runs one test and returns its repair result. *heal.Repairer
// implements it.
type TestRepairer interface {
	Repair(ctx context.Context, tc step.TestCase) (*heal.TestRepairResult, error)
}

// SuiteResult aggregates the results of one suite run.
type SuiteResult struct {
	Name               string                   `json:"name"`
	StartedAt          time.Time                `json:"started_at"`
	Duration           time.Duration            `json:"duration_ns"`
	TestResults        []*heal.TestRepairResult `json:"test_results"`
	TestsWithFailures  int                      `json:"tests_with_failures"`
	TestsRepaired      int                      `json:"tests_repaired"`
	TotalFailedSteps   int                      `json:"total_failed_steps"`
	TotalRepairedSteps int                      `json:"total_repaired_steps"`
	RepairSuccessRate  float64                  `json:"repair_success_rate"`
}

// Run repairs each test in order, one session at a time. When a session
// cannot be acquired Run stops and returns the results gathered so far,
// including any partial result of the failing test, together with the error.
func Run(ctx context.Context, r TestRepairer, tests []step.TestCase) (*SuiteResult, error) {
	log := logging.New("suite")
	start := time.Now()
	results := make([]*heal.TestRepairResult, 0, len(tests))

	for i, tc := range tests {
		res, err := r.Repair(ctx, tc)
		if res != nil && err != nil {
			results = append(results, res)
		}
		if err != nil {
			log.Error("suite aborted", "test", tc.Name, "index", i, "error", err)
			out := Aggregate(results)
			out.StartedAt, out.Duration = start, time.Since(start)
			return out, err
		}
		log.Info("test finished",
			"test", tc.Name, "outcome", res.Outcome,
			"failed_steps", res.FailedSteps, "repaired_steps", res.RepairedSteps)
		results = append(results, res)
	}

	out := Aggregate(results)
	out.StartedAt, out.Duration = start, time.Since(start)
	log.Info("suite finished",
		"tests", len(results), "with_failures", out.TestsWithFailures,
		"repaired", out.TestsRepaired, "success_rate", out.RepairSuccessRate)
	return out, nil
}

// Aggregate derives the suite counters from individual test results.
func Aggregate(results []*heal.TestRepairResult) *SuiteResult {
	out := &SuiteResult{TestResults: results}
	if out.TestResults == nil {
		out.TestResults = []*heal.TestRepairResult{}
	}
	for _, r := range results {
		out.TotalFailedSteps += r.FailedSteps
		out.TotalRepairedSteps += r.RepairedSteps
		if r.FailedSteps == 0 {
			continue
		}
		out.TestsWithFailures++
		if repaired(r) {
			out.TestsRepaired++
		}
	}
	out.RepairSuccessRate = SuccessRate(out.TotalRepairedSteps, out.TotalFailedSteps)
	return out
}

// SuccessRate is repaired/failed as a percentage; 100 when nothing failed.
func SuccessRate(repairedSteps, failedSteps int) float64 {
	if failedSteps == 0 {
		return 100
	}
	return float64(repairedSteps) / float64(failedSteps) * 100
}

// repaired reports whether a failing test counts as repaired: its verification
// pass succeeded or, without verification, every failed step was substituted.
func repaired(r *heal.TestRepairResult) bool {
	if r.RepairedTestPasses != nil {
		return *r.RepairedTestPasses
	}
	return r.RepairedSteps >= r.FailedSteps
}

// TotalTests returns the number of tests that ran.
func (s *SuiteResult) TotalTests() int { return len(s.TestResults) }

// VerificationCounts returns how many tests ran a verification pass and how
// many of those passed.
func (s *SuiteResult) VerificationCounts() (ran, passed int) {
	for _, r := range s.TestResults {
		if r.RepairedTestPasses == nil {
			continue
		}
		ran++
		if *r.RepairedTestPasses {
			passed++
		}
	}
	return ran, passed
}

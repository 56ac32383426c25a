package store

import (
	"encoding/json"
	"fmt"

	"cbrowser/internal/suite"
)

// RecordSuite saves a suite result as one Run with a Repair per failure
// analysis, and returns the run id.
func RecordSuite(st Store, res *suite.SuiteResult) (int64, error) {
	blob, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("marshal suite result: %w", err)
	}
	run := &Run{
		Suite:             res.Name,
		StartedAt:         res.StartedAt,
		Duration:          res.Duration,
		Tests:             res.TotalTests(),
		TestsWithFailures: res.TestsWithFailures,
		TestsRepaired:     res.TestsRepaired,
		FailedSteps:       res.TotalFailedSteps,
		RepairedSteps:     res.TotalRepairedSteps,
		SuccessRate:       res.RepairSuccessRate,
		Result:            blob,
	}
	for _, tr := range res.TestResults {
		verified := tr.Verified()
		for _, a := range tr.FailureAnalyses {
			r := &Repair{
				Test:        tr.OriginalTest.Name,
				StepIndex:   a.StepIndex,
				Instruction: a.Step.Instruction,
				Error:       a.Error,
				FailureKind: string(a.FailureKind),
				Applied:     a.Applied,
				Verified:    verified,
			}
			if top, ok := a.TopSuggestion(); ok {
				r.SuggestionType = string(top.Type)
				r.Confidence = top.Confidence
				r.Suggested = top.SuggestedInstruction
			}
			run.Repairs = append(run.Repairs, r)
		}
	}
	id, err := st.SaveRun(run)
	if err != nil {
		return 0, fmt.Errorf("record suite %q: %w", res.Name, err)
	}
	return id, nil
}

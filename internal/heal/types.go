// Package heal runs natural-language tests against a browser driver,
// diagnoses failing steps and proposes (optionally applies) repairs.
package heal

import (
	"cbrowser/internal/step"
)

// FailureKind is the classified category of a step execution error.
type FailureKind string

const (
	SelectorNotFound       FailureKind = "selector_not_found"
	AssertionFailed        FailureKind = "assertion_failed"
	Timeout                FailureKind = "timeout"
	NavigationFailed       FailureKind = "navigation_failed"
	ElementNotInteractable FailureKind = "element_not_interactable"
	UnknownFailure         FailureKind = "unknown"
)

// FailureKinds lists every kind in classification priority order.
var FailureKinds = []FailureKind{
	SelectorNotFound, AssertionFailed, Timeout, NavigationFailed, ElementNotInteractable, UnknownFailure,
}

// SuggestionType is the kind of edit a RepairSuggestion proposes.
type SuggestionType string

const (
	SelectorUpdate  SuggestionType = "selector_update"
	AddWait         SuggestionType = "add_wait"
	AssertionUpdate SuggestionType = "assertion_update"
	ChangeAction    SuggestionType = "change_action"
	SkipStep        SuggestionType = "skip_step"
)

// PageContext is a bounded diagnostic snapshot of the live page.
type PageContext struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	VisibleText []string `json:"visible_text"`
}

// RepairSuggestion is one proposed edit to a failing step. SuggestedInstruction
// may span several lines; the last line replaces the failing step.
type RepairSuggestion struct {
	Type                 SuggestionType `json:"type"`
	Confidence           float64        `json:"confidence"`
	Description          string         `json:"description"`
	OriginalInstruction  string         `json:"original_instruction"`
	SuggestedInstruction string         `json:"suggested_instruction"`
	Reasoning            string         `json:"reasoning"`
}

// FailureAnalysis describes one step that exhausted its retry budget.
// Suggestions are sorted by confidence, highest first.
type FailureAnalysis struct {
	StepIndex            int                `json:"step_index"`
	Step                 step.Step          `json:"step"`
	Error                string             `json:"error"`
	FailureKind          FailureKind        `json:"failure_kind"`
	TargetSelector       string             `json:"target_selector,omitempty"`
	AlternativeSelectors []string           `json:"alternative_selectors"`
	PageContext          PageContext        `json:"page_context"`
	Suggestions          []RepairSuggestion `json:"suggestions"`
	Applied              bool               `json:"applied"`
}

// TopSuggestion returns the highest-confidence suggestion, if any.
func (a FailureAnalysis) TopSuggestion() (RepairSuggestion, bool) {
	if len(a.Suggestions) == 0 {
		return RepairSuggestion{}, false
	}
	return a.Suggestions[0], true
}

// Outcome is the terminal state of a whole test run.
type Outcome string

const (
	AllPassed             Outcome = "all_passed"
	CompletedWithFailures Outcome = "completed_with_failures"
)

// TestRepairResult is the full outcome of running one test through the
// repairer. RepairedTest is set only when at least one step failed;
// RepairedTestPasses only when a verification pass ran.
type TestRepairResult struct {
	OriginalTest       step.TestCase     `json:"original_test"`
	RepairedTest       *step.TestCase    `json:"repaired_test,omitempty"`
	Outcome            Outcome           `json:"outcome"`
	FailedSteps        int               `json:"failed_steps"`
	RepairedSteps      int               `json:"repaired_steps"`
	FailureAnalyses    []FailureAnalysis `json:"failure_analyses"`
	RepairedTestPasses *bool             `json:"repaired_test_passes,omitempty"`
}

// Verified reports whether a verification pass ran and succeeded.
func (r *TestRepairResult) Verified() bool {
	return r.RepairedTestPasses != nil && *r.RepairedTestPasses
}

// StepState is a position in the per-step state machine.
type StepState string

const (
	StatePending          StepState = "pending"
	StateExecuting        StepState = "executing"
	StateRetrying         StepState = "retrying"
	StatePassed           StepState = "passed"
	StateExhaustedRetries StepState = "exhausted_retries"
	StateAnalyzed         StepState = "analyzed"
)

// StepEvent is emitted on every state transition of a step.
type StepEvent struct {
	TestName    string    `json:"test_name"`
	Index       int       `json:"index"`
	Instruction string    `json:"instruction"`
	State       StepState `json:"state"`
	Attempt     int       `json:"attempt,omitempty"`
	Error       string    `json:"error,omitempty"`
	Verifying   bool      `json:"verifying,omitempty"`
}

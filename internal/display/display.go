// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and markdown reports.
// Keep raw codes for JSON fields, database columns and equality comparisons.
package display

import "strings"

// --- Failure Kinds ---

var failureKinds = map[string]string{
	"selector_not_found":       "Selector Not Found",
	"assertion_failed":         "Assertion Failed",
	"timeout":                  "Timeout",
	"navigation_failed":        "Navigation Failed",
	"element_not_interactable": "Element Not Interactable",
	"unknown":                  "Unknown Failure",
}

// FailureKind returns the human-readable name for a failure kind code.
// Unknown codes are returned as-is.
func FailureKind(code string) string {
	return lookup(failureKinds, code)
}

// FailureKindWithCode returns "Selector Not Found (selector_not_found)".
func FailureKindWithCode(code string) string {
	return withCode(failureKinds, code)
}

// --- Suggestion Types ---

var suggestionTypes = map[string]string{
	"selector_update":  "Update Selector",
	"add_wait":         "Add Wait",
	"assertion_update": "Update Assertion",
	"change_action":    "Change Action",
	"skip_step":        "Skip Step",
}

// SuggestionType returns the human-readable name for a suggestion type.
func SuggestionType(code string) string {
	return lookup(suggestionTypes, code)
}

// --- Step States ---

var stepStates = map[string]string{
	"pending":           "Pending",
	"executing":         "Executing",
	"retrying":          "Retrying",
	"passed":            "Passed",
	"exhausted_retries": "Failed",
	"analyzed":          "Analyzed",
}

// StepState returns the human-readable name for a step state.
func StepState(code string) string {
	return lookup(stepStates, code)
}

// StatePath converts a sequence of step states to a readable path.
// ["executing", "retrying", "passed"] -> "Executing → Retrying → Passed"
func StatePath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = StepState(c)
	}
	return strings.Join(names, " → ")
}

// --- Outcomes ---

var outcomes = map[string]string{
	"all_passed":              "All Passed",
	"completed_with_failures": "Completed With Failures",
}

// Outcome returns the human-readable name for a test outcome.
func Outcome(code string) string {
	return lookup(outcomes, code)
}

// --- Actions ---

// Action capitalizes a step action code: "navigate" -> "Navigate".
func Action(code string) string {
	if code == "" {
		return ""
	}
	return strings.ToUpper(code[:1]) + code[1:]
}

func lookup(m map[string]string, code string) string {
	if name, ok := m[code]; ok {
		return name
	}
	return code
}

func withCode(m map[string]string, code string) string {
	if name, ok := m[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

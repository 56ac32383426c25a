package heal

import (
	"testing"

	"cbrowser/internal/step"
)

// Pins every phrase of the classification table so a wording change in a
// driver's error messages shows up as a test failure rather than a silent
// change of failure kind.
func TestClassify_AllPhrases(t *testing.T) {
	cases := []struct {
		name string
		err  string
		want FailureKind
	}{
		{"not found", "element not found: Submit", SelectorNotFound},
		{"no element", "No element matched selector", SelectorNotFound},
		{"failed to click", "Failed to click Buy", SelectorNotFound},
		{"could not find", "could not find Save", SelectorNotFound},
		{"unable to find", "unable to find node", SelectorNotFound},
		{"no such element", "no such element: #id", SelectorNotFound},

		{"assert", "Assertion failed: cart empty", AssertionFailed},
		{"verify", "could not verify heading", AssertionFailed},
		{"expected", "Expected 3 items, got 2", AssertionFailed},

		{"timeout", "Timeout waiting for text \"Welcome\"", Timeout},
		{"timed out", "operation timed out", Timeout},
		{"deadline", "context deadline exceeded", Timeout},

		{"navigation", "Navigation interrupted", NavigationFailed},
		{"navigate", "cannot navigate away", NavigationFailed},
		{"net err", "net::ERR_NAME_NOT_RESOLVED", NavigationFailed},
		{"url", "invalid URL", NavigationFailed},

		{"not interactable", "element not interactable", ElementNotInteractable},
		{"not clickable", "element is not clickable at point (10, 20)", ElementNotInteractable},
		{"disabled", "button is disabled", ElementNotInteractable},
		{"hidden", "input is hidden", ElementNotInteractable},

		{"unrecognised", "the printer is on fire", UnknownFailure},
		{"empty", "", UnknownFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err, step.Step{}); got != tc.want {
				t.Errorf("Classify(%q) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	cases := []struct {
		err  string
		want FailureKind
	}{
		// Not-found phrases beat anything appearing later in the message.
		{"Timeout: element not found after navigation", SelectorNotFound},
		{"expected button, failed to click", SelectorNotFound},
		{"no element is disabled here", SelectorNotFound},
		// Assertion beats timeout.
		{"expected text within timeout", AssertionFailed},
		// Timeout beats navigation.
		{"navigation timeout of 30000 ms exceeded", Timeout},
		// Navigation beats not-interactable.
		{"url is hidden", NavigationFailed},
	}
	for _, tc := range cases {
		if got := Classify(tc.err, step.Step{}); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestClassify_IgnoresStepAction(t *testing.T) {
	msg := "element not found: Total"
	for _, a := range []step.Action{step.Click, step.Assert, step.Navigate, step.Wait, step.Unknown} {
		if got := Classify(msg, step.Step{Action: a}); got != SelectorNotFound {
			t.Errorf("action %s: got %s", a, got)
		}
	}
}

package heal

import (
	"strings"

	"cbrowser/internal/step"
)

// classificationRule maps a set of error phrases onto a failure kind.
type classificationRule struct {
	kind    FailureKind
	phrases []string
}

// classificationRules is evaluated in order against the lower-cased error
// text; the first rule with a matching phrase wins.
var classificationRules = []classificationRule{
	{SelectorNotFound, []string{"not found", "no element", "failed to click", "could not find", "unable to find", "no such element"}},
	{AssertionFailed, []string{"assert", "verify", "expected"}},
	{Timeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{NavigationFailed, []string{"navigation", "navigate", "net::err", "url"}},
	{ElementNotInteractable, []string{"not interactable", "not clickable", "disabled", "hidden"}},
}

// Classify maps an error message onto a FailureKind. The step's action is not
// consulted: the same text always yields the same kind.
func Classify(errText string, _ step.Step) FailureKind {
	msg := strings.ToLower(errText)
	for _, rule := range classificationRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(msg, phrase) {
				return rule.kind
			}
		}
	}
	return UnknownFailure
}

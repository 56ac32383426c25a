package heal

import (
	"fmt"
	"net/url"
	"sort"
	"unicode/utf8"

	"cbrowser/internal/step"
)

// Confidence constants of the suggestion rule table.
const (
	confSelectorUpdate   = 0.7
	confWaitNoAlts       = 0.5
	confAssertText       = 0.6
	confAssertURL        = 0.5
	confTimeoutWait      = 0.7
	confInteractableWait = 0.6
	confScrollFirst      = 0.5
	confSkip             = 0.3

	maxSelectorUpdates = 3
)

// suggestionGenerators dispatches on failure kind. Kinds without an entry
// fall back to suggestSkip.
var suggestionGenerators = map[FailureKind]func(step.Step, []string, PageContext) []RepairSuggestion{
	SelectorNotFound:       suggestSelector,
	AssertionFailed:        suggestAssertion,
	Timeout:                suggestTimeout,
	ElementNotInteractable: suggestInteractable,
}

// GenerateSuggestions applies the repair rule table to one failed step and
// returns suggestions sorted by confidence, highest first. Suggestions with
// equal confidence keep their generation order.
func GenerateSuggestions(s step.Step, errText string, kind FailureKind, alternatives []string, pc PageContext) []RepairSuggestion {
	gen := suggestionGenerators[kind]
	if gen == nil {
		gen = suggestSkip
	}
	out := gen(s, alternatives, pc)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func suggestSelector(s step.Step, alternatives []string, _ PageContext) []RepairSuggestion {
	if len(alternatives) == 0 {
		return []RepairSuggestion{waitFirst(s, 2, confWaitNoAlts,
			"No similar element is on the page yet; it may still be rendering.")}
	}
	var out []RepairSuggestion
	for i, alt := range alternatives {
		if i == maxSelectorUpdates {
			break
		}
		text := CandidateText(alt)
		out = append(out, RepairSuggestion{
			Type:                 SelectorUpdate,
			Confidence:           confSelectorUpdate,
			Description:          fmt.Sprintf("Target %s instead of %q", alt, targetOf(s)),
			OriginalInstruction:  s.Instruction,
			SuggestedInstruction: step.WithTarget(s, text),
			Reasoning:            fmt.Sprintf("%q was not found, but the page has %s whose text overlaps it.", targetOf(s), alt),
		})
	}
	return out
}

func suggestAssertion(s step.Step, _ []string, pc PageContext) []RepairSuggestion {
	var out []RepairSuggestion
	if s.Action == step.Assert && len(pc.VisibleText) > 0 {
		for _, text := range pc.VisibleText {
			n := utf8.RuneCountInString(text)
			if n <= 3 || n >= 30 {
				continue
			}
			out = append(out, RepairSuggestion{
				Type:                 AssertionUpdate,
				Confidence:           confAssertText,
				Description:          fmt.Sprintf("Check for visible text %q", text),
				OriginalInstruction:  s.Instruction,
				SuggestedInstruction: fmt.Sprintf("verify page contains %q", text),
				Reasoning:            "The expected content is absent; this text is currently visible on the page.",
			})
			break
		}
	}

	path := "/"
	if u, err := url.Parse(pc.URL); err == nil && u.Path != "" {
		path = u.Path
	}
	out = append(out, RepairSuggestion{
		Type:                 AssertionUpdate,
		Confidence:           confAssertURL,
		Description:          fmt.Sprintf("Check the URL path %q instead", path),
		OriginalInstruction:  s.Instruction,
		SuggestedInstruction: fmt.Sprintf("verify url contains %q", path),
		Reasoning:            "The URL identifies the page reached even when its content differs from what the test expects.",
	})
	return out
}

func suggestTimeout(s step.Step, _ []string, _ PageContext) []RepairSuggestion {
	return []RepairSuggestion{waitFirst(s, 5, confTimeoutWait,
		"The step timed out; a longer wait gives the page time to settle.")}
}

func suggestInteractable(s step.Step, _ []string, _ PageContext) []RepairSuggestion {
	return []RepairSuggestion{
		waitFirst(s, 2, confInteractableWait, "The element exists but cannot be used yet; it may be animating or disabled."),
		{
			Type:                 ChangeAction,
			Confidence:           confScrollFirst,
			Description:          "Scroll down before retrying",
			OriginalInstruction:  s.Instruction,
			SuggestedInstruction: "scroll down\n" + s.Instruction,
			Reasoning:            "The element may be outside the viewport or covered by another element.",
		},
	}
}

func suggestSkip(s step.Step, _ []string, _ PageContext) []RepairSuggestion {
	return []RepairSuggestion{{
		Type:                 SkipStep,
		Confidence:           confSkip,
		Description:          "Skip this step pending manual review",
		OriginalInstruction:  s.Instruction,
		SuggestedInstruction: "# " + s.Instruction,
		Reasoning:            "The failure could not be mapped to an automatic fix.",
	}}
}

func waitFirst(s step.Step, seconds int, confidence float64, reasoning string) RepairSuggestion {
	return RepairSuggestion{
		Type:                 AddWait,
		Confidence:           confidence,
		Description:          fmt.Sprintf("Wait %d seconds before retrying", seconds),
		OriginalInstruction:  s.Instruction,
		SuggestedInstruction: fmt.Sprintf("wait %d seconds\n%s", seconds, s.Instruction),
		Reasoning:            reasoning,
	}
}

// targetOf is the string a failed step was looking for.
func targetOf(s step.Step) string {
	if s.Target != "" {
		return s.Target
	}
	return s.Instruction
}

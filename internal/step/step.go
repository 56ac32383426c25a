// Package step holds the structured form of one natural-language test action
// and the rule-based parser that produces it.
package step

import "strings"

// Action is the kind of browser interaction a Step performs.
type Action string

const (
	Navigate   Action = "navigate"
	Click      Action = "click"
	Fill       Action = "fill"
	Select     Action = "select"
	Scroll     Action = "scroll"
	Wait       Action = "wait"
	Assert     Action = "assert"
	Screenshot Action = "screenshot"
	Unknown    Action = "unknown"
)

// Step is one parsed test action. Instruction is the canonical human-readable
// form; it is what reports show and what repaired tests are rendered from.
type Step struct {
	Action      Action `json:"action"`
	Target      string `json:"target,omitempty"`
	Value       string `json:"value,omitempty"`
	Instruction string `json:"instruction"`
}

// TestCase is an ordered list of steps. Repairs never mutate a TestCase in
// place; they build a new one.
type TestCase struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
}

// Instructions returns the instruction of every step, in order.
func (tc TestCase) Instructions() []string {
	out := make([]string, len(tc.Steps))
	for i, s := range tc.Steps {
		out[i] = s.Instruction
	}
	return out
}

// Clone returns a copy of tc that shares no step storage with it.
func (tc TestCase) Clone() TestCase {
	steps := make([]Step, len(tc.Steps))
	copy(steps, tc.Steps)
	tc.Steps = steps
	return tc
}

// Render builds the canonical instruction for an action. It is the inverse of
// Parse for the forms Parse recognizes.
func Render(action Action, target, value string) string {
	switch action {
	case Navigate:
		return "go to " + target
	case Click:
		return "click " + target
	case Fill:
		return "type " + quote(value) + " in " + target
	case Select:
		return "select " + quote(value) + " from " + target
	case Scroll:
		if target == "" {
			target = "down"
		}
		return "scroll " + target
	case Wait:
		if value != "" {
			return "wait " + value + " seconds"
		}
		return "wait for " + quote(target)
	case Assert:
		return "verify page contains " + quote(target)
	case Screenshot:
		return "take screenshot"
	default:
		return target
	}
}

// WithTarget returns the instruction s would have if its target were target.
func WithTarget(s Step, target string) string {
	switch s.Action {
	case Unknown:
		return Render(Click, target, "")
	default:
		return Render(s.Action, target, s.Value)
	}
}

func quote(s string) string {
	return `"` + strings.Trim(s, `"'`) + `"`
}

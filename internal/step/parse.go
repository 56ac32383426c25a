package step

import (
	"regexp"
	"strings"
)

// Parser turns one instruction line into a Step.
type Parser interface {
	Parse(instruction string) Step
}

// ParserFunc adapts a plain function to the Parser interface.
type ParserFunc func(string) Step

func (f ParserFunc) Parse(instruction string) Step { return f(instruction) }

// DefaultParser is the rule-based parser used when no other is configured.
var DefaultParser Parser = ParserFunc(Parse)

// parseRule maps an instruction pattern onto a Step. Rules are evaluated in
// order; the first match wins.
type parseRule struct {
	re    *regexp.Regexp
	build func(m []string) (Action, string, string)
}

// quotedOrLazy captures a quoted string whole, so a value such as
// "sign in now" is not cut at its inner keyword, and otherwise the shortest
// run of text. It contributes three groups; see firstGroup.
const quotedOrLazy = `(?:"([^"]*)"|'([^']*)'|(.+?))`

var parseRules = []parseRule{
	{
		re: regexp.MustCompile(`(?i)^(?:go to|navigate to|open|visit)\s+(.+)$`),
		build: func(m []string) (Action, string, string) {
			return Navigate, unquote(m[1]), ""
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:click on|click|press|tap)\s+(?:the\s+)?(.+)$`),
		build: func(m []string) (Action, string, string) {
			return Click, unquote(m[1]), ""
		},
	},
	{
		re: regexp.MustCompile(`(?i)^fill\s+(?:in\s+)?` + quotedOrLazy + `\s+with\s+(.+)$`),
		build: func(m []string) (Action, string, string) {
			return Fill, firstGroup(m[1:4]), unquote(m[4])
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:type|enter)\s+` + quotedOrLazy + `\s+(?:in|into)\s+(?:the\s+)?(.+)$`),
		build: func(m []string) (Action, string, string) {
			return Fill, unquote(m[4]), firstGroup(m[1:4])
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:select|choose)\s+` + quotedOrLazy + `\s+(?:from|in)\s+(?:the\s+)?(.+)$`),
		build: func(m []string) (Action, string, string) {
			return Select, unquote(m[4]), firstGroup(m[1:4])
		},
	},
	{
		re: regexp.MustCompile(`(?i)^scroll(?:\s+(up|down|to top|to bottom))?$`),
		build: func(m []string) (Action, string, string) {
			dir := strings.ToLower(m[1])
			if dir == "" {
				dir = "down"
			}
			return Scroll, dir, ""
		},
	},
	{
		re: regexp.MustCompile(`(?i)^wait\s+(\d+(?:\.\d+)?)\s*(?:s|sec|secs|second|seconds)?$`),
		build: func(m []string) (Action, string, string) {
			return Wait, "", m[1]
		},
	},
	{
		re: regexp.MustCompile(`(?i)^wait\s+(?:for\s+|until\s+)?(.+)$`),
		build: func(m []string) (Action, string, string) {
			return Wait, unquote(m[1]), ""
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:verify|assert|check|expect)\b(.*)$`),
		build: func(m []string) (Action, string, string) {
			if q := quotedText(m[1]); q != "" {
				return Assert, q, ""
			}
			return Assert, strings.TrimSpace(m[1]), ""
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:take\s+(?:a\s+)?)?screenshot$`),
		build: func(m []string) (Action, string, string) {
			return Screenshot, "", ""
		},
	},
}

// Parse converts a natural-language instruction into a Step. Instructions
// that match no rule become Unknown steps targeting the whole instruction.
func Parse(instruction string) Step {
	text := strings.TrimSpace(instruction)
	for _, rule := range parseRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		action, target, value := rule.build(m)
		return Step{Action: action, Target: target, Value: value, Instruction: text}
	}
	return Step{Action: Unknown, Target: text, Instruction: text}
}

var quotedPattern = regexp.MustCompile(`"([^"]*)"|'([^']*)'`)

func quotedText(s string) string {
	m := quotedPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// firstGroup returns the first non-empty capture of a quotedOrLazy group.
// The unquoted alternative is trimmed of stray quotes.
func firstGroup(groups []string) string {
	for i, g := range groups {
		if g == "" {
			continue
		}
		if i == len(groups)-1 {
			return unquote(g)
		}
		return g
	}
	return ""
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

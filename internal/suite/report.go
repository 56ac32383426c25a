package suite

import (
	"fmt"
	"strings"

	"cbrowser/internal/display"
	"cbrowser/internal/format"
	"cbrowser/internal/heal"
)

// maxReportedSuggestions is how many suggestions each failure lists.
const maxReportedSuggestions = 2

// maxErrorLen caps driver errors (stack traces, page dumps) in the text report.
const maxErrorLen = 160

// NoRepairsMarker tags exported tests that needed no changes.
const NoRepairsMarker = "no repairs needed"

// FormatReport renders a plain-text suite report.
// Sections: header, summary, tests, failures, verification (when it ran).
func FormatReport(s *SuiteResult) string {
	var b strings.Builder

	b.WriteString("=== Self-Healing Test Report ===\n")
	if s.Name != "" {
		fmt.Fprintf(&b, "Suite:    %s\n", s.Name)
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started:  %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Duration: %s\n\n", format.FmtDuration(s.Duration))

	fmt.Fprintf(&b, "Tests:               %d\n", s.TotalTests())
	fmt.Fprintf(&b, "Tests with failures: %d\n", s.TestsWithFailures)
	fmt.Fprintf(&b, "Tests repaired:      %d\n", s.TestsRepaired)
	fmt.Fprintf(&b, "Failed steps:        %d\n", s.TotalFailedSteps)
	fmt.Fprintf(&b, "Repaired steps:      %d\n", s.TotalRepairedSteps)
	fmt.Fprintf(&b, "Repair success rate: %s\n\n", format.Percent(s.RepairSuccessRate))

	b.WriteString("--- Tests ---\n")
	b.WriteString(testsTable(s, format.ASCII))
	b.WriteString("\n\n")

	b.WriteString("--- Failures ---\n")
	failures := 0
	for _, r := range s.TestResults {
		for _, a := range r.FailureAnalyses {
			failures++
			fmt.Fprintf(&b, "[%s] step %d: %s\n", r.OriginalTest.Name, a.StepIndex+1, a.Step.Instruction)
			fmt.Fprintf(&b, "  Error: %s\n", format.Truncate(format.OneLine(a.Error), maxErrorLen))
			fmt.Fprintf(&b, "  Kind:  %s\n", display.FailureKindWithCode(string(a.FailureKind)))
			if len(a.AlternativeSelectors) > 0 {
				fmt.Fprintf(&b, "  Alternatives: %s\n", strings.Join(a.AlternativeSelectors, ", "))
			}
			writeSuggestions(&b, a)
			b.WriteString("\n")
		}
	}
	if failures == 0 {
		b.WriteString("No failures.\n\n")
	}

	if ran, passed := s.VerificationCounts(); ran > 0 {
		b.WriteString("--- Verification ---\n")
		for _, r := range s.TestResults {
			if r.RepairedTestPasses == nil {
				continue
			}
			status := "FAIL"
			if *r.RepairedTestPasses {
				status = "PASS"
			}
			fmt.Fprintf(&b, "%s  %s\n", status, r.OriginalTest.Name)
		}
		b.WriteString(verificationBanner(ran, passed))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatReportMarkdown renders the same report with Markdown tables.
func FormatReportMarkdown(s *SuiteResult) string {
	var b strings.Builder

	b.WriteString("# Self-Healing Test Report\n\n")
	if s.Name != "" {
		fmt.Fprintf(&b, "**Suite:** %s  \n", s.Name)
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, "**Started:** %s  \n", s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "**Duration:** %s\n\n", format.FmtDuration(s.Duration))

	b.WriteString("## Summary\n\n")
	sum := format.NewTable(format.Markdown)
	sum.Header("Metric", "Value")
	sum.Row("Tests", s.TotalTests())
	sum.Row("Tests with failures", s.TestsWithFailures)
	sum.Row("Tests repaired", s.TestsRepaired)
	sum.Row("Failed steps", s.TotalFailedSteps)
	sum.Row("Repaired steps", s.TotalRepairedSteps)
	sum.Row("Repair success rate", format.Percent(s.RepairSuccessRate))
	b.WriteString(sum.String())
	b.WriteString("\n\n## Tests\n\n")
	b.WriteString(testsTable(s, format.Markdown))
	b.WriteString("\n\n## Failures\n\n")

	failures := 0
	for _, r := range s.TestResults {
		for _, a := range r.FailureAnalyses {
			failures++
			fmt.Fprintf(&b, "### %s, step %d\n\n", r.OriginalTest.Name, a.StepIndex+1)
			fmt.Fprintf(&b, "- **Instruction:** `%s`\n", a.Step.Instruction)
			fmt.Fprintf(&b, "- **Error:** %s\n", a.Error)
			fmt.Fprintf(&b, "- **Kind:** %s\n\n", display.FailureKind(string(a.FailureKind)))
			if len(a.Suggestions) == 0 {
				b.WriteString("_No suggestions._\n\n")
				continue
			}
			tbl := format.NewTable(format.Markdown)
			tbl.Header("#", "Confidence", "Type", "Suggested instruction")
			for i, sg := range topSuggestions(a) {
				tbl.Row(i+1, format.Confidence(sg.Confidence), display.SuggestionType(string(sg.Type)), format.OneLine(sg.SuggestedInstruction))
			}
			b.WriteString(tbl.String())
			b.WriteString("\n\n")
		}
	}
	if failures == 0 {
		b.WriteString("No failures.\n\n")
	}

	if ran, passed := s.VerificationCounts(); ran > 0 {
		b.WriteString("## Verification\n\n")
		b.WriteString("**" + strings.TrimSpace(verificationBanner(ran, passed)) + "**\n")
	}
	return b.String()
}

// ExportRepaired renders every test of the suite as plain instructions, one per
// line, with a comment header per test.
func ExportRepaired(s *SuiteResult) string {
	parts := make([]string, 0, len(s.TestResults))
	for _, r := range s.TestResults {
		parts = append(parts, ExportTest(r))
	}
	return strings.Join(parts, "\n")
}

// ExportTest renders the repaired form of one test. A test without a repaired
// version echoes its original instructions under a NoRepairsMarker header.
func ExportTest(r *heal.TestRepairResult) string {
	var b strings.Builder
	instructions := r.OriginalTest.Instructions()
	if r.RepairedTest == nil {
		fmt.Fprintf(&b, "# %s (%s)\n", r.OriginalTest.Name, NoRepairsMarker)
	} else {
		fmt.Fprintf(&b, "# %s (repaired: %d/%d failed steps)\n", r.OriginalTest.Name, r.RepairedSteps, r.FailedSteps)
		instructions = r.RepairedTest.Instructions()
	}
	for _, in := range instructions {
		b.WriteString(in)
		b.WriteString("\n")
	}
	return b.String()
}

func testsTable(s *SuiteResult, m format.Mode) string {
	tbl := format.NewTable(m)
	tbl.Header("Test", "Steps", "Failed", "Repaired", "Outcome", "Verified")
	tbl.Columns(
		format.ColumnConfig{Number: 1, MaxWidth: 40},
		format.ColumnConfig{Number: 2, Align: format.AlignRight},
		format.ColumnConfig{Number: 3, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
	)
	for _, r := range s.TestResults {
		verified := "-"
		if r.RepairedTestPasses != nil {
			verified = format.BoolMark(*r.RepairedTestPasses)
		}
		tbl.Row(r.OriginalTest.Name, len(r.OriginalTest.Steps), r.FailedSteps, r.RepairedSteps,
			display.Outcome(string(r.Outcome)), verified)
	}
	return tbl.String()
}

func writeSuggestions(b *strings.Builder, a heal.FailureAnalysis) {
	if len(a.Suggestions) == 0 {
		b.WriteString("  Suggestions: none\n")
		return
	}
	b.WriteString("  Suggestions:\n")
	for i, sg := range topSuggestions(a) {
		fmt.Fprintf(b, "    %d. [%s] %s: %s\n", i+1, format.Confidence(sg.Confidence),
			display.SuggestionType(string(sg.Type)), format.OneLine(sg.SuggestedInstruction))
	}
}

func topSuggestions(a heal.FailureAnalysis) []heal.RepairSuggestion {
	if len(a.Suggestions) > maxReportedSuggestions {
		return a.Suggestions[:maxReportedSuggestions]
	}
	return a.Suggestions
}

func verificationBanner(ran, passed int) string {
	if passed == ran {
		return fmt.Sprintf("VERIFICATION PASSED (%d/%d)\n", passed, ran)
	}
	return fmt.Sprintf("VERIFICATION FAILED (%d/%d)\n", passed, ran)
}

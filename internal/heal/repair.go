package heal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cbrowser/internal/browser"
	"cbrowser/internal/logging"
	"cbrowser/internal/step"
)

// Options controls how a Repairer treats failing steps.
type Options struct {
	// AutoApply substitutes the top suggestion for each failed step.
	AutoApply bool
	// Verify re-runs the repaired test in a fresh session. It only takes
	// effect together with AutoApply and when at least one step failed.
	Verify       bool
	MaxRetries   int
	RetryDelay   time.Duration
	StrictAssert bool
	WaitTimeout  time.Duration
}

// Repairer drives whole tests through the executor, analyzes failures and
// builds repaired tests.
type Repairer struct {
	Launcher browser.Launcher
	Parser   step.Parser
	Executor *Executor
	Options  Options
	// Observer, when set, receives every step state transition.
	Observer func(StepEvent)

	logger *slog.Logger
}

// NewRepairer returns a Repairer that acquires sessions from launcher.
func NewRepairer(launcher browser.Launcher, opts Options) *Repairer {
	logger := logging.New("heal")
	return &Repairer{
		Launcher: launcher,
		Parser:   step.DefaultParser,
		Options:  opts,
		Executor: &Executor{
			MaxRetries:   opts.MaxRetries,
			RetryDelay:   opts.RetryDelay,
			StrictAssert: opts.StrictAssert,
			WaitTimeout:  opts.WaitTimeout,
			Logger:       logger,
		},
		logger: logger,
	}
}

// Repair runs tc once, analyzing every step that exhausts its retries. The
// original test is never modified. The only error returned is a failure to
// acquire a driver session. If that happens for the verification session, the
// analyzed result is still returned with RepairedTestPasses left nil.
func (r *Repairer) Repair(ctx context.Context, tc step.TestCase) (*TestRepairResult, error) {
	d, err := r.Launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session for %q: %w", tc.Name, err)
	}
	defer r.closeSession(d)

	result := &TestRepairResult{
		OriginalTest:    tc.Clone(),
		Outcome:         AllPassed,
		FailureAnalyses: []FailureAnalysis{},
	}
	repaired := make([]step.Step, 0, len(tc.Steps))

	for i, s := range tc.Steps {
		r.emit(StepEvent{TestName: tc.Name, Index: i, Instruction: s.Instruction, State: StatePending})
		res := r.executor().Execute(ctx, d, s, r.attemptObserver(tc.Name, i, s, false))
		if res.Passed {
			r.emit(StepEvent{TestName: tc.Name, Index: i, Instruction: s.Instruction, State: StatePassed, Attempt: res.Attempts})
			repaired = append(repaired, s)
			continue
		}

		result.FailedSteps++
		result.Outcome = CompletedWithFailures
		r.emit(StepEvent{TestName: tc.Name, Index: i, Instruction: s.Instruction, State: StateExhaustedRetries, Attempt: res.Attempts, Error: res.Error})

		analysis := r.Analyze(ctx, d, s, res.Error)
		analysis.StepIndex = i

		replacement, keep, applied := r.apply(s, analysis)
		analysis.Applied = applied
		if applied {
			result.RepairedSteps++
		}
		if keep {
			repaired = append(repaired, replacement)
		}
		result.FailureAnalyses = append(result.FailureAnalyses, analysis)
		r.emit(StepEvent{TestName: tc.Name, Index: i, Instruction: s.Instruction, State: StateAnalyzed, Error: res.Error})

		r.log().Info("step failed",
			"test", tc.Name, "step", i+1, "kind", analysis.FailureKind,
			"alternatives", len(analysis.AlternativeSelectors), "suggestions", len(analysis.Suggestions), "applied", applied)
	}

	if result.FailedSteps == 0 {
		r.log().Info("test passed", "test", tc.Name, "steps", len(tc.Steps))
		return result, nil
	}

	repairedTest := step.TestCase{Name: tc.Name, Description: tc.Description, Steps: repaired}
	result.RepairedTest = &repairedTest

	if r.Options.AutoApply && r.Options.Verify {
		passes, err := r.Verify(ctx, repairedTest)
		if err != nil {
			return result, err
		}
		result.RepairedTestPasses = &passes
	}
	return result, nil
}

// Analyze diagnoses one failed step against the live page.
func (r *Repairer) Analyze(ctx context.Context, d browser.Driver, s step.Step, errText string) FailureAnalysis {
	kind := Classify(errText, s)
	target := targetOf(s)
	alternatives := FindAlternatives(ctx, d, target)
	pc := CapturePageContext(ctx, d)
	return FailureAnalysis{
		Step:                 s,
		Error:                errText,
		FailureKind:          kind,
		TargetSelector:       target,
		AlternativeSelectors: alternatives,
		PageContext:          pc,
		Suggestions:          GenerateSuggestions(s, errText, kind, alternatives, pc),
	}
}

// apply decides what the repaired test holds in place of a failed step. In
// manual-review mode the original step stays. With AutoApply the last line of
// the top suggestion is parsed into the replacement; a commented-out line
// removes the step.
func (r *Repairer) apply(s step.Step, a FailureAnalysis) (replacement step.Step, keep, applied bool) {
	top, ok := a.TopSuggestion()
	if !r.Options.AutoApply || !ok {
		return s, true, false
	}
	line := finalLine(top.SuggestedInstruction)
	if strings.HasPrefix(line, "#") {
		return step.Step{}, false, true
	}
	return r.parser().Parse(line), true, true
}

// Verify runs tc end to end in a fresh session. Any failing step fails the
// whole run.
func (r *Repairer) Verify(ctx context.Context, tc step.TestCase) (bool, error) {
	d, err := r.Launcher.Launch(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire verification session for %q: %w", tc.Name, err)
	}
	defer r.closeSession(d)

	for i, s := range tc.Steps {
		res := r.executor().Execute(ctx, d, s, r.attemptObserver(tc.Name, i, s, true))
		if !res.Passed {
			r.emit(StepEvent{TestName: tc.Name, Index: i, Instruction: s.Instruction, State: StateExhaustedRetries, Attempt: res.Attempts, Error: res.Error, Verifying: true})
			r.log().Info("verification failed", "test", tc.Name, "step", i+1, "error", res.Error)
			return false, nil
		}
		r.emit(StepEvent{TestName: tc.Name, Index: i, Instruction: s.Instruction, State: StatePassed, Attempt: res.Attempts, Verifying: true})
	}
	r.log().Info("verification passed", "test", tc.Name)
	return true, nil
}

func (r *Repairer) attemptObserver(test string, index int, s step.Step, verifying bool) AttemptFunc {
	if r.Observer == nil {
		return nil
	}
	return func(state StepState, attempt int, errText string) {
		r.emit(StepEvent{TestName: test, Index: index, Instruction: s.Instruction, State: state, Attempt: attempt, Error: errText, Verifying: verifying})
	}
}

func (r *Repairer) emit(ev StepEvent) {
	if r.Observer != nil {
		r.Observer(ev)
	}
}

func (r *Repairer) closeSession(d browser.Driver) {
	if err := d.Close(); err != nil {
		r.log().Warn("close session", "error", err)
	}
}

func (r *Repairer) executor() *Executor {
	if r.Executor == nil {
		r.Executor = &Executor{}
	}
	return r.Executor
}

func (r *Repairer) parser() step.Parser {
	if r.Parser == nil {
		return step.DefaultParser
	}
	return r.Parser
}

func finalLine(instruction string) string {
	lines := strings.Split(strings.TrimRight(instruction, "\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func (r *Repairer) log() *slog.Logger {
	if r.logger == nil {
		r.logger = logging.New("heal")
	}
	return r.logger
}

package heal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cbrowser/internal/browser"
	"cbrowser/internal/step"
)

// Executor defaults.
const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultWaitTimeout = 10 * time.Second
)

// StepResult is the outcome of executing one step with retries.
type StepResult struct {
	Passed   bool
	Error    string
	Attempts int
}

// Executor runs single steps against a driver, retrying failures.
type Executor struct {
	MaxRetries int
	RetryDelay time.Duration
	// StrictAssert fails assert steps whose result is not Passed. Without it
	// an assert only fails when the driver returns an error.
	StrictAssert bool
	WaitTimeout  time.Duration
	// Sleep pauses between attempts and for timed wait steps.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// AttemptFunc observes the state machine of one step: it is called with
// StateExecuting before each attempt and StateRetrying after a failed attempt
// that will be retried.
type AttemptFunc func(state StepState, attempt int, errText string)

// Execute runs s, retrying up to MaxRetries attempts with a fixed delay and
// stopping at the first success. Driver errors and panics never escape; they
// become the result's Error.
func (e *Executor) Execute(ctx context.Context, d browser.Driver, s step.Step, observe AttemptFunc) StepResult {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	var lastErr string
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if observe != nil {
			observe(StateExecuting, attempt, "")
		}
		err := e.attempt(ctx, d, s)
		if err == nil {
			return StepResult{Passed: true, Attempts: attempt}
		}
		lastErr = err.Error()
		e.logger().Debug("step attempt failed",
			"instruction", s.Instruction, "attempt", attempt, "max", maxRetries, "error", lastErr)
		if attempt == maxRetries {
			return StepResult{Error: lastErr, Attempts: attempt}
		}
		if observe != nil {
			observe(StateRetrying, attempt, lastErr)
		}
		if err := e.sleep(ctx, e.retryDelay()); err != nil {
			return StepResult{Error: lastErr, Attempts: attempt}
		}
	}
	return StepResult{Error: lastErr, Attempts: maxRetries}
}

// attempt maps the step's action onto exactly one driver capability.
func (e *Executor) attempt(ctx context.Context, d browser.Driver, s step.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver panic: %v", r)
		}
	}()

	switch s.Action {
	case step.Navigate:
		return d.Navigate(ctx, s.Target)
	case step.Click:
		return click(ctx, d, orInstruction(s))
	case step.Fill, step.Select:
		return d.Fill(ctx, s.Target, s.Value)
	case step.Assert:
		res, err := d.Assert(ctx, s.Instruction)
		if err != nil {
			return err
		}
		if e.StrictAssert && !res.Passed {
			if res.Message == "" {
				return errors.New("assertion failed: " + s.Instruction)
			}
			return errors.New("assertion failed: " + res.Message)
		}
		return nil
	case step.Wait:
		if s.Value != "" {
			secs, err := strconv.ParseFloat(s.Value, 64)
			if err != nil {
				return fmt.Errorf("invalid wait duration %q", s.Value)
			}
			return e.sleep(ctx, time.Duration(secs*float64(time.Second)))
		}
		if s.Target == "" {
			return e.sleep(ctx, time.Second)
		}
		return d.WaitForText(ctx, s.Target, e.waitTimeout())
	case step.Scroll:
		dir := s.Target
		if dir == "" {
			dir = "down"
		}
		return d.ScrollBy(ctx, dir)
	case step.Screenshot:
		_, err := d.Screenshot(ctx)
		return err
	default:
		return click(ctx, d, orInstruction(s))
	}
}

func click(ctx context.Context, d browser.Driver, target string) error {
	res, err := d.SmartClick(ctx, target)
	if err != nil {
		return err
	}
	if !res.Success {
		if res.Message == "" {
			return fmt.Errorf("failed to click %q", target)
		}
		return errors.New(res.Message)
	}
	return nil
}

func orInstruction(s step.Step) string {
	if s.Target != "" {
		return s.Target
	}
	return s.Instruction
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) retryDelay() time.Duration {
	if e.RetryDelay < 0 {
		return 0
	}
	if e.RetryDelay == 0 {
		return DefaultRetryDelay
	}
	return e.RetryDelay
}

func (e *Executor) waitTimeout() time.Duration {
	if e.WaitTimeout <= 0 {
		return DefaultWaitTimeout
	}
	return e.WaitTimeout
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

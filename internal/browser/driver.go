// Package browser defines the capability set the test engine needs from a
// browser and provides a chromedp-backed implementation of it.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNoElement is returned when a driver call cannot locate its target.
var ErrNoElement = errors.New("no element matched")

// ClickResult reports the outcome of a SmartClick.
type ClickResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AssertResult reports the outcome of an Assert.
type AssertResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Driver is one live browser session. Every method is fallible; the engine
// never assumes a particular browser engine behind it.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	SmartClick(ctx context.Context, target string) (ClickResult, error)
	Fill(ctx context.Context, target, value string) error
	Assert(ctx context.Context, instruction string) (AssertResult, error)
	ScrollBy(ctx context.Context, direction string) error
	Screenshot(ctx context.Context) ([]byte, error)
	WaitForText(ctx context.Context, text string, timeout time.Duration) error
	// Evaluate runs a page-side script and JSON-decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	Close() error
}

// Launcher acquires fresh driver sessions. A failure here is the one error
// the engine does not absorb.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Driver, error)

func (f LauncherFunc) Launch(ctx context.Context) (Driver, error) { return f(ctx) }

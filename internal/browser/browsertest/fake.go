// Package browsertest provides a scripted in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cbrowser/internal/browser"
)

// Call records one driver invocation.
type Call struct {
	Method string
	Arg    string
}

type failure struct {
	remaining int // < 0 means forever
	message   string
}

// Driver is a fake browser session. Targets registered with Fail return the
// configured error until their budget runs out; everything else succeeds.
type Driver struct {
	mu       sync.Mutex
	url      string
	failures map[string]*failure
	eval     map[string]any
	evalErr  error
	calls    []Call
	closed   bool
	panicOn  string
}

// NewDriver returns a fake session positioned at url.
func NewDriver(url string) *Driver {
	return &Driver{
		url:      url,
		failures: make(map[string]*failure),
		eval:     make(map[string]any),
	}
}

// Fail makes calls keyed by key (click/fill/wait target, navigate URL, assert
// instruction) fail times times with message. times < 0 fails forever.
func (d *Driver) Fail(key string, times int, message string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[key] = &failure{remaining: times, message: message}
	return d
}

// PanicOn makes any call keyed by key panic.
func (d *Driver) PanicOn(key string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panicOn = key
	return d
}

// SetEval registers the value Evaluate returns for script.
func (d *Driver) SetEval(script string, result any) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eval[script] = result
	return d
}

// SetEvalError makes every Evaluate call fail with err.
func (d *Driver) SetEvalError(err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evalErr = err
	return d
}

// Calls returns a copy of the recorded invocations.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallCount returns how many times method was invoked with arg.
func (d *Driver) CallCount(method, arg string) int {
	n := 0
	for _, c := range d.Calls() {
		if c.Method == method && c.Arg == arg {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// URL returns the current page URL.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// record logs the call and returns the scripted failure for key, if any.
func (d *Driver) record(method, key string) error {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: method, Arg: key})
	if d.panicOn != "" && d.panicOn == key {
		d.mu.Unlock()
		panic(fmt.Sprintf("browsertest: scripted panic on %s(%s)", method, key))
	}
	defer d.mu.Unlock()
	f, ok := d.failures[key]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return errors.New(f.message)
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	if err := d.record("navigate", url); err != nil {
		return err
	}
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

func (d *Driver) SmartClick(_ context.Context, target string) (browser.ClickResult, error) {
	if err := d.record("click", target); err != nil {
		return browser.ClickResult{Message: err.Error()}, nil
	}
	return browser.ClickResult{Success: true, Message: "clicked " + target}, nil
}

func (d *Driver) Fill(_ context.Context, target, _ string) error {
	return d.record("fill", target)
}

func (d *Driver) Assert(_ context.Context, instruction string) (browser.AssertResult, error) {
	if err := d.record("assert", instruction); err != nil {
		return browser.AssertResult{}, err
	}
	return browser.AssertResult{Passed: true, Message: "ok"}, nil
}

func (d *Driver) ScrollBy(_ context.Context, direction string) error {
	return d.record("scroll", direction)
}

func (d *Driver) Screenshot(_ context.Context) ([]byte, error) {
	if err := d.record("screenshot", ""); err != nil {
		return nil, err
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (d *Driver) WaitForText(_ context.Context, text string, _ time.Duration) error {
	return d.record("wait", text)
}

func (d *Driver) Evaluate(_ context.Context, script string, out any) error {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: "evaluate"})
	res, ok := d.eval[script]
	evalErr := d.evalErr
	d.mu.Unlock()
	if evalErr != nil {
		return evalErr
	}
	if !ok {
		return fmt.Errorf("browsertest: no canned result for script (%d bytes)", len(script))
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Launcher hands out fake sessions. Setup, when set, configures each session
// and receives its zero-based launch index.
type Launcher struct {
	Setup func(index int, d *Driver)
	Err   error

	mu       sync.Mutex
	sessions []*Driver
}

func (l *Launcher) Launch(_ context.Context) (browser.Driver, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	d := NewDriver("about:blank")
	if l.Setup != nil {
		l.Setup(len(l.sessions), d)
	}
	l.sessions = append(l.sessions, d)
	return d, nil
}

// Sessions returns every session launched so far.
func (l *Launcher) Sessions() []*Driver {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Driver, len(l.sessions))
	copy(out, l.sessions)
	return out
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"cbrowser/internal/browser"
	"cbrowser/internal/heal"
	"cbrowser/internal/store"
)

const (
	envDBPath     = "CBROWSER_DB"
	envChromePath = "CBROWSER_CHROME_PATH"
)

// envOr returns the environment variable key, or def when it is unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// browserFlags are shared by heal and serve.
type browserFlags struct {
	headless    bool
	chromePath  string
	callTimeout time.Duration
}

func (b *browserFlags) register(f *pflag.FlagSet) {
	f.BoolVar(&b.headless, "headless", true, "Run Chrome without a window")
	f.StringVar(&b.chromePath, "chrome-path", envOr(envChromePath, ""), "Chrome executable (default: $"+envChromePath+" or auto-detect)")
	f.DurationVar(&b.callTimeout, "call-timeout", browser.DefaultCallTimeout, "Timeout for each individual browser call")
}

// newLauncher builds the session launcher. Tests replace it with a fake.
var newLauncher = func(b browserFlags) browser.Launcher {
	return browser.ChromeLauncher{
		Headless:    b.headless,
		ExecPath:    b.chromePath,
		CallTimeout: b.callTimeout,
	}
}

// repairFlags map onto heal.Options.
type repairFlags struct {
	autoApply    bool
	verify       bool
	maxRetries   int
	retryDelay   time.Duration
	strictAssert bool
	waitTimeout  time.Duration
}

func (r *repairFlags) register(f *pflag.FlagSet) {
	f.BoolVar(&r.autoApply, "auto-apply", false, "Replace each failed step with its top suggestion")
	f.BoolVar(&r.verify, "verify", false, "Re-run repaired tests in a fresh session (requires --auto-apply)")
	f.IntVar(&r.maxRetries, "max-retries", 3, "Attempts per step before it is analyzed")
	f.DurationVar(&r.retryDelay, "retry-delay", 500*time.Millisecond, "Pause between attempts (0 disables)")
	f.BoolVar(&r.strictAssert, "strict-assert", false, "Fail assert steps whose check does not pass, not only driver errors")
	f.DurationVar(&r.waitTimeout, "wait-timeout", 10*time.Second, `Timeout for "wait for <text>" steps`)
}

func (r repairFlags) options() heal.Options {
	delay := r.retryDelay
	if delay == 0 {
		// Executor treats zero as "use the default".
		delay = -1
	}
	return heal.Options{
		AutoApply:    r.autoApply,
		Verify:       r.verify,
		MaxRetries:   r.maxRetries,
		RetryDelay:   delay,
		StrictAssert: r.strictAssert,
		WaitTimeout:  r.waitTimeout,
	}
}

// historyFlags select the run history database.
type historyFlags struct {
	dbPath    string
	noHistory bool
}

func (h *historyFlags) register(f *pflag.FlagSet, withDisable bool) {
	f.StringVar(&h.dbPath, "db", envOr(envDBPath, store.DefaultDBPath), "History DB path (default: $"+envDBPath+" or "+store.DefaultDBPath+")")
	if withDisable {
		f.BoolVar(&h.noHistory, "no-history", false, "Do not record this run")
	}
}

// open returns nil, nil when history is disabled.
func (h historyFlags) open() (store.Store, error) {
	if h.noHistory {
		return nil, nil
	}
	st, err := store.Open(h.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", h.dbPath, err)
	}
	return st, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// reportPath puts the Markdown report next to the JSON artifact.
func reportPath(artifact string) string {
	return strings.TrimSuffix(artifact, filepath.Ext(artifact)) + ".md"
}

// exportFileName turns a test name into a safe file name.
func exportFileName(test string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, strings.TrimSpace(test))
	if name == "" || strings.Trim(name, ".") == "" {
		name = "test"
	}
	return name + ".txt"
}

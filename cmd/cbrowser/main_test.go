package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cbrowser/internal/browser"
	"cbrowser/internal/browser/browsertest"
	"cbrowser/internal/heal"
	"cbrowser/internal/step"
	"cbrowser/internal/store"
	"cbrowser/internal/suite"
)

// useFakeBrowser routes every launch in this test to l.
func useFakeBrowser(t *testing.T, l *browsertest.Launcher) {
	t.Helper()
	orig := newLauncher
	newLauncher = func(browserFlags) browser.Launcher { return l }
	t.Cleanup(func() { newLauncher = orig })
}

// renamedSubmit is the shop after "Submit" became "Submit Order".
func renamedSubmit(_ int, d *browsertest.Driver) {
	d.Fail("Submit", -1, "element not found: Submit").
		SetEval(heal.ElementsScript, []heal.Element{{Kind: "button", Tag: "button", Text: "Submit Order"}}).
		SetEval(heal.ContextScript, map[string]any{"url": "https://shop.test/", "title": "Shop"})
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestHeal_AutoApplyVerifyWritesArtifacts(t *testing.T) {
	l := &browsertest.Launcher{Setup: renamedSubmit}
	useFakeBrowser(t, l)
	dir := t.TempDir()
	result := filepath.Join(dir, "out", "result.json")
	exportDir := filepath.Join(dir, "repaired")
	exportFile := filepath.Join(dir, "shop.repaired.txt")
	db := filepath.Join(dir, "history.db")

	stdout, _, err := execute(t, "heal", filepath.Join("testdata", "shop.yaml"),
		"--auto-apply", "--verify", "--max-retries=1", "--retry-delay=0",
		"-o", result, "--report", "--export-dir", exportDir, "--export", exportFile, "--db", db)
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	for _, want := range []string{"=== Self-Healing Test Report ===", "VERIFICATION PASSED (1/1)", "History: run #1"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if n := len(l.Sessions()); n != 3 {
		t.Errorf("sessions = %d, want 3 (two tests plus one verification)", n)
	}

	data, err := os.ReadFile(result)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var res suite.SuiteResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Name != "shop" || res.TotalTests() != 2 || res.TestsRepaired != 1 || res.RepairSuccessRate != 100 {
		t.Errorf("result = %+v", res)
	}

	md, err := os.ReadFile(filepath.Join(dir, "out", "result.md"))
	if err != nil || !strings.HasPrefix(string(md), "# Self-Healing Test Report") {
		t.Errorf("markdown report = %q, %v", md, err)
	}

	checkout, err := os.ReadFile(filepath.Join(exportDir, "checkout.txt"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "# checkout (repaired: 1/1 failed steps)\ngo to https://shop.test\nclick Submit Order\n"
	if diff := cmp.Diff(want, string(checkout)); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}
	browse, _ := os.ReadFile(filepath.Join(exportDir, "browse.txt"))
	if !strings.Contains(string(browse), suite.NoRepairsMarker) {
		t.Errorf("browse export = %q", browse)
	}

	whole, err := os.ReadFile(exportFile)
	if err != nil {
		t.Fatalf("read suite export: %v", err)
	}
	if diff := cmp.Diff(want+"\n"+string(browse), string(whole)); diff != "" {
		t.Errorf("suite export mismatch (-want +got):\n%s", diff)
	}

	st, err := store.Open(db)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(0)
	if err != nil || len(runs) != 1 || runs[0].Suite != "shop" || runs[0].TestsRepaired != 1 {
		t.Errorf("history runs = %+v, %v", runs, err)
	}
}

func TestHeal_VerboseStreamsStepEvents(t *testing.T) {
	useFakeBrowser(t, &browsertest.Launcher{})
	_, stderr, err := execute(t, "heal", filepath.Join("testdata", "shop.yaml"), "-v", "--no-history", "--retry-delay=0")
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	for _, want := range []string{"[checkout] step 1", "[browse] step 2", "Pending → Executing → Passed"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestHeal_VerboseShowsAnalyzedPath(t *testing.T) {
	useFakeBrowser(t, &browsertest.Launcher{Setup: renamedSubmit})
	_, stderr, err := execute(t, "heal", filepath.Join("testdata", "shop.yaml"), "-v", "--no-history", "--max-retries=2", "--retry-delay=0")
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	want := "Pending → Executing → Retrying → Executing → Failed → Analyzed"
	if !strings.Contains(stderr, want) {
		t.Errorf("stderr missing %q:\n%s", want, stderr)
	}
}

func TestHeal_LaunchFailure(t *testing.T) {
	useFakeBrowser(t, &browsertest.Launcher{Err: errors.New("chrome not found")})
	stdout, _, err := execute(t, "heal", filepath.Join("testdata", "shop.yaml"), "--no-history")
	if err == nil {
		t.Fatal("expected an error when no session can be launched")
	}
	if !strings.Contains(err.Error(), "after 0 of 2 tests") || !strings.Contains(err.Error(), "chrome not found") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(stdout, "Self-Healing Test Report") {
		t.Errorf("partial report not printed:\n%s", stdout)
	}
}

func TestHeal_InputErrors(t *testing.T) {
	useFakeBrowser(t, &browsertest.Launcher{})
	cases := map[string][]string{
		"missing file":      {"heal", "testdata/nope.yaml", "--no-history"},
		"report without -o": {"heal", "testdata/shop.yaml", "--report", "--no-history"},
		"no args":           {"heal"},
		"bad log level":     {"--log-level", "loud", "heal", "testdata/shop.yaml", "--no-history"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := execute(t, args...); err == nil {
				t.Errorf("expected error for %v", args)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	stdout, _, err := execute(t, "classify", "element", "not", "found:", "#buy")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if stdout != "Selector Not Found (selector_not_found)\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestParse(t *testing.T) {
	stdout, _, err := execute(t, "parse", `type "bob" into "Username"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, stdout)
	}
	want := map[string]string{"action": "fill", "target": "Username", "value": "bob", "instruction": `type "bob" into "Username"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed step mismatch (-want +got):\n%s", diff)
	}
}

func TestSchema(t *testing.T) {
	stdout, _, err := execute(t, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if _, ok := doc["properties"]; !ok {
		t.Errorf("schema has no properties: %s", stdout)
	}
}

func TestHistory(t *testing.T) {
	useFakeBrowser(t, &browsertest.Launcher{Setup: renamedSubmit})
	db := filepath.Join(t.TempDir(), "history.db")

	stdout, _, err := execute(t, "history", "--db", db)
	if err != nil || !strings.Contains(stdout, "No runs recorded.") {
		t.Fatalf("empty history = %q, %v", stdout, err)
	}

	if _, _, err := execute(t, "heal", "testdata/shop.yaml", "--max-retries=1", "--retry-delay=0", "--db", db); err != nil {
		t.Fatalf("heal: %v", err)
	}

	stdout, _, err = execute(t, "history", "--db", db)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"shop", "Failures by kind", "Selector Not Found"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("history missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, "history", "--db", db, "--run", "1")
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	for _, want := range []string{"Run #1", "Click", `click "Submit"`, "click Submit Order", "70%"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("run detail missing %q:\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "history", "--db", db, "--run", "99"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown run error = %v", err)
	}
}

func TestExportFileName(t *testing.T) {
	cases := map[string]string{
		"checkout":        "checkout.txt",
		"shop.yaml#2":     "shop.yaml_2.txt",
		"Log in / out":    "Log_in___out.txt",
		"  ":              "test.txt",
		"..":              "test.txt",
		"naïve-café_flow": "na_ve-caf__flow.txt",
	}
	for in, want := range cases {
		if got := exportFileName(in); got != want {
			t.Errorf("exportFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExportTests_NamesNeverCollide(t *testing.T) {
	dir := t.TempDir()
	tr := func(name, first string) *heal.TestRepairResult {
		return &heal.TestRepairResult{OriginalTest: step.TestCase{Name: name, Steps: []step.Step{step.Parse(first)}}}
	}
	res := &suite.SuiteResult{TestResults: []*heal.TestRepairResult{
		tr("x", "go to https://a.test"),
		tr("x", "go to https://b.test"),
		tr("x-2", "go to https://c.test"),
	}}
	if err := exportTests(dir, res); err != nil {
		t.Fatalf("exportTests: %v", err)
	}
	want := map[string]string{
		"x.txt":     "https://a.test",
		"x-2.txt":   "https://b.test",
		"x-2-2.txt": "https://c.test",
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != len(want) {
		t.Fatalf("export dir has %d files, want %d (%v)", len(entries), len(want), err)
	}
	for name, url := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if !strings.Contains(string(data), url) {
			t.Errorf("%s = %q, want it to contain %s", name, data, url)
		}
	}
}

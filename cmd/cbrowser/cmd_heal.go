package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cbrowser/internal/display"
	"cbrowser/internal/heal"
	"cbrowser/internal/logging"
	"cbrowser/internal/store"
	"cbrowser/internal/suite"
	"cbrowser/internal/testfile"
)

type healFlags struct {
	browser   browserFlags
	repair    repairFlags
	history   historyFlags
	output    string
	report    bool
	export    string
	exportDir string
	verbose   bool
}

func newHealCmd() *cobra.Command {
	var f healFlags
	cmd := &cobra.Command{
		Use:   "heal <suite-file>...",
		Short: "Run test suites and diagnose failing steps",
		Long: `Run every test in the given suite files (YAML or JSON), one fresh browser
session per test. Steps that keep failing are classified and get ranked
repair suggestions.

With --auto-apply the top suggestion replaces each failed step; add --verify
to re-run the repaired test in a fresh session.

Examples:
  cbrowser heal checkout.yaml
  cbrowser heal tests/*.yaml --auto-apply --verify -o out/result.json --report
  cbrowser heal login.json --export-dir repaired/
  cbrowser heal shop.yaml --auto-apply --export shop.repaired.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeal(cmd, args, f)
		},
	}
	fs := cmd.Flags()
	f.browser.register(fs)
	f.repair.register(fs)
	f.history.register(fs, true)
	fs.StringVarP(&f.output, "output", "o", "", "Write the suite result as JSON to this path")
	fs.BoolVar(&f.report, "report", false, "Write a Markdown report (.md) alongside the JSON artifact")
	fs.StringVar(&f.export, "export", "", "Write every repaired test into this single text file")
	fs.StringVar(&f.exportDir, "export-dir", "", "Write one repaired test file per test into this directory")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Print every step state change")
	return cmd
}

func runHeal(cmd *cobra.Command, args []string, f healFlags) error {
	if f.report && f.output == "" {
		return errors.New("--report writes next to the JSON artifact: set -o as well")
	}
	logger := logging.New("cli")
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	suites, err := testfile.LoadFiles(ctx, args)
	if err != nil {
		return err
	}
	tests := testfile.Tests(suites)

	r := heal.NewRepairer(newLauncher(f.browser), f.repair.options())
	if f.verbose {
		r.Observer = stepPrinter(errOut)
	}

	res, runErr := suite.Run(ctx, r, tests)
	res.Name = testfile.SuiteName(suites)

	fmt.Fprint(out, suite.FormatReport(res))

	if f.output != "" {
		if err := writeJSON(f.output, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nResult: %s\n", f.output)
		if f.report {
			md := reportPath(f.output)
			if err := os.WriteFile(md, []byte(suite.FormatReportMarkdown(res)), 0644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(out, "Report: %s\n", md)
		}
	}

	if f.export != "" {
		if err := os.WriteFile(f.export, []byte(suite.ExportRepaired(res)), 0644); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(out, "Repaired suite: %s\n", f.export)
	}

	if f.exportDir != "" {
		if err := exportTests(f.exportDir, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "Repaired tests: %s\n", f.exportDir)
	}

	st, err := f.history.open()
	if err != nil {
		logger.Warn("run not recorded", "error", err)
	} else if st != nil {
		defer st.Close()
		id, err := store.RecordSuite(st, res)
		if err != nil {
			logger.Warn("run not recorded", "error", err)
		} else {
			fmt.Fprintf(out, "History: run #%d in %s\n", id, f.history.dbPath)
		}
	}

	if runErr != nil {
		return fmt.Errorf("heal aborted after %d of %d tests: %w", res.TotalTests(), len(tests), runErr)
	}
	return nil
}

// stepPrinter prints each step event and, once a step settles, the path of
// states it went through.
func stepPrinter(w io.Writer) func(heal.StepEvent) {
	type stepKey struct {
		test      string
		index     int
		verifying bool
	}
	paths := make(map[stepKey][]string)
	return func(ev heal.StepEvent) {
		k := stepKey{ev.TestName, ev.Index, ev.Verifying}
		paths[k] = append(paths[k], string(ev.State))
		phase := ""
		if ev.Verifying {
			phase = " (verify)"
		}
		fmt.Fprintf(w, "[%s] step %d%s %-8s %s\n",
			ev.TestName, ev.Index+1, phase, display.StepState(string(ev.State)), ev.Instruction)

		settled := ev.State == heal.StatePassed || ev.State == heal.StateAnalyzed ||
			(ev.Verifying && ev.State == heal.StateExhaustedRetries)
		if settled {
			fmt.Fprintf(w, "    %s\n", display.StatePath(paths[k]))
			delete(paths, k)
		}
	}
}

// exportTests writes one file per test. Names are deduplicated on the final
// file name, so "x", "x" and "x-2" never overwrite each other.
func exportTests(dir string, res *suite.SuiteResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	used := make(map[string]bool)
	for _, tr := range res.TestResults {
		base := strings.TrimSuffix(exportFileName(tr.OriginalTest.Name), ".txt")
		name := base + ".txt"
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d.txt", base, n)
		}
		used[name] = true
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(suite.ExportTest(tr)), 0644); err != nil {
			return fmt.Errorf("export %s: %w", tr.OriginalTest.Name, err)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"cbrowser/internal/display"
	"cbrowser/internal/format"
	"cbrowser/internal/step"
	"cbrowser/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		hf    historyFlags
		limit int
		runID int64
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded heal runs",
		Example: `  cbrowser history --limit 5
  cbrowser history --run 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := hf.open()
			if err != nil {
				return err
			}
			defer st.Close()
			out := cmd.OutOrStdout()
			if runID > 0 {
				return printRun(out, st, runID)
			}
			return printRuns(out, st, limit)
		},
	}
	hf.register(cmd.Flags(), false)
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list (0 = all)")
	cmd.Flags().Int64Var(&runID, "run", 0, "Show the repairs of one run")
	return cmd
}

func printRuns(w io.Writer, st store.Store, limit int) error {
	runs, err := st.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tbl := format.NewTable(format.ASCII)
	tbl.Header("Run", "Suite", "Started", "Duration", "Tests", "Failures", "Repaired", "Success")
	tbl.Columns(
		format.ColumnConfig{Number: 1, Align: format.AlignRight},
		format.ColumnConfig{Number: 2, MaxWidth: 40},
	)
	for _, r := range runs {
		tbl.Row(r.ID, r.Suite, r.StartedAt.Local().Format("2006-01-02 15:04"), format.FmtDuration(r.Duration),
			r.Tests, r.TestsWithFailures, r.TestsRepaired, format.Percent(r.SuccessRate))
	}
	fmt.Fprintln(w, tbl.String())

	counts, err := st.FailureKindCounts()
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	kt := format.NewTable(format.ASCII)
	kt.Title("Failures by kind (all runs)")
	kt.Header("Kind", "Count")
	for _, k := range kinds {
		kt.Row(display.FailureKind(k), counts[k])
	}
	fmt.Fprintln(w, kt.String())
	return nil
}

func printRun(w io.Writer, st store.Store, id int64) error {
	run, err := st.GetRun(id)
	if err != nil {
		return err
	}
	repairs, err := st.ListRepairs(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run #%d  %s  %s\n", run.ID, run.Suite, run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Tests: %d  with failures: %d  repaired: %d  success: %s\n",
		run.Tests, run.TestsWithFailures, run.TestsRepaired, format.Percent(run.SuccessRate))
	if len(repairs) == 0 {
		fmt.Fprintln(w, "No failures.")
		return nil
	}
	tbl := format.NewTable(format.ASCII)
	tbl.Header("Test", "Step", "Action", "Instruction", "Kind", "Suggestion", "Conf", "Applied", "Verified")
	tbl.Columns(
		format.ColumnConfig{Number: 4, MaxWidth: 40},
		format.ColumnConfig{Number: 6, MaxWidth: 40},
	)
	for _, r := range repairs {
		conf := "-"
		if r.SuggestionType != "" {
			conf = format.Confidence(r.Confidence)
		}
		action := display.Action(string(step.Parse(r.Instruction).Action))
		tbl.Row(r.Test, r.StepIndex+1, action, r.Instruction, display.FailureKind(r.FailureKind),
			format.OneLine(r.Suggested), conf, format.BoolMark(r.Applied), format.BoolMark(r.Verified))
	}
	fmt.Fprintln(w, tbl.String())
	return nil
}

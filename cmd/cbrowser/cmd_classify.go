package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cbrowser/internal/display"
	"cbrowser/internal/heal"
	"cbrowser/internal/step"
)

func newClassifyCmd() *cobra.Command {
	var instruction string
	cmd := &cobra.Command{
		Use:   "classify <error text>",
		Short: "Classify a step error message",
		Example: `  cbrowser classify "element not found: #buy"
  cbrowser classify --instruction 'click "Buy"' timed out after 10s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := heal.Classify(strings.Join(args, " "), step.Parse(instruction))
			fmt.Fprintln(cmd.OutOrStdout(), display.FailureKindWithCode(string(kind)))
			return nil
		},
	}
	cmd.Flags().StringVar(&instruction, "instruction", "", "Instruction of the failed step")
	return cmd
}

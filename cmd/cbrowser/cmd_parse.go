package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cbrowser/internal/step"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "parse <instruction>",
		Short:   "Show how an instruction is parsed into a step",
		Example: `  cbrowser parse 'type "bob" into "Username"'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := step.Parse(strings.Join(args, " "))
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// cbrowser runs natural-language browser tests, diagnoses failing steps and
// proposes (or applies and verifies) repaired instructions.
//
// Usage:
//
//	cbrowser heal suite.yaml [--auto-apply --verify] [-o result.json --report]
//	cbrowser classify "element not found: #buy"
//	cbrowser parse 'type "bob" into "Username"'
//	cbrowser history [--run ID]
//	cbrowser schema
//	cbrowser serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cbrowser/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "cbrowser",
		Short: "Self-healing natural-language browser tests",
		Long: "cbrowser executes plain-English test steps in Chrome, classifies the steps\n" +
			"that fail and suggests repaired instructions for them.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			if logFormat != "text" && logFormat != "json" {
				return fmt.Errorf("unknown log format %q (text, json)", logFormat)
			}
			logging.Init(level, logFormat, cmd.ErrOrStderr())
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(newHealCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newServeCmd())
	root.Version = version
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"cbrowser/internal/logging"
	mcpserver "cbrowser/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		bf browserFlags
		rf repairFlags
		hf historyFlags
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing classify_failure,
suggest_repairs, heal_test and list_runs.

The server monitors for parent process death and shuts down when the
client goes away, closing any browser it started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := hf.open()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}
			srv := mcpserver.NewServer(newLauncher(bf), st, rf.options())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			mcpserver.WatchParent(ctx, cancel)

			logging.New("mcp").Info("starting cbrowser MCP server over stdio (parent watchdog active)")
			return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
		},
	}
	fs := cmd.Flags()
	bf.register(fs)
	rf.register(fs)
	hf.register(fs, true)
	return cmd
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/dispenser/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the fleet as MCP tools (insert_payment, cancel_payment, activate,
refill, machine_status, list_machines, get_graph) so AI agents can operate machines.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			port, _ := cmd.Flags().GetInt("port")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, err := a.openFleet(ctx)
			if err != nil {
				return err
			}
			if err := a.seedFleet(ctx, mgr); err != nil {
				return err
			}
			srv := mcp.NewServer(mgr, mcp.WithLogger(a.logger))

			switch transport {
			case "stdio":
				// Logs go to stderr so they never corrupt JSON-RPC on stdout.
				a.logger.Info("Starting Dispenser MCP Server (Stdio)...")
				return srv.ServeStdio()
			case "sse":
				a.logger.Info("Starting Dispenser MCP Server (SSE)", "port", port)
				if err := srv.ServeSSE(ctx, port); err != nil {
					return err
				}
				a.logger.Info("MCP Server stopped gracefully")
				return nil
			}
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		},
	}
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
	return mcpCmd
}

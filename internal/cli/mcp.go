package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	wardmcp "github.com/wardkeep/wardkeep/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Activates the boundary and runs wardkeep as an MCP (Model Context\n" +
		"Protocol) server over stdio. Exposes the tools: boundary_check,\n" +
		"guardian_status, verify_covenant, violation_history, export_certificate.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	act, err := activate(ctx, nil, true)
	if err != nil {
		return err
	}

	srv := wardmcp.New(wardmcp.Config{
		Engine:   act.engine,
		Guardian: act.guardian,
		Ceremony: act.ceremony,
		Version:  version,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "wardkeep MCP server running on stdio")

	err = srv.Run(ctx)

	blocked := act.shutdown()
	if blocked > 0 {
		fmt.Fprintf(os.Stderr, "\nBlocked %d operation(s).\n", blocked)
	}
	return err
}

// Package mcp exposes an activated wardkeep system over the Model Context
// Protocol so agent frameworks can consult the boundary before acting.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wardkeep/wardkeep/internal/boundary"
	"github.com/wardkeep/wardkeep/internal/ceremony"
	"github.com/wardkeep/wardkeep/internal/guardian"
)

// Config holds the live components the server exposes.
type Config struct {
	Engine   *boundary.Engine
	Guardian *guardian.Guardian
	Ceremony *ceremony.Orchestrator
	Version  string
}

// Server wraps the MCP SDK server around an activated wardkeep system.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *boundary.Engine
	guardian  *guardian.Guardian
	ceremony  *ceremony.Orchestrator
}

// New creates an MCP server with the wardkeep tools registered.
func New(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	s := &Server{
		engine:   cfg.Engine,
		guardian: cfg.Guardian,
		ceremony: cfg.Ceremony,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "wardkeep",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all wardkeep tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "boundary_check",
		Description: "Check whether an operation from a source domain into a destination domain crosses the boundary. Denied operations are recorded as violations.",
	}, s.handleBoundaryCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "guardian_status",
		Description: "Report the integrity guardian: lifecycle state, checks run, verdict, violations blocked.",
	}, s.handleGuardianStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "verify_covenant",
		Description: "Verify every covenant protection: engine sealed, guardian active with an intact chain, all violations blocked.",
	}, s.handleVerifyCovenant)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "violation_history",
		Description: "List recorded boundary violations, most recent first.",
	}, s.handleViolationHistory)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "export_certificate",
		Description: "Export the covenant certificate of a sealed ceremony.",
	}, s.handleExportCertificate)
}

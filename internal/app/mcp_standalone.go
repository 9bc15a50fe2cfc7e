package app

import (
	"context"
	"fmt"
	"os"

	"smartclass/internal/bootstrap"
	"smartclass/internal/config"
	"smartclass/internal/logging"
	mcpserver "smartclass/internal/mcp"
)

// ServeMCP runs the builder as a standalone MCP server on stdin/stdout with
// no GUI. No one is around to approve destructive tools, so they run directly.
func ServeMCP(ctx context.Context, cfg *config.Config) error {
	// stdout carries the protocol
	logging.SetOutput(os.Stderr)

	svcs, err := bootstrap.New(ctx, cfg, nil, nil)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer svcs.Close(context.Background())

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Name:        cfg.MCPName,
		Builder:     svcs.Builder,
		AutoApprove: true,
	})
	return srv.ServeStdio()
}

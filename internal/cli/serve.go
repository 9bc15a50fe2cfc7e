package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smartclass/internal/api"
	builderApp "smartclass/internal/app"
	mcpserver "smartclass/internal/mcp"
	"smartclass/internal/service"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr        string
		debug       bool
		quiet       bool
		autoApprove bool
		editor      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with live events, autosave and the import inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			hub := api.NewHub()
			svcs, err := app.services(ctx, hub)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(context.Background())

			if addr == "" {
				addr = app.cfg.HTTPAddress
			}
			var ed *service.EditorService
			if editor {
				if ed, err = svcs.Editor(hub, os.Getenv("EDITOR")); err != nil {
					return writeErr(cmd, err)
				}
			}
			mcp := mcpserver.New(ctx, mcpserver.Deps{
				Name:        app.cfg.MCPName,
				Emitter:     hub,
				Builder:     svcs.Builder,
				AutoApprove: autoApprove,
			})
			srv := api.NewServer(&api.Options{
				Address:        addr,
				Debug:          debug,
				DisableReqLogs: quiet,
				Token:          svcs.APIToken(),
				Builder:        svcs.Builder,
				Assets:         svcs.Assets,
				Editor:         ed,
				Hub:            hub,
				MCP:            mcp.HTTPHandler(),
				Approvals:      mcp,
				CanvasWidth:    app.cfg.ViewportWidth,
				CanvasHeight:   app.cfg.ViewportHeight,
			})

			autosave := svcs.Autosaver()
			if err := autosave.Start(ctx); err != nil {
				return writeErr(cmd, err)
			}
			defer autosave.Stop()
			inbox := svcs.Inbox(hub)
			if err := inbox.Start(ctx); err != nil {
				return writeErr(cmd, err)
			}
			defer inbox.Stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Stop(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: http.address from config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Debug mode: detailed errors, no panic recovery")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Disable request logs")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Run destructive MCP tools without waiting for /v1/approvals")
	cmd.Flags().BoolVar(&editor, "editor", false, "Enable editing text elements in $EDITOR")
	return cmd
}

func newMCPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return builderApp.ServeMCP(ctx, app.cfg)
		},
	}
}

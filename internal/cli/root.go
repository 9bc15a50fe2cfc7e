package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"smartclass/internal/bootstrap"
	"smartclass/internal/config"
	"smartclass/internal/logging"
	"smartclass/internal/service"
)

type App struct {
	ConfigFile string
	PrettyJSON bool

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "builderctl",
		Short:        "Headless tools for SmartClass builder projects",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve the HTTP API, autosave and the import inbox
  builderctl serve

  # Run the MCP server for an agent on stdio
  builderctl mcp

  # Inspect a project
  builderctl layers <project-id>
  builderctl thumbnail <project-id> -o page.png
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigFile)
		if err != nil {
			return err
		}
		app.cfg = cfg
		// stdout is for command output
		logging.SetOutput(cmd.ErrOrStderr())
		logging.SetLevel(logging.LevelFor(cfg.Env))
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigFile, "config", "", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newMCPCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newLayersCmd(app))
	cmd.AddCommand(newThumbnailCmd(app))
	cmd.AddCommand(newDiagnoseCmd(app))

	return cmd
}

// services opens storage for one command. Callers must Close it.
func (app *App) services(ctx context.Context, emitter service.EventEmitter) (*bootstrap.Services, error) {
	if app.cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return bootstrap.New(ctx, app.cfg, nil, emitter)
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"smartclass/internal/domain"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List and manage projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := app.services(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(cmd.Context())

			list, err := svcs.Builder.ListProjects(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if list == nil {
				list = []domain.Project{}
			}
			return writeOut(cmd, app, map[string]any{"data": list})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := app.services(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(cmd.Context())

			p, err := svcs.Builder.CreateProject(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <project-id> <name>",
		Short: "Rename a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := app.services(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(cmd.Context())

			if err := svcs.Builder.RenameProject(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"id": args[0]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := app.services(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(cmd.Context())

			if err := svcs.Builder.DeleteProject(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"id": args[0]}})
		},
	})

	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a saved project or element list as a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if name == "" {
				if args[0] == "-" {
					return writeErr(cmd, errors.New("--name is required when reading stdin"))
				}
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			svcs, err := app.services(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(cmd.Context())

			p, err := svcs.Builder.ImportProject(cmd.Context(), name, raw)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (default: file name)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write a project document (version 3) to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := app.services(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer svcs.Close(cmd.Context())

			data, err := svcs.Builder.Export(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return writeErr(cmd, fmt.Errorf("write %s: %w", out, err))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"id": args[0], "path": out}})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"smartclass/internal/connection"
	"smartclass/internal/domain"
	"smartclass/internal/pagination"
	"smartclass/internal/render"
)

// loadPage reads a project document and picks a page by id or 1-based
// number. An empty selector means the current page.
func loadPage(cmd *cobra.Command, app *App, projectID, selector string) (*domain.Project, *domain.ModulePage, error) {
	svcs, err := app.services(cmd.Context(), nil)
	if err != nil {
		return nil, nil, err
	}
	defer svcs.Close(cmd.Context())

	p, err := svcs.Builder.GetProject(cmd.Context(), projectID)
	if err != nil {
		return nil, nil, err
	}
	data, err := svcs.Builder.Export(cmd.Context(), projectID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := pagination.ParseContent(data)
	if err != nil {
		return nil, nil, err
	}
	if selector == "" {
		selector = doc.CurrentPageID
	}
	if pg, _ := doc.Page(selector); pg != nil {
		return p, pg, nil
	}
	if n, err := strconv.Atoi(selector); err == nil && n >= 1 && n <= len(doc.Pages) {
		return p, doc.Pages[n-1], nil
	}
	return nil, nil, fmt.Errorf("%w: %q", pagination.ErrPageNotFound, selector)
}

func newLayersCmd(app *App) *cobra.Command {
	var page string
	cmd := &cobra.Command{
		Use:   "layers <project-id>",
		Short: "Print the element tree of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, pg, err := loadPage(cmd, app, args[0], page)
			if err != nil {
				return writeErr(cmd, err)
			}
			title := p.Name
			if pg.Title != "" {
				title += " / " + pg.Title
			}
			fmt.Fprint(cmd.OutOrStdout(), render.LayerTree(title, render.ExpandedRows(pg.Elements)))
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "Page id or number (default: current page)")
	return cmd
}

func newThumbnailCmd(app *App) *cobra.Command {
	var (
		page     string
		out      string
		width    int
		noLabels bool
	)
	cmd := &cobra.Command{
		Use:   "thumbnail <project-id>",
		Short: "Render a page preview as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pg, err := loadPage(cmd, app, args[0], page)
			if err != nil {
				return writeErr(cmd, err)
			}
			data, err := render.ThumbnailPNG(pg.Elements, render.ThumbnailOptions{
				Width:        width,
				CanvasWidth:  app.cfg.ViewportWidth,
				CanvasHeight: app.cfg.ViewportHeight,
				Labels:       !noLabels,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if out == "" {
				out = args[0] + ".png"
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return writeErr(cmd, fmt.Errorf("write %s: %w", out, err))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out, "bytes": len(data)}})
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "Page id or number (default: current page)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: <project-id>.png)")
	cmd.Flags().IntVar(&width, "width", 640, "Image width in pixels")
	cmd.Flags().BoolVar(&noLabels, "no-labels", false, "Do not draw element names")
	return cmd
}

// pageDiagnostics is the diagnose output for one page.
type pageDiagnostics struct {
	PageID      string                  `json:"pageId"`
	Title       string                  `json:"title"`
	Diagnostics []connection.Diagnostic `json:"diagnostics"`
}

func newDiagnoseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose <project-id>",
		Short: "Report connection groups that cannot be played, on every page",
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
			doc, err := pagination.ParseContent(data)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := []pageDiagnostics{}
			for _, pg := range doc.Pages {
				if d := connection.Diagnose(pg.Elements); len(d) > 0 {
					out = append(out, pageDiagnostics{PageID: pg.ID, Title: pg.Title, Diagnostics: d})
				}
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

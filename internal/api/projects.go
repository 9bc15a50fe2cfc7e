package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"smartclass/internal/domain"
	"smartclass/internal/service"
)

type projectApi struct {
	svc *service.BuilderService
}

func registerProjectAPI(g *echo.Group, opts *Options) {
	api := projectApi{svc: opts.Builder}

	pg := g.Group("/projects")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.POST("/import", api.importDocument)
	pg.GET("/open", api.openSessions)

	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.rename)
	dg.DELETE("", api.destroy)
	dg.POST("/open", api.open)
	dg.POST("/save", api.save)
	dg.POST("/close", api.close)
	dg.GET("/export", api.export)
	dg.GET("/revisions", api.revisions)
	dg.POST("/revisions/:rev/restore", api.restore)

	// live session endpoints
	sg := dg.Group("", sessionMiddleware(opts.Builder))
	registerCanvasAPI(sg, opts)
	registerDragAPI(sg)
	registerPageAPI(sg)
	registerConnectionAPI(sg)
	registerEditorAPI(sg, opts.Editor)
}

// Request payloads

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,notblank,max=200"`
}

type SaveRequest struct {
	Label string `json:"label" validate:"max=200"`
}

// Handlers

func (api *projectApi) query(ctx echo.Context) error {
	list, err := api.svc.ListProjects(ctx.Request().Context())
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}
	if list == nil {
		list = []domain.Project{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *projectApi) create(ctx echo.Context) error {
	var data CreateProjectRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreateProject(ctx.Request().Context(), data.Name)
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return ctx.JSON(http.StatusCreated, p)
}

// importDocument accepts any stored content version as the raw body. The
// project is named after ?name=.
func (api *projectApi) importDocument(ctx echo.Context) error {
	name := ctx.QueryParam("name")
	if name == "" {
		name = "Imported project"
	}
	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return fmt.Errorf("reading import body: %w", err)
	}
	p, err := api.svc.ImportProject(ctx.Request().Context(), name, raw)
	if err != nil {
		return fmt.Errorf("importing project: %w", err)
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) openSessions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.OpenSessions())
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetProject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) rename(ctx echo.Context) error {
	var data CreateProjectRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := api.svc.RenameProject(ctx.Request().Context(), ctx.Param("id"), data.Name); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteProject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) open(ctx echo.Context) error {
	sess, err := api.svc.Open(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessionView(sess))
}

func (api *projectApi) save(ctx echo.Context) error {
	var data SaveRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	saved, err := api.svc.Save(ctx.Request().Context(), ctx.Param("id"), data.Label)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, saved)
}

// close saves first unless ?discard=true.
func (api *projectApi) close(ctx echo.Context) error {
	save := ctx.QueryParam("discard") != "true"
	if err := api.svc.Close(ctx.Request().Context(), ctx.Param("id"), save); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) export(ctx echo.Context) error {
	data, err := api.svc.Export(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", ctx.Param("id")+".json"))
	return ctx.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (api *projectApi) revisions(ctx echo.Context) error {
	revs, err := api.svc.Revisions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	out := make([]revisionView, 0, len(revs))
	for _, r := range revs {
		out = append(out, revisionView{ID: r.ID, Label: r.Label, CreatedAt: r.CreatedAt})
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *projectApi) restore(ctx echo.Context) error {
	if err := api.svc.RestoreRevision(ctx.Request().Context(), ctx.Param("id"), ctx.Param("rev")); err != nil {
		return err
	}
	sess, err := api.svc.Session(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessionView(sess))
}

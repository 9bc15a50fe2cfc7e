package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"smartclass/internal/builder"
	"smartclass/internal/service"
)

// ── Drag ───────────────────────────────────────────────────

type PointerDownRequest struct {
	ID    string  `json:"id" validate:"required"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Multi bool    `json:"multi"`
}

type PointerRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DropTargetRequest struct {
	ID string `json:"id"`
}

type dragView struct {
	State   builder.DragState `json:"state"`
	Changed bool              `json:"changed"`
}

func registerDragAPI(g *echo.Group) {
	dg := g.Group("/drag")
	dg.POST("/down", dragDown)
	dg.POST("/move", dragMove)
	dg.PUT("/target", dragTarget)
	dg.POST("/up", dragUp)
	dg.POST("/cancel", dragCancel)
	dg.GET("/preview", dragPreview)
}

func dragDown(ctx echo.Context) error {
	var data PointerDownRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	if _, ok := sess.Store.Element(data.ID); !ok {
		return builder.ErrElementNotFound
	}
	armed := sess.Drag.PointerDown(data.ID, builder.Point{X: data.X, Y: data.Y}, data.Multi)
	return ctx.JSON(http.StatusOK, dragView{State: sess.Drag.State(), Changed: armed})
}

func dragMove(ctx echo.Context) error {
	var data PointerRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	d := getSession(ctx).Drag
	changed := d.PointerMove(builder.Point{X: data.X, Y: data.Y})
	return ctx.JSON(http.StatusOK, dragView{State: d.State(), Changed: changed})
}

func dragTarget(ctx echo.Context) error {
	var data DropTargetRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	d := getSession(ctx).Drag
	return ctx.JSON(http.StatusOK, dragView{State: d.State(), Changed: d.SetDropTarget(data.ID)})
}

func dragUp(ctx echo.Context) error {
	d := getSession(ctx).Drag
	moved, err := d.PointerUp()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dragView{State: d.State(), Changed: moved})
}

func dragCancel(ctx echo.Context) error {
	d := getSession(ctx).Drag
	return ctx.JSON(http.StatusOK, dragView{State: d.State(), Changed: d.Cancel()})
}

func dragPreview(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getSession(ctx).Drag.Preview())
}

// ── Pages ──────────────────────────────────────────────────

type PageRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type MovePageRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

func registerPageAPI(g *echo.Group) {
	pg := g.Group("/pages")
	pg.GET("", listPages)
	pg.POST("", createPage)
	pg.POST("/:page/switch", switchPage)
	pg.PUT("/:page", renamePage)
	pg.PUT("/:page/order", movePage)
	pg.DELETE("/:page", deletePage)
}

func listPages(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getSession(ctx).Pager.Pages())
}

func createPage(ctx echo.Context) error {
	var data PageRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, getSession(ctx).CreatePage(data.Title))
}

func switchPage(ctx echo.Context) error {
	sess := getSession(ctx)
	if err := sess.SwitchPage(ctx.Param("page")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessionView(sess))
}

func renamePage(ctx echo.Context) error {
	var data PageRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	if err := sess.RenamePage(ctx.Param("page"), data.Title); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Pager.Pages())
}

func movePage(ctx echo.Context) error {
	var data MovePageRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	if err := sess.MovePage(ctx.Param("page"), data.Index); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Pager.Pages())
}

func deletePage(ctx echo.Context) error {
	sess := getSession(ctx)
	if err := sess.DeletePage(ctx.Param("page")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Pager.Pages())
}

// ── Connections ────────────────────────────────────────────

type AttemptRequest struct {
	SourceID string `json:"sourceId" validate:"required"`
	// TargetID defaults to the paired node.
	TargetID string `json:"targetId"`
}

func registerConnectionAPI(g *echo.Group) {
	cg := g.Group("/connections")
	cg.POST("/attempt", attemptConnection)
	cg.POST("/:el/reset", resetConnection)
	cg.GET("/lines", connectionLines)
	cg.GET("/diagnostics", connectionDiagnostics)
	cg.GET("/:el", connectionStatus)
}

func attemptConnection(ctx echo.Context) error {
	var data AttemptRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ev, err := getSession(ctx).Connections.Attempt(data.SourceID, data.TargetID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ev)
}

func resetConnection(ctx echo.Context) error {
	if err := getSession(ctx).Connections.Reset(ctx.Param("el")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func connectionLines(ctx echo.Context) error {
	lines := getSession(ctx).Connections.Lines()
	if lines == nil {
		return ctx.JSON(http.StatusOK, []any{})
	}
	return ctx.JSON(http.StatusOK, lines)
}

func connectionDiagnostics(ctx echo.Context) error {
	diags := getSession(ctx).Diagnostics()
	if diags == nil {
		return ctx.JSON(http.StatusOK, []any{})
	}
	return ctx.JSON(http.StatusOK, diags)
}

func connectionStatus(ctx echo.Context) error {
	c := getSession(ctx).Connections
	id := ctx.Param("el")
	return ctx.JSON(http.StatusOK, echo.Map{
		"connected": c.IsConnected(id),
		"visual":    c.Visual(id),
	})
}

// ── External editor ────────────────────────────────────────

func registerEditorAPI(g *echo.Group, editor *service.EditorService) {
	api := editorApi{svc: editor}
	g.POST("/elements/:el/edit", api.open)
	g.POST("/editor/finish", api.finish)
	g.POST("/editor/input", api.input)
}

type editorApi struct {
	svc *service.EditorService
}

type EditorInputRequest struct {
	Data string `json:"data" validate:"required"`
}

func (api editorApi) open(ctx echo.Context) error {
	if api.svc == nil {
		return errEditorDisabled
	}
	path, err := api.svc.Open(ctx.Request().Context(), ctx.Param("id"), ctx.Param("el"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"path": path})
}

func (api editorApi) finish(ctx echo.Context) error {
	if api.svc == nil {
		return errEditorDisabled
	}
	api.svc.Finish()
	return ctx.NoContent(http.StatusNoContent)
}

func (api editorApi) input(ctx echo.Context) error {
	if api.svc == nil {
		return errEditorDisabled
	}
	var data EditorInputRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := api.svc.Write(data.Data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
	"smartclass/internal/pagination"
	"smartclass/internal/render"
	"smartclass/internal/service"
)

const sessionCtxKey = "session"

// sessionMiddleware resolves the open session of :id.
func sessionMiddleware(svc *service.BuilderService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := svc.Session(ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(sessionCtxKey, sess)
			return next(ctx)
		}
	}
}

func getSession(ctx echo.Context) *service.Session {
	return ctx.Get(sessionCtxKey).(*service.Session)
}

// Views

type SessionView struct {
	ProjectID string                `json:"projectId"`
	Name      string                `json:"name"`
	Dirty     bool                  `json:"dirty"`
	Pages     []pagination.PageInfo `json:"pages"`
	State     builder.State         `json:"state"`
}

func sessionView(sess *service.Session) SessionView {
	return SessionView{
		ProjectID: sess.ProjectID,
		Name:      sess.Name,
		Dirty:     sess.Dirty(),
		Pages:     sess.Pager.Pages(),
		State:     sess.Store.State(),
	}
}

type revisionView struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// Request payloads

type AddElementRequest struct {
	ID         string            `json:"id"`
	Type       string            `json:"type" validate:"required,element_type"`
	ParentID   string            `json:"parentId"`
	Name       string            `json:"name" validate:"max=200"`
	Properties domain.Properties `json:"properties"`
}

type UpdateElementRequest struct {
	Properties domain.Properties `json:"properties"`
	Name       *string           `json:"name" validate:"omitempty,notblank"`
	ParentID   *string           `json:"parentId"`
}

type BatchUpdateRequest struct {
	Patches []builder.Patch `json:"patches" validate:"required,min=1"`
}

type DeleteElementsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

type AddTemplateRequest struct {
	Name     string  `json:"name" validate:"required,template"`
	ParentID string  `json:"parentId"`
	X        float64 `json:"x" validate:"gte=0"`
	Y        float64 `json:"y" validate:"gte=0"`
}

type SelectRequest struct {
	ID    string `json:"id"`
	Multi bool   `json:"multi"`
}

type EditingRequest struct {
	ID string `json:"id"`
}

type UIRequest struct {
	SidebarOpen *bool `json:"sidebarOpen"`
}

type LayerSearchRequest struct {
	Search string `json:"search" validate:"max=200"`
}

type canvasApi struct {
	width, height float64
}

func registerCanvasAPI(g *echo.Group, opts *Options) {
	api := canvasApi{width: opts.CanvasWidth, height: opts.CanvasHeight}

	g.GET("/state", api.state)
	g.PUT("/ui", api.setUI)
	g.GET("/thumbnail.png", api.thumbnail)

	eg := g.Group("/elements")
	eg.GET("", api.elements)
	eg.POST("", api.addElement)
	eg.PATCH("", api.updateElements)
	eg.DELETE("", api.removeElements)
	eg.PUT("", api.importElements)
	eg.GET("/:el", api.element)
	eg.PATCH("/:el", api.updateElement)
	eg.DELETE("/:el", api.removeElement)

	g.GET("/templates", api.templates)
	g.POST("/templates", api.addTemplate)

	g.PUT("/selection", api.selectElement)
	g.DELETE("/selection", api.clearSelection)
	g.POST("/selection/all", api.selectAll)
	g.PUT("/editing", api.setEditing)

	g.POST("/undo", api.undo)
	g.POST("/redo", api.redo)
	g.POST("/keys", api.key)

	g.GET("/layers", api.layers)
	g.PUT("/layers/search", api.searchLayers)
	g.POST("/layers/:el/toggle", api.toggleLayer)
}

// Handlers

func (api *canvasApi) state(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, sessionView(getSession(ctx)))
}

func (api *canvasApi) setUI(ctx echo.Context) error {
	var data UIRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	if data.SidebarOpen != nil {
		sess.Store.SetSidebarOpen(*data.SidebarOpen)
	}
	return ctx.JSON(http.StatusOK, sess.Store.State().UI)
}

func (api *canvasApi) elements(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getSession(ctx).Store.Elements())
}

func (api *canvasApi) element(ctx echo.Context) error {
	el, ok := getSession(ctx).Store.Element(ctx.Param("el"))
	if !ok {
		return builder.ErrElementNotFound
	}
	return ctx.JSON(http.StatusOK, el)
}

func (api *canvasApi) addElement(ctx echo.Context) error {
	var data AddElementRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	el, err := getSession(ctx).Store.AddElement(builder.NewElement{
		ID:         data.ID,
		Type:       domain.ElementType(data.Type),
		ParentID:   data.ParentID,
		Name:       data.Name,
		Properties: data.Properties,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, el)
}

func (api *canvasApi) updateElement(ctx echo.Context) error {
	var data UpdateElementRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	id := ctx.Param("el")
	if _, ok := sess.Store.Element(id); !ok {
		return builder.ErrElementNotFound
	}
	patch := builder.Patch{ID: id, Properties: data.Properties, Name: data.Name, ParentID: data.ParentID}
	if _, err := sess.Store.UpdateElements([]builder.Patch{patch}); err != nil {
		return err
	}
	el, _ := sess.Store.Element(id)
	return ctx.JSON(http.StatusOK, el)
}

func (api *canvasApi) updateElements(ctx echo.Context) error {
	var data BatchUpdateRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	n, err := getSession(ctx).Store.UpdateElements(data.Patches)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": n})
}

func (api *canvasApi) removeElement(ctx echo.Context) error {
	if !getSession(ctx).Store.RemoveElement(ctx.Param("el")) {
		return builder.ErrElementNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *canvasApi) removeElements(ctx echo.Context) error {
	var data DeleteElementsRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	n := getSession(ctx).Store.RemoveElements(data.IDs)
	return ctx.JSON(http.StatusOK, echo.Map{"removed": n})
}

// importElements replaces the current page with the raw body: an element
// array or {"elements": [...]}.
func (api *canvasApi) importElements(ctx echo.Context) error {
	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return err
	}
	sess := getSession(ctx)
	if err := sess.ImportElements(raw); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Store.Elements())
}

func (api *canvasApi) templates(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, builder.TemplateNames())
}

func (api *canvasApi) addTemplate(ctx echo.Context) error {
	var data AddTemplateRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	els, err := getSession(ctx).Store.AddTemplate(data.Name, data.ParentID, data.X, data.Y)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, els)
}

func (api *canvasApi) selectElement(ctx echo.Context) error {
	var data SelectRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	if !sess.Store.SelectElement(data.ID, data.Multi) {
		return builder.ErrElementNotFound
	}
	return ctx.JSON(http.StatusOK, sess.Store.SelectedIDs())
}

func (api *canvasApi) clearSelection(ctx echo.Context) error {
	getSession(ctx).Store.ClearSelection()
	return ctx.NoContent(http.StatusNoContent)
}

func (api *canvasApi) selectAll(ctx echo.Context) error {
	sess := getSession(ctx)
	sess.Store.SelectAll()
	return ctx.JSON(http.StatusOK, sess.Store.SelectedIDs())
}

// setEditing marks the inline editing target; an empty id ends editing.
func (api *canvasApi) setEditing(ctx echo.Context) error {
	var data EditingRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := getSession(ctx).Store.SetEditingTarget(data.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *canvasApi) undo(ctx echo.Context) error {
	sess := getSession(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{"applied": sess.Store.Undo(), "state": sess.Store.State()})
}

func (api *canvasApi) redo(ctx echo.Context) error {
	sess := getSession(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{"applied": sess.Store.Redo(), "state": sess.Store.State()})
}

func (api *canvasApi) key(ctx echo.Context) error {
	var data builder.KeyEvent
	if err := bind(ctx, &data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"handled": getSession(ctx).Keys.Handle(data)})
}

// layers returns the visible rows, or a rendered tree with ?format=text.
func (api *canvasApi) layers(ctx echo.Context) error {
	sess := getSession(ctx)
	rows := sess.Layers.Rows()
	if ctx.QueryParam("format") == "text" {
		return ctx.String(http.StatusOK, render.LayerTree(sess.Name, rows))
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *canvasApi) searchLayers(ctx echo.Context) error {
	var data LayerSearchRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sess := getSession(ctx)
	sess.Layers.SetSearch(data.Search)
	return ctx.JSON(http.StatusOK, sess.Layers.Rows())
}

func (api *canvasApi) toggleLayer(ctx echo.Context) error {
	sess := getSession(ctx)
	sess.Layers.Toggle(ctx.Param("el"))
	return ctx.JSON(http.StatusOK, sess.Layers.Rows())
}

// thumbnail renders the current page; ?width= sets the image width.
func (api *canvasApi) thumbnail(ctx echo.Context) error {
	opts := render.ThumbnailOptions{
		CanvasWidth:  api.width,
		CanvasHeight: api.height,
		Labels:       ctx.QueryParam("labels") != "false",
	}
	if w, err := strconv.Atoi(ctx.QueryParam("width")); err == nil && w > 0 {
		opts.Width = w
	}
	data, err := render.ThumbnailPNG(getSession(ctx).Store.Elements(), opts)
	if err != nil {
		return err
	}
	return ctx.Blob(http.StatusOK, "image/png", data)
}

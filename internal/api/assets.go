package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"smartclass/internal/domain"
	"smartclass/internal/service"
)

type assetApi struct {
	svc *service.AssetService
}

func registerAssetAPI(g *echo.Group, svc *service.AssetService) {
	if svc == nil {
		return
	}
	api := assetApi{svc: svc}

	ag := g.Group("/assets")
	ag.GET("", api.query)
	ag.POST("", api.upload)
	ag.POST("/data-url", api.uploadDataURL)
	ag.GET("/:key", api.retrieve)
	ag.DELETE("/:key", api.destroy)
}

type DataURLRequest struct {
	Name    string `json:"name" validate:"max=200"`
	DataURL string `json:"dataUrl" validate:"required"`
}

type assetView struct {
	domain.Asset
	Src string `json:"src"`
}

func newAssetView(a domain.Asset) assetView {
	return assetView{Asset: a, Src: service.AssetScheme + a.Key}
}

func (api assetApi) query(ctx echo.Context) error {
	list, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return fmt.Errorf("listing assets: %w", err)
	}
	out := make([]assetView, 0, len(list))
	for _, a := range list {
		out = append(out, newAssetView(a))
	}
	return ctx.JSON(http.StatusOK, out)
}

// upload takes a multipart form with a "file" field.
func (api assetApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	if fh.Size > service.MaxAssetSize {
		return fmt.Errorf("%w: %d bytes", service.ErrAssetTooLarge, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	a, err := api.svc.Upload(ctx.Request().Context(), fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newAssetView(*a))
}

func (api assetApi) uploadDataURL(ctx echo.Context) error {
	var data DataURLRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	a, err := api.svc.UploadDataURL(ctx.Request().Context(), data.Name, data.DataURL)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newAssetView(*a))
}

func (api assetApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.Get(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return err
	}
	ctx.Response().Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	return ctx.Blob(http.StatusOK, a.ContentType, a.Data)
}

func (api assetApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("key")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

package app

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"smartclass/internal/domain"
	"smartclass/internal/service"
)

// ============================================================
// Assets
// ============================================================

func newAssetView(a domain.Asset) AssetView {
	return AssetView{Asset: a, Src: service.AssetScheme + a.Key}
}

func (a *App) ListAssets() ([]AssetView, error) {
	list, err := a.assets.List(a.ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AssetView, 0, len(list))
	for _, as := range list {
		out = append(out, newAssetView(as))
	}
	return out, nil
}

// UploadAssetDataURL stores a pasted or dropped image.
func (a *App) UploadAssetDataURL(name, dataURL string) (*AssetView, error) {
	as, err := a.assets.UploadDataURL(a.ctx, name, dataURL)
	if err != nil {
		return nil, err
	}
	v := newAssetView(*as)
	return &v, nil
}

// PickAsset opens a native picker and uploads the chosen file. A nil result
// means the dialog was cancelled.
func (a *App) PickAsset() (*AssetView, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Image or Video",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Images", Pattern: "*.png;*.jpg;*.jpeg;*.gif;*.webp;*.svg"},
			{DisplayName: "Video", Pattern: "*.mp4;*.webm"},
			{DisplayName: "All Files", Pattern: "*.*"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	as, err := a.assets.Upload(a.ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), data)
	if err != nil {
		return nil, err
	}
	v := newAssetView(*as)
	return &v, nil
}

// AssetDataURL returns the asset inline, for <img src>.
func (a *App) AssetDataURL(key string) (string, error) {
	return a.assets.DataURL(a.ctx, key)
}

func (a *App) DeleteAsset(key string) error {
	return a.assets.Delete(a.ctx, key)
}

// UnusedAssets lists assets no element on any page of the project refers to.
func (a *App) UnusedAssets(projectID string) ([]string, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	var elements []domain.Element
	for _, pg := range sess.Pager.Document().Pages {
		elements = append(elements, pg.Elements...)
	}
	return a.assets.Unreferenced(a.ctx, elements)
}

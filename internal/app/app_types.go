package app

import (
	"smartclass/internal/builder"
	"smartclass/internal/connection"
	"smartclass/internal/domain"
	"smartclass/internal/pagination"
	"smartclass/internal/service"
)

// ProjectState is the frontend view of an open project.
type ProjectState struct {
	ProjectID     string                `json:"projectId"`
	Name          string                `json:"name"`
	Dirty         bool                  `json:"dirty"`
	Pages         []pagination.PageInfo `json:"pages"`
	CurrentPageID string                `json:"currentPageId"`
	State         builder.State         `json:"state"`
}

func projectState(sess *service.Session) *ProjectState {
	return &ProjectState{
		ProjectID:     sess.ProjectID,
		Name:          sess.Name,
		Dirty:         sess.Dirty(),
		Pages:         sess.Pager.Pages(),
		CurrentPageID: sess.Pager.CurrentPageID(),
		State:         sess.Store.State(),
	}
}

// DragResult is returned by every drag binding.
type DragResult struct {
	State   builder.DragState          `json:"state"`
	Changed bool                       `json:"changed"`
	Preview map[string]domain.Geometry `json:"preview,omitempty"`
}

func dragResult(sess *service.Session, changed bool) *DragResult {
	return &DragResult{
		State:   sess.Drag.State(),
		Changed: changed,
		Preview: sess.Drag.Preview(),
	}
}

type ConnectionStatus struct {
	Connected bool              `json:"connected"`
	Visual    connection.Visual `json:"visual"`
}

// AssetView adds an inline data URL to the asset metadata.
type AssetView struct {
	domain.Asset
	Src string `json:"src,omitempty"`
}

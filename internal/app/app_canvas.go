package app

import (
	"encoding/base64"
	"fmt"

	"smartclass/internal/builder"
	"smartclass/internal/connection"
	"smartclass/internal/domain"
	"smartclass/internal/render"
	"smartclass/internal/service"
)

// ============================================================
// Elements
// ============================================================

func (a *App) AddElement(projectID string, in builder.NewElement) (*domain.Element, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	el, err := sess.Store.AddElement(in)
	if err != nil {
		return nil, err
	}
	return &el, nil
}

func (a *App) AddTemplate(projectID, name, parentID string, x, y float64) ([]domain.Element, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	return sess.Store.AddTemplate(name, parentID, x, y)
}

func (a *App) ListTemplates() []string {
	return builder.TemplateNames()
}

// UpdateElements applies patches as one undo step.
func (a *App) UpdateElements(projectID string, patches []builder.Patch) (int, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return 0, err
	}
	return sess.Store.UpdateElements(patches)
}

func (a *App) RemoveElements(projectID string, ids []string) (int, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return 0, err
	}
	return sess.Store.RemoveElements(ids), nil
}

// ImportElements replaces the current page with an element list.
func (a *App) ImportElements(projectID, raw string) (*ProjectState, error) {
	return a.withSession(projectID, func(sess *service.Session) error {
		return sess.ImportElements([]byte(raw))
	})
}

// ============================================================
// Selection, history & keys
// ============================================================

func (a *App) SelectElement(projectID, id string, multi bool) ([]string, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	if !sess.Store.SelectElement(id, multi) {
		return nil, fmt.Errorf("select %q: %w", id, builder.ErrElementNotFound)
	}
	return sess.Store.SelectedIDs(), nil
}

func (a *App) ClearSelection(projectID string) error {
	sess, err := a.session(projectID)
	if err != nil {
		return err
	}
	sess.Store.ClearSelection()
	return nil
}

func (a *App) SelectAll(projectID string) ([]string, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	sess.Store.SelectAll()
	return sess.Store.SelectedIDs(), nil
}

// SetEditingTarget marks inline text editing; an empty id ends it.
func (a *App) SetEditingTarget(projectID, id string) error {
	sess, err := a.session(projectID)
	if err != nil {
		return err
	}
	return sess.Store.SetEditingTarget(id)
}

func (a *App) SetSidebarOpen(projectID string, open bool) error {
	sess, err := a.session(projectID)
	if err != nil {
		return err
	}
	sess.Store.SetSidebarOpen(open)
	return nil
}

func (a *App) Undo(projectID string) (bool, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return false, err
	}
	return sess.Store.Undo(), nil
}

func (a *App) Redo(projectID string) (bool, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return false, err
	}
	return sess.Store.Redo(), nil
}

// HandleKey runs a canvas shortcut. It reports whether the key was used.
func (a *App) HandleKey(projectID string, ev builder.KeyEvent) (bool, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return false, err
	}
	return sess.Keys.Handle(ev), nil
}

// ============================================================
// Layers
// ============================================================

func (a *App) Layers(projectID string) ([]builder.LayerRow, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	return sess.Layers.Rows(), nil
}

func (a *App) ToggleLayer(projectID, id string) ([]builder.LayerRow, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	sess.Layers.Toggle(id)
	return sess.Layers.Rows(), nil
}

func (a *App) SearchLayers(projectID, term string) ([]builder.LayerRow, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	sess.Layers.SetSearch(term)
	return sess.Layers.Rows(), nil
}

// ============================================================
// Drag
// ============================================================

func (a *App) DragPointerDown(projectID, id string, x, y float64, multi bool) (*DragResult, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	armed := sess.Drag.PointerDown(id, builder.Point{X: x, Y: y}, multi)
	return dragResult(sess, armed), nil
}

func (a *App) DragPointerMove(projectID string, x, y float64) (*DragResult, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	changed := sess.Drag.PointerMove(builder.Point{X: x, Y: y})
	return dragResult(sess, changed), nil
}

func (a *App) DragSetDropTarget(projectID, id string) (*DragResult, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	return dragResult(sess, sess.Drag.SetDropTarget(id)), nil
}

func (a *App) DragPointerUp(projectID string) (*DragResult, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	moved, err := sess.Drag.PointerUp()
	if err != nil {
		return nil, err
	}
	return dragResult(sess, moved), nil
}

func (a *App) DragCancel(projectID string) (*DragResult, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	return dragResult(sess, sess.Drag.Cancel()), nil
}

// ============================================================
// Connections
// ============================================================

func (a *App) AttemptConnection(projectID, sourceID, targetID string) (*connection.Event, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	ev, err := sess.Connections.Attempt(sourceID, targetID)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (a *App) ResetConnection(projectID, id string) error {
	sess, err := a.session(projectID)
	if err != nil {
		return err
	}
	return sess.Connections.Reset(id)
}

func (a *App) ConnectionLines(projectID string) ([]connection.Line, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	lines := sess.Connections.Lines()
	if lines == nil {
		lines = []connection.Line{}
	}
	return lines, nil
}

func (a *App) ConnectionVisual(projectID, id string) (*ConnectionStatus, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	return &ConnectionStatus{
		Connected: sess.Connections.IsConnected(id),
		Visual:    sess.Connections.Visual(id),
	}, nil
}

func (a *App) ConnectionDiagnostics(projectID string) ([]connection.Diagnostic, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	diags := sess.Diagnostics()
	if diags == nil {
		diags = []connection.Diagnostic{}
	}
	return diags, nil
}

// ============================================================
// Thumbnails
// ============================================================

// PageThumbnail renders the current page as a base64 PNG for the page strip.
func (a *App) PageThumbnail(projectID string, width int) (string, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return "", err
	}
	data, err := render.ThumbnailPNG(sess.Store.Elements(), render.ThumbnailOptions{
		Width:        width,
		CanvasWidth:  a.svcs.Config.ViewportWidth,
		CanvasHeight: a.svcs.Config.ViewportHeight,
	})
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

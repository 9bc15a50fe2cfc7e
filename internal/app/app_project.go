package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"smartclass/internal/domain"
	"smartclass/internal/service"
)

// ============================================================
// Projects
// ============================================================

func (a *App) ListProjects() ([]domain.Project, error) {
	list, err := a.builder.ListProjects(a.ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Project{}
	}
	return list, nil
}

func (a *App) CreateProject(name string) (*domain.Project, error) {
	return a.builder.CreateProject(a.ctx, name)
}

func (a *App) RenameProject(id, name string) error {
	return a.builder.RenameProject(a.ctx, id, name)
}

func (a *App) DeleteProject(id string) error {
	return a.builder.DeleteProject(a.ctx, id)
}

// OpenProject loads a project into an editing session and returns its state.
func (a *App) OpenProject(id string) (*ProjectState, error) {
	sess, err := a.builder.Open(a.ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.settings.SetLastProject(a.ctx, id); err != nil {
		a.log.Warnf("remember last project: %v", err)
	}
	return projectState(sess), nil
}

// LastProject is the project to reopen on launch, "" when there is none.
func (a *App) LastProject() string {
	return a.settings.LastProject(a.ctx)
}

// GetProjectState returns the state of an already open project.
func (a *App) GetProjectState(id string) (*ProjectState, error) {
	sess, err := a.session(id)
	if err != nil {
		return nil, err
	}
	return projectState(sess), nil
}

func (a *App) SaveProject(id, label string) (*service.SavedEvent, error) {
	return a.builder.Save(a.ctx, id, label)
}

// CloseProject ends the session; unsaved changes are kept only when save is set.
func (a *App) CloseProject(id string, save bool) error {
	if a.editor != nil {
		if pid, _, ok := a.editor.Active(); ok && pid == id {
			a.editor.Finish()
		}
	}
	return a.builder.Close(a.ctx, id, save)
}

func (a *App) ListRevisions(id string) ([]domain.Revision, error) {
	return a.builder.Revisions(a.ctx, id)
}

func (a *App) RestoreRevision(id, revisionID string) (*ProjectState, error) {
	if err := a.builder.RestoreRevision(a.ctx, id, revisionID); err != nil {
		return nil, err
	}
	return a.GetProjectState(id)
}

// ImportProjectFile asks for a saved project or element list and imports it
// as a new project. An empty result means the dialog was cancelled.
func (a *App) ImportProjectFile() (*domain.Project, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Import Project",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "SmartClass project", Pattern: "*.json"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return a.builder.ImportProject(a.ctx, name, raw)
}

// ExportProjectFile writes the project document to a file the user picks.
func (a *App) ExportProjectFile(id string) (string, error) {
	data, err := a.builder.Export(a.ctx, id)
	if err != nil {
		return "", err
	}
	name := "project"
	if p, err := a.builder.GetProject(a.ctx, id); err == nil {
		name = p.Name
	}
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           "Export Project",
		DefaultFilename: name + ".json",
	})
	if err != nil || path == "" {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// ============================================================
// Pages
// ============================================================

func (a *App) CreatePage(projectID, title string) (*ProjectState, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	sess.CreatePage(title)
	return projectState(sess), nil
}

func (a *App) SwitchPage(projectID, pageID string) (*ProjectState, error) {
	return a.withSession(projectID, func(sess *service.Session) error {
		return sess.SwitchPage(pageID)
	})
}

func (a *App) RenamePage(projectID, pageID, title string) (*ProjectState, error) {
	return a.withSession(projectID, func(sess *service.Session) error {
		return sess.RenamePage(pageID, title)
	})
}

func (a *App) MovePage(projectID, pageID string, index int) (*ProjectState, error) {
	return a.withSession(projectID, func(sess *service.Session) error {
		return sess.MovePage(pageID, index)
	})
}

func (a *App) DeletePage(projectID, pageID string) (*ProjectState, error) {
	return a.withSession(projectID, func(sess *service.Session) error {
		return sess.DeletePage(pageID)
	})
}

// withSession runs fn on the open session and returns the resulting state.
func (a *App) withSession(projectID string, fn func(*service.Session) error) (*ProjectState, error) {
	sess, err := a.session(projectID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return projectState(sess), nil
}

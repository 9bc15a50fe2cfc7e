package domain

import (
	"context"
	"errors"
	"time"
)

var ErrProjectNotFound = errors.New("project not found")

// ModulePage is a named, ordered partition of a project's content.
// Pages never share elements.
type ModulePage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Elements  []Element `json:"elements"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Project is the unit of persistence; Content holds the v3 content document.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectStore persists projects. Implemented by the SQL and Mongo stores.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	SaveContent(ctx context.Context, id, content string) error
	RenameProject(ctx context.Context, id, name string) error
	DeleteProject(ctx context.Context, id string) error
}

// Revision is a saved checkpoint of a project's content.
type Revision struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartclass/internal/domain"
)

// ProjectStore implements domain.ProjectStore on any of the SQL drivers.
type ProjectStore struct {
	db *DB
}

func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) CreateProject(ctx context.Context, p *domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.conn.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO projects (id, name, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		p.ID, p.Name, p.Content, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *ProjectStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	p := &domain.Project{}
	err := s.db.conn.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id, name, content, created_at, updated_at FROM projects WHERE id = ?`), id,
	).Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get project %s: %w", id, domain.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns project metadata, most recently updated first.
// Content is left empty.
func (s *ProjectStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *ProjectStore) SaveContent(ctx context.Context, id, content string) error {
	return s.update(ctx, id, `UPDATE projects SET content = ?, updated_at = ? WHERE id = ?`, content)
}

func (s *ProjectStore) RenameProject(ctx context.Context, id, name string) error {
	return s.update(ctx, id, `UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`, name)
}

func (s *ProjectStore) update(ctx context.Context, id, query, value string) error {
	res, err := s.db.conn.ExecContext(ctx, s.db.Rebind(query), value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update project %s: %w", id, domain.ErrProjectNotFound)
	}
	return nil
}

// DeleteProject removes the project and its revisions.
func (s *ProjectStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM revisions WHERE project_id = ?`), id); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete project %s: %w", id, domain.ErrProjectNotFound)
	}
	return tx.Commit()
}

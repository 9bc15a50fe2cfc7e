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

// DefaultMaxRevisions bounds the checkpoints kept per project.
const DefaultMaxRevisions = 40

var ErrRevisionNotFound = errors.New("revision not found")

// RevisionStore keeps saved checkpoints of project content, pruning the
// oldest once a project has more than max.
type RevisionStore struct {
	db  *DB
	max int
}

func NewRevisionStore(db *DB, max int) *RevisionStore {
	if max <= 0 {
		max = DefaultMaxRevisions
	}
	return &RevisionStore{db: db, max: max}
}

// Push records a new revision and prunes.
func (s *RevisionStore) Push(ctx context.Context, projectID, label, content string) (*domain.Revision, error) {
	rev := &domain.Revision{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Label:     label,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	var seq int64
	if err := s.db.conn.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COALESCE(MAX(seq), 0) FROM revisions WHERE project_id = ?`), projectID,
	).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next revision seq: %w", err)
	}

	_, err := s.db.conn.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO revisions (id, project_id, seq, label, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		rev.ID, rev.ProjectID, seq+1, rev.Label, rev.Content, rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	if err := s.prune(ctx, projectID); err != nil {
		return nil, err
	}
	return rev, nil
}

// List returns revision metadata, newest first. Content is left empty.
func (s *RevisionStore) List(ctx context.Context, projectID string) ([]domain.Revision, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.Rebind(
		`SELECT id, project_id, label, created_at FROM revisions
		 WHERE project_id = ? ORDER BY seq DESC`), projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.Revision
	for rows.Next() {
		var r domain.Revision
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Label, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RevisionStore) Get(ctx context.Context, id string) (*domain.Revision, error) {
	r := &domain.Revision{}
	err := s.db.conn.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id, project_id, label, content, created_at FROM revisions WHERE id = ?`), id,
	).Scan(&r.ID, &r.ProjectID, &r.Label, &r.Content, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get revision %s: %w", id, ErrRevisionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return r, nil
}

func (s *RevisionStore) Clear(ctx context.Context, projectID string) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.Rebind(`DELETE FROM revisions WHERE project_id = ?`), projectID)
	return err
}

// prune removes the oldest revisions when the count exceeds max.
func (s *RevisionStore) prune(ctx context.Context, projectID string) error {
	var count int
	if err := s.db.conn.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM revisions WHERE project_id = ?`), projectID,
	).Scan(&count); err != nil {
		return fmt.Errorf("count revisions: %w", err)
	}
	if count <= s.max {
		return nil
	}

	// Collect ids first; some drivers cannot write with an open cursor.
	rows, err := s.db.conn.QueryContext(ctx, s.db.Rebind(
		`SELECT id FROM revisions WHERE project_id = ? ORDER BY seq ASC LIMIT ?`),
		projectID, count-s.max,
	)
	if err != nil {
		return fmt.Errorf("select stale revisions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.conn.ExecContext(ctx, s.db.Rebind(`DELETE FROM revisions WHERE id = ?`), id); err != nil {
			return fmt.Errorf("prune revision: %w", err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"smartclass/internal/domain"
)

// ── SQL table ──────────────────────────────────────────────

type SQLBlobStore struct {
	db *DB
}

func NewSQLBlobStore(db *DB) *SQLBlobStore {
	return &SQLBlobStore{db: db}
}

// Put inserts or replaces the asset stored under a.Key.
func (s *SQLBlobStore) Put(ctx context.Context, a *domain.Asset) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Size = int64(len(a.Data))
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM blobs WHERE blob_key = ?`), a.Key); err != nil {
		return fmt.Errorf("replace blob: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO blobs (blob_key, name, content_type, size, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		a.Key, a.Name, a.ContentType, a.Size, a.Data, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert blob: %w", err)
	}
	return tx.Commit()
}

func (s *SQLBlobStore) Get(ctx context.Context, key string) (*domain.Asset, error) {
	a := &domain.Asset{}
	err := s.db.conn.QueryRowContext(ctx, s.db.Rebind(
		`SELECT blob_key, name, content_type, size, data, created_at FROM blobs WHERE blob_key = ?`), key,
	).Scan(&a.Key, &a.Name, &a.ContentType, &a.Size, &a.Data, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get blob %s: %w", key, domain.ErrAssetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return a, nil
}

// List returns asset metadata ordered by key, without data.
func (s *SQLBlobStore) List(ctx context.Context) ([]domain.Asset, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT blob_key, name, content_type, size, created_at FROM blobs ORDER BY blob_key`)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()
	var out []domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.Key, &a.Name, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLBlobStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.conn.ExecContext(ctx, s.db.Rebind(`DELETE FROM blobs WHERE blob_key = ?`), key)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete blob %s: %w", key, domain.ErrAssetNotFound)
	}
	return nil
}

// ── Disk ───────────────────────────────────────────────────

// DiskBlobStore keeps each asset as <key> plus a <key>.json metadata sidecar.
type DiskBlobStore struct {
	dir string
	mu  sync.Mutex
}

func NewDiskBlobStore(dir string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create assets directory: %w", err)
	}
	return &DiskBlobStore{dir: dir}, nil
}

func (s *DiskBlobStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid asset key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *DiskBlobStore) Put(_ context.Context, a *domain.Asset) error {
	p, err := s.path(a.Key)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Size = int64(len(a.Data))
	meta, err := json.Marshal(a)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(p, a.Data, 0644); err != nil {
		return fmt.Errorf("write asset: %w", err)
	}
	if err := os.WriteFile(p+".json", meta, 0644); err != nil {
		return fmt.Errorf("write asset metadata: %w", err)
	}
	return nil
}

func (s *DiskBlobStore) readMeta(p string) (*domain.Asset, error) {
	raw, err := os.ReadFile(p + ".json")
	if err != nil {
		return nil, err
	}
	a := &domain.Asset{}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("parse asset metadata: %w", err)
	}
	return a, nil
}

func (s *DiskBlobStore) Get(_ context.Context, key string) (*domain.Asset, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.readMeta(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("get asset %s: %w", key, domain.ErrAssetNotFound)
	}
	if err != nil {
		return nil, err
	}
	if a.Data, err = os.ReadFile(p); err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return a, nil
}

func (s *DiskBlobStore) List(_ context.Context) ([]domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	var out []domain.Asset
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		a, err := s.readMeta(filepath.Join(s.dir, strings.TrimSuffix(name, ".json")))
		if err != nil {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *DiskBlobStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p + ".json"); os.IsNotExist(err) {
		return fmt.Errorf("delete asset %s: %w", key, domain.ErrAssetNotFound)
	} else if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ── Memory ─────────────────────────────────────────────────

type MemoryBlobStore struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{assets: make(map[string]domain.Asset)}
}

func (s *MemoryBlobStore) Put(_ context.Context, a *domain.Asset) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Size = int64(len(a.Data))
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	s.mu.Lock()
	s.assets[a.Key] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryBlobStore) Get(_ context.Context, key string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[key]
	if !ok {
		return nil, fmt.Errorf("get asset %s: %w", key, domain.ErrAssetNotFound)
	}
	a.Data = append([]byte(nil), a.Data...)
	return &a, nil
}

func (s *MemoryBlobStore) List(_ context.Context) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		a.Data = nil
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[key]; !ok {
		return fmt.Errorf("delete asset %s: %w", key, domain.ErrAssetNotFound)
	}
	delete(s.assets, key)
	return nil
}

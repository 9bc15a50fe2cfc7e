package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SettingsStore is a small key/value table for desktop preferences.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value of key and whether it was set.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.conn.QueryRowContext(ctx, s.db.Rebind(
		`SELECT value FROM app_settings WHERE setting_key = ?`), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// Set replaces the value of key. Upsert syntax differs per driver, so this
// deletes and inserts in one transaction.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM app_settings WHERE setting_key = ?`), key); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`INSERT INTO app_settings (setting_key, value) VALUES (?, ?)`), key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return tx.Commit()
}

// ABOUTME: Key-value preferences such as the selected endpoint and last target
// ABOUTME: Values are upserted and survive restarts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetPreference returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying preference: %w", err)
	}
	return value, nil
}

// SetPreference stores value under key, replacing any previous value.
func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving preference: %w", err)
	}
	s.logger.Debug("saved preference", "key", key)
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// DefaultFocusLevel is used when the settings table has no focus entry.
const DefaultFocusLevel = 512

// SettingsRepository reads and writes the settings key/value table.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value stored under key, or sql.ErrNoRows.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value under key, inserting or replacing as needed.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}

// All returns every setting as a map.
func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// FocusLevel returns the persisted focus motor position. It satisfies the
// ptz.FocusStore interface.
func (r *SettingsRepository) FocusLevel() (int, error) {
	value, err := r.Get(context.Background(), "focus_level")
	if err == sql.ErrNoRows {
		return DefaultFocusLevel, nil
	}
	if err != nil {
		return 0, err
	}
	level, err := strconv.Atoi(value)
	if err != nil {
		return DefaultFocusLevel, nil
	}
	return level, nil
}

// SaveFocusLevel persists the focus motor position.
func (r *SettingsRepository) SaveFocusLevel(level int) error {
	return r.Set(context.Background(), "focus_level", strconv.Itoa(level))
}

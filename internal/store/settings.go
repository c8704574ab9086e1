package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Setting keys.
const (
	SettingLastPreset = "last_preset"
	SettingMode       = "mode"
	SettingMapping    = "mapping"
)

// SettingsRepository reads and writes key/value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes key.
func (r *SettingsRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	return affected(result)
}

// GetJSON decodes the JSON value stored under key into v.
func (r *SettingsRepository) GetJSON(key string, v any) error {
	value, err := r.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), v)
}

// SetJSON stores v encoded as JSON under key.
func (r *SettingsRepository) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Set(key, string(data))
}

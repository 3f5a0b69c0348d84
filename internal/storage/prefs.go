package storage

// prefs.go contains SQLiteStore methods for persisted user preferences and
// the control token hash. The default keep-awake interval lives here; it is
// the preference the supervisor resets to whenever a session ends.

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const prefDefaultIntervalSecs = "default_interval_secs"

// GetDefaultIntervalSecs returns the persisted default interval preference.
// ok is false when no preference has been saved yet.
func (s *SQLiteStore) GetDefaultIntervalSecs() (secs int, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err = s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", prefDefaultIntervalSecs).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query preference: %w", err)
	}

	secs, err = strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse preference %q: %w", value, err)
	}
	return secs, true, nil
}

// SetDefaultIntervalSecs persists the default interval preference.
// Catalog validation is the caller's concern; storage records what it is given.
func (s *SQLiteStore) SetDefaultIntervalSecs(secs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, prefDefaultIntervalSecs, strconv.Itoa(secs), now)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

// GetControlTokenHash returns the stored bcrypt hash of the control token.
// ok is false when no token has been generated yet.
func (s *SQLiteStore) GetControlTokenHash() (hash string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow("SELECT token_hash FROM control_token WHERE id = 1").Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query control token: %w", err)
	}
	return hash, true, nil
}

// SetControlTokenHash stores the bcrypt hash of the control token,
// replacing any previous hash.
func (s *SQLiteStore) SetControlTokenHash(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO control_token (id, token_hash, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token_hash = excluded.token_hash, updated_at = excluded.updated_at
	`, hash, now)
	if err != nil {
		return fmt.Errorf("save control token: %w", err)
	}
	return nil
}

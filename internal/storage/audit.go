package storage

// audit.go contains SQLiteStore methods for the keep-awake session audit log.
// Audit entries record schedule/cancel/completion events for debugging
// ("why did my machine sleep at 3pm").

import (
	"fmt"
	"log"
	"time"
)

// Audit operations.
const (
	AuditOpSchedule = "schedule"
	AuditOpCancel   = "cancel"
	AuditOpComplete = "complete"
	AuditOpShutdown = "shutdown"
)

// WakeAuditEntry is a durable record of one keep-awake lifecycle event.
type WakeAuditEntry struct {
	ID           int64
	Operation    string
	RequestID    string
	Source       string
	IntervalSecs int
	Detail       string
	At           time.Time
}

// SaveAndPruneWakeAudit inserts an audit entry and prunes oldest beyond
// maxRows in a single tx.
func (s *SQLiteStore) SaveAndPruneWakeAudit(entry *WakeAuditEntry, maxRows int) error {
	if entry == nil {
		return fmt.Errorf("wake audit entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	at := entry.At.Format(time.RFC3339Nano)

	const insertQuery = `
		INSERT INTO wake_audit
			(operation, request_id, source, interval_secs, detail, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(insertQuery,
		entry.Operation,
		entry.RequestID,
		entry.Source,
		entry.IntervalSecs,
		entry.Detail,
		at,
	)
	if err != nil {
		return fmt.Errorf("insert wake audit: %w", err)
	}

	if maxRows > 0 {
		const pruneQuery = `
			DELETE FROM wake_audit
			WHERE id NOT IN (SELECT id FROM wake_audit ORDER BY id DESC LIMIT ?)
		`
		if _, err := tx.Exec(pruneQuery, maxRows); err != nil {
			return fmt.Errorf("prune wake audit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wake audit: %w", err)
	}

	log.Printf("storage: saved wake audit op=%s request_id=%s", entry.Operation, entry.RequestID)
	return nil
}

// ListWakeAudit returns audit entries in reverse chronological order
// (newest first). A non-positive limit returns all entries.
func (s *SQLiteStore) ListWakeAudit(limit int) ([]*WakeAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var query string
	var args []interface{}

	if limit > 0 {
		query = `
			SELECT id, operation, request_id, source, interval_secs, detail, at
			FROM wake_audit
			ORDER BY id DESC
			LIMIT ?
		`
		args = append(args, limit)
	} else {
		query = `
			SELECT id, operation, request_id, source, interval_secs, detail, at
			FROM wake_audit
			ORDER BY id DESC
		`
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wake audit: %w", err)
	}
	defer rows.Close()

	var entries []*WakeAuditEntry
	for rows.Next() {
		var (
			entry WakeAuditEntry
			atStr string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.Operation,
			&entry.RequestID,
			&entry.Source,
			&entry.IntervalSecs,
			&entry.Detail,
			&atStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wake audit row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, atStr)
		if err != nil {
			return nil, fmt.Errorf("parse wake audit at: %w", err)
		}
		entry.At = t
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wake audit rows: %w", err)
	}

	return entries, nil
}

// ProbeWakeAuditWrite verifies the audit log is writable.
// It performs an insert+delete within one transaction to ensure:
// 1) the table exists after schema init, and
// 2) writes are currently permitted by the storage backend.
func (s *SQLiteStore) ProbeWakeAuditWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339Nano)
	res, err := tx.Exec(
		`INSERT INTO wake_audit
			(operation, request_id, source, interval_secs, detail, at)
		  VALUES (?, ?, ?, ?, ?, ?)`,
		"startup_probe",
		"",
		"system",
		0,
		"startup_writability_check",
		now,
	)
	if err != nil {
		return fmt.Errorf("insert probe row: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM wake_audit WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete probe row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit probe: %w", err)
	}
	return nil
}

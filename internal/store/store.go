// Package store provides the durable sqlite-backed persistence layer.
// Two independent stores are kept: the primary store owns end-user
// reachable data (accounts, licenses, download and command logs) and
// the admin store owns administrative and audit data (admin actions,
// generation batches, API access logs, API credentials, cached stats).
//
// Every mutation is committed before the call returns; sqlite runs in
// synchronous mode so a reported success is durable. Each store guards
// its handle with a mutex, so lifecycle operations never interleave
// with other mutations of the same record.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the queried record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a uniqueness precondition failed, such as a
// duplicate license key, display name, or platform identity.
var ErrConflict = errors.New("record already exists")

// open opens a sqlite database at path with the pragmas the stores
// rely on. A single connection keeps all access serialized at the
// driver level as well.
func open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	return db, nil
}

// isUniqueViolation detects sqlite unique-constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Timestamps are stored as Unix milliseconds to stay compatible with
// the original data layout.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// nullableMillis converts an optional time to its stored form.
func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// millisPtr converts a stored nullable timestamp back to a time.
func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"keywarden/internal/license"
)

// Primary is the end-user-reachable store: accounts, licenses, and
// their activity logs.
type Primary struct {
	mu sync.Mutex
	db *sql.DB
}

// User is a registered account bound to exactly one license key.
type User struct {
	ID             int64
	PlatformID     string
	Username       string
	PasswordHash   string
	LicenseKey     string
	RegisteredAt   time.Time
	LastDownloadAt time.Time // zero when the user never downloaded
}

// DownloadLog is one download grant record.
type DownloadLog struct {
	ID         int64
	PlatformID string
	Username   string
	Timestamp  time.Time
}

// CommandLog is one command execution record.
type CommandLog struct {
	ID         int64
	PlatformID string
	Username   string
	Command    string
	Success    bool
	ErrorMsg   string
	Timestamp  time.Time
}

const primarySchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform_id TEXT UNIQUE NOT NULL,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	license_key TEXT UNIQUE NOT NULL,
	registration_date INTEGER NOT NULL,
	last_download INTEGER DEFAULT 0,
	FOREIGN KEY (license_key) REFERENCES licenses(key)
);

CREATE TABLE IF NOT EXISTS licenses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT UNIQUE NOT NULL,
	status TEXT NOT NULL DEFAULT 'unused',
	platform_id TEXT DEFAULT NULL,
	creation_date INTEGER NOT NULL,
	redemption_date INTEGER DEFAULT NULL,
	expiry_date INTEGER DEFAULT NULL,
	created_by TEXT DEFAULT NULL,
	revoked_by TEXT DEFAULT NULL,
	revoke_reason TEXT DEFAULT NULL,
	CHECK (status IN ('unused', 'redeemed', 'revoked'))
);

CREATE TABLE IF NOT EXISTS download_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform_id TEXT NOT NULL,
	username TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS command_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform_id TEXT NOT NULL,
	username TEXT NOT NULL,
	command TEXT NOT NULL,
	success INTEGER NOT NULL,
	error_message TEXT DEFAULT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_platform_id ON users(platform_id);
CREATE INDEX IF NOT EXISTS idx_users_license_key ON users(license_key);
CREATE INDEX IF NOT EXISTS idx_licenses_key ON licenses(key);
CREATE INDEX IF NOT EXISTS idx_licenses_status ON licenses(status);
CREATE INDEX IF NOT EXISTS idx_licenses_platform_id ON licenses(platform_id);
`

// OpenPrimary opens (creating if necessary) the primary store at path.
func OpenPrimary(path string) (*Primary, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(primarySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create primary schema: %w", err)
	}
	return &Primary{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Primary) Close() error {
	return s.db.Close()
}

// --- licenses ---------------------------------------------------------------

const licenseColumns = `key, status, platform_id, creation_date, redemption_date, expiry_date, created_by, revoked_by, revoke_reason`

func scanLicense(row interface{ Scan(...any) error }) (*license.License, error) {
	var (
		l          license.License
		status     string
		platformID sql.NullString
		createdAt  int64
		redeemedAt sql.NullInt64
		expiresAt  sql.NullInt64
		createdBy  sql.NullString
		revokedBy  sql.NullString
		reason     sql.NullString
	)
	if err := row.Scan(&l.Key, &status, &platformID, &createdAt, &redeemedAt, &expiresAt, &createdBy, &revokedBy, &reason); err != nil {
		return nil, err
	}

	st, err := license.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	l.Status = st
	l.OwnerID = platformID.String
	l.CreatedAt = fromMillis(createdAt)
	l.RedeemedAt = millisPtr(redeemedAt)
	l.ExpiresAt = millisPtr(expiresAt)
	l.CreatedBy = createdBy.String
	l.RevokedBy = revokedBy.String
	l.RevokeReason = reason.String
	return &l, nil
}

// CreateLicense inserts a new unused license. A duplicate key yields
// ErrConflict; the caller retries with a freshly generated key.
func (s *Primary) CreateLicense(ctx context.Context, l *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (key, status, creation_date, created_by, expiry_date)
		VALUES (?, 'unused', ?, ?, ?)
	`, l.Key, toMillis(l.CreatedAt), l.CreatedBy, nullableMillis(l.ExpiresAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("license key %s: %w", l.Key, ErrConflict)
	}
	return err
}

// GetLicense fetches a license by key. Absent keys yield ErrNotFound.
func (s *Primary) GetLicense(ctx context.Context, key string) (*license.License, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+licenseColumns+` FROM licenses WHERE key = ?
	`, key)

	l, err := scanLicense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// RedeemLicense marks a license redeemed by owner at the given instant.
// The UPDATE carries a status precondition so a racing redemption can
// never double-apply; zero affected rows reports ErrConflict.
func (s *Primary) RedeemLicense(ctx context.Context, key, ownerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return redeemLicenseTx(ctx, s.db, key, ownerID, at)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func redeemLicenseTx(ctx context.Context, db execer, key, ownerID string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE licenses
		SET status = 'redeemed', platform_id = ?, redemption_date = ?
		WHERE key = ? AND status = 'unused'
	`, ownerID, toMillis(at), key)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("license %s not redeemable: %w", key, ErrConflict)
	}
	return nil
}

// RevokeLicense marks a license revoked, preserving owner and
// redemption metadata for the audit trail.
func (s *Primary) RevokeLicense(ctx context.Context, key, revokedBy, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE licenses
		SET status = 'revoked', revoked_by = ?, revoke_reason = ?
		WHERE key = ? AND status != 'revoked'
	`, revokedBy, reason, key)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("license %s not revocable: %w", key, ErrConflict)
	}
	return nil
}

// ListLicenses returns licenses newest first, optionally filtered by
// status (empty filter means all).
func (s *Primary) ListLicenses(ctx context.Context, status license.Status) ([]*license.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY creation_date DESC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + licenseColumns + ` FROM licenses WHERE status = ? ORDER BY creation_date DESC`
		args = append(args, string(status))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*license.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- users ------------------------------------------------------------------

const userColumns = `id, platform_id, username, password_hash, license_key, registration_date, last_download`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u            User
		registeredAt int64
		lastDownload int64
	)
	if err := row.Scan(&u.ID, &u.PlatformID, &u.Username, &u.PasswordHash, &u.LicenseKey, &registeredAt, &lastDownload); err != nil {
		return nil, err
	}
	u.RegisteredAt = fromMillis(registeredAt)
	if lastDownload > 0 {
		u.LastDownloadAt = fromMillis(lastDownload)
	}
	return &u, nil
}

// GetUserByPlatformID fetches the account for a platform identity.
func (s *Primary) GetUserByPlatformID(ctx context.Context, platformID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE platform_id = ?
	`, platformID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUserByUsername fetches the account holding a display name.
func (s *Primary) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = ?
	`, username)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListUsers returns registered accounts, most recent first.
func (s *Primary) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY registration_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// RegisterUser creates the account and redeems its license inside one
// transaction: either both mutations commit or neither is retained.
func (s *Primary) RegisterUser(ctx context.Context, u *User, redeemAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (platform_id, username, password_hash, license_key, registration_date)
		VALUES (?, ?, ?, ?, ?)
	`, u.PlatformID, u.Username, u.PasswordHash, u.LicenseKey, toMillis(redeemAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("account for %s: %w", u.PlatformID, ErrConflict)
	}
	if err != nil {
		return err
	}

	if err := redeemLicenseTx(ctx, tx, u.LicenseKey, u.PlatformID, redeemAt); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateLastDownload records the instant of the latest granted
// download for cooldown accounting.
func (s *Primary) UpdateLastDownload(ctx context.Context, platformID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_download = ? WHERE platform_id = ?
	`, toMillis(at), platformID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// --- stats ------------------------------------------------------------------

// Counts is a point-in-time tally of the primary store.
type Counts struct {
	Users          int
	TotalLicenses  int
	UnusedLicenses int
	Redeemed       int
	Revoked        int
	Downloads      int
	Commands       int
}

// CountAll tallies rows across the primary tables in one pass per table.
func (s *Primary) CountAll(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&c.Users); err != nil {
		return c, err
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'unused'), 0),
		       COALESCE(SUM(status = 'redeemed'), 0),
		       COALESCE(SUM(status = 'revoked'), 0)
		FROM licenses
	`).Scan(&c.TotalLicenses, &c.UnusedLicenses, &c.Redeemed, &c.Revoked)
	if err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM download_logs`).Scan(&c.Downloads); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM command_logs`).Scan(&c.Commands); err != nil {
		return c, err
	}
	return c, nil
}

// --- logs -------------------------------------------------------------------

// LogDownload appends a download log entry.
func (s *Primary) LogDownload(ctx context.Context, platformID, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_logs (platform_id, username, timestamp)
		VALUES (?, ?, ?)
	`, platformID, username, toMillis(at))
	return err
}

// LogCommand appends a command execution log entry.
func (s *Primary) LogCommand(ctx context.Context, entry CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	success := 0
	if entry.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_logs (platform_id, username, command, success, error_message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.PlatformID, entry.Username, entry.Command, success, entry.ErrorMsg, toMillis(entry.Timestamp))
	return err
}

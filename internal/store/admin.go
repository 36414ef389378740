package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Admin is the operator-facing store: audit trails, generation
// history, API credentials, and access logs. It is kept in a separate
// database file so user-facing traffic never contends with audit
// writes.
type Admin struct {
	mu   sync.Mutex
	db   *sql.DB
	ring *Ring
}

// AdminAction is one audited privileged operation.
type AdminAction struct {
	ID         int64
	AdminID    string
	AdminName  string
	Action     string
	TargetID   string
	TargetName string
	Details    string
	Timestamp  time.Time
}

// GenerationRecord is one bulk key generation batch.
type GenerationRecord struct {
	ID        int64
	AdminID   string
	AdminName string
	Tier      string
	Amount    int
	Keys      string
	Timestamp time.Time
}

// APIKey is one issued validation-API credential.
type APIKey struct {
	ID         int64
	Token      string
	Name       string
	CreatedBy  string
	CreatedAt  time.Time
	LastUsedAt time.Time // zero when never used
	UseCount   int64
	Active     bool
	RevokedBy  string
	RevokedAt  time.Time // zero when active
}

// AccessLog is one validation-API request record.
type AccessLog struct {
	ID         int64
	Endpoint   string
	Method     string
	LicenseKey string
	IP         string
	UserAgent  string
	StatusCode int
	LatencyMS  int64
	Timestamp  time.Time
}

const adminSchema = `
CREATE TABLE IF NOT EXISTS admin_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	admin_id TEXT NOT NULL,
	admin_name TEXT NOT NULL,
	action TEXT NOT NULL,
	target_id TEXT DEFAULT NULL,
	target_name TEXT DEFAULT NULL,
	details TEXT DEFAULT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS license_generation_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	admin_id TEXT NOT NULL,
	admin_name TEXT NOT NULL,
	tier TEXT NOT NULL,
	amount INTEGER NOT NULL,
	keys TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS api_access_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint TEXT NOT NULL,
	method TEXT NOT NULL,
	license_key TEXT DEFAULT NULL,
	ip_address TEXT DEFAULT NULL,
	user_agent TEXT DEFAULT NULL,
	status_code INTEGER DEFAULT NULL,
	response_time_ms INTEGER DEFAULT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_used INTEGER DEFAULT 0,
	use_count INTEGER DEFAULT 0,
	active INTEGER DEFAULT 1,
	revoked_by TEXT DEFAULT NULL,
	revoked_at INTEGER DEFAULT NULL
);

CREATE TABLE IF NOT EXISTS system_stats (
	stat_name TEXT PRIMARY KEY,
	stat_value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_admin_actions_timestamp ON admin_actions(timestamp);
CREATE INDEX IF NOT EXISTS idx_api_access_logs_timestamp ON api_access_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_api_keys_token ON api_keys(token);
`

// OpenAdmin opens (creating if necessary) the admin store at path.
func OpenAdmin(path string) (*Admin, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(adminSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create admin schema: %w", err)
	}
	return &Admin{db: db, ring: NewRing(ringCapacity)}, nil
}

// Close releases the underlying database handle.
func (s *Admin) Close() error {
	return s.db.Close()
}

// --- audit trail ------------------------------------------------------------

// LogAdminAction appends an audit entry for a privileged operation.
func (s *Admin) LogAdminAction(ctx context.Context, a AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_actions (admin_id, admin_name, action, target_id, target_name, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.AdminID, a.AdminName, a.Action, a.TargetID, a.TargetName, a.Details, toMillis(a.Timestamp))
	return err
}

// RecentAdminActions returns the latest audit entries, newest first.
func (s *Admin) RecentAdminActions(ctx context.Context, limit int) ([]AdminAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, admin_name, action,
		       COALESCE(target_id, ''), COALESCE(target_name, ''), COALESCE(details, ''), timestamp
		FROM admin_actions ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminAction
	for rows.Next() {
		var a AdminAction
		var ts int64
		if err := rows.Scan(&a.ID, &a.AdminID, &a.AdminName, &a.Action, &a.TargetID, &a.TargetName, &a.Details, &ts); err != nil {
			return nil, err
		}
		a.Timestamp = fromMillis(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordGeneration appends a bulk generation batch record.
func (s *Admin) RecordGeneration(ctx context.Context, g GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO license_generation_history (admin_id, admin_name, tier, amount, keys, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.AdminID, g.AdminName, g.Tier, g.Amount, g.Keys, toMillis(g.Timestamp))
	return err
}

// TierGeneration is the per-tier rollup of the generation history.
type TierGeneration struct {
	Tier    string
	Keys    int
	Batches int
}

// GenerationStats rolls up the generation history by tier, most
// generated first.
func (s *Admin) GenerationStats(ctx context.Context) ([]TierGeneration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, COALESCE(SUM(amount), 0), COUNT(*)
		FROM license_generation_history
		GROUP BY tier
		ORDER BY SUM(amount) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []TierGeneration
	for rows.Next() {
		var tg TierGeneration
		if err := rows.Scan(&tg.Tier, &tg.Keys, &tg.Batches); err != nil {
			return nil, err
		}
		stats = append(stats, tg)
	}
	return stats, rows.Err()
}

// RecentGenerations returns the newest generation batches.
func (s *Admin) RecentGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, admin_name, tier, amount, keys, timestamp
		FROM license_generation_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		var (
			g  GenerationRecord
			ts int64
		)
		if err := rows.Scan(&g.ID, &g.AdminID, &g.AdminName, &g.Tier, &g.Amount, &g.Keys, &ts); err != nil {
			return nil, err
		}
		g.Timestamp = fromMillis(ts)
		records = append(records, g)
	}
	return records, rows.Err()
}

// --- API credentials --------------------------------------------------------

// CreateAPIKey stores a freshly issued credential.
func (s *Admin) CreateAPIKey(ctx context.Context, k *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (token, name, created_by, created_at, active)
		VALUES (?, ?, ?, ?, 1)
	`, k.Token, k.Name, k.CreatedBy, toMillis(k.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("api key %s: %w", k.Name, ErrConflict)
	}
	if err != nil {
		return err
	}
	k.ID, _ = res.LastInsertId()
	k.Active = true
	return nil
}

// GetActiveAPIKey resolves a presented token to its active credential.
// Unknown or revoked tokens yield ErrNotFound.
func (s *Admin) GetActiveAPIKey(ctx context.Context, token string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, name, created_by, created_at, last_used, use_count, active
		FROM api_keys WHERE token = ? AND active = 1
	`, token)

	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return k, err
}

func scanAPIKey(row interface{ Scan(...any) error }) (*APIKey, error) {
	var (
		k        APIKey
		created  int64
		lastUsed int64
		active   int
	)
	if err := row.Scan(&k.ID, &k.Token, &k.Name, &k.CreatedBy, &created, &lastUsed, &k.UseCount, &active); err != nil {
		return nil, err
	}
	k.CreatedAt = fromMillis(created)
	if lastUsed > 0 {
		k.LastUsedAt = fromMillis(lastUsed)
	}
	k.Active = active == 1
	return &k, nil
}

// TouchAPIKey bumps a credential's use counter and last-used instant.
func (s *Admin) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = ?, use_count = use_count + 1 WHERE id = ?
	`, toMillis(at), id)
	return err
}

// ListAPIKeys returns all credentials, newest first.
func (s *Admin) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, name, created_by, created_at, last_used, use_count, active
		FROM api_keys ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// RevokeAPIKey deactivates a credential by name. Revoking an unknown
// or already-revoked name yields ErrNotFound.
func (s *Admin) RevokeAPIKey(ctx context.Context, name, revokedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET active = 0, revoked_by = ?, revoked_at = ?
		WHERE name = ? AND active = 1
	`, revokedBy, toMillis(at), name)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// --- access logs ------------------------------------------------------------

// LogAccess records one validation-API request. The write is
// best-effort: on failure the entry is retained in an in-memory ring
// so a full audit disk never takes the API down, and the loss is
// reported to the caller's logger by way of the returned error.
func (s *Admin) LogAccess(ctx context.Context, a AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_access_logs (endpoint, method, license_key, ip_address, user_agent, status_code, response_time_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Endpoint, a.Method, a.LicenseKey, a.IP, a.UserAgent, a.StatusCode, a.LatencyMS, toMillis(a.Timestamp))
	if err != nil {
		s.ring.Push(a)
		return fmt.Errorf("access log write failed, entry buffered: %w", err)
	}
	return nil
}

// RecentAccessLogs returns the latest API request records, newest
// first.
func (s *Admin) RecentAccessLogs(ctx context.Context, limit int) ([]AccessLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, method,
		       COALESCE(license_key, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''),
		       COALESCE(status_code, 0), COALESCE(response_time_ms, 0), timestamp
		FROM api_access_logs ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessLog
	for rows.Next() {
		var a AccessLog
		var ts int64
		if err := rows.Scan(&a.ID, &a.Endpoint, &a.Method, &a.LicenseKey, &a.IP, &a.UserAgent, &a.StatusCode, &a.LatencyMS, &ts); err != nil {
			return nil, err
		}
		a.Timestamp = fromMillis(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// BufferedAccessLogs drains entries retained after failed writes.
func (s *Admin) BufferedAccessLogs() []AccessLog {
	return s.ring.Drain()
}

// --- system stats -----------------------------------------------------------

// SetStat upserts a named statistic.
func (s *Admin) SetStat(ctx context.Context, name, value string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_stats (stat_name, stat_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(stat_name) DO UPDATE SET stat_value = excluded.stat_value, updated_at = excluded.updated_at
	`, name, value, toMillis(at))
	return err
}

// GetStat fetches a named statistic; absent names yield ErrNotFound.
func (s *Admin) GetStat(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT stat_value FROM system_stats WHERE stat_name = ?
	`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdmin(t *testing.T) *Admin {
	t.Helper()
	s, err := OpenAdmin(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdminActionAudit(t *testing.T) {
	s := newAdmin(t)
	ctx := context.Background()

	for i, action := range []string{"create_license", "revoke_license", "generate_keys"} {
		require.NoError(t, s.LogAdminAction(ctx, AdminAction{
			AdminID:   "admin-1",
			AdminName: "ops",
			Action:    action,
			TargetID:  "AAAA-BBBB-CCCC-DDDD",
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	actions, err := s.RecentAdminActions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "generate_keys", actions[0].Action, "newest first")
	assert.Equal(t, "revoke_license", actions[1].Action)
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newAdmin(t)
	ctx := context.Background()

	k := &APIKey{Token: "sk_0123456789abcdef0123456789abcdef", Name: "ci", CreatedBy: "admin-1", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAPIKey(ctx, k))
	assert.NotZero(t, k.ID)

	got, err := s.GetActiveAPIKey(ctx, k.Token)
	require.NoError(t, err)
	assert.Equal(t, "ci", got.Name)
	assert.True(t, got.Active)
	assert.True(t, got.LastUsedAt.IsZero())

	at := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.TouchAPIKey(ctx, got.ID, at))

	got, err = s.GetActiveAPIKey(ctx, k.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UseCount)
	assert.Equal(t, at.UnixMilli(), got.LastUsedAt.UnixMilli())

	require.NoError(t, s.RevokeAPIKey(ctx, "ci", "admin-1", time.Now()))

	_, err = s.GetActiveAPIKey(ctx, k.Token)
	assert.ErrorIs(t, err, ErrNotFound, "revoked token no longer authenticates")

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Active)
}

func TestRevokeAPIKeyUnknownName(t *testing.T) {
	s := newAdmin(t)

	err := s.RevokeAPIKey(context.Background(), "missing", "admin-1", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetActiveAPIKeyUnknownToken(t *testing.T) {
	s := newAdmin(t)

	_, err := s.GetActiveAPIKey(context.Background(), "sk_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogAccessAndGeneration(t *testing.T) {
	s := newAdmin(t)
	ctx := context.Background()

	require.NoError(t, s.LogAccess(ctx, AccessLog{
		Endpoint:   "/api/validate",
		Method:     "POST",
		LicenseKey: "AAAA-BBBB-CCCC-DDDD",
		IP:         "203.0.113.9",
		UserAgent:  "curl/8.0",
		StatusCode: 200,
		LatencyMS:  12,
		Timestamp:  time.Now(),
	}))
	assert.Empty(t, s.BufferedAccessLogs())

	require.NoError(t, s.RecordGeneration(ctx, GenerationRecord{
		AdminID: "admin-1", AdminName: "ops", Tier: "7D", Amount: 5,
		Keys: "AAAA-0000-0000-0001, AAAA-0000-0000-0002", Timestamp: time.Now(),
	}))
}

func TestGenerationHistoryRollup(t *testing.T) {
	s := newAdmin(t)
	ctx := context.Background()

	base := time.Now()
	for i, g := range []GenerationRecord{
		{AdminID: "admin-1", AdminName: "ops", Tier: "7D", Amount: 3, Keys: "a, b, c"},
		{AdminID: "admin-1", AdminName: "ops", Tier: "7D", Amount: 2, Keys: "d, e"},
		{AdminID: "admin-2", AdminName: "sam", Tier: "LIFETIME", Amount: 1, Keys: "f"},
	} {
		g.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.RecordGeneration(ctx, g))
	}

	stats, err := s.GenerationStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, TierGeneration{Tier: "7D", Keys: 5, Batches: 2}, stats[0])
	assert.Equal(t, TierGeneration{Tier: "LIFETIME", Keys: 1, Batches: 1}, stats[1])

	recent, err := s.RecentGenerations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "LIFETIME", recent[0].Tier)
	assert.Equal(t, 2, recent[1].Amount)
}

func TestLogAccessFallsBackToRing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO api_access_logs").
		WillReturnError(assert.AnError)

	s := &Admin{db: db, ring: NewRing(10)}
	entry := AccessLog{Endpoint: "/api/validate", Method: "POST", StatusCode: 401, Timestamp: time.Now()}

	err = s.LogAccess(context.Background(), entry)
	require.Error(t, err)

	buffered := s.BufferedAccessLogs()
	require.Len(t, buffered, 1)
	assert.Equal(t, "/api/validate", buffered[0].Endpoint)
	assert.Equal(t, 401, buffered[0].StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSystemStats(t *testing.T) {
	s := newAdmin(t)
	ctx := context.Background()

	require.NoError(t, s.SetStat(ctx, "total_validations", "42", time.Now()))
	require.NoError(t, s.SetStat(ctx, "total_validations", "43", time.Now()))

	v, err := s.GetStat(ctx, "total_validations")
	require.NoError(t, err)
	assert.Equal(t, "43", v)

	_, err = s.GetStat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

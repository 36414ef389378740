package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keywarden/internal/license"
)

func newPrimary(t *testing.T) *Primary {
	t.Helper()
	s, err := OpenPrimary(filepath.Join(t.TempDir(), "primary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetLicense(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	created := time.Now().Truncate(time.Millisecond)
	expires := created.Add(24 * time.Hour)

	err := s.CreateLicense(ctx, &license.License{
		Key:       "AAAA-BBBB-CCCC-DDDD",
		CreatedAt: created,
		ExpiresAt: &expires,
		CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	got, err := s.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, license.StatusUnused, got.Status)
	assert.Equal(t, "admin-1", got.CreatedBy)
	assert.Empty(t, got.OwnerID)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, expires.UnixMilli(), got.ExpiresAt.UnixMilli())
	assert.Nil(t, got.RedeemedAt)
}

func TestCreateLicenseLifetime(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()

	err := s.CreateLicense(ctx, &license.License{
		Key:       "LIFE-LIFE-LIFE-LIFE",
		CreatedAt: time.Now(),
		CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	got, err := s.GetLicense(ctx, "LIFE-LIFE-LIFE-LIFE")
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.True(t, got.IsLifetime())
}

func TestCreateLicenseDuplicateKey(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	l := &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}

	require.NoError(t, s.CreateLicense(ctx, l))
	err := s.CreateLicense(ctx, l)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetLicenseNotFound(t *testing.T) {
	s := newPrimary(t)

	_, err := s.GetLicense(context.Background(), "ZZZZ-ZZZZ-ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemLicense(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}))

	at := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.RedeemLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "user-1", at))

	got, err := s.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, license.StatusRedeemed, got.Status)
	assert.Equal(t, "user-1", got.OwnerID)
	require.NotNil(t, got.RedeemedAt)
	assert.Equal(t, at.UnixMilli(), got.RedeemedAt.UnixMilli())
}

func TestRedeemLicenseNotUnused(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	require.NoError(t, s.RedeemLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "user-1", time.Now()))

	err := s.RedeemLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "user-2", time.Now())
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID, "first redemption must stand")
}

func TestRevokeLicensePreservesOwnership(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	require.NoError(t, s.RedeemLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "user-1", time.Now()))

	require.NoError(t, s.RevokeLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "admin-2", "abuse"))

	got, err := s.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, license.StatusRevoked, got.Status)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.NotNil(t, got.RedeemedAt)
	assert.Equal(t, "admin-2", got.RevokedBy)
	assert.Equal(t, "abuse", got.RevokeReason)
}

func TestRevokeLicenseTwice(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	require.NoError(t, s.RevokeLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "admin-1", "test"))

	err := s.RevokeLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "admin-1", "again")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListLicensesFiltered(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	for _, key := range []string{"AAAA-0000-0000-0001", "AAAA-0000-0000-0002", "AAAA-0000-0000-0003"} {
		require.NoError(t, s.CreateLicense(ctx, &license.License{Key: key, CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	}
	require.NoError(t, s.RedeemLicense(ctx, "AAAA-0000-0000-0002", "user-1", time.Now()))

	all, err := s.ListLicenses(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unused, err := s.ListLicenses(ctx, license.StatusUnused)
	require.NoError(t, err)
	assert.Len(t, unused, 2)

	redeemed, err := s.ListLicenses(ctx, license.StatusRedeemed)
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	assert.Equal(t, "AAAA-0000-0000-0002", redeemed[0].Key)
}

func TestRegisterUser(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}))

	at := time.Now().Truncate(time.Millisecond)
	err := s.RegisterUser(ctx, &User{
		PlatformID:   "user-1",
		Username:     "alice",
		PasswordHash: "$2a$12$hash",
		LicenseKey:   "AAAA-BBBB-CCCC-DDDD",
	}, at)
	require.NoError(t, err)

	u, err := s.GetUserByPlatformID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "AAAA-BBBB-CCCC-DDDD", u.LicenseKey)
	assert.True(t, u.LastDownloadAt.IsZero())

	l, err := s.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, license.StatusRedeemed, l.Status)
	assert.Equal(t, "user-1", l.OwnerID)
}

func TestRegisterUserAtomicOnDuplicateUsername(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-0000-0000-0001", CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-0000-0000-0002", CreatedAt: time.Now(), CreatedBy: "admin-1"}))

	require.NoError(t, s.RegisterUser(ctx, &User{
		PlatformID: "user-1", Username: "alice", PasswordHash: "h", LicenseKey: "AAAA-0000-0000-0001",
	}, time.Now()))

	err := s.RegisterUser(ctx, &User{
		PlatformID: "user-2", Username: "alice", PasswordHash: "h", LicenseKey: "AAAA-0000-0000-0002",
	}, time.Now())
	require.ErrorIs(t, err, ErrConflict)

	// The rejected registration must leave its license untouched.
	l, err := s.GetLicense(ctx, "AAAA-0000-0000-0002")
	require.NoError(t, err)
	assert.Equal(t, license.StatusUnused, l.Status)
	assert.Empty(t, l.OwnerID)

	_, err = s.GetUserByPlatformID(ctx, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterUserAtomicOnRedeemedKey(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-0000-0000-0001", CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	require.NoError(t, s.RedeemLicense(ctx, "AAAA-0000-0000-0001", "user-1", time.Now()))

	err := s.RegisterUser(ctx, &User{
		PlatformID: "user-2", Username: "bob", PasswordHash: "h", LicenseKey: "AAAA-0000-0000-0001",
	}, time.Now())
	require.ErrorIs(t, err, ErrConflict)

	// The failed redemption must not leave an orphan account behind.
	_, err = s.GetUserByPlatformID(ctx, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLastDownload(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLicense(ctx, &license.License{Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	require.NoError(t, s.RegisterUser(ctx, &User{
		PlatformID: "user-1", Username: "alice", PasswordHash: "h", LicenseKey: "AAAA-BBBB-CCCC-DDDD",
	}, time.Now()))

	at := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.UpdateLastDownload(ctx, "user-1", at))

	u, err := s.GetUserByPlatformID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), u.LastDownloadAt.UnixMilli())

	assert.ErrorIs(t, s.UpdateLastDownload(ctx, "user-unknown", at), ErrNotFound)
}

func TestCountAll(t *testing.T) {
	s := newPrimary(t)
	ctx := context.Background()
	for _, key := range []string{"AAAA-0000-0000-0001", "AAAA-0000-0000-0002", "AAAA-0000-0000-0003"} {
		require.NoError(t, s.CreateLicense(ctx, &license.License{Key: key, CreatedAt: time.Now(), CreatedBy: "admin-1"}))
	}
	require.NoError(t, s.RegisterUser(ctx, &User{
		PlatformID: "user-1", Username: "alice", PasswordHash: "h", LicenseKey: "AAAA-0000-0000-0001",
	}, time.Now()))
	require.NoError(t, s.RevokeLicense(ctx, "AAAA-0000-0000-0002", "admin-1", "test"))
	require.NoError(t, s.LogDownload(ctx, "user-1", "alice", time.Now()))
	require.NoError(t, s.LogCommand(ctx, CommandLog{PlatformID: "user-1", Username: "alice", Command: "redeem", Success: true, Timestamp: time.Now()}))

	c, err := s.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{
		Users:          1,
		TotalLicenses:  3,
		UnusedLicenses: 1,
		Redeemed:       1,
		Revoked:        1,
		Downloads:      1,
		Commands:       1,
	}, c)
}

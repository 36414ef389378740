package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keywarden/internal/license"
	"keywarden/internal/security"
	"keywarden/internal/store"
)

const testDownloadURL = "https://downloads.example.com/app.zip"

func newAccountService(t *testing.T) (*AccountService, *store.Primary) {
	t.Helper()
	primary, _ := newTestStores(t)
	svc := NewAccountService(primary, 4, time.Hour, testDownloadURL, nil)
	return svc, primary
}

func seedLicense(t *testing.T, primary *store.Primary, key string) {
	t.Helper()
	require.NoError(t, primary.CreateLicense(context.Background(), &license.License{
		Key: key, CreatedAt: time.Now(), CreatedBy: "admin-1",
	}))
}

func TestRegisterRedeemsAtomically(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	seedLicense(t, primary, "AAAA-BBBB-CCCC-DDDD")

	u, err := svc.Register(ctx, RegisterInput{
		AccountID:  "user-1",
		Username:   "alice_01",
		Password:   "Sup3rSecret",
		LicenseKey: "aaaa-bbbb-cccc-dddd",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAAA-BBBB-CCCC-DDDD", u.LicenseKey)
	assert.True(t, security.VerifyPassword("Sup3rSecret", u.PasswordHash))
	assert.False(t, security.VerifyPassword("wrong-password", u.PasswordHash))

	l, err := primary.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, license.StatusRedeemed, l.Status)
	assert.Equal(t, "user-1", l.OwnerID)
}

func TestRegisterFormatFailuresSkipStore(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	seedLicense(t, primary, "AAAA-BBBB-CCCC-DDDD")

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"short username", RegisterInput{AccountID: "u", Username: "ab", Password: "Sup3rSecret", LicenseKey: "AAAA-BBBB-CCCC-DDDD"}},
		{"weak password", RegisterInput{AccountID: "u", Username: "alice_01", Password: "password", LicenseKey: "AAAA-BBBB-CCCC-DDDD"}},
		{"malformed key", RegisterInput{AccountID: "u", Username: "alice_01", Password: "Sup3rSecret", LicenseKey: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			require.Error(t, err)
		})
	}

	// None of the rejections may have touched the license.
	l, err := primary.GetLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, license.StatusUnused, l.Status)
}

func TestRegisterConflicts(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	seedLicense(t, primary, "AAAA-0000-0000-0001")
	seedLicense(t, primary, "AAAA-0000-0000-0002")

	_, err := svc.Register(ctx, RegisterInput{
		AccountID: "user-1", Username: "alice_01", Password: "Sup3rSecret", LicenseKey: "AAAA-0000-0000-0001",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{
		AccountID: "user-1", Username: "other_name", Password: "Sup3rSecret", LicenseKey: "AAAA-0000-0000-0002",
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = svc.Register(ctx, RegisterInput{
		AccountID: "user-2", Username: "alice_01", Password: "Sup3rSecret", LicenseKey: "AAAA-0000-0000-0002",
	})
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.Register(ctx, RegisterInput{
		AccountID: "user-2", Username: "bob_02", Password: "Sup3rSecret", LicenseKey: "AAAA-0000-0000-0001",
	})
	var already *license.AlreadyRedeemedError
	require.ErrorAs(t, err, &already)
	assert.False(t, already.ByCaller)

	// The losing registration left its own license untouched.
	l, err := primary.GetLicense(ctx, "AAAA-0000-0000-0002")
	require.NoError(t, err)
	assert.Equal(t, license.StatusUnused, l.Status)
}

func registerTestUser(t *testing.T, svc *AccountService, primary *store.Primary, key string) {
	t.Helper()
	seedLicense(t, primary, key)
	_, err := svc.Register(context.Background(), RegisterInput{
		AccountID: "user-1", Username: "alice_01", Password: "Sup3rSecret", LicenseKey: key,
	})
	require.NoError(t, err)
}

func TestRequestDownloadGrants(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	registerTestUser(t, svc, primary, "AAAA-BBBB-CCCC-DDDD")

	grant, err := svc.RequestDownload(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, testDownloadURL, grant.URL)

	u, err := primary.GetUserByPlatformID(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, u.LastDownloadAt.IsZero())
}

func TestRequestDownloadCooldownBoundary(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	registerTestUser(t, svc, primary, "AAAA-BBBB-CCCC-DDDD")

	base := time.Now().Truncate(time.Millisecond)
	require.NoError(t, primary.UpdateLastDownload(ctx, "user-1", base))

	// 59 minutes in: one minute remaining, rounded up.
	svc.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, err := svc.RequestDownload(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD")
	var cooldown *CooldownActiveError
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 1, cooldown.RemainingMinutes)

	// 59 minutes and change: still one minute by ceiling.
	svc.now = func() time.Time { return base.Add(59*time.Minute + 30*time.Second) }
	_, err = svc.RequestDownload(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD")
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 1, cooldown.RemainingMinutes)

	// Exactly at the window: allowed.
	svc.now = func() time.Time { return base.Add(60 * time.Minute) }
	_, err = svc.RequestDownload(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD")
	assert.NoError(t, err)
}

func TestRequestDownloadRejections(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	registerTestUser(t, svc, primary, "AAAA-BBBB-CCCC-DDDD")
	seedLicense(t, primary, "AAAA-0000-0000-0009")

	_, err := svc.RequestDownload(ctx, "user-unknown", "AAAA-BBBB-CCCC-DDDD")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = svc.RequestDownload(ctx, "user-1", "AAAA-0000-0000-0009")
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestRequestDownloadRevokedLicense(t *testing.T) {
	svc, primary := newAccountService(t)
	ctx := context.Background()
	registerTestUser(t, svc, primary, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, primary.RevokeLicense(ctx, "AAAA-BBBB-CCCC-DDDD", "admin-1", "fraud"))

	_, err := svc.RequestDownload(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD")
	var revoked *license.RevokedError
	require.ErrorAs(t, err, &revoked)
	assert.Equal(t, "fraud", revoked.Reason)
}

func TestRequestDownloadExpiredLicense(t *testing.T) {
	primary, _ := newTestStores(t)
	svc := NewAccountService(primary, 4, time.Hour, testDownloadURL, nil)
	ctx := context.Background()

	expires := time.Now().Add(time.Minute)
	require.NoError(t, primary.CreateLicense(ctx, &license.License{
		Key: "AAAA-BBBB-CCCC-DDDD", CreatedAt: time.Now(), ExpiresAt: &expires, CreatedBy: "admin-1",
	}))
	_, err := svc.Register(ctx, RegisterInput{
		AccountID: "user-1", Username: "alice_01", Password: "Sup3rSecret", LicenseKey: "AAAA-BBBB-CCCC-DDDD",
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return expires.Add(time.Second) }
	_, err = svc.RequestDownload(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD")
	var expired *license.ExpiredError
	assert.ErrorAs(t, err, &expired)
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/license"
	"keywarden/internal/security"
	"keywarden/internal/store"
)

// AccountService implements registration and download gating.
type AccountService struct {
	primary    *store.Primary
	logger     *slog.Logger
	bcryptCost int
	cooldown   time.Duration
	downloadTo string
	now        func() time.Time
}

// NewAccountService creates an account service over the primary store.
func NewAccountService(primary *store.Primary, bcryptCost int, cooldown time.Duration, downloadURL string, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		primary:    primary,
		logger:     logger.With(slog.String("service", "account")),
		bcryptCost: bcryptCost,
		cooldown:   cooldown,
		downloadTo: downloadURL,
		now:        time.Now,
	}
}

// RegisterInput carries the signup command's parsed fields.
type RegisterInput struct {
	AccountID  string
	Username   string
	Password   string
	LicenseKey string
}

// Register creates an account bound to a license key, redeeming the
// key in the same transaction. Format failures are decided before any
// store access; the account and the redemption commit together or not
// at all.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	if !security.IsValidUsername(in.Username) {
		return nil, apperrors.NewValidationError("username must be 3-20 characters: letters, digits, underscore")
	}
	if !security.IsValidPassword(in.Password) {
		return nil, apperrors.NewValidationError("password must be at least 8 characters with uppercase, lowercase, and a digit")
	}
	key := security.NormalizeKey(in.LicenseKey)
	if !security.IsValidKeyFormat(key) {
		return nil, apperrors.NewValidationError("invalid license key format")
	}

	if _, err := s.primary.GetUserByPlatformID(ctx, in.AccountID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewStorageError("failed to check existing account", err)
	}

	if _, err := s.primary.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewStorageError("failed to check username", err)
	}

	l, err := s.primary.GetLicense(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load license", err)
	}
	if err := license.CheckRedeemable(l, in.AccountID, s.now()); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "failed to hash credential", err)
	}

	u := &store.User{
		PlatformID:   in.AccountID,
		Username:     in.Username,
		PasswordHash: hash,
		LicenseKey:   key,
	}
	if err := s.primary.RegisterUser(ctx, u, s.now()); err != nil {
		// A racing signup took the name, the account slot, or the key
		// between our checks and the transaction; re-read to report
		// the precise precondition that failed.
		if errors.Is(err, store.ErrConflict) {
			return nil, s.classifyRegisterConflict(ctx, in, key)
		}
		return nil, apperrors.NewStorageError("failed to register account", err)
	}

	registrationsTotal.Inc()
	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", in.AccountID),
		slog.String("username", in.Username),
		slog.String("key", key))
	return u, nil
}

func (s *AccountService) classifyRegisterConflict(ctx context.Context, in RegisterInput, key string) error {
	if _, err := s.primary.GetUserByPlatformID(ctx, in.AccountID); err == nil {
		return ErrAlreadyRegistered
	}
	if _, err := s.primary.GetUserByUsername(ctx, in.Username); err == nil {
		return ErrNameTaken
	}
	if l, err := s.primary.GetLicense(ctx, key); err == nil {
		if cerr := license.CheckRedeemable(l, in.AccountID, s.now()); cerr != nil {
			return cerr
		}
	}
	return ErrAlreadyRegistered
}

// DownloadGrant is a successful download request.
type DownloadGrant struct {
	URL       string
	ExpiresAt *time.Time // license expiry, nil for lifetime
}

// RequestDownload gates access to the download resource: the caller
// must be registered, supply their own bound key, hold a currently
// valid license, and be outside the cooldown window. Remaining
// cooldown is reported in whole minutes, rounded up.
func (s *AccountService) RequestDownload(ctx context.Context, accountID, rawKey string) (*DownloadGrant, error) {
	key := security.NormalizeKey(rawKey)
	if !security.IsValidKeyFormat(key) {
		return nil, apperrors.NewValidationError("invalid license key format")
	}

	u, err := s.primary.GetUserByPlatformID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load account", err)
	}

	if u.LicenseKey != key {
		return nil, ErrKeyMismatch
	}

	l, err := s.primary.GetLicense(ctx, u.LicenseKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load license", err)
	}

	now := s.now()
	switch result := license.Validate(l, u.LicenseKey, now); result.Outcome {
	case license.OutcomeValid:
	case license.OutcomeRevoked:
		return nil, &license.RevokedError{RevokedBy: result.RevokedBy, Reason: result.RevokeReason}
	case license.OutcomeExpired:
		return nil, &license.ExpiredError{ExpiresAt: *result.ExpiredAt}
	case license.OutcomeNotActivated:
		return nil, ErrLicenseNotActive
	default:
		return nil, license.ErrNotFound
	}

	if !u.LastDownloadAt.IsZero() {
		elapsed := now.Sub(u.LastDownloadAt)
		if elapsed < s.cooldown {
			remaining := s.cooldown - elapsed
			minutes := int((remaining + time.Minute - 1) / time.Minute)
			return nil, &CooldownActiveError{RemainingMinutes: minutes}
		}
	}

	if err := s.primary.UpdateLastDownload(ctx, accountID, now); err != nil {
		return nil, apperrors.NewStorageError("failed to record download", err)
	}
	if err := s.primary.LogDownload(ctx, accountID, u.Username, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to append download log", slog.String("error", err.Error()))
	}

	downloadsTotal.Inc()
	s.logger.InfoContext(ctx, "download granted",
		slog.String("account_id", accountID),
		slog.String("username", u.Username))
	return &DownloadGrant{URL: s.downloadTo, ExpiresAt: l.ExpiresAt}, nil
}

// ListUsers returns registered accounts, most recent first.
func (s *AccountService) ListUsers(ctx context.Context) ([]*store.User, error) {
	users, err := s.primary.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list users", err)
	}
	return users, nil
}

// LogCommand appends a command execution record; failures are logged,
// never surfaced to the user.
func (s *AccountService) LogCommand(ctx context.Context, entry store.CommandLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.primary.LogCommand(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append command log",
			slog.String("command", entry.Command),
			slog.String("error", err.Error()))
	}
}

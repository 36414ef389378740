package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/license"
	"keywarden/internal/security"
	"keywarden/internal/store"
)

// MaxCreateAmount caps one create_license invocation.
const MaxCreateAmount = 50

// MaxGenerateAmount caps one generate_keys invocation.
const MaxGenerateAmount = 100

// keyRetries bounds regeneration attempts when a generated key
// collides with an existing row. With a 36^16 key space a single
// retry is already rare; giving up means the RNG is broken.
const keyRetries = 5

// LicenseService implements license issuance, redemption, revocation,
// and the canonical validation used by both surfaces.
type LicenseService struct {
	primary *store.Primary
	admin   *store.Admin
	logger  *slog.Logger
	now     func() time.Time
}

// NewLicenseService creates a license service over the two stores.
func NewLicenseService(primary *store.Primary, admin *store.Admin, logger *slog.Logger) *LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseService{
		primary: primary,
		admin:   admin,
		logger:  logger.With(slog.String("service", "license")),
		now:     time.Now,
	}
}

// Issuer identifies the administrator performing a privileged call.
type Issuer struct {
	ID   string
	Name string
}

func (s *LicenseService) createOne(ctx context.Context, issuer Issuer, expiresAt *time.Time) (string, error) {
	for attempt := 0; attempt < keyRetries; attempt++ {
		key, err := security.GenerateKey()
		if err != nil {
			return "", apperrors.NewLicenseError("key generation failed", err)
		}

		err = s.primary.CreateLicense(ctx, &license.License{
			Key:       key,
			Status:    license.StatusUnused,
			CreatedAt: s.now(),
			ExpiresAt: expiresAt,
			CreatedBy: issuer.ID,
		})
		if errors.Is(err, store.ErrConflict) {
			s.logger.WarnContext(ctx, "generated key collided, retrying",
				slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return "", apperrors.NewStorageError("failed to store license", err)
		}
		return key, nil
	}
	return "", apperrors.NewLicenseError("could not generate a unique key", nil)
}

// Create issues amount fresh licenses, each expiring expiryDays after
// creation (0 means lifetime). The batch is audited as one action.
func (s *LicenseService) Create(ctx context.Context, issuer Issuer, amount, expiryDays int) ([]string, error) {
	if amount < 1 || amount > MaxCreateAmount {
		return nil, apperrors.NewValidationError(fmt.Sprintf("amount must be between 1 and %d", MaxCreateAmount))
	}
	if expiryDays < 0 {
		return nil, apperrors.NewValidationError("expiry_days must not be negative")
	}

	keys := make([]string, 0, amount)
	for i := 0; i < amount; i++ {
		var expiresAt *time.Time
		if expiryDays > 0 {
			expiresAt = license.ExpiryFromDays(s.now(), expiryDays)
		}
		key, err := s.createOne(ctx, issuer, expiresAt)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	keysGeneratedTotal.WithLabelValues("custom").Add(float64(len(keys)))
	s.audit(ctx, issuer, "create_license", "", fmt.Sprintf("amount=%d expiry_days=%d", amount, expiryDays))

	s.logger.InfoContext(ctx, "licenses created",
		slog.String("admin_id", issuer.ID),
		slog.Int("amount", len(keys)),
		slog.Int("expiry_days", expiryDays))
	return keys, nil
}

// Generate issues amount licenses of a named tier and records the
// batch in the generation history.
func (s *LicenseService) Generate(ctx context.Context, issuer Issuer, tierCode string, amount int) (license.Tier, []string, error) {
	tier, err := license.TierByCode(tierCode)
	if err != nil {
		return license.Tier{}, nil, apperrors.NewValidationError(err.Error())
	}
	if amount < 1 || amount > MaxGenerateAmount {
		return tier, nil, apperrors.NewValidationError(fmt.Sprintf("amount must be between 1 and %d", MaxGenerateAmount))
	}

	keys := make([]string, 0, amount)
	for i := 0; i < amount; i++ {
		key, err := s.createOne(ctx, issuer, tier.ExpiryFrom(s.now()))
		if err != nil {
			return tier, keys, err
		}
		keys = append(keys, key)
	}

	keysGeneratedTotal.WithLabelValues(tier.Code).Add(float64(len(keys)))

	if err := s.admin.RecordGeneration(ctx, store.GenerationRecord{
		AdminID:   issuer.ID,
		AdminName: issuer.Name,
		Tier:      tier.Code,
		Amount:    len(keys),
		Keys:      strings.Join(keys, ", "),
		Timestamp: s.now(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to record generation batch", slog.String("error", err.Error()))
	}
	s.audit(ctx, issuer, "generate_keys", "", fmt.Sprintf("tier=%s amount=%d", tier.Code, len(keys)))

	s.logger.InfoContext(ctx, "key batch generated",
		slog.String("admin_id", issuer.ID),
		slog.String("tier", tier.Code),
		slog.Int("amount", len(keys)))
	return tier, keys, nil
}

// Redeem binds a license key to accountID. Format failures never
// reach the store; state failures carry the lifecycle taxonomy.
func (s *LicenseService) Redeem(ctx context.Context, accountID, rawKey string) (*license.License, error) {
	key := security.NormalizeKey(rawKey)
	if !security.IsValidKeyFormat(key) {
		return nil, apperrors.NewValidationError("invalid license key format")
	}

	l, err := s.primary.GetLicense(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load license", err)
	}

	now := s.now()
	if err := license.CheckRedeemable(l, accountID, now); err != nil {
		return nil, err
	}

	if err := s.primary.RedeemLicense(ctx, key, accountID, now); err != nil {
		// The precondition lost a race: someone redeemed between our
		// read and write. Re-read so the caller sees AlreadyRedeemed.
		if errors.Is(err, store.ErrConflict) {
			if current, rerr := s.primary.GetLicense(ctx, key); rerr == nil {
				return nil, license.CheckRedeemable(current, accountID, now)
			}
		}
		return nil, apperrors.NewStorageError("failed to redeem license", err)
	}

	license.Redeem(l, accountID, now)
	redemptionsTotal.Inc()

	s.logger.InfoContext(ctx, "license redeemed",
		slog.String("key", key),
		slog.String("owner", accountID))
	return l, nil
}

// Revoke marks a license revoked, preserving owner and redemption
// metadata, and audits the action.
func (s *LicenseService) Revoke(ctx context.Context, issuer Issuer, rawKey, reason string) (*license.License, error) {
	key := security.NormalizeKey(rawKey)
	if !security.IsValidKeyFormat(key) {
		return nil, apperrors.NewValidationError("invalid license key format")
	}

	l, err := s.primary.GetLicense(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load license", err)
	}

	if err := license.CheckRevocable(l); err != nil {
		return nil, err
	}

	if err := s.primary.RevokeLicense(ctx, key, issuer.ID, reason); err != nil {
		if errors.Is(err, store.ErrConflict) {
			if current, rerr := s.primary.GetLicense(ctx, key); rerr == nil {
				return nil, license.CheckRevocable(current)
			}
		}
		return nil, apperrors.NewStorageError("failed to revoke license", err)
	}

	license.Revoke(l, issuer.ID, reason)
	revocationsTotal.Inc()
	s.audit(ctx, issuer, "revoke_license", key, reason)

	s.logger.InfoContext(ctx, "license revoked",
		slog.String("key", key),
		slog.String("admin_id", issuer.ID),
		slog.String("reason", reason))
	return l, nil
}

// Validate runs the canonical verdict for one key. A malformed key is
// decided without touching the store. A store read failure is an
// error, never a verdict: the caller must not treat an outage as a
// nonexistent license.
func (s *LicenseService) Validate(ctx context.Context, rawKey string) (license.ValidationResult, error) {
	key := security.NormalizeKey(rawKey)
	if !security.IsValidKeyFormat(key) {
		result := license.ValidationResult{
			Key:     key,
			Outcome: license.OutcomeNonexistent,
			Reason:  "Invalid license key format",
		}
		validationsTotal.WithLabelValues(string(result.Outcome)).Inc()
		return result, nil
	}

	l, err := s.primary.GetLicense(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.ErrorContext(ctx, "validation store read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return license.ValidationResult{}, apperrors.NewStorageError("failed to load license", err)
	}

	result := license.Validate(l, key, s.now())
	validationsTotal.WithLabelValues(string(result.Outcome)).Inc()
	return result, nil
}

// ValidateBatch validates up to MaxBatchKeys keys, returning results
// in input order. An oversized batch is rejected before any store
// access.
func (s *LicenseService) ValidateBatch(ctx context.Context, rawKeys []string) ([]license.ValidationResult, error) {
	if len(rawKeys) > license.MaxBatchKeys {
		return nil, license.ErrTooManyKeys
	}

	results := make([]license.ValidationResult, 0, len(rawKeys))
	for _, raw := range rawKeys {
		result, err := s.Validate(ctx, raw)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Get fetches one license by key; absent keys yield
// license.ErrNotFound.
func (s *LicenseService) Get(ctx context.Context, rawKey string) (*license.License, error) {
	key := security.NormalizeKey(rawKey)
	if !security.IsValidKeyFormat(key) {
		return nil, license.ErrNotFound
	}
	l, err := s.primary.GetLicense(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load license", err)
	}
	return l, nil
}

// List returns licenses newest first, optionally filtered by status
// ("" means all; an unknown status is a validation failure).
func (s *LicenseService) List(ctx context.Context, statusFilter string) ([]*license.License, error) {
	var status license.Status
	if statusFilter != "" {
		parsed, err := license.ParseStatus(statusFilter)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		status = parsed
	}

	out, err := s.primary.ListLicenses(ctx, status)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list licenses", err)
	}
	return out, nil
}

func (s *LicenseService) audit(ctx context.Context, issuer Issuer, action, targetID, details string) {
	err := s.admin.LogAdminAction(ctx, store.AdminAction{
		AdminID:   issuer.ID,
		AdminName: issuer.Name,
		Action:    action,
		TargetID:  targetID,
		Details:   details,
		Timestamp: s.now(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

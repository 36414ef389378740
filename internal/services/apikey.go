package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/security"
	"keywarden/internal/store"
)

// APIKeyService manages validation-API credentials.
type APIKeyService struct {
	admin  *store.Admin
	logger *slog.Logger
	now    func() time.Time
}

// NewAPIKeyService creates an API credential service over the admin store.
func NewAPIKeyService(admin *store.Admin, logger *slog.Logger) *APIKeyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyService{
		admin:  admin,
		logger: logger.With(slog.String("service", "apikey")),
		now:    time.Now,
	}
}

// Create issues a fresh sk_ token under a human-readable name. The
// full token is returned exactly once; afterwards only its name and
// usage metadata are listable.
func (s *APIKeyService) Create(ctx context.Context, issuer Issuer, name string) (*store.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("credential name is required")
	}

	token, err := security.GenerateAPIToken()
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "token generation failed", err)
	}

	k := &store.APIKey{
		Token:     token,
		Name:      name,
		CreatedBy: issuer.ID,
		CreatedAt: s.now(),
	}
	if err := s.admin.CreateAPIKey(ctx, k); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.NewValidationError("a credential with that token already exists")
		}
		return nil, apperrors.NewStorageError("failed to store credential", err)
	}

	s.audit(ctx, issuer, "api_key_create", name)
	s.logger.InfoContext(ctx, "api credential issued",
		slog.String("name", name),
		slog.String("admin_id", issuer.ID))
	return k, nil
}

// List returns all credentials, newest first, with tokens masked.
func (s *APIKeyService) List(ctx context.Context) ([]store.APIKey, error) {
	keys, err := s.admin.ListAPIKeys(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list credentials", err)
	}
	for i := range keys {
		keys[i].Token = MaskToken(keys[i].Token)
	}
	return keys, nil
}

// Revoke deactivates a credential by name.
func (s *APIKeyService) Revoke(ctx context.Context, issuer Issuer, name string) error {
	err := s.admin.RevokeAPIKey(ctx, strings.TrimSpace(name), issuer.ID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewValidationError("no active credential with that name")
	}
	if err != nil {
		return apperrors.NewStorageError("failed to revoke credential", err)
	}

	s.audit(ctx, issuer, "api_key_revoke", name)
	s.logger.InfoContext(ctx, "api credential revoked",
		slog.String("name", name),
		slog.String("admin_id", issuer.ID))
	return nil
}

func (s *APIKeyService) audit(ctx context.Context, issuer Issuer, action, target string) {
	err := s.admin.LogAdminAction(ctx, store.AdminAction{
		AdminID:    issuer.ID,
		AdminName:  issuer.Name,
		Action:     action,
		TargetName: target,
		Timestamp:  s.now(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// MaskToken hides all but the prefix and last four characters of a
// token for display.
func MaskToken(token string) string {
	if len(token) <= len(security.APITokenPrefix)+4 {
		return token
	}
	return security.APITokenPrefix + "..." + token[len(token)-4:]
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/license"
	"keywarden/internal/middleware"
)

var validate = validator.New()

// LicenseValidator is the slice of the license service the API needs.
type LicenseValidator interface {
	Validate(ctx context.Context, key string) (license.ValidationResult, error)
	ValidateBatch(ctx context.Context, keys []string) ([]license.ValidationResult, error)
	Get(ctx context.Context, key string) (*license.License, error)
}

// ValidateHandler serves the license validation endpoints.
type ValidateHandler struct {
	service LicenseValidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewValidateHandler creates a validation handler.
func NewValidateHandler(service LicenseValidator, logger *slog.Logger) *ValidateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidateHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "validate")),
		now:     time.Now,
	}
}

type validateRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
}

type validateResponse struct {
	Success bool         `json:"success"`
	Valid   bool         `json:"valid"`
	Reason  string       `json:"reason,omitempty"`
	Details any          `json:"details,omitempty"`
	License *licenseView `json:"license,omitempty"`
}

type revokedDetails struct {
	RevokedBy    string `json:"revoked_by"`
	RevokeReason string `json:"revoke_reason"`
}

type expiredDetails struct {
	ExpiryDate int64  `json:"expiry_date"`
	ExpiredAt  string `json:"expired_at"`
}

// Validate handles POST /api/validate.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apperrors.ErrInvalidRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apperrors.ErrMissingKey)
		return
	}

	middleware.SetLicenseKey(r.Context(), req.LicenseKey)

	result, err := h.service.Validate(r.Context(), req.LicenseKey)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "validation failed", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.ErrInternalServer)
		return
	}

	resp := validateResponse{Success: true, Valid: result.Valid(), Reason: result.Reason}
	switch result.Outcome {
	case license.OutcomeRevoked:
		resp.Details = revokedDetails{
			RevokedBy:    result.RevokedBy,
			RevokeReason: result.RevokeReason,
		}
	case license.OutcomeExpired:
		resp.Details = expiredDetails{
			ExpiryDate: result.ExpiredAt.UnixMilli(),
			ExpiredAt:  result.ExpiredAt.UTC().Format(time.RFC3339Nano),
		}
	case license.OutcomeValid:
		view := newLicenseView(result.License)
		resp.License = &view
	}

	render.JSON(w, r, resp)
}

// GetLicense handles GET /api/license/{key}.
func (h *ValidateHandler) GetLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	middleware.SetLicenseKey(r.Context(), key)

	l, err := h.service.Get(r.Context(), key)
	if errors.Is(err, license.ErrNotFound) {
		render.Render(w, r, apperrors.ErrLicenseNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "license lookup failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, map[string]any{
		"success": true,
		"license": newLicenseDetailView(l, h.now()),
	})
}

type batchRequest struct {
	LicenseKeys []string `json:"license_keys"`
}

type batchResult struct {
	Key    string `json:"key"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type batchResponse struct {
	Success      bool          `json:"success"`
	Total        int           `json:"total"`
	ValidCount   int           `json:"valid_count"`
	InvalidCount int           `json:"invalid_count"`
	Results      []batchResult `json:"results"`
}

// ValidateBatch handles POST /api/validate/batch.
func (h *ValidateHandler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apperrors.ErrInvalidRequest)
		return
	}
	if req.LicenseKeys == nil {
		render.Render(w, r, apperrors.ErrMissingKeys)
		return
	}

	results, err := h.service.ValidateBatch(r.Context(), req.LicenseKeys)
	if errors.Is(err, license.ErrTooManyKeys) {
		render.Render(w, r, apperrors.ErrTooManyKeys)
		return
	}
	if err != nil {
		render.Render(w, r, apperrors.ErrInternalServer)
		return
	}

	resp := batchResponse{
		Success: true,
		Total:   len(req.LicenseKeys),
		Results: make([]batchResult, 0, len(results)),
	}
	for i, result := range results {
		br := batchResult{Key: req.LicenseKeys[i], Valid: result.Valid()}
		if !br.Valid {
			br.Reason = batchReason(result.Outcome)
			resp.InvalidCount++
		} else {
			resp.ValidCount++
		}
		resp.Results = append(resp.Results, br)
	}

	render.JSON(w, r, resp)
}

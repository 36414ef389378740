package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/security"
	"keywarden/internal/store"
)

// APIKeyHeader carries the validation-API credential.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth authenticates requests against the active credentials in
// the admin store. A successful match bumps the credential's usage
// counters; anything else is a 401.
func APIKeyAuth(admin *store.Admin, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if token == "" || !strings.HasPrefix(token, security.APITokenPrefix) {
				render.Render(w, r, apperrors.ErrUnauthorized)
				return
			}

			key, err := admin.GetActiveAPIKey(r.Context(), token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected api credential",
					"path", r.URL.Path,
					"remote_addr", ClientIP(r),
				)
				render.Render(w, r, apperrors.ErrUnauthorized)
				return
			}

			if err := admin.TouchAPIKey(r.Context(), key.ID, time.Now()); err != nil {
				logger.ErrorContext(r.Context(), "failed to update credential usage",
					"credential", key.Name,
					"error", err.Error(),
				)
			}

			next.ServeHTTP(w, r)
		})
	}
}

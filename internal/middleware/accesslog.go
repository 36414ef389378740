package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"keywarden/internal/store"
)

// licenseKeyHolder lets a handler report which license key a request
// concerned so the access log can record it. The middleware plants
// the holder before the handler runs and reads it after.
type licenseKeyHolder struct {
	mu  sync.Mutex
	key string
}

const licenseKeyCtx contextKey = "access-log-license-key"

// SetLicenseKey records the license key a request operated on for the
// access log entry. Safe to call with an empty key.
func SetLicenseKey(ctx context.Context, key string) {
	if h, ok := ctx.Value(licenseKeyCtx).(*licenseKeyHolder); ok {
		h.mu.Lock()
		h.key = key
		h.mu.Unlock()
	}
}

// AccessLogger records every API request in the admin store: endpoint,
// method, license key, source address, user agent, status, and
// latency. Requests are logged regardless of auth outcome, so this
// must wrap the auth middleware. Failed writes fall back to the
// store's in-memory buffer and are reported once per failure.
func AccessLogger(admin *store.Admin, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &licenseKeyHolder{}
			ctx := context.WithValue(r.Context(), licenseKeyCtx, holder)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			holder.mu.Lock()
			key := holder.key
			holder.mu.Unlock()

			entry := store.AccessLog{
				Endpoint:   r.URL.Path,
				Method:     r.Method,
				LicenseKey: key,
				IP:         ClientIP(r),
				UserAgent:  r.UserAgent(),
				StatusCode: ww.Status(),
				LatencyMS:  time.Since(start).Milliseconds(),
				Timestamp:  start,
			}
			if err := admin.LogAccess(r.Context(), entry); err != nil {
				logger.ErrorContext(r.Context(), "access log write failed",
					"endpoint", entry.Endpoint,
					"error", err.Error(),
				)
			}
		})
	}
}

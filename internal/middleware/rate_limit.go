package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/ratelimit"
	pkghttp "github.com/BradenHooton/snipvault/pkg/http"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
	"github.com/go-chi/httprate"
)

// RateLimit applies a fixed-window policy keyed by client identity.
//
// Rejected requests get 429 before any session lookup or handler runs.
// When the store itself fails the request is let through and the failure
// logged, so a counter outage never locks the owner out.
func RateLimit(store ratelimit.Store, policy ratelimit.Policy, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := pkghttp.ClientIdentity(r)

			res, err := policy.Allow(r.Context(), store, identity)
			if err != nil {
				logger.Error("rate limit store unavailable",
					slog.String("policy", policy.Name),
					slog.Any("error", err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(res.ResetAt))
				auditLogger.LogRateLimited(policy.Name, identity, r.URL.Path)
				pkghttp.WriteTooManyRequests(w, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(resetAt time.Time) string {
	secs := int(math.Ceil(time.Until(resetAt).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// UserRateLimitConfig holds per-user limits for authenticated routes
type UserRateLimitConfig struct {
	WriteOperationsPerMinute int
}

// RateLimitByUserID limits requests per authenticated user with a sliding
// one-minute window. It must run after auth.RequireSession; requests without
// a user in context fall back to the client identity.
func RateLimitByUserID(config UserRateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		config.WriteOperationsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := auth.GetUserFromContext(r); user != nil {
				return "user:" + strconv.FormatInt(user.ID, 10), nil
			}
			return "client:" + pkghttp.ClientIdentity(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests")
		}),
	)
}

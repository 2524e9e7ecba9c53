package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/auth"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/ratelimit"
	"github.com/google/uuid"
)

const (
	// SessionCookie is the cookie a browser session travels in
	SessionCookie = "session"
	LoginPath     = "/auth/login"
	// UnauthorizedPath is where signed-in non-admins are sent
	UnauthorizedPath = "/unauthorized"
	adminPrefix      = "/admin"
	storagePrefix    = "/storage/v1/object/public/"
)

// IsAdminPath reports whether path falls under the admin area
func IsAdminPath(path string) bool {
	return path == adminPrefix || strings.HasPrefix(path, adminPrefix+"/")
}

func isOperational(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return true
	case LoginPath, UnauthorizedPath:
		return r.Method == http.MethodGet
	}
	return false
}

// RequestID attaches a request ID to the context and response headers and
// logs each completed request
func RequestID(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			ctx := security.WithRequestID(r.Context(), reqID)
			start := time.Now()

			next.ServeHTTP(w, r.WithContext(ctx))

			log.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration_ms", time.Since(start)),
			)
		})
	}
}

// APIKey rejects requests that do not present the public backend key in the
// apikey header. The public storage route may pass it as a query parameter.
func APIKey(key string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOperational(r) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("apikey")
			if presented == "" && strings.HasPrefix(r.URL.Path, storagePrefix) {
				presented = r.URL.Query().Get("apikey")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				log.Warn("invalid api key", slog.String("path", r.URL.Path))
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Session copies the session token from the Authorization header or the
// session cookie into the request context. It does not validate it.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := sessionToken(r); token != "" {
				r = r.WithContext(security.WithSession(r.Context(), token))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, err := auth.ExtractToken(h); err == nil {
			return token
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// AdminArea runs the gate on every /admin path. Unauthenticated callers are
// redirected to the login page and non-admins to the unauthorized page.
func AdminArea(gate *security.Gate, auditLog *audit.Writer, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdminPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := gate.Authorize(r.Context(), security.SessionFromContext(r.Context()))
			if err != nil {
				reason := security.DenialReason(err)
				metrics.ObserveAuthzDenial("middleware", reason)
				auditLog.LogDenied(r.Context(), "middleware", reason, r.URL.Path)

				target := UnauthorizedPath
				if reason == "unauthenticated" {
					target = LoginPath
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			log.Debug("admin access granted",
				slog.String("user_id", principal.UserID()),
				slog.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(security.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RateLimitMiddleware limits admin requests per principal. Requests without a
// principal are not limited here.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := security.PrincipalFromContext(r.Context())
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			if d := limiter.Take(principal.UserID()); !d.Allowed {
				log.Warn("rate limit exceeded",
					slog.String("user_id", principal.UserID()),
					slog.Duration("retry_after", d.RetryAfter),
				)
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware logs every mutating admin request before it is handled
func AuditMiddleware(auditLog *audit.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := security.PrincipalFromContext(r.Context())
			if principal != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
				auditLog.LogRequest(r.Context(), principal.UserID(), r.Method, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS honors the configured origins
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if len(allowed) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", allowed[0])
			}
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, apikey, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// Chain applies middlewares so the first one listed runs first
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

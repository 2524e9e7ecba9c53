package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/middleware"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/ratelimit"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
)

const (
	loginAttempts = 5
	loginWindow   = time.Minute
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenRequest carries a verification token
type TokenRequest struct {
	Token string `json:"token"`
}

// EmailRequest carries an email address
type EmailRequest struct {
	Email string `json:"email"`
}

// AuthHandler serves the public authentication routes
type AuthHandler struct {
	identity      *service.IdentityService
	limiter       *ratelimit.Limiter
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(identity *service.IdentityService, limiter *ratelimit.Limiter, secureCookies bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{identity: identity, limiter: limiter, secureCookies: secureCookies, logger: logger}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, "login:"+clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many sign-in attempts"})
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid login credentials"})
		case errors.Is(err, service.ErrEmailNotConfirmed):
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Email not confirmed"})
		case errors.Is(err, service.ErrProfileUnavailable):
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Unable to fetch user profile. Please try again."})
		default:
			writeError(w, h.logger, err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, res)
}

// LoginPage handles GET /auth/login, the redirect target for anonymous callers
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "sign in required",
		"login":   "POST " + middleware.LoginPath,
	})
}

// Unauthorized handles GET /unauthorized, the redirect target for non-admins
func (h *AuthHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "admin access required"})
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.identity.SignUp(r.Context(), in)
	switch {
	case errors.Is(err, service.ErrSignupDisabled):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "sign-up is disabled"})
	case errors.Is(err, service.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "email already registered", Field: "email"})
	case err != nil:
		writeError(w, h.logger, err)
	default:
		writeJSON(w, http.StatusCreated, profile)
	}
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.SignOut(r.Context(), security.SessionFromContext(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"redirect": middleware.LoginPath})
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.identity.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": middleware.LoginPath})
}

// ResendVerification handles POST /auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, "resend:"+clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
		return
	}

	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.identity.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// allow spends one strict attempt for key and sets Retry-After when denied
func (h *AuthHandler) allow(w http.ResponseWriter, key string) bool {
	d := h.limiter.Check(key, loginAttempts, loginWindow)
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
	return d.Allowed
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

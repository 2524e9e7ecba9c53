package security

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
)

// Principal is an authorized admin: who they are and their profile
type Principal struct {
	Identity domain.Identity
	Profile  *domain.Profile
}

// UserID is the acting admin's id
func (p *Principal) UserID() string {
	return p.Identity.UserID
}

// Gate decides whether a session may use the admin area. It is shared by the
// admin area middleware and the service guards.
type Gate struct {
	identities domain.IdentityResolver
	profiles   domain.ProfileRepository
	logger     *slog.Logger
}

// NewGate creates a new authorization gate
func NewGate(identities domain.IdentityResolver, profiles domain.ProfileRepository, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		identities: identities,
		profiles:   profiles,
		logger:     logger,
	}
}

// Authorize resolves session to an admin principal. It returns
// domain.ErrUnauthenticated when there is no valid identity and
// domain.ErrForbidden when the profile can't be read or isn't an admin.
// An empty session is rejected without touching any backend.
func (g *Gate) Authorize(ctx context.Context, session string) (*Principal, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, domain.ErrUnauthenticated
	}

	identity, err := g.identities.CurrentUser(ctx, session)
	if err != nil {
		g.logger.Warn("identity resolution failed", slog.String("error", err.Error()))
		return nil, domain.ErrUnauthenticated
	}
	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}

	profile, err := g.profiles.GetByID(ctx, identity.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.Error("profile lookup failed",
				slog.String("user_id", identity.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, domain.ErrForbidden
	}

	if !profile.Role.IsAdmin() {
		g.logger.Warn("admin access denied",
			slog.String("user_id", identity.UserID),
			slog.String("role", string(profile.Role)),
		)
		return nil, domain.ErrForbidden
	}

	return &Principal{Identity: *identity, Profile: profile}, nil
}

// DenialReason labels a gate error for metrics and audit logs
func DenialReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

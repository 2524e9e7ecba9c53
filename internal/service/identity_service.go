package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/auth"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrProfileUnavailable = errors.New("unable to fetch user profile")
	ErrSignupDisabled     = errors.New("public signup is disabled")
	ErrEmailTaken         = errors.New("email already registered")
)

// IdentityConfig holds session and verification settings
type IdentityConfig struct {
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	SignupEnabled   func() bool
}

// SignInResult is returned on successful sign-in
type SignInResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Redirect  string    `json:"redirect"`
}

// SignUpInput is the public registration payload
type SignUpInput struct {
	Email    string      `json:"email" validate:"required,email,max=254"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	FullName *string     `json:"full_name" validate:"omitempty,max=200"`
	Phone    *string     `json:"phone" validate:"omitempty,max=40"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=user owner"`
}

// IdentityService issues, resolves and revokes sessions. It implements
// domain.IdentityResolver for the authorization gate.
type IdentityService struct {
	credentials domain.CredentialRepository
	profiles    domain.ProfileRepository
	sessions    domain.SessionStore
	notifier    domain.Notifier
	tokens      *auth.TokenManager
	tx          domain.Transactor
	cfg         IdentityConfig
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

// NewIdentityService creates a new identity service
func NewIdentityService(
	credentials domain.CredentialRepository,
	profiles domain.ProfileRepository,
	sessions domain.SessionStore,
	notifier domain.Notifier,
	tokens *auth.TokenManager,
	tx domain.Transactor,
	cfg IdentityConfig,
	logger *slog.Logger,
) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	if cfg.SignupEnabled == nil {
		cfg.SignupEnabled = func() bool { return false }
	}

	return &IdentityService{
		credentials: credentials,
		profiles:    profiles,
		sessions:    sessions,
		notifier:    notifier,
		tokens:      tokens,
		tx:          tx,
		cfg:         cfg,
		validate:    newValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

// SignIn checks the password and issues a session token. Admins are sent to
// the admin area, everyone else to the home page.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	ctx, span := tracer.Start(ctx, "IdentityService.SignIn")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("sign-in with unknown email", slog.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, failure(s.logger, "sign in", "user", email, err)
	}
	if !auth.CheckPassword(cred.PasswordHash, password) {
		s.logger.Info("sign-in with wrong password", slog.String("user_id", cred.ID))
		return nil, ErrInvalidCredentials
	}
	if cred.EmailVerifiedAt == nil {
		return nil, ErrEmailNotConfirmed
	}

	profile, err := s.profiles.GetByID(ctx, cred.ID)
	if err != nil {
		s.logger.Error("failed to load profile on sign-in",
			slog.String("user_id", cred.ID),
			slog.String("error", err.Error()),
		)
		return nil, ErrProfileUnavailable
	}

	token, claims, err := s.tokens.GenerateToken(cred.ID, cred.Email, s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	redirect := "/"
	if profile.Role.IsAdmin() {
		redirect = "/admin"
	}

	s.logger.Info("user signed in",
		slog.String("user_id", cred.ID),
		slog.String("role", string(profile.Role)),
	)

	return &SignInResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, Redirect: redirect}, nil
}

// SignUp registers a user or owner account and sends a verification token
func (s *IdentityService) SignUp(ctx context.Context, in SignUpInput) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "IdentityService.SignUp")
	defer span.End()

	if !s.cfg.SignupEnabled() {
		return nil, ErrSignupDisabled
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	if _, err := s.credentials.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, failure(s.logger, "sign up", "user", in.Email, err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, failure(s.logger, "sign up", "user", in.Email, err)
	}

	id := uuid.NewString()
	profile := &domain.Profile{
		ID:       id,
		Email:    in.Email,
		FullName: in.FullName,
		Phone:    in.Phone,
		Role:     in.Role,
		Status:   domain.UserStatusActive,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.credentials.Create(ctx, &domain.Credential{ID: id, Email: in.Email, PasswordHash: hash}); err != nil {
			return err
		}
		return s.profiles.Create(ctx, profile)
	})
	if err != nil {
		return nil, failure(s.logger, "sign up", "user", in.Email, err)
	}

	if err := s.issueVerification(ctx, id, in.Email); err != nil {
		s.logger.Error("failed to send verification after sign-up",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user signed up", slog.String("user_id", id), slog.String("role", string(in.Role)))
	return profile, nil
}

// SignOut revokes the session until its token would have expired anyway.
// Unparseable sessions are already unusable and are ignored.
func (s *IdentityService) SignOut(ctx context.Context, session string) error {
	claims, err := s.tokens.ValidateToken(session)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID(), ttl); err != nil {
		return failure(s.logger, "sign out", "session", claims.SessionID(), err)
	}
	s.logger.Info("user signed out", slog.String("user_id", claims.UserID))
	return nil
}

// VerifyEmail consumes a one-time verification token
func (s *IdentityService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &domain.ValidationError{Field: "token", Message: "verification token is required"}
	}

	userID, err := s.sessions.ConsumeVerification(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ValidationError{Field: "token", Message: "verification link is invalid or has expired"}
		}
		return failure(s.logger, "verify", "email", "", err)
	}

	if err := s.credentials.MarkEmailVerified(ctx, userID, s.now().UTC()); err != nil {
		return failure(s.logger, "verify", "email", userID, err)
	}
	s.logger.Info("email verified", slog.String("user_id", userID))
	return nil
}

// ResendVerification issues a fresh token. Unknown and already verified
// addresses succeed silently so the endpoint does not reveal accounts.
func (s *IdentityService) ResendVerification(ctx context.Context, email string) error {
	cred, err := s.credentials.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return failure(s.logger, "resend", "verification", email, err)
	}
	if cred.EmailVerifiedAt != nil {
		return nil
	}
	if err := s.issueVerification(ctx, cred.ID, cred.Email); err != nil {
		return failure(s.logger, "resend", "verification", cred.ID, err)
	}
	return nil
}

// CurrentUser resolves a session token. Invalid, expired and revoked tokens
// resolve to no identity; only a session store failure is an error.
func (s *IdentityService) CurrentUser(ctx context.Context, session string) (*domain.Identity, error) {
	if session == "" {
		return nil, nil
	}
	claims, err := s.tokens.ValidateToken(session)
	if err != nil {
		return nil, nil
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.SessionID())
	if err != nil {
		return nil, fmt.Errorf("failed to check session revocation: %w", err)
	}
	if revoked {
		return nil, nil
	}

	return &domain.Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		SessionID: claims.SessionID(),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *IdentityService) issueVerification(ctx context.Context, userID, email string) error {
	token := uuid.NewString()
	if err := s.sessions.SaveVerification(ctx, token, userID, s.cfg.VerificationTTL); err != nil {
		return err
	}
	return s.notifier.SendVerification(ctx, email, token)
}

// LogNotifier writes verification tokens to the log instead of sending mail
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerification(_ context.Context, email, token string) error {
	n.logger.Info("verification token issued",
		slog.String("email", email),
		slog.String("token", token),
	)
	return nil
}

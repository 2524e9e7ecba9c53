package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/auth"
)

type memCredentials struct {
	byID map[string]*domain.Credential
}

func (m *memCredentials) Create(_ context.Context, c *domain.Credential) error {
	c.Email = strings.ToLower(c.Email)
	m.byID[c.ID] = c
	return nil
}

func (m *memCredentials) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	for _, c := range m.byID {
		if c.Email == strings.ToLower(email) {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCredentials) GetByID(_ context.Context, id string) (*domain.Credential, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *memCredentials) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	c, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.EmailVerifiedAt = &at
	return nil
}

type memSessions struct {
	revoked map[string]time.Duration
	verify  map[string]string
	err     error
}

func (m *memSessions) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.revoked[id] = ttl
	return nil
}

func (m *memSessions) IsRevoked(_ context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[id]
	return ok, nil
}

func (m *memSessions) SaveVerification(_ context.Context, token, userID string, _ time.Duration) error {
	m.verify[token] = userID
	return nil
}

func (m *memSessions) ConsumeVerification(_ context.Context, token string) (string, error) {
	id, ok := m.verify[token]
	if !ok {
		return "", domain.ErrNotFound
	}
	delete(m.verify, token)
	return id, nil
}

type memNotifier struct {
	sent map[string]string // email -> last token
}

func (n *memNotifier) SendVerification(_ context.Context, email, token string) error {
	n.sent[email] = token
	return nil
}

type identityFixture struct {
	creds    *memCredentials
	profiles *memProfiles
	sessions *memSessions
	notifier *memNotifier
	signup   bool
	svc      *IdentityService
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	f := &identityFixture{
		creds:    &memCredentials{byID: map[string]*domain.Credential{}},
		profiles: newMemProfiles(),
		sessions: &memSessions{revoked: map[string]time.Duration{}, verify: map[string]string{}},
		notifier: &memNotifier{sent: map[string]string{}},
		signup:   true,
	}
	f.svc = NewIdentityService(f.creds, f.profiles, f.sessions, f.notifier,
		auth.NewTokenManager("test-secret", "rentaladmin-test"), &memTx{},
		IdentityConfig{SessionTTL: time.Hour, SignupEnabled: func() bool { return f.signup }},
		quietLogger())
	return f
}

// addUser stores a verified credential and matching profile
func (f *identityFixture) addUser(t *testing.T, id, email, password string, role domain.Role) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now()
	f.creds.byID[id] = &domain.Credential{ID: id, Email: email, PasswordHash: hash, EmailVerifiedAt: &now}
	f.profiles.byID[id] = &domain.Profile{ID: id, Email: email, Role: role, Status: domain.UserStatusActive}
}

func TestSignInRedirectsByRole(t *testing.T) {
	f := newIdentityFixture(t)
	f.addUser(t, "a1", "admin@example.com", "Password123", domain.RoleSuperAdmin)
	f.addUser(t, "u1", "guest@example.com", "Password123", domain.RoleUser)

	res, err := f.svc.SignIn(context.Background(), "Admin@Example.com", "Password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if res.Redirect != "/admin" || res.Token == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = f.svc.SignIn(context.Background(), "guest@example.com", "Password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if res.Redirect != "/" {
		t.Fatalf("expected home redirect, got %q", res.Redirect)
	}
}

func TestSignInFailures(t *testing.T) {
	f := newIdentityFixture(t)
	f.addUser(t, "u1", "guest@example.com", "Password123", domain.RoleUser)

	if _, err := f.svc.SignIn(context.Background(), "guest@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := f.svc.SignIn(context.Background(), "nobody@example.com", "Password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	f.creds.byID["u1"].EmailVerifiedAt = nil
	if _, err := f.svc.SignIn(context.Background(), "guest@example.com", "Password123"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected email not confirmed, got %v", err)
	}

	f.creds.byID["u1"].EmailVerifiedAt = &time.Time{}
	delete(f.profiles.byID, "u1")
	if _, err := f.svc.SignIn(context.Background(), "guest@example.com", "Password123"); !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected profile unavailable, got %v", err)
	}
}

func TestCurrentUserAndSignOut(t *testing.T) {
	f := newIdentityFixture(t)
	f.addUser(t, "u1", "guest@example.com", "Password123", domain.RoleAdmin)
	ctx := context.Background()

	res, err := f.svc.SignIn(ctx, "guest@example.com", "Password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	id, err := f.svc.CurrentUser(ctx, res.Token)
	if err != nil || id == nil || id.UserID != "u1" {
		t.Fatalf("expected identity for u1, got %+v %v", id, err)
	}

	if err := f.svc.SignOut(ctx, res.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if ttl := f.sessions.revoked[id.SessionID]; ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected revocation ttl %s", ttl)
	}

	id, err = f.svc.CurrentUser(ctx, res.Token)
	if err != nil || id != nil {
		t.Fatalf("expected no identity after sign-out, got %+v %v", id, err)
	}
}

func TestCurrentUserIgnoresGarbage(t *testing.T) {
	f := newIdentityFixture(t)

	id, err := f.svc.CurrentUser(context.Background(), "not-a-jwt")
	if err != nil || id != nil {
		t.Fatalf("expected no identity, got %+v %v", id, err)
	}
	if err := f.svc.SignOut(context.Background(), "not-a-jwt"); err != nil {
		t.Fatalf("sign out of garbage should be a no-op: %v", err)
	}
}

func TestCurrentUserReportsStoreFailure(t *testing.T) {
	f := newIdentityFixture(t)
	f.addUser(t, "u1", "guest@example.com", "Password123", domain.RoleAdmin)
	res, err := f.svc.SignIn(context.Background(), "guest@example.com", "Password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	f.sessions.err = errBackend
	if _, err := f.svc.CurrentUser(context.Background(), res.Token); err == nil {
		t.Fatalf("expected error when revocation store fails")
	}
}

func TestSignUpVerifyThenSignIn(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()
	name := "Olive Owner"

	profile, err := f.svc.SignUp(ctx, SignUpInput{Email: " Olive@Example.com ", Password: "Password123", FullName: &name, Role: domain.RoleOwner})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if profile.Role != domain.RoleOwner || profile.Status != domain.UserStatusActive || profile.Email != "olive@example.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	if _, err := f.svc.SignIn(ctx, "olive@example.com", "Password123"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected unconfirmed email, got %v", err)
	}

	token := f.notifier.sent["olive@example.com"]
	if token == "" {
		t.Fatalf("expected verification token to be sent")
	}
	if err := f.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, token); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}

	res, err := f.svc.SignIn(ctx, "olive@example.com", "Password123")
	if err != nil {
		t.Fatalf("sign in after verify: %v", err)
	}
	if res.Redirect != "/" {
		t.Fatalf("owners are not admins, got redirect %q", res.Redirect)
	}
}

func TestSignUpRules(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SignUp(ctx, SignUpInput{Email: "x@example.com", Password: "Password123", Role: domain.RoleAdmin}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected admin role to be rejected, got %v", err)
	}
	if _, err := f.svc.SignUp(ctx, SignUpInput{Email: "x@example.com", Password: "short"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected short password to be rejected, got %v", err)
	}

	p, err := f.svc.SignUp(ctx, SignUpInput{Email: "x@example.com", Password: "Password123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if p.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %q", p.Role)
	}
	if _, err := f.svc.SignUp(ctx, SignUpInput{Email: "X@example.com", Password: "Password123"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	f.signup = false
	if _, err := f.svc.SignUp(ctx, SignUpInput{Email: "y@example.com", Password: "Password123"}); !errors.Is(err, ErrSignupDisabled) {
		t.Fatalf("expected signup disabled, got %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()

	if err := f.svc.ResendVerification(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("nothing should be sent to unknown emails")
	}

	if _, err := f.svc.SignUp(ctx, SignUpInput{Email: "z@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	first := f.notifier.sent["z@example.com"]
	if err := f.svc.ResendVerification(ctx, "z@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if second := f.notifier.sent["z@example.com"]; second == "" || second == first {
		t.Fatalf("expected a fresh token")
	}
}

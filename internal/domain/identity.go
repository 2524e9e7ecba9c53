package domain

import (
	"context"
	"io"
	"time"
)

// Identity is an authenticated caller as resolved from a session token
type Identity struct {
	UserID    string
	Email     string
	SessionID string
	ExpiresAt time.Time
}

// IdentityResolver turns a session token into an identity.
// A nil identity with a nil error means "no identity".
type IdentityResolver interface {
	CurrentUser(ctx context.Context, session string) (*Identity, error)
}

// Credential is the identity-side record for a login
type Credential struct {
	ID              string     `db:"id"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	EmailVerifiedAt *time.Time `db:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// CredentialRepository defines data access for login credentials
type CredentialRepository interface {
	Create(ctx context.Context, cred *Credential) error
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByID(ctx context.Context, id string) (*Credential, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

// SessionStore keeps short-lived identity state outside the database
type SessionStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	SaveVerification(ctx context.Context, token, userID string, ttl time.Duration) error
	// ConsumeVerification returns the user id and deletes the token; ErrNotFound if absent
	ConsumeVerification(ctx context.Context, token string) (string, error)
}

// Notifier delivers verification tokens to users
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
}

// ObjectStore holds uploaded files addressed by bucket and path
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) (string, error)
	PublicURL(bucket, path string) string
	Open(ctx context.Context, bucket, path string) (io.ReadCloser, string, error)
}

// Transactor runs fn inside one database transaction carried by ctx
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

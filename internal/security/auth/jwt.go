package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew tolerated between the issuing and validating replicas
const clockSkew = 30 * time.Second

var (
	ErrInvalidToken  = errors.New("invalid session token")
	ErrExpiredToken  = errors.New("session token expired")
	ErrMissingBearer = errors.New("authorization header is not a bearer token")
)

// Claims carried by a session token. The JWT ID is the session id used for
// sign-out revocation.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionID returns the token's jti
func (c *Claims) SessionID() string {
	return c.ID
}

// TokenManager issues and checks HS256 session tokens. Validation is purely
// local; revocation is checked by the caller against the session store.
type TokenManager struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if issuer == "" {
		issuer = "rentaladmin"
	}
	return &TokenManager{key: []byte(secret), issuer: issuer, now: time.Now}
}

// GenerateToken signs a session token for userID valid for ttl
func (tm *TokenManager) GenerateToken(userID, email string, ttl time.Duration) (string, *Claims, error) {
	if userID == "" {
		return "", nil, fmt.Errorf("failed to sign token: user id is required")
	}
	issued := tm.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken returns the claims of a well-formed, unexpired token issued by
// this manager. Failures wrap ErrExpiredToken or ErrInvalidToken.
func (tm *TokenManager) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return tm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(tm.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.UserID == "" || claims.ID == "":
		return nil, fmt.Errorf("%w: missing user or session id", ErrInvalidToken)
	}
	return claims, nil
}

// ExtractToken pulls the credential out of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func ExtractToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMissingBearer
	}
	return token, nil
}

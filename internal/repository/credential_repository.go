package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/jmoiron/sqlx"
)

const credentialColumns = `id, email, password_hash, email_verified_at, created_at, updated_at`

// PostgresCredentialRepository implements domain.CredentialRepository on the auth_users table
type PostgresCredentialRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresCredentialRepository creates a new credential repository
func NewPostgresCredentialRepository(db *sqlx.DB, logger *slog.Logger) *PostgresCredentialRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCredentialRepository{db: db, logger: logger}
}

// Create inserts a credential. Emails are stored lower-cased.
func (r *PostgresCredentialRepository) Create(ctx context.Context, c *domain.Credential) error {
	c.Email = strings.ToLower(c.Email)
	query := `
		INSERT INTO auth_users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	if err := conn(ctx, r.db).QueryRowxContext(ctx, query, c.ID, c.Email, c.PasswordHash).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		r.logger.Error("failed to create credential",
			slog.String("email", c.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetByEmail looks a credential up case-insensitively
func (r *PostgresCredentialRepository) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return r.get(ctx, `SELECT `+credentialColumns+` FROM auth_users WHERE email = $1`, strings.ToLower(email))
}

// GetByID retrieves a credential by ID
func (r *PostgresCredentialRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	return r.get(ctx, `SELECT `+credentialColumns+` FROM auth_users WHERE id = $1`, id)
}

// MarkEmailVerified stamps email_verified_at
func (r *PostgresCredentialRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE auth_users SET email_verified_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresCredentialRepository) get(ctx context.Context, query string, arg string) (*domain.Credential, error) {
	c := &domain.Credential{}
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return c, nil
}

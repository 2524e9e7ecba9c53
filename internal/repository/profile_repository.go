package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/jmoiron/sqlx"
)

const profileColumns = `id, email, full_name, avatar_url, phone, role, status, created_at, updated_at`

// PostgresProfileRepository implements domain.ProfileRepository using PostgreSQL
type PostgresProfileRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresProfileRepository creates a new profile repository
func NewPostgresProfileRepository(db *sqlx.DB, logger *slog.Logger) *PostgresProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a profile and fills in its timestamps
func (r *PostgresProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, email, full_name, avatar_url, phone, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	row := conn(ctx, r.db).QueryRowxContext(ctx, query,
		p.ID, p.Email, p.FullName, p.AvatarURL, p.Phone, p.Role, p.Status,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		r.logger.Error("failed to create profile",
			slog.String("email", p.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID retrieves a profile by ID
func (r *PostgresProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	p := &domain.Profile{}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	if err := sqlx.GetContext(ctx, conn(ctx, r.db), p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// List returns profiles newest first
func (r *PostgresProfileRepository) List(ctx context.Context, filter domain.ProfileFilter, offset, limit int) ([]*domain.Profile, error) {
	where, args := profileWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM profiles%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		profileColumns, where, len(args)-1, len(args))

	profiles := []*domain.Profile{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// Count returns the number of profiles matching filter
func (r *PostgresProfileRepository) Count(ctx context.Context, filter domain.ProfileFilter) (int, error) {
	where, args := profileWhere(filter)

	var n int
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &n, `SELECT COUNT(*) FROM profiles`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

// ListCreatedSince returns profiles created at or after since
func (r *PostgresProfileRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE created_at >= $1 ORDER BY created_at`

	profiles := []*domain.Profile{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &profiles, query, since); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// UpdateRole sets a new role
func (r *PostgresProfileRepository) UpdateRole(ctx context.Context, id string, role domain.Role, updatedAt time.Time) error {
	return r.exec(ctx, "update role", `UPDATE profiles SET role = $1, updated_at = $2 WHERE id = $3`, role, updatedAt, id)
}

// UpdateStatus sets a new account status
func (r *PostgresProfileRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus, updatedAt time.Time) error {
	return r.exec(ctx, "update status", `UPDATE profiles SET status = $1, updated_at = $2 WHERE id = $3`, status, updatedAt, id)
}

// Delete removes a profile
func (r *PostgresProfileRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete", `DELETE FROM profiles WHERE id = $1`, id)
}

func (r *PostgresProfileRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s profile: %w", op, err)
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

func profileWhere(filter domain.ProfileFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, "role = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

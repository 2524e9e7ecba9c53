package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/jmoiron/sqlx"
)

const adminActionColumns = `a.id, a.admin_id, a.action_type, a.target_type, a.target_id, a.details, a.notes, a.created_at`

// PostgresAdminActionRepository implements domain.AdminActionRepository using PostgreSQL.
// Rows are only ever inserted.
type PostgresAdminActionRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresAdminActionRepository creates a new admin action repository
func NewPostgresAdminActionRepository(db *sqlx.DB, logger *slog.Logger) *PostgresAdminActionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAdminActionRepository{db: db, logger: logger}
}

// Append inserts actions in one batch
func (r *PostgresAdminActionRepository) Append(ctx context.Context, actions ...*domain.AdminAction) error {
	if len(actions) == 0 {
		return nil
	}

	query := `
		INSERT INTO admin_actions (id, admin_id, action_type, target_type, target_id, details, notes, created_at)
		VALUES (:id, :admin_id, :action_type, :target_type, :target_id, :details, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, actions); err != nil {
		return fmt.Errorf("failed to append admin actions: %w", err)
	}
	return nil
}

// ListRecent returns the latest actions with the acting admin's name and email
func (r *PostgresAdminActionRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityItem, error) {
	query := `SELECT ` + adminActionColumns + `,
		ad.full_name AS "admin.full_name", ad.email AS "admin.email", ad.phone AS "admin.phone"
		FROM admin_actions a
		LEFT JOIN profiles ad ON ad.id = a.admin_id
		ORDER BY a.created_at DESC
		LIMIT $1`

	items := []*domain.ActivityItem{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &items, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list admin actions: %w", err)
	}
	return items, nil
}

// ListByTarget returns every action applied to one entity, oldest first
func (r *PostgresAdminActionRepository) ListByTarget(ctx context.Context, target domain.TargetType, targetID string) ([]*domain.AdminAction, error) {
	query := `SELECT ` + adminActionColumns + `
		FROM admin_actions a
		WHERE a.target_type = $1 AND a.target_id = $2
		ORDER BY a.created_at`

	actions := []*domain.AdminAction{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &actions, query, string(target), targetID); err != nil {
		return nil, fmt.Errorf("failed to list admin actions: %w", err)
	}
	return actions, nil
}

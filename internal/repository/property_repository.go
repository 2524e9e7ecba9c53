package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/jmoiron/sqlx"
)

// propertyColumns selects a full property row from alias p
const propertyColumns = `
	p.id, p.owner_id, p.title, p.description, p.property_type, p.bedrooms, p.bathrooms,
	p.max_guests, p.address, p.city, p.state, p.country, p.postal_code, p.latitude,
	p.longitude, p.price_per_night, p.cleaning_fee, p.security_deposit, p.status,
	p.amenities, p.house_rules, p.cancellation_policy,
	p.check_in_time::text AS check_in_time, p.check_out_time::text AS check_out_time,
	p.minimum_stay, p.maximum_stay, p.created_at, p.updated_at`

const ownerColumns = `
	o.full_name AS "owner.full_name", o.email AS "owner.email", o.phone AS "owner.phone"`

// PostgresPropertyRepository implements domain.PropertyRepository using PostgreSQL
type PostgresPropertyRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresPropertyRepository creates a new property repository
func NewPostgresPropertyRepository(db *sqlx.DB, logger *slog.Logger) *PostgresPropertyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPropertyRepository{db: db, logger: logger}
}

// List returns properties with their owner, newest first
func (r *PostgresPropertyRepository) List(ctx context.Context, status domain.PropertyStatus, offset, limit int) ([]*domain.PropertyListItem, error) {
	query := `SELECT ` + propertyColumns + `,` + ownerColumns + `
		FROM properties p
		LEFT JOIN profiles o ON o.id = p.owner_id
		WHERE ($1::text = '' OR p.status = $1::text)
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`

	items := []*domain.PropertyListItem{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &items, query, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return items, nil
}

// Count returns the number of properties with status, or all when status is empty
func (r *PostgresPropertyRepository) Count(ctx context.Context, status domain.PropertyStatus) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM properties WHERE ($1::text = '' OR status = $1::text)`
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &n, query, string(status)); err != nil {
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}
	return n, nil
}

// GetByID returns a property with owner contact details and ordered images
func (r *PostgresPropertyRepository) GetByID(ctx context.Context, id string) (*domain.PropertyDetail, error) {
	q := conn(ctx, r.db)

	detail := &domain.PropertyDetail{}
	query := `SELECT ` + propertyColumns + `,` + ownerColumns + `
		FROM properties p
		LEFT JOIN profiles o ON o.id = p.owner_id
		WHERE p.id = $1`
	if err := sqlx.GetContext(ctx, q, detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	detail.Images = []domain.PropertyImage{}
	imagesQuery := `
		SELECT id, property_id, image_url, image_alt, display_order, is_primary, created_at
		FROM property_images
		WHERE property_id = $1
		ORDER BY display_order`
	if err := sqlx.SelectContext(ctx, q, &detail.Images, imagesQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get property images: %w", err)
	}

	return detail, nil
}

// Create inserts a property and fills in its timestamps
func (r *PostgresPropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	query := `
		INSERT INTO properties (
			id, owner_id, title, description, property_type, bedrooms, bathrooms, max_guests,
			address, city, state, country, postal_code, latitude, longitude,
			price_per_night, cleaning_fee, security_deposit, status, amenities, house_rules,
			cancellation_policy, check_in_time, check_out_time, minimum_stay, maximum_stay
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
		RETURNING created_at, updated_at`

	row := conn(ctx, r.db).QueryRowxContext(ctx, query,
		p.ID, p.OwnerID, p.Title, p.Description, p.PropertyType, p.Bedrooms, p.Bathrooms, p.MaxGuests,
		p.Address, p.City, p.State, p.Country, p.PostalCode, p.Latitude, p.Longitude,
		p.PricePerNight, p.CleaningFee, p.SecurityDeposit, p.Status, p.Amenities, p.HouseRules,
		p.CancellationPolicy, p.CheckInTime, p.CheckOutTime, p.MinimumStay, p.MaximumStay,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		r.logger.Error("failed to create property",
			slog.String("title", p.Title),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

// AddImages inserts image rows in one batch
func (r *PostgresPropertyRepository) AddImages(ctx context.Context, images []*domain.PropertyImage) error {
	if len(images) == 0 {
		return nil
	}

	query := `
		INSERT INTO property_images (id, property_id, image_url, image_alt, display_order, is_primary, created_at)
		VALUES (:id, :property_id, :image_url, :image_alt, :display_order, :is_primary, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, images); err != nil {
		return fmt.Errorf("failed to add property images: %w", err)
	}
	return nil
}

// UpdateStatus sets status on every listed property and returns rows affected
func (r *PostgresPropertyRepository) UpdateStatus(ctx context.Context, ids []string, status domain.PropertyStatus, updatedAt time.Time) (int64, error) {
	return updateStatusIn(ctx, conn(ctx, r.db), "properties", ids, string(status), updatedAt)
}

// Delete removes a property; its images go with it
func (r *PostgresPropertyRepository) Delete(ctx context.Context, id string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete property: %w", err)
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

// ListStatuses returns the status of every property
func (r *PostgresPropertyRepository) ListStatuses(ctx context.Context) ([]domain.PropertyStatus, error) {
	statuses := []domain.PropertyStatus{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &statuses, `SELECT status FROM properties`); err != nil {
		return nil, fmt.Errorf("failed to list property statuses: %w", err)
	}
	return statuses, nil
}

// ExistingIDs reports which of ids still have a property row
func (r *PostgresPropertyRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(`SELECT id FROM properties WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build id lookup: %w", err)
	}
	q := conn(ctx, r.db)
	var existing []string
	if err := sqlx.SelectContext(ctx, q, &existing, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to look up property ids: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// updateStatusIn runs one UPDATE ... WHERE id IN (...) on table
func updateStatusIn(ctx context.Context, q sqlx.ExtContext, table string, ids []string, status string, updatedAt time.Time) (int64, error) {
	query, args, err := sqlx.In(`UPDATE `+table+` SET status = ?, updated_at = ? WHERE id IN (?)`, status, updatedAt, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build status update: %w", err)
	}

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s status: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

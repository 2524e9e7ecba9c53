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

const bookingColumns = `
	b.id, b.property_id, b.guest_id, b.check_in_date, b.check_out_date, b.guests_count,
	b.total_amount, b.booking_fee, b.cleaning_fee, b.security_deposit, b.status,
	b.payment_status, b.special_requests, b.created_at, b.updated_at`

const guestColumns = `
	g.full_name AS "guest.full_name", g.email AS "guest.email", g.phone AS "guest.phone"`

// PostgresBookingRepository implements domain.BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresBookingRepository creates a new booking repository
func NewPostgresBookingRepository(db *sqlx.DB, logger *slog.Logger) *PostgresBookingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBookingRepository{db: db, logger: logger}
}

// List returns bookings with property and guest summaries, newest first
func (r *PostgresBookingRepository) List(ctx context.Context, status domain.BookingStatus, offset, limit int) ([]*domain.BookingListItem, error) {
	query := `SELECT ` + bookingColumns + `,
		pr.title AS "property.title", pr.city AS "property.city", pr.state AS "property.state",` + guestColumns + `
		FROM bookings b
		LEFT JOIN properties pr ON pr.id = b.property_id
		LEFT JOIN profiles g ON g.id = b.guest_id
		WHERE ($1::text = '' OR b.status = $1::text)
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3`

	items := []*domain.BookingListItem{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &items, query, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return items, nil
}

// Count returns the number of bookings with status, or all when status is empty
func (r *PostgresBookingRepository) Count(ctx context.Context, status domain.BookingStatus) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM bookings WHERE ($1::text = '' OR status = $1::text)`
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &n, query, string(status)); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

// GetByID returns a booking with guest contact, its property and its messages
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.BookingDetail, error) {
	q := conn(ctx, r.db)

	detail := &domain.BookingDetail{}
	query := `SELECT ` + bookingColumns + `,` + guestColumns + `
		FROM bookings b
		LEFT JOIN profiles g ON g.id = b.guest_id
		WHERE b.id = $1`
	if err := sqlx.GetContext(ctx, q, detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	property := &domain.Property{}
	err := sqlx.GetContext(ctx, q, property, `SELECT `+propertyColumns+` FROM properties p WHERE p.id = $1`, detail.PropertyID)
	switch {
	case err == nil:
		detail.Property = property
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to get booking property: %w", err)
	}

	detail.Messages = []domain.Message{}
	messagesQuery := `
		SELECT id, booking_id, sender_id, receiver_id, message_text, is_read, message_type, created_at
		FROM messages
		WHERE booking_id = $1
		ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, q, &detail.Messages, messagesQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get booking messages: %w", err)
	}

	return detail, nil
}

// UpdateStatus sets status on every listed booking and returns rows affected.
// payment_status is left untouched.
func (r *PostgresBookingRepository) UpdateStatus(ctx context.Context, ids []string, status domain.BookingStatus, updatedAt time.Time) (int64, error) {
	return updateStatusIn(ctx, conn(ctx, r.db), "bookings", ids, string(status), updatedAt)
}

// ListSince returns bookings created at or after since
func (r *PostgresBookingRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.created_at >= $1 ORDER BY b.created_at`

	bookings := []*domain.Booking{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &bookings, query, since); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
)

// BookingService handles admin operations on reservations. Only the booking
// status is managed here; payment status is never changed by it.
type BookingService struct {
	bookings    domain.BookingRepository
	tx          domain.Transactor
	audit       *audit.Writer
	guard       guard
	maxPageSize int
	logger      *slog.Logger
	now         func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	bookings domain.BookingRepository,
	tx domain.Transactor,
	gate *security.Gate,
	auditWriter *audit.Writer,
	maxPageSize int,
	logger *slog.Logger,
) *BookingService {
	if logger == nil {
		logger = slog.Default()
	}

	return &BookingService{
		bookings:    bookings,
		tx:          tx,
		audit:       auditWriter,
		guard:       guard{gate: gate, audit: auditWriter},
		maxPageSize: maxPageSize,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns one page of bookings, optionally filtered by status
func (s *BookingService) List(ctx context.Context, params domain.ListParams) (domain.Page[*domain.BookingListItem], error) {
	ctx, span := tracer.Start(ctx, "BookingService.List")
	defer span.End()

	var empty domain.Page[*domain.BookingListItem]
	if _, err := s.guard.require(ctx, "bookings.list"); err != nil {
		return empty, err
	}

	params, err := params.Normalize(s.maxPageSize)
	if err != nil {
		return empty, err
	}
	var status domain.BookingStatus
	if params.Filter != "" {
		if status, err = domain.ParseBookingStatus(params.Filter); err != nil {
			return empty, err
		}
	}

	total, err := s.bookings.Count(ctx, "")
	if err != nil {
		return empty, failure(s.logger, "fetch", "bookings", "", err)
	}
	matching := total
	if status != "" {
		if matching, err = s.bookings.Count(ctx, status); err != nil {
			return empty, failure(s.logger, "fetch", "bookings", "", err)
		}
	}

	items, err := s.bookings.List(ctx, status, params.Offset(), params.PageSize)
	if err != nil {
		return empty, failure(s.logger, "fetch", "bookings", "", err)
	}

	return domain.NewPage(items, params, total, matching), nil
}

// Get returns a booking with its property, guest contact and messages
func (s *BookingService) Get(ctx context.Context, id string) (*domain.BookingDetail, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Get")
	defer span.End()

	if _, err := s.guard.require(ctx, "bookings.get"); err != nil {
		return nil, err
	}

	detail, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, failure(s.logger, "fetch", "booking", id, err)
	}
	detail.History = history(ctx, s.audit, s.logger, domain.TargetBooking, id)
	return detail, nil
}

// UpdateStatus moves one booking to status and records the action
func (s *BookingService) UpdateStatus(ctx context.Context, id, status string, notes *string) error {
	ctx, span := tracer.Start(ctx, "BookingService.UpdateStatus")
	defer span.End()

	principal, err := s.guard.require(ctx, "bookings.update_status")
	if err != nil {
		return err
	}

	st, err := domain.ParseBookingStatus(status)
	if err != nil {
		return err
	}
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "required"}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.bookings.UpdateStatus(ctx, []string{id}, st, s.now().UTC())
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.StatusActionType(domain.TargetBooking, string(st), false),
			TargetType: domain.TargetBooking,
			TargetID:   id,
			Notes:      notes,
		})
	})
	if err != nil {
		return failure(s.logger, "update", "booking status", id, err)
	}

	s.logger.Info("booking status updated",
		slog.String("booking_id", id),
		slog.String("status", string(st)),
		slog.String("admin_id", principal.UserID()),
	)
	return nil
}

// BulkUpdateStatus moves every listed booking to status and records one
// action per id
func (s *BookingService) BulkUpdateStatus(ctx context.Context, ids []string, status string) (int64, error) {
	ctx, span := tracer.Start(ctx, "BookingService.BulkUpdateStatus")
	defer span.End()

	principal, err := s.guard.require(ctx, "bookings.bulk_update_status")
	if err != nil {
		return 0, err
	}

	st, err := domain.ParseBookingStatus(status)
	if err != nil {
		return 0, err
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, &domain.ValidationError{Field: "ids", Message: "at least one id is required"}
	}

	var updated int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.bookings.UpdateStatus(ctx, ids, st, s.now().UTC())
		if err != nil {
			return err
		}
		updated = n
		return s.audit.Record(ctx, bulkActions(principal.UserID(), domain.TargetBooking, string(st), ids)...)
	})
	if err != nil {
		return 0, failure(s.logger, "bulk update", "bookings", "", err)
	}
	return updated, nil
}

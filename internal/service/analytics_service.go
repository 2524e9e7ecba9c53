package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/aggregate"
	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
	"golang.org/x/sync/errgroup"
)

const (
	analyticsMonths    = 12
	dashboardRecent    = 5
	recentActivitySize = 10
)

// DashboardMetrics is the admin landing page summary
type DashboardMetrics struct {
	TotalProperties  int                        `json:"total_properties"`
	ActiveUsers      int                        `json:"active_users"`
	PendingApprovals int                        `json:"pending_approvals"`
	TotalBookings    int                        `json:"total_bookings"`
	MonthlyRevenue   float64                    `json:"monthly_revenue"`
	RecentProperties []*domain.PropertyListItem `json:"recent_properties"`
	RecentUsers      []*domain.Profile          `json:"recent_users"`
	RecentBookings   []*domain.BookingListItem  `json:"recent_bookings"`
}

// Analytics is the trailing twelve month view of the platform
type Analytics struct {
	MonthlyRevenue             []aggregate.Point `json:"monthly_revenue"`
	MonthlyBookings            []aggregate.Point `json:"monthly_bookings"`
	MonthlyUsers               []aggregate.Point `json:"monthly_users"`
	PropertyStatusDistribution map[string]int    `json:"property_status_distribution"`
	TotalRevenue               float64           `json:"total_revenue"`
	TotalBookings              int               `json:"total_bookings"`
	TotalProperties            int               `json:"total_properties"`
	TotalUsers                 int               `json:"total_users"`
	GeneratedAt                time.Time         `json:"generated_at"`
}

// AnalyticsService builds the dashboard, analytics and activity views. Backend
// failures degrade these views to zero values; gate denials do not.
type AnalyticsService struct {
	properties domain.PropertyRepository
	bookings   domain.BookingRepository
	profiles   domain.ProfileRepository
	actions    domain.AdminActionRepository
	guard      guard
	logger     *slog.Logger
	now        func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	properties domain.PropertyRepository,
	bookings domain.BookingRepository,
	profiles domain.ProfileRepository,
	actions domain.AdminActionRepository,
	gate *security.Gate,
	auditWriter *audit.Writer,
	logger *slog.Logger,
) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalyticsService{
		properties: properties,
		bookings:   bookings,
		profiles:   profiles,
		actions:    actions,
		guard:      guard{gate: gate, audit: auditWriter},
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboard gathers the landing page counts, this month's confirmed revenue
// and the five newest properties, users and bookings
func (s *AnalyticsService) Dashboard(ctx context.Context) (*DashboardMetrics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Dashboard")
	defer span.End()

	if _, err := s.guard.require(ctx, "dashboard.metrics"); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	m := &DashboardMetrics{}
	var monthBookings []*domain.Booking

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		m.TotalProperties, err = s.properties.Count(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		m.ActiveUsers, err = s.profiles.Count(gctx, domain.ProfileFilter{Status: domain.UserStatusActive})
		return err
	})
	g.Go(func() (err error) {
		m.PendingApprovals, err = s.properties.Count(gctx, domain.PropertyStatusPending)
		return err
	})
	g.Go(func() (err error) {
		m.TotalBookings, err = s.bookings.Count(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		monthBookings, err = s.bookings.ListSince(gctx, monthStart)
		return err
	})
	g.Go(func() (err error) {
		m.RecentProperties, err = s.properties.List(gctx, "", 0, dashboardRecent)
		return err
	})
	g.Go(func() (err error) {
		m.RecentUsers, err = s.profiles.List(gctx, domain.ProfileFilter{}, 0, dashboardRecent)
		return err
	})
	g.Go(func() (err error) {
		m.RecentBookings, err = s.bookings.List(gctx, "", 0, dashboardRecent)
		return err
	})

	if err := g.Wait(); err != nil {
		s.degrade("dashboard", err)
		return emptyDashboard(), nil
	}

	m.MonthlyRevenue = aggregate.Sum(monthBookings, bookingAmount, isConfirmed)
	return m, nil
}

// Analytics builds the twelve month revenue, booking and sign-up series plus
// the property status distribution
func (s *AnalyticsService) Analytics(ctx context.Context) (*Analytics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Analytics")
	defer span.End()

	if _, err := s.guard.require(ctx, "analytics.view"); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(analyticsMonths - 1), 0)

	var (
		bookings []*domain.Booking
		statuses []domain.PropertyStatus
		users    []*domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bookings, err = s.bookings.ListSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		statuses, err = s.properties.ListStatuses(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.profiles.ListCreatedSince(gctx, since)
		return err
	})

	if err := g.Wait(); err != nil {
		s.degrade("analytics", err)
		bookings, statuses, users = nil, nil, nil
	}

	return buildAnalytics(now, bookings, statuses, users), nil
}

// RecentActivity returns the ten latest admin actions with the acting admin
func (s *AnalyticsService) RecentActivity(ctx context.Context) ([]*domain.ActivityItem, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.RecentActivity")
	defer span.End()

	if _, err := s.guard.require(ctx, "activity.recent"); err != nil {
		return nil, err
	}

	items, err := s.actions.ListRecent(ctx, recentActivitySize)
	if err != nil {
		s.degrade("activity", err)
		return []*domain.ActivityItem{}, nil
	}
	return items, nil
}

func (s *AnalyticsService) degrade(view string, err error) {
	metrics.ObserveReadDegradation(view)
	s.logger.Error("read view degraded to empty values",
		slog.String("view", view),
		slog.String("error", err.Error()),
	)
}

func buildAnalytics(now time.Time, bookings []*domain.Booking, statuses []domain.PropertyStatus, users []*domain.Profile) *Analytics {
	distribution := aggregate.CategoryDistribution(statuses, func(st domain.PropertyStatus) string { return string(st) })

	return &Analytics{
		MonthlyRevenue:             aggregate.MonthlySeries(bookings, now, analyticsMonths, bookingCreatedAt, bookingAmount, isConfirmed),
		MonthlyBookings:            aggregate.MonthlySeries(bookings, now, analyticsMonths, bookingCreatedAt, aggregate.One[*domain.Booking], nil),
		MonthlyUsers:               aggregate.MonthlySeries(users, now, analyticsMonths, profileCreatedAt, aggregate.One[*domain.Profile], nil),
		PropertyStatusDistribution: distribution,
		TotalRevenue:               aggregate.Sum(bookings, bookingAmount, isConfirmed),
		TotalBookings:              len(bookings),
		TotalProperties:            len(statuses),
		TotalUsers:                 len(users),
		GeneratedAt:                now,
	}
}

func emptyDashboard() *DashboardMetrics {
	return &DashboardMetrics{
		RecentProperties: []*domain.PropertyListItem{},
		RecentUsers:      []*domain.Profile{},
		RecentBookings:   []*domain.BookingListItem{},
	}
}

func bookingCreatedAt(b *domain.Booking) time.Time { return b.CreatedAt }
func bookingAmount(b *domain.Booking) float64      { return b.TotalAmount }
func isConfirmed(b *domain.Booking) bool           { return b.Status == domain.BookingStatusConfirmed }
func profileCreatedAt(p *domain.Profile) time.Time { return p.CreatedAt }

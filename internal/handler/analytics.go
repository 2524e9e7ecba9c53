package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/rentaladmin/internal/report"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
)

// AnalyticsHandler serves the dashboard, activity and analytics routes
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

// Dashboard handles GET /admin/dashboard
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	m, err := h.analytics.Dashboard(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Activity handles GET /admin/activity
func (h *AnalyticsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	items, err := h.analytics.RecentActivity(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": items})
}

// Analytics handles GET /admin/analytics
func (h *AnalyticsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.analytics.Analytics(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Export handles GET /admin/analytics/export as an XLSX download
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	a, err := h.analytics.Analytics(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rep := report.AnalyticsReport{
		Revenue:            a.MonthlyRevenue,
		Bookings:           a.MonthlyBookings,
		Users:              a.MonthlyUsers,
		StatusDistribution: a.PropertyStatusDistribution,
		GeneratedAt:        a.GeneratedAt,
	}

	var buf bytes.Buffer
	if err := report.WriteAnalytics(&buf, rep); err != nil {
		h.logger.Error("failed to build analytics export", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to export analytics"})
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

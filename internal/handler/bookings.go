package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
)

// BookingHandler serves the admin booking routes
type BookingHandler struct {
	bookings        *service.BookingService
	defaultPageSize int
	logger          *slog.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings *service.BookingService, defaultPageSize int, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{bookings: bookings, defaultPageSize: defaultPageSize, logger: logger}
}

// List handles GET /admin/bookings?page=&page_size=&status=
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r, "status", h.defaultPageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	page, err := h.bookings.List(r.Context(), params)
	if err != nil {
		if domain.IsBackendFailure(err) {
			degraded(h.logger, "bookings", err)
			writeJSON(w, http.StatusOK, domain.NewPage[*domain.BookingListItem](nil, params, 0, 0))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /admin/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateStatus handles PATCH /admin/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.bookings.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Notes); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdateStatus handles PATCH /admin/bookings/status
func (h *BookingHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	n, err := h.bookings.BulkUpdateStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkStatusResponse{Updated: n})
}

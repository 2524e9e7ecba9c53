package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
)

// RoleRequest is the body of PATCH /admin/users/{id}/role
type RoleRequest struct {
	Role string `json:"role"`
}

// UserStatusRequest is the body of PATCH /admin/users/{id}/status
type UserStatusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

// UserHandler serves the admin user routes
type UserHandler struct {
	users           *service.UserService
	defaultPageSize int
	logger          *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, defaultPageSize int, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, defaultPageSize: defaultPageSize, logger: logger}
}

// List handles GET /admin/users?page=&page_size=&role=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r, "role", h.defaultPageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	page, err := h.users.List(r.Context(), params)
	if err != nil {
		if domain.IsBackendFailure(err) {
			degraded(h.logger, "users", err)
			writeJSON(w, http.StatusOK, domain.NewPage[*domain.Profile](nil, params, 0, 0))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /admin/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateRole handles PATCH /admin/users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.UpdateRole(r.Context(), r.PathValue("id"), req.Role); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /admin/users/{id}/status
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UserStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Reason); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /admin/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
)

// maxJSONBody bounds JSON request bodies
const maxJSONBody = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto its HTTP status. Backend failures
// carry only the generic "failed to ..." message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: domain.ErrUnauthenticated.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: domain.ErrForbidden.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case domain.IsBackendFailure(err):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid request"}
	}
	return nil
}

// listParams reads page, page_size and the named filter from the query string
func listParams(r *http.Request, filterKey string, defaultSize int) (domain.ListParams, error) {
	q := r.URL.Query()
	params := domain.ListParams{Page: 1, PageSize: defaultSize, Filter: q.Get(filterKey)}

	var err error
	if params.Page, err = queryInt(q.Get("page"), 1, "page"); err != nil {
		return params, err
	}
	if params.PageSize, err = queryInt(q.Get("page_size"), defaultSize, "page_size"); err != nil {
		return params, err
	}
	return params, nil
}

func queryInt(raw string, fallback int, field string) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a number", raw)}
	}
	return n, nil
}

// StatusRequest is the body of single status changes
type StatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

// BulkStatusRequest is the body of bulk status changes
type BulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// BulkStatusResponse reports how many rows a bulk change touched
type BulkStatusResponse struct {
	Updated int64 `json:"updated"`
}

// NotImplemented answers routes whose backing feature does not exist yet
func NotImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "not implemented"})
}

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
)

// StorageHandler serves public objects such as property images
type StorageHandler struct {
	store  domain.ObjectStore
	logger *slog.Logger
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(store domain.ObjectStore, logger *slog.Logger) *StorageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageHandler{store: store, logger: logger}
}

// ServeHTTP handles GET /storage/v1/object/public/{bucket}/{path...}
func (h *StorageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, path := r.PathValue("bucket"), r.PathValue("path")
	if bucket == "" || path == "" {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "object not found"})
		return
	}

	obj, contentType, err := h.store.Open(r.Context(), bucket, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "object not found"})
			return
		}
		h.logger.Error("failed to open object",
			slog.String("bucket", bucket),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to fetch object"})
		return
	}
	defer obj.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn("object stream interrupted", slog.String("path", path), slog.String("error", err.Error()))
	}
}

package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
)

// maxImages caps image_count on a create request
const maxImages = 20

// PropertyHandler serves the admin property routes
type PropertyHandler struct {
	properties      *service.PropertyService
	defaultPageSize int
	maxUploadBytes  int64
	logger          *slog.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(properties *service.PropertyService, defaultPageSize int, maxUploadBytes int64, logger *slog.Logger) *PropertyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyHandler{
		properties:      properties,
		defaultPageSize: defaultPageSize,
		maxUploadBytes:  maxUploadBytes,
		logger:          logger,
	}
}

// List handles GET /admin/properties?page=&page_size=&status=
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r, "status", h.defaultPageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	page, err := h.properties.List(r.Context(), params)
	if err != nil {
		if domain.IsBackendFailure(err) {
			degraded(h.logger, "properties", err)
			writeJSON(w, http.StatusOK, domain.NewPage[*domain.PropertyListItem](nil, params, 0, 0))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /admin/properties/{id}
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.properties.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateStatus handles PATCH /admin/properties/{id}/status
func (h *PropertyHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.properties.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Notes); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdateStatus handles PATCH /admin/properties/status
func (h *PropertyHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	n, err := h.properties.BulkUpdateStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkStatusResponse{Updated: n})
}

// Delete handles DELETE /admin/properties/{id}
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.properties.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create handles POST /admin/properties as a multipart form. Images travel
// as image_0..image_{n-1} with n in image_count.
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Warn("failed to parse property form", slog.String("error", err.Error()))
		writeError(w, h.logger, &domain.ValidationError{Field: "form", Message: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	input, err := propertyInput(r.MultipartForm)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	images, closers, err := imageUploads(r)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.properties.Create(r.Context(), input, images)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func imageUploads(r *http.Request) ([]service.ImageUpload, []io.Closer, error) {
	count, err := formInt(r.MultipartForm, "image_count")
	if err != nil {
		return nil, nil, err
	}
	if count < 0 || count > maxImages {
		return nil, nil, &domain.ValidationError{Field: "image_count", Message: fmt.Sprintf("must be between 0 and %d", maxImages)}
	}

	var uploads []service.ImageUpload
	var closers []io.Closer
	for i := 0; i < count; i++ {
		file, header, err := r.FormFile("image_" + strconv.Itoa(i))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, closers, &domain.ValidationError{Field: "image_" + strconv.Itoa(i), Message: "unreadable file"}
		}
		closers = append(closers, file)
		uploads = append(uploads, service.ImageUpload{
			Index:       i,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        file,
		})
	}
	return uploads, closers, nil
}

func propertyInput(form *multipart.Form) (service.CreatePropertyInput, error) {
	in := service.CreatePropertyInput{
		Title:              formValue(form, "title"),
		Description:        formOptional(form, "description"),
		PropertyType:       formValue(form, "property_type"),
		Address:            formValue(form, "address"),
		City:               formValue(form, "city"),
		State:              formValue(form, "state"),
		Country:            formValue(form, "country"),
		PostalCode:         formOptional(form, "postal_code"),
		HouseRules:         formOptional(form, "house_rules"),
		CancellationPolicy: formValue(form, "cancellation_policy"),
		CheckInTime:        formValue(form, "check_in_time"),
		CheckOutTime:       formValue(form, "check_out_time"),
	}
	for _, a := range form.Value["amenities"] {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				in.Amenities = append(in.Amenities, part)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"bedrooms", &in.Bedrooms},
		{"bathrooms", &in.Bathrooms},
		{"max_guests", &in.MaxGuests},
		{"minimum_stay", &in.MinimumStay},
		{"maximum_stay", &in.MaximumStay},
	}
	for _, f := range ints {
		n, err := formInt(form, f.key)
		if err != nil {
			return in, err
		}
		*f.dst = n
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"price_per_night", &in.PricePerNight},
		{"cleaning_fee", &in.CleaningFee},
		{"security_deposit", &in.SecurityDeposit},
	}
	for _, f := range floats {
		v, err := formFloat(form, f.key)
		if err != nil {
			return in, err
		}
		if v != nil {
			*f.dst = *v
		}
	}

	var err error
	if in.Latitude, err = formFloat(form, "latitude"); err != nil {
		return in, err
	}
	if in.Longitude, err = formFloat(form, "longitude"); err != nil {
		return in, err
	}
	return in, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func formOptional(form *multipart.Form, key string) *string {
	v := formValue(form, key)
	if v == "" {
		return nil
	}
	return &v
}

func formInt(form *multipart.Form, key string) (int, error) {
	v := formValue(form, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Field: key, Message: fmt.Sprintf("%q is not a whole number", v)}
	}
	return n, nil
}

func formFloat(form *multipart.Form, key string) (*float64, error) {
	v := formValue(form, key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, &domain.ValidationError{Field: key, Message: fmt.Sprintf("%q is not a number", v)}
	}
	return &f, nil
}

func degraded(logger *slog.Logger, view string, err error) {
	metrics.ObserveReadDegradation(view)
	logger.Error("list degraded to empty page",
		slog.String("view", view),
		slog.String("error", err.Error()),
	)
}

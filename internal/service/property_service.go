package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PropertyImageBucket is the storage bucket for listing photos
const PropertyImageBucket = "property-images"

// CreatePropertyInput is the validated field set of a new listing
type CreatePropertyInput struct {
	Title              string   `json:"title" validate:"required,max=200"`
	Description        *string  `json:"description" validate:"omitempty,max=5000"`
	PropertyType       string   `json:"property_type" validate:"required,max=64"`
	Bedrooms           int      `json:"bedrooms" validate:"gte=0,lte=50"`
	Bathrooms          int      `json:"bathrooms" validate:"gte=0,lte=50"`
	MaxGuests          int      `json:"max_guests" validate:"gte=1,lte=100"`
	Address            string   `json:"address" validate:"required,max=512"`
	City               string   `json:"city" validate:"required,max=256"`
	State              string   `json:"state" validate:"required,max=256"`
	Country            string   `json:"country" validate:"required,max=128"`
	PostalCode         *string  `json:"postal_code" validate:"omitempty,max=32"`
	Latitude           *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude          *float64 `json:"longitude" validate:"omitempty,longitude"`
	PricePerNight      float64  `json:"price_per_night" validate:"gt=0"`
	CleaningFee        float64  `json:"cleaning_fee" validate:"gte=0"`
	SecurityDeposit    float64  `json:"security_deposit" validate:"gte=0"`
	Amenities          []string `json:"amenities" validate:"omitempty,dive,required,max=64"`
	HouseRules         *string  `json:"house_rules" validate:"omitempty,max=5000"`
	CancellationPolicy string   `json:"cancellation_policy" validate:"omitempty,oneof=flexible moderate strict"`
	CheckInTime        string   `json:"check_in_time" validate:"omitempty,datetime=15:04"`
	CheckOutTime       string   `json:"check_out_time" validate:"omitempty,datetime=15:04"`
	MinimumStay        int      `json:"minimum_stay" validate:"gte=0"`
	MaximumStay        int      `json:"maximum_stay" validate:"gte=0"`
}

// ImageUpload is one image payload of a create request; Index is its
// position in the submitted form
type ImageUpload struct {
	Index       int
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// CreatePropertyResult is the stored listing and the images that made it
type CreatePropertyResult struct {
	Property *domain.Property        `json:"property"`
	Images   []*domain.PropertyImage `json:"images"`
}

// PropertyService handles admin operations on listings
type PropertyService struct {
	properties  domain.PropertyRepository
	tx          domain.Transactor
	store       domain.ObjectStore
	audit       *audit.Writer
	guard       guard
	validate    *validator.Validate
	maxPageSize int
	logger      *slog.Logger
	now         func() time.Time
}

// NewPropertyService creates a new property service
func NewPropertyService(
	properties domain.PropertyRepository,
	tx domain.Transactor,
	store domain.ObjectStore,
	gate *security.Gate,
	auditWriter *audit.Writer,
	maxPageSize int,
	logger *slog.Logger,
) *PropertyService {
	if logger == nil {
		logger = slog.Default()
	}

	return &PropertyService{
		properties:  properties,
		tx:          tx,
		store:       store,
		audit:       auditWriter,
		guard:       guard{gate: gate, audit: auditWriter},
		validate:    newValidator(),
		maxPageSize: maxPageSize,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns one page of properties, optionally filtered by status
func (s *PropertyService) List(ctx context.Context, params domain.ListParams) (domain.Page[*domain.PropertyListItem], error) {
	ctx, span := tracer.Start(ctx, "PropertyService.List")
	defer span.End()

	var empty domain.Page[*domain.PropertyListItem]
	if _, err := s.guard.require(ctx, "properties.list"); err != nil {
		return empty, err
	}

	params, err := params.Normalize(s.maxPageSize)
	if err != nil {
		return empty, err
	}
	var status domain.PropertyStatus
	if params.Filter != "" {
		if status, err = domain.ParsePropertyStatus(params.Filter); err != nil {
			return empty, err
		}
	}

	total, err := s.properties.Count(ctx, "")
	if err != nil {
		return empty, failure(s.logger, "fetch", "properties", "", err)
	}
	matching := total
	if status != "" {
		if matching, err = s.properties.Count(ctx, status); err != nil {
			return empty, failure(s.logger, "fetch", "properties", "", err)
		}
	}

	items, err := s.properties.List(ctx, status, params.Offset(), params.PageSize)
	if err != nil {
		return empty, failure(s.logger, "fetch", "properties", "", err)
	}

	return domain.NewPage(items, params, total, matching), nil
}

// Get returns a property with owner contact and images
func (s *PropertyService) Get(ctx context.Context, id string) (*domain.PropertyDetail, error) {
	ctx, span := tracer.Start(ctx, "PropertyService.Get")
	defer span.End()

	if _, err := s.guard.require(ctx, "properties.get"); err != nil {
		return nil, err
	}

	detail, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, failure(s.logger, "fetch", "property", id, err)
	}
	detail.History = history(ctx, s.audit, s.logger, domain.TargetProperty, id)
	return detail, nil
}

// UpdateStatus moves one property to status and records the action
func (s *PropertyService) UpdateStatus(ctx context.Context, id, status string, notes *string) error {
	ctx, span := tracer.Start(ctx, "PropertyService.UpdateStatus")
	defer span.End()

	principal, err := s.guard.require(ctx, "properties.update_status")
	if err != nil {
		return err
	}

	st, err := domain.ParsePropertyStatus(status)
	if err != nil {
		return err
	}
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "required"}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.properties.UpdateStatus(ctx, []string{id}, st, s.now().UTC())
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.StatusActionType(domain.TargetProperty, string(st), false),
			TargetType: domain.TargetProperty,
			TargetID:   id,
			Notes:      notes,
		})
	})
	if err != nil {
		return failure(s.logger, "update", "property status", id, err)
	}

	s.logger.Info("property status updated",
		slog.String("property_id", id),
		slog.String("status", string(st)),
		slog.String("admin_id", principal.UserID()),
	)
	return nil
}

// BulkUpdateStatus moves every listed property to status in one statement and
// records one action per id. It returns the number of rows changed.
func (s *PropertyService) BulkUpdateStatus(ctx context.Context, ids []string, status string) (int64, error) {
	ctx, span := tracer.Start(ctx, "PropertyService.BulkUpdateStatus")
	defer span.End()

	principal, err := s.guard.require(ctx, "properties.bulk_update_status")
	if err != nil {
		return 0, err
	}

	st, err := domain.ParsePropertyStatus(status)
	if err != nil {
		return 0, err
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, &domain.ValidationError{Field: "ids", Message: "at least one id is required"}
	}

	var updated int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.properties.UpdateStatus(ctx, ids, st, s.now().UTC())
		if err != nil {
			return err
		}
		updated = n
		return s.audit.Record(ctx, bulkActions(principal.UserID(), domain.TargetProperty, string(st), ids)...)
	})
	if err != nil {
		return 0, failure(s.logger, "bulk update", "properties", "", err)
	}
	return updated, nil
}

// Create stores a new pending listing owned by the acting admin. Images are
// uploaded one at a time in index order; failed or empty images are skipped.
func (s *PropertyService) Create(ctx context.Context, input CreatePropertyInput, images []ImageUpload) (*CreatePropertyResult, error) {
	ctx, span := tracer.Start(ctx, "PropertyService.Create")
	defer span.End()

	principal, err := s.guard.require(ctx, "properties.create")
	if err != nil {
		return nil, err
	}

	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, validationError(err)
	}
	if input.MaximumStay != 0 && input.MaximumStay < input.MinimumStay {
		return nil, &domain.ValidationError{Field: "maximum_stay", Message: "must not be less than minimum_stay"}
	}

	property := newProperty(uuid.NewString(), principal.UserID(), input)
	stored := s.uploadImages(ctx, property, images)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.properties.Create(ctx, property); err != nil {
			return err
		}
		if err := s.properties.AddImages(ctx, stored); err != nil {
			return err
		}
		notes := fmt.Sprintf("Property created by admin with %d images", len(stored))
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.ActionPropertyCreated,
			TargetType: domain.TargetProperty,
			TargetID:   property.ID,
			Notes:      &notes,
		})
	})
	if err != nil {
		return nil, failure(s.logger, "create", "property", property.ID, err)
	}

	s.logger.Info("property created",
		slog.String("property_id", property.ID),
		slog.Int("images", len(stored)),
		slog.String("admin_id", principal.UserID()),
	)
	return &CreatePropertyResult{Property: property, Images: stored}, nil
}

func (s *PropertyService) uploadImages(ctx context.Context, property *domain.Property, images []ImageUpload) []*domain.PropertyImage {
	stored := make([]*domain.PropertyImage, 0, len(images))
	for _, img := range images {
		if img.Size <= 0 || img.Data == nil {
			continue
		}

		path := fmt.Sprintf("%s/%d_%d.%s", property.ID, s.now().UnixMilli(), img.Index, imageExt(img.Filename))
		if _, err := s.store.Upload(ctx, PropertyImageBucket, path, img.Data, img.ContentType); err != nil {
			metrics.ObserveImageUpload("failed")
			s.logger.Error("image upload failed",
				slog.String("property_id", property.ID),
				slog.Int("index", img.Index),
				slog.String("error", err.Error()),
			)
			continue
		}
		metrics.ObserveImageUpload("stored")

		alt := fmt.Sprintf("%s - Image %d", property.Title, img.Index+1)
		stored = append(stored, &domain.PropertyImage{
			ID:           uuid.NewString(),
			PropertyID:   property.ID,
			ImageURL:     s.store.PublicURL(PropertyImageBucket, path),
			ImageAlt:     &alt,
			DisplayOrder: img.Index,
			IsPrimary:    len(stored) == 0,
			CreatedAt:    s.now().UTC(),
		})
	}
	return stored
}

// Delete removes a property and records the action
func (s *PropertyService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "PropertyService.Delete")
	defer span.End()

	principal, err := s.guard.require(ctx, "properties.delete")
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.properties.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, &domain.AdminAction{
			AdminID:    principal.UserID(),
			ActionType: domain.DeletedActionType(domain.TargetProperty),
			TargetType: domain.TargetProperty,
			TargetID:   id,
		})
	})
	if err != nil {
		return failure(s.logger, "delete", "property", id, err)
	}
	return nil
}

func newProperty(id, ownerID string, in CreatePropertyInput) *domain.Property {
	p := &domain.Property{
		ID:                 id,
		OwnerID:            ownerID,
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		PropertyType:       in.PropertyType,
		Bedrooms:           in.Bedrooms,
		Bathrooms:          in.Bathrooms,
		MaxGuests:          in.MaxGuests,
		Address:            in.Address,
		City:               in.City,
		State:              in.State,
		Country:            in.Country,
		PostalCode:         in.PostalCode,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		PricePerNight:      in.PricePerNight,
		CleaningFee:        in.CleaningFee,
		SecurityDeposit:    in.SecurityDeposit,
		Status:             domain.PropertyStatusPending,
		Amenities:          in.Amenities,
		HouseRules:         in.HouseRules,
		CancellationPolicy: in.CancellationPolicy,
		CheckInTime:        in.CheckInTime,
		CheckOutTime:       in.CheckOutTime,
		MinimumStay:        in.MinimumStay,
		MaximumStay:        in.MaximumStay,
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	if p.CancellationPolicy == "" {
		p.CancellationPolicy = "moderate"
	}
	if p.CheckInTime == "" {
		p.CheckInTime = "15:00"
	}
	if p.CheckOutTime == "" {
		p.CheckOutTime = "11:00"
	}
	if p.MinimumStay == 0 {
		p.MinimumStay = 1
	}
	if p.MaximumStay == 0 {
		p.MaximumStay = 30
	}
	return p
}

func bulkActions(adminID string, target domain.TargetType, status string, ids []string) []*domain.AdminAction {
	notes := "Bulk operation"
	actions := make([]*domain.AdminAction, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, &domain.AdminAction{
			AdminID:    adminID,
			ActionType: domain.StatusActionType(target, status, true),
			TargetType: target,
			TargetID:   id,
			Notes:      &notes,
		})
	}
	return actions
}

func imageExt(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError reports the first failed field of a validator error
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}
	return &domain.ValidationError{Message: err.Error()}
}

package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PropertyStatus is the moderation lifecycle of a listing
type PropertyStatus string

const (
	PropertyStatusPending   PropertyStatus = "pending"
	PropertyStatusApproved  PropertyStatus = "approved"
	PropertyStatusRejected  PropertyStatus = "rejected"
	PropertyStatusSuspended PropertyStatus = "suspended"
)

// ParsePropertyStatus validates a raw property status value
func ParsePropertyStatus(s string) (PropertyStatus, error) {
	switch st := PropertyStatus(s); st {
	case PropertyStatusPending, PropertyStatusApproved, PropertyStatusRejected, PropertyStatusSuspended:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown property status %q", s)}
}

// Property represents a rental listing
type Property struct {
	ID                 string         `db:"id" json:"id"`
	OwnerID            string         `db:"owner_id" json:"owner_id"`
	Title              string         `db:"title" json:"title"`
	Description        *string        `db:"description" json:"description"`
	PropertyType       string         `db:"property_type" json:"property_type"`
	Bedrooms           int            `db:"bedrooms" json:"bedrooms"`
	Bathrooms          int            `db:"bathrooms" json:"bathrooms"`
	MaxGuests          int            `db:"max_guests" json:"max_guests"`
	Address            string         `db:"address" json:"address"`
	City               string         `db:"city" json:"city"`
	State              string         `db:"state" json:"state"`
	Country            string         `db:"country" json:"country"`
	PostalCode         *string        `db:"postal_code" json:"postal_code"`
	Latitude           *float64       `db:"latitude" json:"latitude"`
	Longitude          *float64       `db:"longitude" json:"longitude"`
	PricePerNight      float64        `db:"price_per_night" json:"price_per_night"`
	CleaningFee        float64        `db:"cleaning_fee" json:"cleaning_fee"`
	SecurityDeposit    float64        `db:"security_deposit" json:"security_deposit"`
	Status             PropertyStatus `db:"status" json:"status"`
	Amenities          pq.StringArray `db:"amenities" json:"amenities"`
	HouseRules         *string        `db:"house_rules" json:"house_rules"`
	CancellationPolicy string         `db:"cancellation_policy" json:"cancellation_policy"`
	CheckInTime        string         `db:"check_in_time" json:"check_in_time"`
	CheckOutTime       string         `db:"check_out_time" json:"check_out_time"`
	MinimumStay        int            `db:"minimum_stay" json:"minimum_stay"`
	MaximumStay        int            `db:"maximum_stay" json:"maximum_stay"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// PropertyImage belongs to exactly one property
type PropertyImage struct {
	ID           string    `db:"id" json:"id"`
	PropertyID   string    `db:"property_id" json:"property_id"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	ImageAlt     *string   `db:"image_alt" json:"image_alt"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	IsPrimary    bool      `db:"is_primary" json:"is_primary"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PropertyListItem is a property row joined with its owner
type PropertyListItem struct {
	Property
	Owner ProfileSummary `db:"owner" json:"owner"`
}

// PropertyDetail is a property with owner contact details and images
type PropertyDetail struct {
	Property
	Owner   ProfileSummary  `db:"owner" json:"owner"`
	Images  []PropertyImage `db:"-" json:"images"`
	History []*AdminAction  `db:"-" json:"history"`
}

// PropertyRepository defines data access for properties.
// An empty status means "any status".
type PropertyRepository interface {
	List(ctx context.Context, status PropertyStatus, offset, limit int) ([]*PropertyListItem, error)
	Count(ctx context.Context, status PropertyStatus) (int, error)
	GetByID(ctx context.Context, id string) (*PropertyDetail, error)
	Create(ctx context.Context, property *Property) error
	AddImages(ctx context.Context, images []*PropertyImage) error
	UpdateStatus(ctx context.Context, ids []string, status PropertyStatus, updatedAt time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
	ListStatuses(ctx context.Context) ([]PropertyStatus, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

package domain

import (
	"context"
	"fmt"
	"time"
)

// BookingStatus is the reservation lifecycle
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// ParseBookingStatus validates a raw booking status value
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown booking status %q", s)}
}

// PaymentStatus varies independently of BookingStatus
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Booking represents a reservation of a property by a guest
type Booking struct {
	ID              string        `db:"id" json:"id"`
	PropertyID      string        `db:"property_id" json:"property_id"`
	GuestID         string        `db:"guest_id" json:"guest_id"`
	CheckInDate     time.Time     `db:"check_in_date" json:"check_in_date"`
	CheckOutDate    time.Time     `db:"check_out_date" json:"check_out_date"`
	GuestsCount     int           `db:"guests_count" json:"guests_count"`
	TotalAmount     float64       `db:"total_amount" json:"total_amount"`
	BookingFee      float64       `db:"booking_fee" json:"booking_fee"`
	CleaningFee     float64       `db:"cleaning_fee" json:"cleaning_fee"`
	SecurityDeposit float64       `db:"security_deposit" json:"security_deposit"`
	Status          BookingStatus `db:"status" json:"status"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	SpecialRequests *string       `db:"special_requests" json:"special_requests"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// PropertySummary is the subset of a property joined onto bookings
type PropertySummary struct {
	Title *string `db:"title" json:"title"`
	City  *string `db:"city" json:"city"`
	State *string `db:"state" json:"state"`
}

// BookingListItem is a booking row joined with its property and guest
type BookingListItem struct {
	Booking
	Property PropertySummary `db:"property" json:"property"`
	Guest    ProfileSummary  `db:"guest" json:"guest"`
}

// Message is a booking conversation entry, read-only in the console
type Message struct {
	ID          string    `db:"id" json:"id"`
	BookingID   string    `db:"booking_id" json:"booking_id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	ReceiverID  string    `db:"receiver_id" json:"receiver_id"`
	MessageText string    `db:"message_text" json:"message_text"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	MessageType string    `db:"message_type" json:"message_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BookingDetail is a booking with its full property, guest contact and messages
type BookingDetail struct {
	Booking
	Guest    ProfileSummary `db:"guest" json:"guest"`
	Property *Property      `db:"-" json:"property"`
	Messages []Message      `db:"-" json:"messages"`
	History  []*AdminAction `db:"-" json:"history"`
}

// BookingRepository defines data access for bookings.
// An empty status means "any status".
type BookingRepository interface {
	List(ctx context.Context, status BookingStatus, offset, limit int) ([]*BookingListItem, error)
	Count(ctx context.Context, status BookingStatus) (int, error)
	GetByID(ctx context.Context, id string) (*BookingDetail, error)
	UpdateStatus(ctx context.Context, ids []string, status BookingStatus, updatedAt time.Time) (int64, error)
	ListSince(ctx context.Context, since time.Time) ([]*Booking, error)
}

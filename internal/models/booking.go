package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                 int64           `bun:"id,pk,autoincrement" json:"id"`
	BookingNumber      string          `bun:"booking_number,unique,notnull" json:"booking_number"`
	UserID             string          `bun:"user_id,nullzero" json:"user_id,omitempty"`
	TourID             int64           `bun:"tour_id,notnull" json:"tour_id"`
	PromocionID        *int64          `bun:"promocion_id" json:"promocion_id,omitempty"`
	BookingDate        time.Time       `bun:"booking_date,type:date,notnull" json:"booking_date"`
	NumberOfPeople     int             `bun:"number_of_people,notnull" json:"number_of_people"`
	CustomerName       string          `bun:"customer_name,notnull" json:"customer_name"`
	CustomerEmail      string          `bun:"customer_email,notnull" json:"customer_email"`
	CustomerPhone      string          `bun:"customer_phone,nullzero" json:"customer_phone,omitempty"`
	CustomerNotes      string          `bun:"customer_notes,nullzero" json:"customer_notes,omitempty"`
	Subtotal           decimal.Decimal `bun:"subtotal,type:decimal(10,2),notnull" json:"subtotal"`
	DiscountAmount     decimal.Decimal `bun:"discount_amount,type:decimal(10,2),notnull" json:"discount_amount"`
	TaxAmount          decimal.Decimal `bun:"tax_amount,type:decimal(10,2),notnull" json:"tax_amount"`
	TotalAmount        decimal.Decimal `bun:"total_amount,type:decimal(10,2),notnull" json:"total_amount"`
	Status             BookingStatus   `bun:"status,notnull" json:"status"`
	CancelledAt        *time.Time      `bun:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string          `bun:"cancellation_reason,nullzero" json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time      `bun:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time      `bun:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt          time.Time       `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	Tour *Tour `bun:"rel:belongs-to,join:tour_id=id" json:"tour,omitempty"`
}

// IsGuest reports whether the booking was made without an account.
func (b *Booking) IsGuest() bool {
	return b.UserID == ""
}

func (b *Booking) OwnedBy(userID string) bool {
	return b.UserID != "" && b.UserID == userID
}

type CreateBookingRequest struct {
	TourID         int64  `json:"tour_id"`
	BookingDate    string `json:"booking_date"`
	NumberOfPeople int    `json:"number_of_people"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerPhone  string `json:"customer_phone"`
	CustomerNotes  string `json:"customer_notes"`
	PromocionCode  string `json:"promocion_code"`
}

type CancelBookingRequest struct {
	CancellationReason string `json:"cancellation_reason"`
	// CustomerEmail authorizes a guest cancelling a guest booking.
	CustomerEmail string `json:"customer_email"`
}

type BookingListFilter struct {
	UserID string
	Status BookingStatus
	Page   int
	Limit  int
}

// IdempotencyRecord is what a finished Idempotency-Key remembers: the booking
// it produced and a fingerprint of the request that produced it.
type IdempotencyRecord struct {
	BookingNumber string `json:"booking_number"`
	Fingerprint   string `json:"fingerprint"`
}

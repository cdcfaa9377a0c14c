package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingEventType string

const (
	BookingCreatedEvent   BookingEventType = "booking.created"
	BookingCancelledEvent BookingEventType = "booking.cancelled"
	BookingConfirmedEvent BookingEventType = "booking.confirmed"
	BookingCompletedEvent BookingEventType = "booking.completed"
)

// BookingEvent is published to Kafka and streamed to captains over SSE.
type BookingEvent struct {
	Type           BookingEventType `json:"type"`
	BookingNumber  string           `json:"booking_number"`
	TourID         int64            `json:"tour_id"`
	UserID         string           `json:"user_id,omitempty"`
	BookingDate    string           `json:"booking_date"`
	NumberOfPeople int              `json:"number_of_people"`
	Status         BookingStatus    `json:"status"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

func NewBookingEvent(t BookingEventType, b *Booking) BookingEvent {
	return BookingEvent{
		Type:           t,
		BookingNumber:  b.BookingNumber,
		TourID:         b.TourID,
		UserID:         b.UserID,
		BookingDate:    b.BookingDate.Format("2006-01-02"),
		NumberOfPeople: b.NumberOfPeople,
		Status:         b.Status,
		TotalAmount:    b.TotalAmount,
		OccurredAt:     time.Now().UTC(),
	}
}

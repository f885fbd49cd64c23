package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Active reports whether the booking occupies its time range. Only active
// bookings participate in the per-mentor overlap constraint.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Booking struct {
	ID            uuid.UUID
	MentorID      uuid.UUID
	MenteeID      uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Status        BookingStatus
	PaymentStatus PaymentStatus
	CancelledAt   *time.Time
	CreatedAt     time.Time
}

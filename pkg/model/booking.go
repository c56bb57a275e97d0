package model

import (
	"time"
)

type Booking struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	AmenityID        string        `json:"amenity_id" bson:"amenity_id" validate:"required,mongodb"`
	SlotKey          string        `json:"slot_key" bson:"slot_key" validate:"required"`
	SlotStart        time.Time     `json:"slot_start" bson:"slot_start" validate:"required"`
	SlotEnd          time.Time     `json:"slot_end" bson:"slot_end" validate:"required,gtfield=SlotStart"`
	RequesterID      string        `json:"requester_id" bson:"requester_id" validate:"required,min=1,max=64"`
	UnitID           string        `json:"unit_id,omitempty" bson:"unit_id,omitempty" validate:"omitempty,max=32"`
	GuestCount       int           `json:"guest_count" bson:"guest_count" validate:"required,min=1,max=200"`
	Status           Status        `json:"status" bson:"status" validate:"required,oneof=requested confirmed checked_in completed cancelled rejected"`
	AmountCents      int64         `json:"amount_cents" bson:"amount_cents" validate:"min=0"`
	PaymentStatus    PaymentStatus `json:"payment_status" bson:"payment_status" validate:"required,oneof=unpaid pending paid refunded"`
	IdempotencyToken string        `json:"idempotency_token,omitempty" bson:"idempotency_token,omitempty" validate:"omitempty,max=128"`
	Notes            string        `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=500"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
	RequestedAt      time.Time     `json:"requested_at" bson:"requested_at" validate:"omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelledBy      string        `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
}

// ReservationRequest is the CreateBooking input. Date and SlotStart address a
// slot instance produced by the catalog for the amenity.
type ReservationRequest struct {
	AmenityID        string `json:"amenity_id" validate:"required,mongodb"`
	Date             string `json:"date" validate:"required,date_ymd"`
	SlotStart        string `json:"slot_start" validate:"required,clock_time"`
	RequesterID      string `json:"requester_id" validate:"required,min=1,max=64"`
	UnitID           string `json:"unit_id,omitempty" validate:"omitempty,max=32"`
	GuestCount       int    `json:"guest_count" validate:"omitempty,min=1,max=200"`
	IdempotencyToken string `json:"idempotency_token,omitempty" validate:"omitempty,max=128"`
	Notes            string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// StatusChange carries the fields a CAS status update is allowed to touch
// alongside the new status.
type StatusChange struct {
	CancelledAt   *time.Time
	CancelledBy   string
	PaymentStatus PaymentStatus
}

package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrSlotFull is returned by the capacity-checked insert when the slot
	// has no remaining capacity at commit time.
	ErrSlotFull = errors.New("slot capacity exhausted")

	// ErrStatusConflict is returned by the conditional status update when
	// the stored status no longer matches the expected one.
	ErrStatusConflict = errors.New("booking status changed concurrently")

	// ErrDuplicateToken is returned when an idempotency token is already
	// bound to a booking.
	ErrDuplicateToken = errors.New("idempotency token already used")

	// ErrLockHeld is returned when another writer holds the slot lock.
	ErrLockHeld = errors.New("slot lock held by another request")
)

package model

// Status is the closed set of booking lifecycle states. Transitions are
// enforced through the table below; no component mutates a booking status
// without consulting it.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// ActiveStatuses are the states that consume slot capacity. Requested
// bookings do not count until approved.
var ActiveStatuses = []Status{StatusConfirmed, StatusCheckedIn}

var transitions = map[Status][]Status{
	StatusRequested: {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCheckedIn, StatusCompleted, StatusCancelled},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRejected:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

func (s Status) CountsTowardCapacity() bool {
	return s == StatusConfirmed || s == StatusCheckedIn
}

// CanTransition reports whether moving from s to target is legal.
func (s Status) CanTransition(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// PaymentStatus tracks the external payment collaborator's view of a booking.
// Capture and refund execution happen outside this core.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

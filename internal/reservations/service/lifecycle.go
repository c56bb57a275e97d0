package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationerrors "reserva/internal/reservations/errors"
	"reserva/internal/reservations/repository"
	"reserva/pkg/config"
	apperrors "reserva/pkg/errors"
	"reserva/pkg/events"
	"reserva/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// AmenityGetter exposes the amenity document behind a booking. Implemented by
// the amenity catalog.
type AmenityGetter interface {
	GetByID(ctx context.Context, id string) (*model.Amenity, error)
	CapacityOf(ctx context.Context, slotKey string) (int, error)
}

// LifecycleManager drives bookings through their status machine. Every
// transition is a compare-and-set against the status read at decision time,
// so concurrent transitions on the same booking resolve to exactly one
// winner.
type LifecycleManager interface {
	Cancel(ctx context.Context, id, cancelledBy string) (*model.Booking, error)
	CheckIn(ctx context.Context, id string) (*model.Booking, error)
	Approve(ctx context.Context, id string) (*model.Booking, error)
	Reject(ctx context.Context, id string) (*model.Booking, error)
	Complete(ctx context.Context, id string) error
}

type lifecycleManager struct {
	repo      repository.BookingRepository
	locks     repository.SlotLockRepository
	amenities AmenityGetter
	events    events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewLifecycleManager(
	repo repository.BookingRepository,
	locks repository.SlotLockRepository,
	amenities AmenityGetter,
	publisher events.Publisher,
	cfg *config.Config,
) LifecycleManager {
	return &lifecycleManager{
		repo:      repo,
		locks:     locks,
		amenities: amenities,
		events:    publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Cancel releases a booking. Every non-terminal status is bound by the
// amenity's cancellation window, measured against the slot start; the
// boundary itself still cancels.
func (s *lifecycleManager) Cancel(ctx context.Context, id, cancelledBy string) (*model.Booking, error) {
	booking, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !booking.Status.CanTransition(model.StatusCancelled) {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Booking cannot be cancelled from status %q", booking.Status),
			string(booking.Status),
		)
	}

	now := s.now()
	amenity, err := s.amenities.GetByID(ctx, booking.AmenityID)
	if err != nil {
		return nil, err
	}

	window := s.cfg.CancellationWindow(amenity.CancellationWindowMin)
	boundary := booking.SlotStart.Add(-window)
	if now.After(boundary) {
		return nil, apperrors.WindowExpired(
			"Cancellation window has closed for this booking",
			boundary.UTC().Format(time.RFC3339),
		)
	}

	cancelledAt := now.UTC().Truncate(time.Millisecond)
	change := &model.StatusChange{
		CancelledAt:   &cancelledAt,
		CancelledBy:   cancelledBy,
		PaymentStatus: refundIntent(booking.PaymentStatus),
	}

	if err := s.transition(ctx, booking, model.StatusCancelled, change, "no longer cancellable"); err != nil {
		return nil, err
	}

	from := booking.Status
	booking.Status = model.StatusCancelled
	booking.CancelledAt = &cancelledAt
	booking.CancelledBy = cancelledBy
	if change.PaymentStatus != "" {
		booking.PaymentStatus = change.PaymentStatus
	}

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "slot_key", booking.SlotKey, "cancelled_by", cancelledBy)
	s.publish(ctx, events.TypeBookingCancelled, booking, from)
	return booking, nil
}

// CheckIn marks arrival. Allowed from the grace period before the slot start
// until the slot ends, and only for confirmed bookings.
func (s *lifecycleManager) CheckIn(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status != model.StatusConfirmed {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Only confirmed bookings can check in, booking is %q", booking.Status),
			string(booking.Status),
		)
	}

	now := s.now()
	opensAt := booking.SlotStart.Add(-s.cfg.CheckInGrace())
	if now.Before(opensAt) {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Check-in opens at %s", opensAt.UTC().Format(time.RFC3339)),
			string(booking.Status),
		)
	}
	if now.After(booking.SlotEnd) {
		return nil, apperrors.InvalidState("Slot has already ended", string(booking.Status))
	}

	if err := s.transition(ctx, booking, model.StatusCheckedIn, nil, "status changed concurrently"); err != nil {
		return nil, err
	}

	from := booking.Status
	booking.Status = model.StatusCheckedIn

	s.cfg.Log.Info("Booking checked in", "id", booking.ID, "slot_key", booking.SlotKey)
	s.publish(ctx, events.TypeBookingCheckedIn, booking, from)
	return booking, nil
}

// Approve confirms a requested booking. The slot lock serializes the capacity
// re-validation against concurrent admissions and other approvals for the
// same slot; without it two approvals racing for the last unit would each
// count against their own snapshot and both commit. The transaction keeps the
// count and the status flip atomic for the lock's TTL edge.
func (s *lifecycleManager) Approve(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status != model.StatusRequested {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Only requested bookings can be approved, booking is %q", booking.Status),
			string(booking.Status),
		)
	}

	capacity, err := s.amenities.CapacityOf(ctx, booking.SlotKey)
	if err != nil {
		return nil, err
	}

	lock, err := s.locks.Acquire(ctx, booking.SlotKey, s.cfg.SlotLockTTL)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrLockHeld) {
			return nil, apperrors.Conflict("Slot is being booked by another request, retry shortly")
		}
		return nil, apperrors.Internal("Failed to acquire slot lock", err)
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, lock.SlotKey); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "slot_key", lock.SlotKey, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		active, err := s.repo.CountActive(sessCtx, booking.SlotKey)
		if err != nil {
			return err
		}
		if active >= int64(capacity) {
			return reservationerrors.ErrSlotFull
		}
		return s.repo.UpdateStatus(sessCtx, booking.ID, model.StatusRequested, model.StatusConfirmed, nil)
	})
	if err != nil {
		switch {
		case errors.Is(err, reservationerrors.ErrSlotFull):
			return nil, apperrors.SlotFull(booking.SlotKey)
		case errors.Is(err, reservationerrors.ErrStatusConflict):
			return nil, apperrors.Conflict("Booking status changed concurrently")
		case errors.Is(err, reservationerrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", id)
		default:
			s.cfg.Log.Error("Failed to approve booking", "id", id, "error", err)
			return nil, apperrors.Internal("Failed to approve booking", err)
		}
	}

	from := booking.Status
	booking.Status = model.StatusConfirmed

	s.cfg.Log.Info("Booking approved", "id", booking.ID, "slot_key", booking.SlotKey)
	s.publish(ctx, events.TypeBookingConfirmed, booking, from)
	return booking, nil
}

func (s *lifecycleManager) Reject(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status != model.StatusRequested {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Only requested bookings can be rejected, booking is %q", booking.Status),
			string(booking.Status),
		)
	}

	change := &model.StatusChange{PaymentStatus: refundIntent(booking.PaymentStatus)}
	if err := s.transition(ctx, booking, model.StatusRejected, change, "status changed concurrently"); err != nil {
		return nil, err
	}

	from := booking.Status
	booking.Status = model.StatusRejected
	if change.PaymentStatus != "" {
		booking.PaymentStatus = change.PaymentStatus
	}

	s.cfg.Log.Info("Booking rejected", "id", booking.ID, "slot_key", booking.SlotKey)
	s.publish(ctx, events.TypeBookingRejected, booking, from)
	return booking, nil
}

// Complete finalizes a booking whose slot has ended. Losing the CAS to a
// concurrent cancel or a second sweeper pass is not an error; the booking
// simply reached a terminal state by another path.
func (s *lifecycleManager) Complete(ctx context.Context, id string) error {
	booking, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status.Terminal() {
		return nil
	}

	err = s.repo.UpdateStatus(ctx, booking.ID, booking.Status, model.StatusCompleted, nil)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrStatusConflict) {
			s.cfg.Log.Debug("Completion skipped, booking moved concurrently", "id", booking.ID)
			return nil
		}
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to complete booking", err)
	}

	from := booking.Status
	booking.Status = model.StatusCompleted

	s.cfg.Log.Info("Booking completed", "id", booking.ID, "slot_key", booking.SlotKey)
	s.publish(ctx, events.TypeBookingCompleted, booking, from)
	return nil
}

func (s *lifecycleManager) get(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *lifecycleManager) transition(ctx context.Context, booking *model.Booking, target model.Status, change *model.StatusChange, conflictMsg string) error {
	err := s.repo.UpdateStatus(ctx, booking.ID, booking.Status, target, change)
	if err != nil {
		switch {
		case errors.Is(err, reservationerrors.ErrStatusConflict):
			return apperrors.Conflict(fmt.Sprintf("Booking is %s", conflictMsg))
		case errors.Is(err, reservationerrors.ErrNotFound):
			return apperrors.NotFoundWithID("Booking", booking.ID)
		default:
			s.cfg.Log.Error("Failed to transition booking", "id", booking.ID, "target", target, "error", err)
			return apperrors.Internal("Failed to update booking status", err)
		}
	}
	return nil
}

func (s *lifecycleManager) publish(ctx context.Context, eventType string, booking *model.Booking, from model.Status) {
	event := events.BookingEvent{
		Type:          eventType,
		BookingID:     booking.ID,
		AmenityID:     booking.AmenityID,
		SlotKey:       booking.SlotKey,
		RequesterID:   booking.RequesterID,
		FromStatus:    from,
		ToStatus:      booking.Status,
		PaymentStatus: booking.PaymentStatus,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Booking event not delivered",
			"type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

// refundIntent flags money that should flow back when a booking ends before
// its slot. Actual refund execution lives with the payment collaborator.
func refundIntent(current model.PaymentStatus) model.PaymentStatus {
	if current == model.PaymentPaid || current == model.PaymentPending {
		return model.PaymentRefunded
	}
	return ""
}

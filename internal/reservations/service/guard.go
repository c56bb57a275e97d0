package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	amenityerrors "reserva/internal/amenities/errors"
	reservationerrors "reserva/internal/reservations/errors"
	"reserva/internal/reservations/repository"
	"reserva/internal/reservations/validator"
	"reserva/pkg/config"
	apperrors "reserva/pkg/errors"
	"reserva/pkg/events"
	"reserva/pkg/model"
	"reserva/pkg/sanitizer"
)

// SlotResolver maps an incoming (amenity, date, start) triple onto a concrete
// slot instance. Implemented by the amenity catalog.
type SlotResolver interface {
	ResolveSlot(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error)
}

// ReservationGuard owns booking admission: it is the only path that creates
// ledger entries, and it guarantees a slot never ends up with more active
// bookings than capacity.
type ReservationGuard interface {
	TryReserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error)
}

type reservationGuard struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	resolver  SlotResolver
	validator *validator.BookingValidator
	events    events.Publisher
	cfg       *config.Config
}

func NewReservationGuard(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	resolver SlotResolver,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationGuard {
	return &reservationGuard{
		repo:      repo,
		lockRepo:  lockRepo,
		resolver:  resolver,
		validator: validator,
		events:    publisher,
		cfg:       cfg,
	}
}

// TryReserve admits a reservation request. The sequence is: idempotency token
// replay, slot resolution, advisory lock, then a capacity-checked insert
// inside a transaction. The advisory lock is the serialization guarantee:
// under snapshot isolation two unserialized writers would each count against
// their own snapshot and both commit. The transaction keeps the count and the
// insert atomic across the lock's TTL edge.
func (s *reservationGuard) TryReserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error) {
	s.sanitize(req)
	if req.GuestCount == 0 {
		req.GuestCount = 1
	}
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, apperrors.Validation("Reservation request validation failed", map[string]any{
			"errors": err.Error(),
		})
	}

	if req.IdempotencyToken != "" {
		existing, err := s.repo.FindByToken(ctx, req.IdempotencyToken)
		if err == nil {
			s.cfg.Log.Info("Idempotent reservation replay",
				"token", req.IdempotencyToken,
				"booking_id", existing.ID,
			)
			return existing, nil
		}
		if !errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.Internal("Failed to check idempotency token", err)
		}
	}

	slot, amenity, err := s.resolver.ResolveSlot(ctx, req.AmenityID, req.Date, req.SlotStart)
	if err != nil {
		if errors.Is(err, amenityerrors.ErrInvalidSlot) {
			return nil, apperrors.InvalidInput(
				fmt.Sprintf("No slot at %s on %s for this amenity", req.SlotStart, req.Date),
			)
		}
		return nil, err
	}

	now := time.Now()
	if !slot.StartTime.After(now) {
		return nil, apperrors.InvalidInput("Slot start must be in the future")
	}

	booking := s.assemble(req, slot, amenity)
	if err := s.validator.ValidateBooking(booking); err != nil {
		return nil, apperrors.Validation("Assembled booking failed validation", map[string]any{
			"errors": err.Error(),
		})
	}

	// fast-path refusal: a full slot fails without any write. The
	// authoritative check still happens inside the insert transaction.
	active, err := s.repo.CountActive(ctx, booking.SlotKey)
	if err != nil {
		return nil, apperrors.Internal("Failed to count active bookings", err)
	}
	if active >= int64(slot.Capacity) {
		return nil, apperrors.SlotFull(booking.SlotKey)
	}

	lock, err := s.lockRepo.Acquire(ctx, booking.SlotKey, s.cfg.SlotLockTTL)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrLockHeld) {
			return nil, apperrors.Conflict("Slot is being booked by another request, retry shortly")
		}
		return nil, apperrors.Internal("Failed to acquire slot lock", err)
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, lock.SlotKey); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "slot_key", lock.SlotKey, "error", releaseErr)
		}
	}()

	replayed, err := s.insert(ctx, booking, slot.Capacity)
	if err != nil {
		return nil, err
	}
	if replayed {
		// the other request already announced this booking
		s.cfg.Log.Info("Idempotent reservation replay",
			"token", booking.IdempotencyToken,
			"booking_id", booking.ID,
		)
		return booking, nil
	}

	s.cfg.Log.Info("Reservation admitted",
		"id", booking.ID,
		"slot_key", booking.SlotKey,
		"requester_id", booking.RequesterID,
		"status", booking.Status,
	)

	eventType := events.TypeBookingCreated
	if booking.Status == model.StatusConfirmed {
		eventType = events.TypeBookingConfirmed
	}
	s.publish(ctx, eventType, booking, "")

	return booking, nil
}

// insert writes the booking and reports whether the result is a replay of a
// booking another request created with the same idempotency token.
func (s *reservationGuard) insert(ctx context.Context, booking *model.Booking, capacity int) (bool, error) {
	var err error
	if booking.Status.CountsTowardCapacity() {
		err = s.repo.InsertWithCapacity(ctx, booking, capacity)
	} else {
		// a requested booking holds no capacity unit until approved
		err = s.repo.Insert(ctx, booking)
	}

	if err != nil {
		switch {
		case errors.Is(err, reservationerrors.ErrSlotFull):
			return false, apperrors.SlotFull(booking.SlotKey)
		case errors.Is(err, reservationerrors.ErrDuplicateToken):
			// lost a race against an identical request; surface its result
			existing, findErr := s.repo.FindByToken(ctx, booking.IdempotencyToken)
			if findErr == nil {
				*booking = *existing
				return true, nil
			}
			return false, apperrors.Conflict("Idempotency token already used")
		default:
			s.cfg.Log.Error("Failed to insert booking", "slot_key", booking.SlotKey, "error", err)
			return false, apperrors.Internal("Failed to create booking", err)
		}
	}

	return false, nil
}

func (s *reservationGuard) assemble(req *model.ReservationRequest, slot *model.SlotInstance, amenity *model.Amenity) *model.Booking {
	status := model.StatusConfirmed
	if amenity.RequiresApproval {
		status = model.StatusRequested
	}

	booking := &model.Booking{
		AmenityID:        req.AmenityID,
		SlotKey:          slot.Key(),
		SlotStart:        slot.StartTime,
		SlotEnd:          slot.EndTime,
		RequesterID:      req.RequesterID,
		UnitID:           req.UnitID,
		GuestCount:       req.GuestCount,
		Status:           status,
		PaymentStatus:    model.PaymentUnpaid,
		IdempotencyToken: req.IdempotencyToken,
		Notes:            req.Notes,
	}

	if amenity.Paid {
		booking.AmountCents = amenity.PriceCents
		booking.PaymentStatus = model.PaymentPending
	}

	return booking
}

func (s *reservationGuard) sanitize(req *model.ReservationRequest) {
	req.AmenityID = sanitizer.NormalizeID(req.AmenityID)
	req.RequesterID = sanitizer.NormalizeID(req.RequesterID)
	req.UnitID = sanitizer.TrimAndNormalize(req.UnitID)
	req.Date = sanitizer.TrimAndNormalize(req.Date)
	req.SlotStart = sanitizer.TrimAndNormalize(req.SlotStart)
	req.IdempotencyToken = sanitizer.TrimAndNormalize(req.IdempotencyToken)
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
}

// publish fires an event for a lifecycle transition. Delivery failures are
// logged by the publisher and never roll back the ledger write.
func (s *reservationGuard) publish(ctx context.Context, eventType string, booking *model.Booking, from model.Status) {
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
			"error", fmt.Errorf("publish: %w", err),
		)
	}
}

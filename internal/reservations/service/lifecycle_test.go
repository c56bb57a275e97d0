package service

import (
	"context"
	"sync"
	"testing"
	"time"

	reservationerrors "reserva/internal/reservations/errors"
	apperrors "reserva/pkg/errors"
	"reserva/pkg/events"
	"reserva/pkg/model"
)

type mockAmenities struct {
	getByIDFunc    func(ctx context.Context, id string) (*model.Amenity, error)
	capacityOfFunc func(ctx context.Context, slotKey string) (int, error)
}

func (m *mockAmenities) GetByID(ctx context.Context, id string) (*model.Amenity, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &model.Amenity{ID: testAmenityID, Capacity: 5, CancellationWindowMin: 120}, nil
}

func (m *mockAmenities) CapacityOf(ctx context.Context, slotKey string) (int, error) {
	if m.capacityOfFunc != nil {
		return m.capacityOfFunc(ctx, slotKey)
	}
	return 5, nil
}

func newTestLifecycle(repo *mockBookingRepository, amenities *mockAmenities) LifecycleManager {
	return newTestLifecycleWithLocks(repo, &mockSlotLockRepository{}, amenities)
}

func newTestLifecycleWithLocks(repo *mockBookingRepository, locks *mockSlotLockRepository, amenities *mockAmenities) LifecycleManager {
	return NewLifecycleManager(repo, locks, amenities, events.NewNoopPublisher(), testConfig())
}

func confirmedBooking(slotStart time.Time) *model.Booking {
	return &model.Booking{
		ID:            "507f191e810c19729de860ea",
		AmenityID:     testAmenityID,
		SlotKey:       testSlotKey,
		SlotStart:     slotStart,
		SlotEnd:       slotStart.Add(time.Hour),
		RequesterID:   "resident-42",
		GuestCount:    2,
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PaymentUnpaid,
	}
}

func TestCancel_InsideWindow(t *testing.T) {
	// window is 120 min; slot starts in 3 hours, comfortably cancellable
	booking := confirmedBooking(time.Now().Add(3 * time.Hour))

	var casFrom, casTo model.Status
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			casFrom, casTo = expected, target
			if change == nil || change.CancelledAt == nil {
				t.Error("cancellation must stamp cancelled_at")
			}
			return nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	cancelled, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
	if casFrom != model.StatusConfirmed || casTo != model.StatusCancelled {
		t.Errorf("CAS ran %s->%s, want confirmed->cancelled", casFrom, casTo)
	}
	if cancelled.CancelledBy != "resident-42" {
		t.Errorf("cancelled_by = %q", cancelled.CancelledBy)
	}
}

func TestCancel_WindowExpired(t *testing.T) {
	// slot starts in 1 hour, inside the 120 min window
	booking := confirmedBooking(time.Now().Add(time.Hour))

	var updated bool
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			updated = true
			return nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	_, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
	if err == nil {
		t.Fatal("expected window expired error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeWindowExpired {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeWindowExpired)
	}
	if updated {
		t.Error("expired cancellation must not touch the ledger")
	}
}

func TestCancel_WindowBoundary(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		slotStart time.Time
		wantErr   bool
	}{
		{"exactly on the boundary", now.Add(120 * time.Minute), false},
		{"one second inside the window", now.Add(120*time.Minute - time.Second), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			booking := confirmedBooking(tc.slotStart)
			repo := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					b := *booking
					return &b, nil
				},
			}

			lifecycle := newTestLifecycle(repo, &mockAmenities{}).(*lifecycleManager)
			lifecycle.now = func() time.Time { return now }

			_, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected window expired error")
				}
				if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeWindowExpired {
					t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeWindowExpired)
				}
				return
			}
			if err != nil {
				t.Fatalf("cancelling on the boundary must pass, got: %v", err)
			}
		})
	}
}

func TestCancel_AmenityWindowOverride(t *testing.T) {
	// amenity shortens the window to 30 min; slot in 1 hour is cancellable
	booking := confirmedBooking(time.Now().Add(time.Hour))

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}
	amenities := &mockAmenities{
		getByIDFunc: func(ctx context.Context, id string) (*model.Amenity, error) {
			return &model.Amenity{ID: testAmenityID, Capacity: 5, CancellationWindowMin: 30}, nil
		},
	}

	lifecycle := newTestLifecycle(repo, amenities)

	if _, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancel_RequestedBoundByWindow(t *testing.T) {
	// a pending request is withdrawn under the same window as a confirmed one
	booking := confirmedBooking(time.Now().Add(time.Minute))
	booking.Status = model.StatusRequested

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	_, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
	if err == nil {
		t.Fatal("expected window expired error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeWindowExpired {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeWindowExpired)
	}
}

func TestCancel_RequestedInsideWindow(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(6 * time.Hour))
	booking.Status = model.StatusRequested

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	cancelled, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
}

func TestCancel_TerminalBooking(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(3 * time.Hour))
	booking.Status = model.StatusCompleted

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	_, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
	if err == nil {
		t.Fatal("expected invalid state error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidState {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeInvalidState)
	}
}

func TestCancel_PaidBookingFlagsRefund(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(3 * time.Hour))
	booking.PaymentStatus = model.PaymentPaid
	booking.AmountCents = 50000

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	cancelled, err := lifecycle.Cancel(context.Background(), booking.ID, "resident-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.PaymentStatus != model.PaymentRefunded {
		t.Errorf("payment_status = %q, want refunded", cancelled.PaymentStatus)
	}
}

func TestCheckIn_InsideGraceWindow(t *testing.T) {
	// slot started 10 minutes ago, still running
	booking := confirmedBooking(time.Now().Add(-10 * time.Minute))

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	checked, err := lifecycle.CheckIn(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checked.Status != model.StatusCheckedIn {
		t.Errorf("status = %q, want checked_in", checked.Status)
	}
}

func TestCheckIn_TooEarly(t *testing.T) {
	// grace is 15 min; slot starts in an hour
	booking := confirmedBooking(time.Now().Add(time.Hour))

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	_, err := lifecycle.CheckIn(context.Background(), booking.ID)
	if err == nil {
		t.Fatal("expected error for early check-in")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidState {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeInvalidState)
	}
}

func TestCheckIn_AfterSlotEnd(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(-2 * time.Hour))

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	if _, err := lifecycle.CheckIn(context.Background(), booking.ID); err == nil {
		t.Fatal("expected error for check-in after slot end")
	}
}

func TestCheckIn_CancelledBookingUnchanged(t *testing.T) {
	booking := confirmedBooking(time.Now())
	booking.Status = model.StatusCancelled

	var updated bool
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			updated = true
			return nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	_, err := lifecycle.CheckIn(context.Background(), booking.ID)
	if err == nil {
		t.Fatal("expected invalid state error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidState {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeInvalidState)
	}
	if updated {
		t.Error("rejected check-in must not mutate the booking")
	}
}

func TestApprove_RevalidatesCapacity(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(24 * time.Hour))
	booking.Status = model.StatusRequested

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		countActiveFunc: func(ctx context.Context, slotKey string) (int64, error) {
			// slot filled while the request waited for approval
			return 5, nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	_, err := lifecycle.Approve(context.Background(), booking.ID)
	if err == nil {
		t.Fatal("expected slot full error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeSlotFull {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeSlotFull)
	}
}

func TestApprove_Succeeds(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(24 * time.Hour))
	booking.Status = model.StatusRequested

	var casFrom, casTo model.Status
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		countActiveFunc: func(ctx context.Context, slotKey string) (int64, error) {
			return 2, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			casFrom, casTo = expected, target
			return nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	approved, err := lifecycle.Approve(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != model.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", approved.Status)
	}
	if casFrom != model.StatusRequested || casTo != model.StatusConfirmed {
		t.Errorf("CAS ran %s->%s, want requested->confirmed", casFrom, casTo)
	}
}

func TestApprove_HeldSlotLockRefused(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(24 * time.Hour))
	booking.Status = model.StatusRequested

	var counted, updated bool
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		countActiveFunc: func(ctx context.Context, slotKey string) (int64, error) {
			counted = true
			return 0, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			updated = true
			return nil
		},
	}
	locks := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error) {
			return nil, reservationerrors.ErrLockHeld
		},
	}

	lifecycle := newTestLifecycleWithLocks(repo, locks, &mockAmenities{})

	_, err := lifecycle.Approve(context.Background(), booking.ID)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeConflict)
	}
	if counted || updated {
		t.Error("a held lock must stop the approval before any ledger work")
	}
}

func TestApprove_ConcurrentApprovalsNeverOversell(t *testing.T) {
	const capacity = 5

	// shared ledger: four units held, two approvals race for the last one
	var mu sync.Mutex
	active := int64(capacity - 1)
	held := false

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *confirmedBooking(time.Now().Add(24 * time.Hour))
			b.ID = id
			b.Status = model.StatusRequested
			return &b, nil
		},
		countActiveFunc: func(ctx context.Context, slotKey string) (int64, error) {
			mu.Lock()
			defer mu.Unlock()
			return active, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			mu.Lock()
			defer mu.Unlock()
			active++
			return nil
		},
	}
	locks := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error) {
			mu.Lock()
			defer mu.Unlock()
			if held {
				return nil, reservationerrors.ErrLockHeld
			}
			held = true
			return &model.SlotLock{ID: slotKey, SlotKey: slotKey}, nil
		},
		releaseFunc: func(ctx context.Context, slotKey string) error {
			mu.Lock()
			defer mu.Unlock()
			held = false
			return nil
		},
	}

	lifecycle := newTestLifecycleWithLocks(repo, locks, &mockAmenities{})

	ids := []string{"507f191e810c19729de860ea", "507f191e810c19729de860eb"}
	results := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := lifecycle.Approve(context.Background(), id)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		appErr := apperrors.AsAppError(err)
		if appErr.Code != apperrors.CodeSlotFull && appErr.Code != apperrors.CodeConflict {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("expected exactly one approval for the last unit, got %d", succeeded)
	}
	if active > capacity {
		t.Errorf("slot oversold: %d active with capacity %d", active, capacity)
	}
}

func TestReject_OnlyFromRequested(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(24 * time.Hour))

	lifecycle := newTestLifecycle(&mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
	}, &mockAmenities{})

	_, err := lifecycle.Reject(context.Background(), booking.ID)
	if err == nil {
		t.Fatal("expected invalid state error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidState {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeInvalidState)
	}
}

func TestComplete_Idempotent(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(-2 * time.Hour))
	booking.Status = model.StatusCompleted

	var updated bool
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			updated = true
			return nil
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	if err := lifecycle.Complete(context.Background(), booking.ID); err != nil {
		t.Fatalf("completing a completed booking must be a no-op, got: %v", err)
	}
	if updated {
		t.Error("no CAS expected for an already completed booking")
	}
}

func TestComplete_LostRaceIsNotAnError(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(-2 * time.Hour))

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
			return reservationerrors.ErrStatusConflict
		},
	}

	lifecycle := newTestLifecycle(repo, &mockAmenities{})

	if err := lifecycle.Complete(context.Background(), booking.ID); err != nil {
		t.Fatalf("lost CAS should be swallowed, got: %v", err)
	}
}

func TestComplete_CancelledBookingIsNoop(t *testing.T) {
	booking := confirmedBooking(time.Now().Add(-2 * time.Hour))
	booking.Status = model.StatusCancelled

	var updated bool
	lifecycle := newTestLifecycle(&mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := *booking
			return &b, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, from, to model.Status, change *model.StatusChange) error {
			updated = true
			return nil
		},
	}, &mockAmenities{})

	if err := lifecycle.Complete(context.Background(), booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Error("terminal booking should not be written")
	}
}

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	amenityerrors "reserva/internal/amenities/errors"
	reservationerrors "reserva/internal/reservations/errors"
	"reserva/internal/reservations/validator"
	"reserva/pkg/config"
	mongotx "reserva/pkg/db/mongo"
	apperrors "reserva/pkg/errors"
	"reserva/pkg/events"
	"reserva/pkg/logger"
	"reserva/pkg/model"
)

type mockBookingRepository struct {
	insertFunc             func(ctx context.Context, booking *model.Booking) error
	insertWithCapacityFunc func(ctx context.Context, booking *model.Booking, capacity int) error
	updateStatusFunc       func(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error
	countActiveFunc        func(ctx context.Context, slotKey string) (int64, error)
	findByIDFunc           func(ctx context.Context, id string) (*model.Booking, error)
	findByTokenFunc        func(ctx context.Context, token string) (*model.Booking, error)
	findByAmenityDateFunc  func(ctx context.Context, amenityID, date string, status *model.Status, limit int, offset int64) ([]*model.Booking, error)
	countByAmenityDateFunc func(ctx context.Context, amenityID, date string, status *model.Status) (int64, error)
	findDueFunc            func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)
	executeTransactionFunc func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, booking)
	}
	booking.ID = "507f191e810c19729de860ea"
	return nil
}

func (m *mockBookingRepository) InsertWithCapacity(ctx context.Context, booking *model.Booking, capacity int) error {
	if m.insertWithCapacityFunc != nil {
		return m.insertWithCapacityFunc(ctx, booking, capacity)
	}
	booking.ID = "507f191e810c19729de860ea"
	return nil
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, expected, target, change)
	}
	return nil
}

func (m *mockBookingRepository) CountActive(ctx context.Context, slotKey string) (int64, error) {
	if m.countActiveFunc != nil {
		return m.countActiveFunc(ctx, slotKey)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reservationerrors.ErrNotFound
}

func (m *mockBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	if m.findByTokenFunc != nil {
		return m.findByTokenFunc(ctx, token)
	}
	return nil, reservationerrors.ErrNotFound
}

func (m *mockBookingRepository) FindByRequester(ctx context.Context, requesterID string, status *model.Status, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountByRequester(ctx context.Context, requesterID string, status *model.Status) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status, limit int, offset int64) ([]*model.Booking, error) {
	if m.findByAmenityDateFunc != nil {
		return m.findByAmenityDateFunc(ctx, amenityID, date, status, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status) (int64, error) {
	if m.countByAmenityDateFunc != nil {
		return m.countByAmenityDateFunc(ctx, amenityID, date, status)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindDueForCompletion(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	if m.findDueFunc != nil {
		return m.findDueFunc(ctx, now, limit)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTransactionFunc != nil {
		return m.executeTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

type mockSlotLockRepository struct {
	acquireFunc func(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error)
	releaseFunc func(ctx context.Context, slotKey string) error
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, slotKey, ttl)
	}
	return &model.SlotLock{ID: slotKey, SlotKey: slotKey}, nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, slotKey string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, slotKey)
	}
	return nil
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error)
}

func (m *mockResolver) ResolveSlot(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error) {
	return m.resolveFunc(ctx, amenityID, date, start)
}

const (
	testAmenityID = "507f1f77bcf86cd799439011"
	testSlotKey   = testAmenityID + ":2026-09-01:18:00"
)

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "info",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
		CancellationWindowMin: 120,
		CheckInGraceMin:       15,
		SlotLockTTL:           10 * time.Second,
		SweepBatchSize:        100,
	}
}

// futureResolver returns a slot far enough ahead that requests always pass
// the forward-booking check.
func futureResolver(capacity int, requiresApproval bool) *mockResolver {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	return &mockResolver{
		resolveFunc: func(ctx context.Context, amenityID, date, startStr string) (*model.SlotInstance, *model.Amenity, error) {
			return &model.SlotInstance{
					AmenityID: testAmenityID,
					Date:      "2026-09-01",
					StartTime: start,
					EndTime:   start.Add(time.Hour),
					Capacity:  capacity,
				}, &model.Amenity{
					ID:               testAmenityID,
					Name:             "Club House",
					Capacity:         capacity,
					RequiresApproval: requiresApproval,
				}, nil
		},
	}
}

func validRequest() *model.ReservationRequest {
	return &model.ReservationRequest{
		AmenityID:   testAmenityID,
		Date:        "2026-09-01",
		SlotStart:   "18:00",
		RequesterID: "resident-42",
		UnitID:      "B-1203",
		GuestCount:  2,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BookingEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.BookingEvent(nil), p.events...)
}

func newTestGuard(repo *mockBookingRepository, locks *mockSlotLockRepository, resolver *mockResolver) ReservationGuard {
	return newTestGuardWithPublisher(repo, locks, resolver, events.NewNoopPublisher())
}

func newTestGuardWithPublisher(repo *mockBookingRepository, locks *mockSlotLockRepository, resolver *mockResolver, publisher events.Publisher) ReservationGuard {
	cfg := testConfig()
	return NewReservationGuard(
		repo,
		locks,
		resolver,
		validator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)
}

func TestTryReserve_ConcurrentRequestsNeverOversell(t *testing.T) {
	const capacity = 3
	const attempts = 20

	// in-memory ledger: count and insert commit under one mutex, mirroring
	// the transactional count+insert
	var mu sync.Mutex
	active := 0

	repo := &mockBookingRepository{}
	repo.insertWithCapacityFunc = func(ctx context.Context, booking *model.Booking, cap int) error {
		mu.Lock()
		defer mu.Unlock()
		if active >= cap {
			return reservationerrors.ErrSlotFull
		}
		active++
		booking.ID = "507f191e810c19729de860ea"
		return nil
	}

	guard := newTestGuard(repo, &mockSlotLockRepository{}, futureResolver(capacity, false))

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.TryReserve(context.Background(), validRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, slotFull int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		appErr := apperrors.AsAppError(err)
		if appErr.Code == apperrors.CodeSlotFull || appErr.Code == apperrors.CodeConflict {
			slotFull++
			continue
		}
		t.Errorf("unexpected error: %v", err)
	}

	if succeeded != capacity {
		t.Errorf("expected exactly %d admitted reservations, got %d", capacity, succeeded)
	}
	if succeeded+slotFull != attempts {
		t.Errorf("expected %d total outcomes, got %d", attempts, succeeded+slotFull)
	}
}

func TestTryReserve_IdempotencyTokenReplay(t *testing.T) {
	existing := &model.Booking{
		ID:               "507f191e810c19729de860ea",
		AmenityID:        testAmenityID,
		SlotKey:          testSlotKey,
		Status:           model.StatusConfirmed,
		IdempotencyToken: "tok-123",
	}

	var inserted bool
	repo := &mockBookingRepository{
		findByTokenFunc: func(ctx context.Context, token string) (*model.Booking, error) {
			if token == "tok-123" {
				return existing, nil
			}
			return nil, reservationerrors.ErrNotFound
		},
		insertWithCapacityFunc: func(ctx context.Context, booking *model.Booking, capacity int) error {
			inserted = true
			return nil
		},
	}

	guard := newTestGuard(repo, &mockSlotLockRepository{}, futureResolver(5, false))

	req := validRequest()
	req.IdempotencyToken = "tok-123"

	booking, err := guard.TryReserve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.ID != existing.ID {
		t.Errorf("expected the existing booking back, got %s", booking.ID)
	}
	if inserted {
		t.Error("replay must not insert a second booking")
	}
}

func TestTryReserve_ApprovalRequiredStartsRequested(t *testing.T) {
	var insertedStatus model.Status
	var usedCapacityPath bool
	repo := &mockBookingRepository{
		insertFunc: func(ctx context.Context, booking *model.Booking) error {
			insertedStatus = booking.Status
			booking.ID = "507f191e810c19729de860ea"
			return nil
		},
		insertWithCapacityFunc: func(ctx context.Context, booking *model.Booking, capacity int) error {
			usedCapacityPath = true
			return nil
		},
	}

	guard := newTestGuard(repo, &mockSlotLockRepository{}, futureResolver(5, true))

	booking, err := guard.TryReserve(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insertedStatus != model.StatusRequested {
		t.Errorf("approval-gated booking inserted as %q, want requested", insertedStatus)
	}
	if booking.Status != model.StatusRequested {
		t.Errorf("returned booking status = %q, want requested", booking.Status)
	}
	if usedCapacityPath {
		t.Error("requested booking must not consume a capacity unit at insert")
	}
}

func TestTryReserve_RequestedRefusedWhenSlotFull(t *testing.T) {
	repo := &mockBookingRepository{
		countActiveFunc: func(ctx context.Context, slotKey string) (int64, error) {
			return 5, nil
		},
	}

	guard := newTestGuard(repo, &mockSlotLockRepository{}, futureResolver(5, true))

	_, err := guard.TryReserve(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected slot full error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeSlotFull {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeSlotFull)
	}
}

func TestTryReserve_LockHeld(t *testing.T) {
	locks := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error) {
			return nil, reservationerrors.ErrLockHeld
		},
	}

	guard := newTestGuard(&mockBookingRepository{}, locks, futureResolver(5, false))

	_, err := guard.TryReserve(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeConflict)
	}
}

func TestTryReserve_PastSlotRejected(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error) {
			return &model.SlotInstance{
					AmenityID: testAmenityID,
					Date:      "2026-09-01",
					StartTime: past,
					EndTime:   past.Add(time.Hour),
					Capacity:  5,
				}, &model.Amenity{ID: testAmenityID, Capacity: 5}, nil
		},
	}

	guard := newTestGuard(&mockBookingRepository{}, &mockSlotLockRepository{}, resolver)

	_, err := guard.TryReserve(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error for a slot in the past")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeInvalidInput)
	}
}

func TestTryReserve_ValidationFailure(t *testing.T) {
	guard := newTestGuard(&mockBookingRepository{}, &mockSlotLockRepository{}, futureResolver(5, false))

	req := validRequest()
	req.Date = "not-a-date"

	_, err := guard.TryReserve(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeValidation)
	}
}

func TestTryReserve_DuplicateTokenRaceResolvesToExisting(t *testing.T) {
	existing := &model.Booking{
		ID:               "507f191e810c19729de860ea",
		SlotKey:          testSlotKey,
		Status:           model.StatusConfirmed,
		IdempotencyToken: "tok-race",
	}

	first := true
	repo := &mockBookingRepository{
		findByTokenFunc: func(ctx context.Context, token string) (*model.Booking, error) {
			// miss on the pre-insert lookup, hit after the duplicate key
			if first {
				first = false
				return nil, reservationerrors.ErrNotFound
			}
			return existing, nil
		},
		insertWithCapacityFunc: func(ctx context.Context, booking *model.Booking, capacity int) error {
			return reservationerrors.ErrDuplicateToken
		},
	}

	publisher := &recordingPublisher{}
	guard := newTestGuardWithPublisher(repo, &mockSlotLockRepository{}, futureResolver(5, false), publisher)

	req := validRequest()
	req.IdempotencyToken = "tok-race"

	booking, err := guard.TryReserve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.ID != existing.ID {
		t.Errorf("expected the winning booking back, got %s", booking.ID)
	}
	if got := publisher.published(); len(got) != 0 {
		// the request that won the insert already announced this booking
		t.Errorf("replay must not publish an event, got %d", len(got))
	}
}

func TestTryReserve_UnknownSlotRejected(t *testing.T) {
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error) {
			return nil, nil, fmt.Errorf("%w: %s %s", amenityerrors.ErrInvalidSlot, date, start)
		},
	}

	guard := newTestGuard(&mockBookingRepository{}, &mockSlotLockRepository{}, resolver)

	_, err := guard.TryReserve(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error for a slot no template produces")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeInvalidInput)
	}
}

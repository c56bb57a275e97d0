package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	amenityerrors "reserva/internal/amenities/errors"
	"reserva/internal/amenities/repository"
	"reserva/internal/amenities/validator"
	"reserva/pkg/config"
	apperrors "reserva/pkg/errors"
	"reserva/pkg/model"
	"reserva/pkg/sanitizer"
)

// ActiveCounter reports how many bookings currently consume capacity in a
// slot. Implemented by the reservations ledger.
type ActiveCounter interface {
	CountActive(ctx context.Context, slotKey string) (int64, error)
}

type CatalogService interface {
	Create(ctx context.Context, amenity *model.Amenity) error
	GetByID(ctx context.Context, id string) (*model.Amenity, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Amenity, int64, error)
	Update(ctx context.Context, id string, updates *model.AmenityUpdate) error

	ExpandSlots(ctx context.Context, amenityID, date string) ([]model.SlotInstance, error)
	ResolveSlot(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error)
	CapacityOf(ctx context.Context, slotKey string) (int, error)
	Availability(ctx context.Context, amenityID, date string) ([]model.SlotAvailability, error)
}

type catalogService struct {
	repo      repository.AmenityRepository
	counter   ActiveCounter
	validator *validator.AmenityValidator
	cfg       *config.Config
}

func NewCatalogService(
	repo repository.AmenityRepository,
	counter ActiveCounter,
	validator *validator.AmenityValidator,
	cfg *config.Config,
) CatalogService {
	return &catalogService{
		repo:      repo,
		counter:   counter,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *catalogService) Create(ctx context.Context, amenity *model.Amenity) error {
	s.applyDefaults(amenity)
	s.sanitize(amenity)
	if err := s.validate(amenity); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, amenity); err != nil {
		if errors.Is(err, amenityerrors.ErrDuplicateName) {
			return apperrors.Conflict(fmt.Sprintf("Amenity %q already exists", amenity.Name))
		}
		s.cfg.Log.Error("Failed to create amenity", "name", amenity.Name, "error", err)
		return apperrors.Internal("Failed to create amenity", err)
	}

	s.cfg.Log.Info("Amenity created", "id", amenity.ID, "name", amenity.Name, "capacity", amenity.Capacity)
	return nil
}

func (s *catalogService) GetByID(ctx context.Context, id string) (*model.Amenity, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Amenity ID cannot be empty")
	}

	amenity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, amenityerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Amenity", id)
		}
		if errors.Is(err, amenityerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid amenity ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve amenity", err)
	}

	return amenity, nil
}

func (s *catalogService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Amenity, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var amenities []*model.Amenity
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
	}()

	go func() {
		defer wg.Done()
		amenities, errFind = s.repo.FindAll(ctx, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count amenities", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to list amenities", errFind)
	}

	return amenities, count, nil
}

func (s *catalogService) Update(ctx context.Context, id string, updates *model.AmenityUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Amenity ID cannot be empty")
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return apperrors.Validation("Amenity update validation failed", map[string]any{
			"errors": err.Error(),
		})
	}

	amenity, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	applyUpdates(amenity, updates)
	s.sanitize(amenity)
	if err := s.validate(amenity); err != nil {
		return err
	}

	if _, err := s.repo.Update(ctx, id, amenity); err != nil {
		if errors.Is(err, amenityerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Amenity", id)
		}
		s.cfg.Log.Error("Failed to update amenity", "id", id, "error", err)
		return apperrors.Internal("Failed to update amenity", err)
	}

	s.cfg.Log.Info("Amenity updated", "id", id)
	return nil
}

// ExpandSlots materializes the bookable slots of an amenity for one calendar
// date. Expansion is pure: the same amenity document and date always produce
// the same ordered sequence. A day with no matching templates yields an empty
// slice, not an error.
func (s *catalogService) ExpandSlots(ctx context.Context, amenityID, date string) ([]model.SlotInstance, error) {
	amenity, err := s.GetByID(ctx, amenityID)
	if err != nil {
		return nil, err
	}

	return ExpandTemplates(amenity, date)
}

// ResolveSlot finds the concrete slot instance an incoming reservation points
// at. Slots that templates do not produce for that date do not exist.
func (s *catalogService) ResolveSlot(ctx context.Context, amenityID, date, start string) (*model.SlotInstance, *model.Amenity, error) {
	amenity, err := s.GetByID(ctx, amenityID)
	if err != nil {
		return nil, nil, err
	}

	slots, err := ExpandTemplates(amenity, date)
	if err != nil {
		return nil, nil, err
	}

	for i := range slots {
		if slots[i].StartTime.Format("15:04") == start {
			return &slots[i], amenity, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: %s %s", amenityerrors.ErrInvalidSlot, date, start)
}

// CapacityOf resolves the effective capacity behind a slot key.
func (s *catalogService) CapacityOf(ctx context.Context, slotKey string) (int, error) {
	amenityID, date, start, err := model.ParseSlotKey(slotKey)
	if err != nil {
		return 0, apperrors.InvalidInput("Malformed slot key")
	}

	slot, _, err := s.ResolveSlot(ctx, amenityID, date, start)
	if err != nil {
		if errors.Is(err, amenityerrors.ErrInvalidSlot) {
			return 0, apperrors.InvalidInput("Slot key does not address an existing slot")
		}
		return 0, err
	}

	return slot.Capacity, nil
}

func (s *catalogService) Availability(ctx context.Context, amenityID, date string) ([]model.SlotAvailability, error) {
	slots, err := s.ExpandSlots(ctx, amenityID, date)
	if err != nil {
		return nil, err
	}

	availability := make([]model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		key := slot.Key()
		active, err := s.counter.CountActive(ctx, key)
		if err != nil {
			return nil, apperrors.Internal("Failed to count active bookings", err)
		}

		remaining := slot.Capacity - int(active)
		if remaining < 0 {
			remaining = 0
		}

		availability = append(availability, model.SlotAvailability{
			SlotKey:   key,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Capacity:  slot.Capacity,
			Remaining: remaining,
		})
	}

	return availability, nil
}

// ExpandTemplates applies an amenity's slot templates to a calendar date.
// Exported so the reservations side can expand without a second fetch.
func ExpandTemplates(amenity *model.Amenity, date string) ([]model.SlotInstance, error) {
	loc := amenity.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, apperrors.InvalidInput("Date must be in YYYY-MM-DD format")
	}

	weekday := day.Weekday().String()
	slots := make([]model.SlotInstance, 0, len(amenity.SlotTemplates))

	for _, tpl := range amenity.SlotTemplates {
		if !matchesWeekday(tpl, weekday) {
			continue
		}

		start, err := clockOn(day, tpl.StartTime, loc)
		if err != nil {
			return nil, apperrors.Internal("Malformed template start time", err)
		}
		end, err := clockOn(day, tpl.EndTime, loc)
		if err != nil {
			return nil, apperrors.Internal("Malformed template end time", err)
		}

		slots = append(slots, model.SlotInstance{
			AmenityID: amenity.ID,
			Date:      date,
			StartTime: start,
			EndTime:   end,
			Capacity:  amenity.TemplateCapacity(tpl),
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartTime.Before(slots[j].StartTime)
	})

	return slots, nil
}

func matchesWeekday(tpl model.SlotTemplate, weekday string) bool {
	for _, d := range tpl.Weekdays {
		if d == weekday {
			return true
		}
	}
	return false
}

func clockOn(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed clock time: %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func (s *catalogService) applyDefaults(amenity *model.Amenity) {
	if amenity.TimeZone == "" {
		amenity.TimeZone = "UTC"
	}
	if amenity.CancellationWindowMin == 0 {
		amenity.CancellationWindowMin = s.cfg.CancellationWindowMin
	}
}

func (s *catalogService) sanitize(amenity *model.Amenity) {
	amenity.Name = sanitizer.NormalizeName(amenity.Name)
	amenity.Description = sanitizer.NormalizeNotes(amenity.Description)
	amenity.TimeZone = sanitizer.TrimAndNormalize(amenity.TimeZone)
}

func (s *catalogService) validate(amenity *model.Amenity) error {
	if err := s.validator.Validate(amenity); err != nil {
		return apperrors.Validation("Amenity validation failed", map[string]any{
			"errors": err.Error(),
		})
	}
	return nil
}

func applyUpdates(amenity *model.Amenity, updates *model.AmenityUpdate) {
	if updates.Name != "" {
		amenity.Name = updates.Name
	}
	if updates.Description != "" {
		amenity.Description = updates.Description
	}
	if updates.Capacity != nil {
		amenity.Capacity = *updates.Capacity
	}
	if updates.Paid != nil {
		amenity.Paid = *updates.Paid
	}
	if updates.PriceCents != nil {
		amenity.PriceCents = *updates.PriceCents
	}
	if updates.RequiresApproval != nil {
		amenity.RequiresApproval = *updates.RequiresApproval
	}
	if updates.OpenFrom != "" {
		amenity.OpenFrom = updates.OpenFrom
	}
	if updates.OpenUntil != "" {
		amenity.OpenUntil = updates.OpenUntil
	}
	if updates.TimeZone != "" {
		amenity.TimeZone = updates.TimeZone
	}
	if updates.CancellationWindowMin != nil {
		amenity.CancellationWindowMin = *updates.CancellationWindowMin
	}
	if updates.SlotTemplates != nil {
		amenity.SlotTemplates = *updates.SlotTemplates
	}
}

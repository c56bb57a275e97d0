package service

import (
	"context"
	"errors"
	"sync"

	reservationerrors "reserva/internal/reservations/errors"
	"reserva/internal/reservations/repository"
	"reserva/pkg/config"
	apperrors "reserva/pkg/errors"
	"reserva/pkg/model"
)

// QueryService is the read side of the ledger. It never mutates bookings.
type QueryService interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByRequester(ctx context.Context, requesterID string, status *model.Status, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status, limit int, offset int64) ([]*model.Booking, int64, error)
}

type queryService struct {
	repo repository.BookingRepository
	cfg  *config.Config
}

func NewQueryService(repo repository.BookingRepository, cfg *config.Config) QueryService {
	return &queryService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *queryService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
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

func (s *queryService) ListByRequester(ctx context.Context, requesterID string, status *model.Status, limit int, offset int64) ([]*model.Booking, int64, error) {
	if requesterID == "" {
		return nil, 0, apperrors.InvalidInput("Requester ID cannot be empty")
	}
	if status != nil && !status.Valid() {
		return nil, 0, apperrors.InvalidInput("Unknown booking status filter")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByRequester(ctx, requesterID, status)
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByRequester(ctx, requesterID, status, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to list bookings", errFind)
	}

	return bookings, count, nil
}

func (s *queryService) ListByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status, limit int, offset int64) ([]*model.Booking, int64, error) {
	if amenityID == "" {
		return nil, 0, apperrors.InvalidInput("Amenity ID cannot be empty")
	}
	if date == "" {
		return nil, 0, apperrors.InvalidInput("Date cannot be empty")
	}
	if status != nil && !status.Valid() {
		return nil, 0, apperrors.InvalidInput("Unknown booking status filter")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByAmenityDate(ctx, amenityID, date, status)
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByAmenityDate(ctx, amenityID, date, status, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to list bookings", errFind)
	}

	return bookings, count, nil
}

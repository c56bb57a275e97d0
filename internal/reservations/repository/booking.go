package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	reservationerrors "reserva/internal/reservations/errors"
	"reserva/pkg/config"
	mongotx "reserva/pkg/db/mongo"
	"reserva/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// BookingRepository is the reservation ledger. Two primitives carry the
// concurrency contract: InsertWithCapacity (capacity re-validated inside the
// insert transaction) and UpdateStatus (compare-and-set on the stored status).
type BookingRepository interface {
	Insert(ctx context.Context, booking *model.Booking) error
	InsertWithCapacity(ctx context.Context, booking *model.Booking, capacity int) error
	UpdateStatus(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error

	CountActive(ctx context.Context, slotKey string) (int64, error)

	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByToken(ctx context.Context, token string) (*model.Booking, error)
	FindByRequester(ctx context.Context, requesterID string, status *model.Status, limit int, offset int64) ([]*model.Booking, error)
	CountByRequester(ctx context.Context, requesterID string, status *model.Status) (int64, error)
	FindByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status, limit int, offset int64) ([]*model.Booking, error)
	CountByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status) (int64, error)
	FindDueForCompletion(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless the call is already
// inside a transaction; SessionContext cannot be wrapped without breaking
// transaction semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	if booking.RequestedAt.IsZero() {
		booking.RequestedAt = now
	}

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// only the idempotency token carries a unique index
			return reservationerrors.ErrDuplicateToken
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

// InsertWithCapacity re-counts the slot's active bookings and inserts inside
// one transaction. The count and the insert commit atomically, so two
// concurrent requests racing for the last unit cannot both observe a free
// slot.
func (r *mongoBookingRepository) InsertWithCapacity(ctx context.Context, booking *model.Booking, capacity int) error {
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		active, err := r.CountActive(sessCtx, booking.SlotKey)
		if err != nil {
			return err
		}
		if active >= int64(capacity) {
			return reservationerrors.ErrSlotFull
		}
		return r.Insert(sessCtx, booking)
	})
}

// UpdateStatus performs a compare-and-set transition: the update matches on
// both _id and the expected status, so a booking mutated concurrently is left
// untouched and the caller gets ErrStatusConflict.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, expected, target model.Status, change *model.StatusChange) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, id)
	}

	set := bson.M{"status": target}
	if change != nil {
		if change.CancelledAt != nil {
			set["cancelled_at"] = change.CancelledAt
			set["cancelled_by"] = change.CancelledBy
		}
		if change.PaymentStatus != "" {
			set["payment_status"] = change.PaymentStatus
		}
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": expected},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	if result.MatchedCount == 0 {
		// disambiguate a lost race from a missing document
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return reservationerrors.ErrStatusConflict
	}

	return nil
}

// CountActive counts the bookings consuming capacity in a slot. Only
// confirmed and checked-in bookings hold a unit; requested bookings do not
// count until approved.
func (r *mongoBookingRepository) CountActive(ctx context.Context, slotKey string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"slot_key": slotKey,
		"status":   bson.M{"$in": model.ActiveStatuses},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}

	return count, nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"idempotency_token": token}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking by token: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByRequester(ctx context.Context, requesterID string, status *model.Status, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := requesterFilter(requesterID, status)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings by requester: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) CountByRequester(ctx context.Context, requesterID string, status *model.Status) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, requesterFilter(requesterID, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings by requester: %w", err)
	}

	return count, nil
}

func (r *mongoBookingRepository) FindByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "slot_start", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, amenityDateFilter(amenityID, date, status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings by amenity and date: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) CountByAmenityDate(ctx context.Context, amenityID, date string, status *model.Status) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, amenityDateFilter(amenityID, date, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings by amenity and date: %w", err)
	}

	return count, nil
}

// FindDueForCompletion returns active bookings whose slot has already ended.
// Ordered oldest first so the sweeper drains a backlog deterministically.
func (r *mongoBookingRepository) FindDueForCompletion(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":   bson.M{"$in": model.ActiveStatuses},
		"slot_end": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "slot_end", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings due for completion: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func requesterFilter(requesterID string, status *model.Status) bson.M {
	filter := bson.M{"requester_id": requesterID}
	if status != nil {
		filter["status"] = *status
	}
	return filter
}

// amenityDateFilter addresses all bookings of one amenity-day through the
// slot key prefix, which embeds the calendar date.
func amenityDateFilter(amenityID, date string, status *model.Status) bson.M {
	prefix := regexp.QuoteMeta(model.SlotKey(amenityID, date, ""))
	filter := bson.M{
		"amenity_id": amenityID,
		"slot_key":   primitive.Regex{Pattern: "^" + prefix},
	}
	if status != nil {
		filter["status"] = *status
	}
	return filter
}

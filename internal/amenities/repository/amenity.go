package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	amenityerrors "reserva/internal/amenities/errors"
	"reserva/pkg/config"
	mongotx "reserva/pkg/db/mongo"
	"reserva/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Amenities"
)

type mongoAmenityRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type AmenityRepository interface {
	Create(ctx context.Context, amenity *model.Amenity) error
	FindByID(ctx context.Context, id string) (*model.Amenity, error)
	FindByName(ctx context.Context, name string) (*model.Amenity, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Amenity, error)
	Update(ctx context.Context, id string, amenity *model.Amenity) (*mongo.UpdateResult, error)
	Count(ctx context.Context) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoAmenityRepository(cfg *config.Config) AmenityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAmenityRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless the call is already
// inside a transaction; SessionContext cannot be wrapped without breaking
// transaction semantics.
func (r *mongoAmenityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAmenityRepository) Create(ctx context.Context, amenity *model.Amenity) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	amenity.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, amenity)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return amenityerrors.ErrDuplicateName
		}
		return fmt.Errorf("failed to create amenity: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		amenity.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAmenityRepository) FindByID(ctx context.Context, id string) (*model.Amenity, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", amenityerrors.ErrInvalidID, id)
	}

	var amenity model.Amenity
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&amenity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, amenityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find amenity: %w", err)
	}

	return &amenity, nil
}

func (r *mongoAmenityRepository) FindByName(ctx context.Context, name string) (*model.Amenity, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var amenity model.Amenity
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&amenity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, amenityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find amenity by name: %w", err)
	}

	return &amenity, nil
}

func (r *mongoAmenityRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Amenity, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find amenities: %w", err)
	}
	defer cursor.Close(ctx)

	var amenities []*model.Amenity
	if err = cursor.All(ctx, &amenities); err != nil {
		return nil, fmt.Errorf("failed to decode amenities: %w", err)
	}

	return amenities, nil
}

func (r *mongoAmenityRepository) Update(ctx context.Context, id string, amenity *model.Amenity) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", amenityerrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":                    amenity.Name,
			"description":             amenity.Description,
			"capacity":                amenity.Capacity,
			"paid":                    amenity.Paid,
			"price_cents":             amenity.PriceCents,
			"requires_approval":       amenity.RequiresApproval,
			"open_from":               amenity.OpenFrom,
			"open_until":              amenity.OpenUntil,
			"time_zone":               amenity.TimeZone,
			"cancellation_window_min": amenity.CancellationWindowMin,
			"slot_templates":          amenity.SlotTemplates,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update amenity: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, amenityerrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoAmenityRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count amenities: %w", err)
	}

	return count, nil
}

func (r *mongoAmenityRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

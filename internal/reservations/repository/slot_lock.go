package repository

import (
	"context"
	"time"

	reservationerrors "reserva/internal/reservations/errors"
	"reserva/pkg/config"
	"reserva/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LockCollectionName = "Slot_locks"
)

// SlotLockRepository provides operations for advisory slot locks. The lock
// document _id is the slot key itself, so a second writer hits a duplicate
// key and backs off instead of racing the capacity check.
type SlotLockRepository interface {
	Acquire(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error)
	Release(ctx context.Context, slotKey string) error
}

type mongoSlotLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoSlotLockRepository) Acquire(ctx context.Context, slotKey string, ttl time.Duration) (*model.SlotLock, error) {
	now := time.Now().UTC()
	lock := &model.SlotLock{
		ID:        slotKey,
		SlotKey:   slotKey,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, reservationerrors.ErrLockHeld
		}
		return nil, err
	}

	return lock, nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, slotKey string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": slotKey})
	return err
}

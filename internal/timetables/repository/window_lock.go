package repository

import (
	"context"
	"time"

	"medsched/pkg/config"
	"medsched/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Timetable_locks"

// WindowLockRepository provides advisory locks serializing window writes for
// one (doctor, hospital) pair. Mongo cannot express an interval-exclusion
// constraint, so overlap checks are protected by lock + transaction instead.
type WindowLockRepository interface {
	Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoWindowLockRepository struct {
	collection *mongo.Collection
}

func NewWindowLockRepository(cfg *config.Config) WindowLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWindowLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Returns duplicate key error if the lock is already held
func (r *mongoWindowLockRepository) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoWindowLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}

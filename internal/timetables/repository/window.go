package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	timetableerrors "medsched/internal/timetables/errors"
	"medsched/pkg/config"
	mongotx "medsched/pkg/db/mongo"
	"medsched/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Timetables"
)

type WindowRepository interface {
	Create(ctx context.Context, w *model.Window) error
	FindByID(ctx context.Context, id string) (*model.Window, error)
	Replace(ctx context.Context, id string, w *model.Window) error
	Delete(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	FindOverlapping(ctx context.Context, doctorID, hospitalID string, start, end time.Time, excludeID string) ([]*model.Window, error)
	FindByDoctor(ctx context.Context, doctorID string) ([]*model.Window, error)
	FindByHospital(ctx context.Context, hospitalID string) ([]*model.Window, error)
	ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*model.Window, error)
	ListByHospital(ctx context.Context, hospitalID string, from, to time.Time) ([]*model.Window, error)
	ListByHospitalRoom(ctx context.Context, hospitalID, room string, from, to time.Time) ([]*model.Window, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoWindowRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoWindowRepository(cfg *config.Config) WindowRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWindowRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction: a SessionContext cannot be wrapped without breaking
// transaction semantics, so it is returned unchanged with a no-op cancel.
func (r *mongoWindowRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoWindowRepository) Create(ctx context.Context, w *model.Window) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	w.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, w)
	if err != nil {
		return fmt.Errorf("failed to create timetable entry: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		w.ID = oid.Hex()
	}
	return nil
}

func (r *mongoWindowRepository) FindByID(ctx context.Context, id string) (*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", timetableerrors.ErrInvalidID, id)
	}

	var w model.Window
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&w)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, timetableerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find timetable entry: %w", err)
	}

	return &w, nil
}

func (r *mongoWindowRepository) Replace(ctx context.Context, id string, w *model.Window) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", timetableerrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"hospital_id": w.HospitalID,
			"doctor_id":   w.DoctorID,
			"room":        w.Room,
			"start_time":  w.Start,
			"end_time":    w.End,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update timetable entry: %w", err)
	}
	if result.MatchedCount == 0 {
		return timetableerrors.ErrNotFound
	}

	return nil
}

func (r *mongoWindowRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", timetableerrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete timetable entry: %w", err)
	}
	if result.DeletedCount == 0 {
		return timetableerrors.ErrNotFound
	}

	return nil
}

func (r *mongoWindowRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectIDs, err := toObjectIDs(ids)
	if err != nil {
		return 0, err
	}

	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete timetable entries: %w", err)
	}
	return result.DeletedCount, nil
}

// FindOverlapping returns windows for the same doctor and hospital whose
// intervals overlap [start, end) under half-open semantics; back-to-back
// windows that merely touch do not match. excludeID removes the window
// itself from the comparison set during updates.
func (r *mongoWindowRepository) FindOverlapping(ctx context.Context, doctorID, hospitalID string, start, end time.Time, excludeID string) ([]*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id":   doctorID,
		"hospital_id": hospitalID,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", timetableerrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	return r.findWindows(ctx, filter)
}

func (r *mongoWindowRepository) FindByDoctor(ctx context.Context, doctorID string) ([]*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findWindows(ctx, bson.M{"doctor_id": doctorID})
}

func (r *mongoWindowRepository) FindByHospital(ctx context.Context, hospitalID string) ([]*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findWindows(ctx, bson.M{"hospital_id": hospitalID})
}

func (r *mongoWindowRepository) ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"doctor_id": doctorID}
	applyRangeFilter(filter, from, to)
	return r.findWindows(ctx, filter)
}

func (r *mongoWindowRepository) ListByHospital(ctx context.Context, hospitalID string, from, to time.Time) ([]*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"hospital_id": hospitalID}
	applyRangeFilter(filter, from, to)
	return r.findWindows(ctx, filter)
}

func (r *mongoWindowRepository) ListByHospitalRoom(ctx context.Context, hospitalID, room string, from, to time.Time) ([]*model.Window, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"hospital_id": hospitalID, "room": room}
	applyRangeFilter(filter, from, to)
	return r.findWindows(ctx, filter)
}

func (r *mongoWindowRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// applyRangeFilter narrows listings to windows fully contained in [from, to],
// inclusive on both ends.
func applyRangeFilter(filter bson.M, from, to time.Time) {
	filter["start_time"] = bson.M{"$gte": from}
	filter["end_time"] = bson.M{"$lte": to}
}

func (r *mongoWindowRepository) findWindows(ctx context.Context, filter bson.M) ([]*model.Window, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find timetable entries: %w", err)
	}
	defer cursor.Close(ctx)

	var windows []*model.Window
	if err = cursor.All(ctx, &windows); err != nil {
		return nil, fmt.Errorf("failed to decode timetable entries: %w", err)
	}

	return windows, nil
}

func toObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", timetableerrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, objectID)
	}
	return objectIDs, nil
}

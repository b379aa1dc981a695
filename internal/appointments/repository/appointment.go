package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmenterrors "medsched/internal/appointments/errors"
	"medsched/pkg/config"
	mongotx "medsched/pkg/db/mongo"
	"medsched/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Appointments"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *model.Appointment) error
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	Delete(ctx context.Context, id string) error
	FindByTimetable(ctx context.Context, timetableID string) ([]*model.Appointment, error)
	FindByTimetables(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error)
	ExistsByTimetableAndSlot(ctx context.Context, timetableID string, slotTime time.Time) (bool, error)
	DeleteByTimetables(ctx context.Context, timetableIDs []string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoAppointmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAppointmentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction: a SessionContext cannot be wrapped without breaking
// transaction semantics, so it is returned unchanged with a no-op cancel.
func (r *mongoAppointmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	a.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		// Duplicate key errors surface unchanged so the service can map
		// the unique (timetable_id, slot_time) violation to a conflict.
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		a.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appointmenterrors.ErrInvalidID, id)
	}

	var a model.Appointment
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appointmenterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}

	return &a, nil
}

func (r *mongoAppointmentRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", appointmenterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if result.DeletedCount == 0 {
		return appointmenterrors.ErrNotFound
	}

	return nil
}

func (r *mongoAppointmentRepository) FindByTimetable(ctx context.Context, timetableID string) ([]*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findAppointments(ctx, bson.M{"timetable_id": timetableID})
}

func (r *mongoAppointmentRepository) FindByTimetables(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if len(timetableIDs) == 0 {
		return nil, nil
	}
	return r.findAppointments(ctx, bson.M{"timetable_id": bson.M{"$in": timetableIDs}})
}

func (r *mongoAppointmentRepository) ExistsByTimetableAndSlot(ctx context.Context, timetableID string, slotTime time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"timetable_id": timetableID,
		"slot_time":    slotTime,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check slot occupancy: %w", err)
	}

	return count > 0, nil
}

func (r *mongoAppointmentRepository) DeleteByTimetables(ctx context.Context, timetableIDs []string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if len(timetableIDs) == 0 {
		return 0, nil
	}

	result, err := r.collection.DeleteMany(ctx, bson.M{"timetable_id": bson.M{"$in": timetableIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete appointments: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoAppointmentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoAppointmentRepository) findAppointments(ctx context.Context, filter bson.M) ([]*model.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "slot_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*model.Appointment
	if err = cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}

	return appointments, nil
}

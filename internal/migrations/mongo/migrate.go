package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medsched/internal/migrations/mongo/validators"
)

var (
	TimetablesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "doctor_id", Value: 1},
			{Key: "hospital_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "hospital_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "hospital_id", Value: 1},
			{Key: "room", Value: 1},
			{Key: "start_time", Value: 1},
		}},
	}

	// The unique index is the invariant every booking path relies on: no
	// two appointments may hold the same slot of the same window.
	AppointmentsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "timetable_id", Value: 1},
				{Key: "slot_time", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "patient_id", Value: 1},
			{Key: "slot_time", Value: 1},
		}},
	}

	// expireAfterSeconds 0 makes Mongo reap a lock as soon as expires_at
	// passes, so a crashed holder cannot wedge a slot forever.
	LockIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running medsched Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Timetables": {
			Indexes:   TimetablesIndexes,
			Validator: validators.TimetableValidator,
		},
		"Appointments": {
			Indexes:   AppointmentsIndexes,
			Validator: validators.AppointmentValidator,
		},
		"Timetable_locks": {
			Indexes:   LockIndexes,
			Validator: validators.LockValidator,
		},
		"Appointment_locks": {
			Indexes:   LockIndexes,
			Validator: validators.LockValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists, updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}

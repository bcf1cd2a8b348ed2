package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nepway/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
	Down        func(ctx context.Context, db *mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		logger:     log,
	}
}

func (m *Migrator) Up(ctx context.Context) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}

		m.logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if err := m.updateVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}

		m.logger.WithField("version", migration.Version).Infof("Reverting migration: %s", migration.Description)

		if err := migration.Down(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
		}

		previousVersion := targetVersion
		if i > 0 {
			previousVersion = m.migrations[i-1].Version
		}

		if err := m.updateVersion(ctx, previousVersion); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection(CollectionMigrations).FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(ctx context.Context, version int) error {
	_, err := m.db.Collection(CollectionMigrations).ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)

	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create rides indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionRides), rideIndexes())
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				return dropIndexes(ctx, db.Collection(CollectionRides), rideIndexes())
			},
		},
		{
			Version:     2,
			Description: "Create ride requests indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionRideRequests), rideRequestIndexes())
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				return dropIndexes(ctx, db.Collection(CollectionRideRequests), rideRequestIndexes())
			},
		},
		{
			Version:     3,
			Description: "Create notifications indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionNotifications), notificationIndexes())
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				return dropIndexes(ctx, db.Collection(CollectionNotifications), notificationIndexes())
			},
		},
		{
			Version:     4,
			Description: "Create driver availability indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionDriverAvailability), driverAvailabilityIndexes())
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				return dropIndexes(ctx, db.Collection(CollectionDriverAvailability), driverAvailabilityIndexes())
			},
		},
	}
}

func rideIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("status_date"),
		},
		{
			Keys:    bson.D{{Key: "driver", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("driver_status"),
		},
		{
			Keys:    bson.D{{Key: "passengers", Value: 1}},
			Options: options.Index().SetName("passengers"),
		},
	}
}

func rideRequestIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "preferred_date", Value: 1}},
			Options: options.Index().SetName("status_preferred_date"),
		},
		{
			Keys:    bson.D{{Key: "passenger", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("passenger_created_at"),
		},
		{
			Keys:    bson.D{{Key: "accepted_ride", Value: 1}},
			Options: options.Index().SetName("accepted_ride").SetSparse(true),
		},
	}
}

func notificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_at"),
		},
	}
}

func driverAvailabilityIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "is_available", Value: 1}, {Key: "last_active", Value: -1}},
			Options: options.Index().SetName("is_available_last_active"),
		},
	}
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func dropIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	for _, index := range indexes {
		if _, err := collection.Indexes().DropOne(ctx, *index.Options.Name); err != nil {
			return err
		}
	}
	return nil
}

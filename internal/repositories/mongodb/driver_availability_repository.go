package mongodb

import (
	"context"
	"errors"
	"fmt"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type driverAvailabilityRepository struct {
	collection *mongo.Collection
}

func NewDriverAvailabilityRepository(db *mongo.Database) interfaces.DriverAvailabilityRepository {
	return &driverAvailabilityRepository{
		collection: db.Collection(database.CollectionDriverAvailability),
	}
}

func (r *driverAvailabilityRepository) Get(ctx context.Context, driverID primitive.ObjectID) (*models.DriverAvailability, error) {
	var availability models.DriverAvailability
	err := r.collection.FindOne(ctx, bson.M{"_id": driverID}).Decode(&availability)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get driver availability: %w", err)
	}
	return &availability, nil
}

func (r *driverAvailabilityRepository) Upsert(ctx context.Context, availability *models.DriverAvailability) (*models.DriverAvailability, error) {
	set := bson.M{
		"is_available": availability.IsAvailable,
		"last_active":  availability.LastActive,
	}
	if availability.CurrentLocation != nil {
		set["current_location"] = availability.CurrentLocation
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated models.DriverAvailability
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": availability.DriverID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update driver availability: %w", err)
	}
	return &updated, nil
}
